package game

const (
	TypeChooseColor = "choose_color"
	TypeMove        = "move"
	TypePass        = "pass"
	TypeReset       = "reset"

	TypeState     = "state"
	TypeError     = "error"
	TypeYourColor = "your_color"
)

// ClientMessage is the union of every client->server message; Type selects the fields in use.
type ClientMessage struct {
	Type      string `json:"type"`
	Color     string `json:"color,omitempty"`
	X         *int   `json:"x,omitempty"`
	Y         *int   `json:"y,omitempty"`
	BoardSize *int   `json:"board_size,omitempty"`
}

type Players struct {
	Black bool `json:"black"`
	White bool `json:"white"`
}

type StateMessage struct {
	Type      string    `json:"type"`
	Board     [][]Color `json:"board"`
	BoardSize int       `json:"board_size"`
	Turn      Color     `json:"turn"`
	Prisoners Prisoners `json:"prisoners"`
	Players   Players   `json:"players"`
	Passes    int       `json:"passes"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type YourColorMessage struct {
	Type  string `json:"type"`
	Color Color  `json:"color"`
}

func NewErrorMessage(err error) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: err.Error()}
}

func NewYourColorMessage(c Color) YourColorMessage {
	return YourColorMessage{Type: TypeYourColor, Color: c}
}
