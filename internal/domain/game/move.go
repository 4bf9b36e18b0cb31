package game

// Move is one entry of the game record. Pass moves carry no position.
type Move struct {
	Color    Color     `json:"color"`
	Position *Position `json:"position,omitempty"`
}

func (m Move) IsPass() bool {
	return m.Position == nil
}
