package game

import (
	"encoding/json"
	"fmt"

	errs "goban/internal/errors"
)

// Color of a stone. The zero value Empty marks a cell without a stone.
type Color int

const (
	Empty Color = iota
	Black
	White
)

const (
	colorBlack = "black"
	colorWhite = "white"
)

func (c Color) Opposite() Color {
	switch c {
	case Black:
		return White
	case White:
		return Black
	default:
		return Empty
	}
}

func (c Color) String() string {
	switch c {
	case Black:
		return colorBlack
	case White:
		return colorWhite
	default:
		return "empty"
	}
}

// ParseColor accepts only the two player colors.
func ParseColor(s string) (Color, error) {
	switch s {
	case colorBlack:
		return Black, nil
	case colorWhite:
		return White, nil
	default:
		return Empty, fmt.Errorf("%w: %q", errs.ErrInvalidColor, s)
	}
}

func (c Color) MarshalJSON() ([]byte, error) {
	if c == Empty {
		return []byte("null"), nil
	}
	return json.Marshal(c.String())
}

func (c *Color) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Empty
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrInvalidColor, err)
	}

	parsed, err := ParseColor(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
