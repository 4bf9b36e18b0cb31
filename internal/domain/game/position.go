package game

import "fmt"

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Position) IsValid(size int) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < size && p.Y < size
}

// Adjacent returns the orthogonal neighbours of p that lie on a board of the given size.
func (p Position) Adjacent(size int) []Position {
	neighbours := make([]Position, 0, 4)
	if p.X > 0 {
		neighbours = append(neighbours, Position{X: p.X - 1, Y: p.Y})
	}
	if p.X < size-1 {
		neighbours = append(neighbours, Position{X: p.X + 1, Y: p.Y})
	}
	if p.Y > 0 {
		neighbours = append(neighbours, Position{X: p.X, Y: p.Y - 1})
	}
	if p.Y < size-1 {
		neighbours = append(neighbours, Position{X: p.X, Y: p.Y + 1})
	}
	return neighbours
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}
