package game

import (
	"fmt"

	errs "goban/internal/errors"
)

const DefaultBoardSize = 19

type Prisoners struct {
	Black int `json:"black"`
	White int `json:"white"`
}

// Game is not safe for concurrent use; the session layer serializes access.
type Game struct {
	board     *Board
	turn      Color
	prisoners Prisoners
	history   []uint64
	passes    int
	moves     []Move
	version   uint64
}

func NewGame(size int) (*Game, error) {
	g := &Game{}
	if err := g.Reset(size); err != nil {
		return nil, err
	}
	return g, nil
}

// Reset discards the previous game. The version counter keeps growing across resets.
func (g *Game) Reset(size int) error {
	if size <= 0 {
		return fmt.Errorf("%w: %d", errs.ErrInvalidBoardSize, size)
	}

	g.board = NewBoard(size)
	g.turn = Black
	g.prisoners = Prisoners{}
	g.history = nil
	g.passes = 0
	g.moves = nil
	g.version++
	return nil
}

// PlaceStone either commits the whole move or leaves the game untouched.
func (g *Game) PlaceStone(pos Position, color Color) error {
	if color != g.turn {
		return errs.ErrWrongTurn
	}
	if !pos.IsValid(g.board.Size()) {
		return errs.ErrInvalidPosition
	}
	if !g.board.IsEmpty(pos) {
		return errs.ErrOccupied
	}
	if IsSuicide(g.board, pos, color) {
		return errs.ErrSuicide
	}

	saved := g.board.snapshot()

	g.board.Set(pos, color)

	captures := FindCaptures(g.board, color.Opposite())
	for _, captured := range captures {
		g.board.Set(captured, Empty)
	}

	hash := HashBoard(g.board)
	if IsKoViolation(hash, g.history) {
		g.board.restore(saved)
		return errs.ErrKoViolation
	}

	switch color {
	case Black:
		g.prisoners.Black += len(captures)
	case White:
		g.prisoners.White += len(captures)
	}
	g.history = append(g.history, hash)
	placed := pos
	g.moves = append(g.moves, Move{Color: color, Position: &placed})
	g.passes = 0
	g.turn = g.turn.Opposite()
	g.version++

	return nil
}

// Pass flips the turn without any check; who may pass is decided by the caller.
func (g *Game) Pass() {
	g.moves = append(g.moves, Move{Color: g.turn})
	g.passes++
	g.turn = g.turn.Opposite()
	g.version++
}

func (g *Game) Size() int {
	return g.board.Size()
}

func (g *Game) Turn() Color {
	return g.turn
}

func (g *Game) Prisoners() Prisoners {
	return g.prisoners
}

func (g *Game) Passes() int {
	return g.passes
}

func (g *Game) Version() uint64 {
	return g.version
}

func (g *Game) Get(pos Position) Color {
	return g.board.Get(pos)
}

// Board returns a copy of the grid indexed [y][x].
func (g *Game) Board() [][]Color {
	return g.board.Grid()
}

func (g *Game) History() []uint64 {
	history := make([]uint64, len(g.history))
	copy(history, g.history)
	return history
}

func (g *Game) Moves() []Move {
	moves := make([]Move, len(g.moves))
	copy(moves, g.moves)
	return moves
}
