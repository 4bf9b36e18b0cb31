package game

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// KoWindow is how many trailing history entries a new position is compared against.
// Three entries make this a bounded positional superko rather than the single-position ko.
const KoWindow = 3

// FindCaptures returns every stone of the given color whose group has no liberties.
func FindCaptures(board *Board, color Color) []Position {
	var captured []Position
	checked := make(map[Position]struct{})

	size := board.Size()
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			pos := Position{X: x, Y: y}
			if _, ok := checked[pos]; ok {
				continue
			}
			if board.Get(pos) != color {
				continue
			}

			group := board.FindGroup(pos)
			for stone := range group {
				checked[stone] = struct{}{}
			}

			if board.CountLiberties(pos) == 0 {
				for stone := range group {
					captured = append(captured, stone)
				}
			}
		}
	}

	return captured
}

// IsSuicide plays the stone on a copy, removes what it captures and then checks
// whether the placed group still has a liberty.
func IsSuicide(board *Board, pos Position, color Color) bool {
	test := board.Clone()
	test.Set(pos, color)

	for _, captured := range FindCaptures(test, color.Opposite()) {
		test.Set(captured, Empty)
	}

	return test.CountLiberties(pos) == 0
}

// HashBoard XORs a per-(position, color) key over all stones, so the result does
// not depend on iteration order.
func HashBoard(board *Board) uint64 {
	var hash uint64

	size := board.Size()
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			pos := Position{X: x, Y: y}
			if c := board.Get(pos); c != Empty {
				hash ^= stoneKey(pos, c)
			}
		}
	}

	return hash
}

func stoneKey(pos Position, c Color) uint64 {
	var buf [9]byte
	binary.BigEndian.PutUint32(buf[0:4], uint32(pos.X))
	binary.BigEndian.PutUint32(buf[4:8], uint32(pos.Y))
	buf[8] = byte(c)
	return xxhash.Sum64(buf[:])
}

func IsKoViolation(hash uint64, history []uint64) bool {
	start := len(history) - KoWindow
	if start < 0 {
		start = 0
	}

	for _, h := range history[start:] {
		if h == hash {
			return true
		}
	}
	return false
}
