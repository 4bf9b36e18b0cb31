package game

// Board is a square grid stored row-major: cells[y*size+x].
type Board struct {
	size  int
	cells []Color
}

func NewBoard(size int) *Board {
	return &Board{
		size:  size,
		cells: make([]Color, size*size),
	}
}

func (b *Board) Size() int {
	return b.size
}

func (b *Board) index(pos Position) int {
	return pos.Y*b.size + pos.X
}

// Get reads out-of-range positions as Empty.
func (b *Board) Get(pos Position) Color {
	if !pos.IsValid(b.size) {
		return Empty
	}
	return b.cells[b.index(pos)]
}

// Set ignores out-of-range positions.
func (b *Board) Set(pos Position, c Color) {
	if !pos.IsValid(b.size) {
		return
	}
	b.cells[b.index(pos)] = c
}

func (b *Board) IsEmpty(pos Position) bool {
	return b.Get(pos) == Empty
}

// FindGroup returns every stone connected to pos through stones of the same color.
// The traversal keeps an explicit frontier so large boards never grow the call stack.
func (b *Board) FindGroup(pos Position) map[Position]struct{} {
	group := make(map[Position]struct{})

	color := b.Get(pos)
	if color == Empty {
		return group
	}

	group[pos] = struct{}{}
	frontier := []Position{pos}
	for len(frontier) > 0 {
		current := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]

		for _, next := range current.Adjacent(b.size) {
			if _, seen := group[next]; seen {
				continue
			}
			if b.Get(next) != color {
				continue
			}
			group[next] = struct{}{}
			frontier = append(frontier, next)
		}
	}

	return group
}

// Liberties returns the distinct empty points adjacent to the group containing pos.
func (b *Board) Liberties(pos Position) map[Position]struct{} {
	liberties := make(map[Position]struct{})
	for stone := range b.FindGroup(pos) {
		for _, next := range stone.Adjacent(b.size) {
			if b.IsEmpty(next) {
				liberties[next] = struct{}{}
			}
		}
	}
	return liberties
}

func (b *Board) CountLiberties(pos Position) int {
	return len(b.Liberties(pos))
}

func (b *Board) Clone() *Board {
	cells := make([]Color, len(b.cells))
	copy(cells, b.cells)
	return &Board{size: b.size, cells: cells}
}

// Grid returns a copy of the board as rows indexed [y][x].
func (b *Board) Grid() [][]Color {
	grid := make([][]Color, b.size)
	for y := range grid {
		row := make([]Color, b.size)
		copy(row, b.cells[y*b.size:(y+1)*b.size])
		grid[y] = row
	}
	return grid
}

func (b *Board) snapshot() []Color {
	cells := make([]Color, len(b.cells))
	copy(cells, b.cells)
	return cells
}

func (b *Board) restore(cells []Color) {
	copy(b.cells, cells)
}
