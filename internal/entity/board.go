package entity

const (
	MarkX = "X"
	MarkO = "O"

	EmptyCell = ""

	BoardSize = 3
)

// Board is a 3x3 grid indexed as [y][x]. A cell holds a player mark or
// EmptyCell; once written it is never reset.
type Board [BoardSize][BoardSize]string

// Cell returns the mark at (x, y). Out-of-range coordinates read as empty.
func (that *Board) Cell(x, y int) string {
	if !that.InBounds(x, y) {
		return EmptyCell
	}
	return that[y][x]
}

func (that *Board) SetCell(x, y int, mark string) {
	that[y][x] = mark
}

func (that *Board) InBounds(x, y int) bool {
	return x >= 0 && x < BoardSize && y >= 0 && y < BoardSize
}

func (that *Board) IsFull() bool {
	for y := range that {
		for x := range that[y] {
			if that[y][x] == EmptyCell {
				return false
			}
		}
	}
	return true
}

func ToggleMark(mark string) string {
	if mark == MarkX {
		return MarkO
	}
	return MarkX
}
