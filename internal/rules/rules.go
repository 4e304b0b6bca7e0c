package rules

import "github.com/rocketscienceinc/gameroom-backend/internal/entity"

const (
	OutcomeWin     = "win"
	OutcomeDraw    = "draw"
	OutcomeOngoing = "ongoing"
)

// IsLegalMove reports whether (x, y) is inside the grid and targets an empty
// cell. Pure function over the board.
func IsLegalMove(board entity.Board, x, y int) bool {
	if !board.InBounds(x, y) {
		return false
	}

	return board.Cell(x, y) == entity.EmptyCell
}

// Outcome checks the board after a move at (lastX, lastY) by mark. Only the
// row, column and diagonals through the last move can complete a line, so
// nothing else is scanned.
func Outcome(board entity.Board, lastX, lastY int, mark string) string {
	if hasRow(board, lastY, mark) || hasColumn(board, lastX, mark) || hasDiagonal(board, lastX, lastY, mark) {
		return OutcomeWin
	}

	if board.IsFull() {
		return OutcomeDraw
	}

	return OutcomeOngoing
}

func hasRow(board entity.Board, y int, mark string) bool {
	for x := 0; x < entity.BoardSize; x++ {
		if board.Cell(x, y) != mark {
			return false
		}
	}
	return true
}

func hasColumn(board entity.Board, x int, mark string) bool {
	for y := 0; y < entity.BoardSize; y++ {
		if board.Cell(x, y) != mark {
			return false
		}
	}
	return true
}

func hasDiagonal(board entity.Board, x, y int, mark string) bool {
	if x == y {
		matched := true
		for i := 0; i < entity.BoardSize; i++ {
			if board.Cell(i, i) != mark {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}

	if x+y == entity.BoardSize-1 {
		matched := true
		for i := 0; i < entity.BoardSize; i++ {
			if board.Cell(entity.BoardSize-1-i, i) != mark {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}

	return false
}
