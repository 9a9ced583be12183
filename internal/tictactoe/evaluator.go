package tictactoe

import "github.com/rocketscienceinc/tictactoe-timetravel/internal/entity"

// WinCombos lists every winning line in evaluation order: rows, columns, diagonals.
var WinCombos = [8]entity.WinningLine{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Evaluate returns the first line in WinCombos whose cells carry the same mark.
func Evaluate(board entity.Snapshot) (entity.WinningLine, bool) {
	for _, combo := range WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != entity.Empty && a == b && b == c {
			return combo, true
		}
	}

	return entity.WinningLine{}, false
}

// Winner returns the mark owning the winning line, or entity.Empty.
func Winner(board entity.Snapshot) entity.Mark {
	line, ok := Evaluate(board)
	if !ok {
		return entity.Empty
	}

	return board[line[0]]
}

func IsFull(board entity.Snapshot) bool {
	for _, cell := range board {
		if cell == entity.Empty {
			return false
		}
	}

	return true
}
