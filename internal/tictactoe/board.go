package tictactoe

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-timetravel/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/entity"
)

const (
	statusWinner = "Winner: %s"
	statusDraw   = "Draw the Game!!"
	statusNext   = "Next player: %s"

	boardSide = 3
)

// CellView is one rendered cell.
type CellView struct {
	Index       int         `json:"index"`
	Mark        entity.Mark `json:"mark"`
	Highlighted bool        `json:"highlighted"`
}

// BoardView is the projection of a snapshot: status line and a 3x3 grid.
type BoardView struct {
	Status string                         `json:"status"`
	Winner entity.Mark                    `json:"winner"`
	Line   []int                          `json:"line,omitempty"`
	Rows   [boardSide][boardSide]CellView `json:"rows"`
}

// Status builds the status line. A winner takes priority over a full board.
func Status(xIsNext bool, board entity.Snapshot) string {
	if line, ok := Evaluate(board); ok {
		return fmt.Sprintf(statusWinner, board[line[0]])
	}

	if IsFull(board) {
		return statusDraw
	}

	return fmt.Sprintf(statusNext, actingMark(xIsNext))
}

// Click applies the acting mark on cell i and hands the next snapshot to onPlay.
// Clicks on an occupied cell or after the game is won are ignored.
func Click(xIsNext bool, board entity.Snapshot, i int, onPlay func(next entity.Snapshot)) (bool, error) {
	if i < 0 || i >= entity.BoardSize {
		return false, fmt.Errorf("%w: cell %d", apperror.ErrInvalidCell, i)
	}

	if board[i] != entity.Empty {
		return false, nil
	}

	if _, won := Evaluate(board); won {
		return false, nil
	}

	next := board
	next[i] = actingMark(xIsNext)
	onPlay(next)

	return true, nil
}

func RenderBoard(xIsNext bool, board entity.Snapshot) BoardView {
	view := BoardView{
		Status: Status(xIsNext, board),
	}

	line, won := Evaluate(board)
	if won {
		view.Winner = board[line[0]]
		view.Line = line[:]
	}

	for row := 0; row < boardSide; row++ {
		for col := 0; col < boardSide; col++ {
			index := col + boardSide*row
			view.Rows[row][col] = CellView{
				Index:       index,
				Mark:        board[index],
				Highlighted: won && inLine(line, index),
			}
		}
	}

	return view
}

func actingMark(xIsNext bool) entity.Mark {
	if xIsNext {
		return entity.X
	}
	return entity.O
}

func inLine(line entity.WinningLine, index int) bool {
	for _, cell := range line {
		if cell == index {
			return true
		}
	}

	return false
}
