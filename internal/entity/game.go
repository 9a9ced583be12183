package entity

import (
	"errors"
	"fmt"
)

// Mark is the content of a single board cell.
type Mark uint8

const (
	Empty Mark = iota
	X
	O
)

const BoardSize = 9

var (
	ErrUnknownMark = errors.New("unknown mark")
	ErrInvalidGame = errors.New("invalid game state")
)

func (that Mark) String() string {
	switch that {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return ""
	}
}

func (that Mark) MarshalText() ([]byte, error) {
	return []byte(that.String()), nil
}

func (that *Mark) UnmarshalText(text []byte) error {
	switch string(text) {
	case "":
		*that = Empty
	case "X":
		*that = X
	case "O":
		*that = O
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMark, text)
	}

	return nil
}

// Snapshot is the state of all nine cells, indexed row*3 + col.
type Snapshot [BoardSize]Mark

// WinningLine holds the three cell indexes of a completed line.
type WinningLine [3]int

// Game is the authoritative state of one game: every snapshot from the empty
// board to the latest move, and the position currently displayed.
type Game struct {
	ID              string     `json:"id"`
	History         []Snapshot `json:"history"`
	CurrentMove     int        `json:"current_move"`
	DisplayReversed bool       `json:"display_reversed"`
}

func NewGame(id string) *Game {
	return &Game{
		ID:          id,
		History:     []Snapshot{{}},
		CurrentMove: 0,
	}
}

// Validate checks that the history is not empty and the current move points into it.
func (that *Game) Validate() error {
	if len(that.History) == 0 {
		return fmt.Errorf("%w: empty history", ErrInvalidGame)
	}

	if that.CurrentMove < 0 || that.CurrentMove >= len(that.History) {
		return fmt.Errorf("%w: move %d outside %d snapshots", ErrInvalidGame, that.CurrentMove, len(that.History))
	}

	return nil
}

// XIsNext reports whether X acts at the current position. X always opens.
func (that *Game) XIsNext() bool {
	return that.CurrentMove%2 == 0
}

func (that *Game) NextMark() Mark {
	if that.XIsNext() {
		return X
	}
	return O
}

func (that *Game) CurrentSnapshot() Snapshot {
	return that.History[that.CurrentMove]
}

// Clone returns a deep copy so transitions never share history storage.
func (that *Game) Clone() *Game {
	history := make([]Snapshot, len(that.History))
	copy(history, that.History)

	return &Game{
		ID:              that.ID,
		History:         history,
		CurrentMove:     that.CurrentMove,
		DisplayReversed: that.DisplayReversed,
	}
}
