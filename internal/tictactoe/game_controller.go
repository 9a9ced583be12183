package tictactoe

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-timetravel/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/entity"
)

const (
	labelGameStart = "Go to game start"
	labelGoTo      = "Go to move #%d at row %d col %d"
	labelCurrent   = "You are at move #%d at row %d col %d"

	ToggleLabel = "Toggle Sort Order"
)

// MoveEntry is one row of the history list.
type MoveEntry struct {
	Move    int    `json:"move"`
	Label   string `json:"label"`
	Current bool   `json:"current"`
}

// GameView is everything a UI binding needs to draw a game.
type GameView struct {
	ID          string      `json:"id"`
	Board       BoardView   `json:"board"`
	XIsNext     bool        `json:"x_is_next"`
	CurrentMove int         `json:"current_move"`
	Reversed    bool        `json:"reversed"`
	ToggleLabel string      `json:"toggle_label"`
	Moves       []MoveEntry `json:"moves"`
}

// ApplyMove keeps history up to the current position, appends next and
// selects it. Snapshots past the current position are discarded.
func ApplyMove(game *entity.Game, next entity.Snapshot) *entity.Game {
	history := make([]entity.Snapshot, game.CurrentMove+1, game.CurrentMove+2)
	copy(history, game.History[:game.CurrentMove+1])
	history = append(history, next)

	return &entity.Game{
		ID:              game.ID,
		History:         history,
		CurrentMove:     len(history) - 1,
		DisplayReversed: game.DisplayReversed,
	}
}

// JumpTo selects a past position without touching history.
func JumpTo(game *entity.Game, move int) (*entity.Game, error) {
	if move < 0 || move >= len(game.History) {
		return nil, fmt.Errorf("%w: move %d, history length %d", apperror.ErrOutOfRange, move, len(game.History))
	}

	jumped := game.Clone()
	jumped.CurrentMove = move

	return jumped, nil
}

// ToggleOrder flips the display order of the history list. History itself
// stays chronological, so the selected snapshot does not change.
func ToggleOrder(game *entity.Game) *entity.Game {
	toggled := game.Clone()
	toggled.DisplayReversed = !game.DisplayReversed

	return toggled
}

// MoveLabel describes a history entry. Row and column come from the move
// number, not from the cell that was played.
func MoveLabel(move int, current bool) string {
	row := move/boardSide + 1
	col := move%boardSide + 1

	switch {
	case current:
		return fmt.Sprintf(labelCurrent, move, row, col)
	case move == 0:
		return labelGameStart
	default:
		return fmt.Sprintf(labelGoTo, move, row, col)
	}
}

// Moves lists history entries in display order.
func Moves(game *entity.Game) []MoveEntry {
	total := len(game.History)
	moves := make([]MoveEntry, 0, total)

	for position := 0; position < total; position++ {
		move := DisplayIndex(game, position)
		current := move == game.CurrentMove
		moves = append(moves, MoveEntry{
			Move:    move,
			Label:   MoveLabel(move, current),
			Current: current,
		})
	}

	return moves
}

// DisplayIndex maps a position in the rendered list to its chronological move.
func DisplayIndex(game *entity.Game, position int) int {
	if game.DisplayReversed {
		return len(game.History) - 1 - position
	}
	return position
}

func Render(game *entity.Game) GameView {
	return GameView{
		ID:          game.ID,
		Board:       RenderBoard(game.XIsNext(), game.CurrentSnapshot()),
		XIsNext:     game.XIsNext(),
		CurrentMove: game.CurrentMove,
		Reversed:    game.DisplayReversed,
		ToggleLabel: ToggleLabel,
		Moves:       Moves(game),
	}
}

// GameController owns one game for in-process UIs.
type GameController struct {
	game *entity.Game
}

func NewGameController(game *entity.Game) *GameController {
	return &GameController{game: game}
}

func (that *GameController) Game() *entity.Game {
	return that.game
}

func (that *GameController) View() GameView {
	return Render(that.game)
}

func (that *GameController) HandlePlay(next entity.Snapshot) {
	that.game = ApplyMove(that.game, next)
}

// ClickCell routes a click on cell i through the board rules.
func (that *GameController) ClickCell(i int) (bool, error) {
	return Click(that.game.XIsNext(), that.game.CurrentSnapshot(), i, that.HandlePlay)
}

func (that *GameController) JumpTo(move int) error {
	game, err := JumpTo(that.game, move)
	if err != nil {
		return err
	}

	that.game = game

	return nil
}

func (that *GameController) ToggleSortOrder() {
	that.game = ToggleOrder(that.game)
}
