package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/tictactoe-timetravel/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/entity"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/tictactoe"
)

//go:generate mockery --name=gameRepo --with-expecter --output=../../mocks/usecase --outpkg=usecase
type gameRepo interface {
	CreateOrUpdate(ctx context.Context, game *entity.Game) error
	GetByID(ctx context.Context, id string) (*entity.Game, error)
	DeleteByID(ctx context.Context, id string) error
}

// GameManager keeps one game per session and applies transitions to it.
// Operations on the same session run one at a time.
type GameManager struct {
	logger   *slog.Logger
	gameRepo gameRepo
	sessions *sessionLocks
}

func NewGameManager(logger *slog.Logger, gameRepo gameRepo) *GameManager {
	return &GameManager{
		logger:   logger.With("component", "game_manager"),
		gameRepo: gameRepo,
		sessions: newSessionLocks(),
	}
}

func (that *GameManager) GetOrCreateGame(ctx context.Context, id string) (*entity.Game, error) {
	defer that.sessions.lock(id)()

	return that.loadGame(ctx, id)
}

func (that *GameManager) loadGame(ctx context.Context, id string) (*entity.Game, error) {
	game, err := that.gameRepo.GetByID(ctx, id)
	if err == nil {
		return game, nil
	}

	if !errors.Is(err, apperror.ErrGameNotFound) {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	return that.createGame(ctx, id)
}

// Play clicks a cell of the displayed board. The returned flag is false when
// the click was ignored (occupied cell or finished game).
func (that *GameManager) Play(ctx context.Context, id string, cell int) (*entity.Game, bool, error) {
	defer that.sessions.lock(id)()

	game, err := that.loadGame(ctx, id)
	if err != nil {
		return nil, false, err
	}

	next := game
	applied, err := tictactoe.Click(game.XIsNext(), game.CurrentSnapshot(), cell, func(snapshot entity.Snapshot) {
		next = tictactoe.ApplyMove(game, snapshot)
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to play cell: %w", err)
	}

	if !applied {
		that.logger.Debug("click ignored", "method", "Play", "gameID", id, "cell", cell)
		return game, false, nil
	}

	if err = that.updateGame(ctx, next); err != nil {
		return nil, false, err
	}

	return next, true, nil
}

func (that *GameManager) JumpTo(ctx context.Context, id string, move int) (*entity.Game, error) {
	defer that.sessions.lock(id)()

	game, err := that.loadGame(ctx, id)
	if err != nil {
		return nil, err
	}

	jumped, err := tictactoe.JumpTo(game, move)
	if err != nil {
		return nil, fmt.Errorf("failed to jump: %w", err)
	}

	if err = that.updateGame(ctx, jumped); err != nil {
		return nil, err
	}

	return jumped, nil
}

func (that *GameManager) ToggleOrder(ctx context.Context, id string) (*entity.Game, error) {
	defer that.sessions.lock(id)()

	game, err := that.loadGame(ctx, id)
	if err != nil {
		return nil, err
	}

	toggled := tictactoe.ToggleOrder(game)
	if err = that.updateGame(ctx, toggled); err != nil {
		return nil, err
	}

	return toggled, nil
}

// Restart drops the session's game and starts a new one.
func (that *GameManager) Restart(ctx context.Context, id string) (*entity.Game, error) {
	defer that.sessions.lock(id)()

	if err := that.gameRepo.DeleteByID(ctx, id); err != nil && !errors.Is(err, apperror.ErrGameNotFound) {
		return nil, fmt.Errorf("failed to delete game: %w", err)
	}

	that.logger.Info("game restarted", "method", "Restart", "gameID", id)

	return that.createGame(ctx, id)
}

func (that *GameManager) createGame(ctx context.Context, id string) (*entity.Game, error) {
	game := entity.NewGame(id)
	if err := that.gameRepo.CreateOrUpdate(ctx, game); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	that.logger.Info("game created", "method", "createGame", "gameID", id)

	return game, nil
}

func (that *GameManager) updateGame(ctx context.Context, game *entity.Game) error {
	if err := that.gameRepo.CreateOrUpdate(ctx, game); err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}

	return nil
}
