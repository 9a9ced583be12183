package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-timetravel/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/entity"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/repository"
	mockedUseCase "github.com/rocketscienceinc/tictactoe-timetravel/mocks/usecase"
)

var errRedisDown = errors.New("redis down")

func newTestManager(t *testing.T) (*GameManager, *mockedUseCase.MockgameRepo) {
	t.Helper()

	repo := mockedUseCase.NewMockgameRepo(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	return NewGameManager(logger, repo), repo
}

func TestGameManager_GetOrCreateGame(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates a new game when none is stored", func(t *testing.T) {
		// Given: an empty repository
		manager, repo := newTestManager(t)
		repo.EXPECT().
			GetByID(ctx, "s1").
			Return(nil, apperror.ErrGameNotFound).
			Once()
		repo.EXPECT().
			CreateOrUpdate(ctx, entity.NewGame("s1")).
			Return(nil).
			Once()

		// When: getting the session's game
		game, err := manager.GetOrCreateGame(ctx, "s1")

		// Then: a fresh game is returned
		require.NoError(t, err)
		assert.Equal(t, entity.NewGame("s1"), game)
	})

	t.Run("Returns the stored game", func(t *testing.T) {
		// Given: a stored game
		manager, repo := newTestManager(t)
		stored := &entity.Game{ID: "s2", History: []entity.Snapshot{{}, {entity.X}}, CurrentMove: 1}
		repo.EXPECT().
			GetByID(ctx, "s2").
			Return(stored, nil).
			Once()

		// When: getting the session's game
		game, err := manager.GetOrCreateGame(ctx, "s2")

		// Then: the stored game is returned
		require.NoError(t, err)
		assert.Equal(t, stored, game)
	})

	t.Run("Returns error when storage fails", func(t *testing.T) {
		// Given: a failing repository
		manager, repo := newTestManager(t)
		repo.EXPECT().
			GetByID(ctx, "s3").
			Return(nil, errRedisDown).
			Once()

		// When: getting the session's game
		game, err := manager.GetOrCreateGame(ctx, "s3")

		// Then: the error is wrapped
		require.ErrorIs(t, err, errRedisDown)
		assert.Nil(t, game)
	})
}

func TestGameManager_Play(t *testing.T) {
	ctx := context.Background()

	t.Run("Applies and stores a move", func(t *testing.T) {
		// Given: a new stored game
		manager, repo := newTestManager(t)
		repo.EXPECT().
			GetByID(ctx, "s1").
			Return(entity.NewGame("s1"), nil).
			Once()
		repo.EXPECT().
			CreateOrUpdate(ctx, mock.MatchedBy(func(game *entity.Game) bool {
				return len(game.History) == 2 && game.CurrentMove == 1 && game.History[1][4] == entity.X
			})).
			Return(nil).
			Once()

		// When: X plays the center
		game, applied, err := manager.Play(ctx, "s1", 4)

		// Then: the move is applied
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, entity.X, game.CurrentSnapshot()[4])
	})

	t.Run("Ignored click is not stored", func(t *testing.T) {
		// Given: a game where the center is taken
		manager, repo := newTestManager(t)
		stored := &entity.Game{ID: "s1", History: []entity.Snapshot{{}, {4: entity.X}}, CurrentMove: 1}
		repo.EXPECT().
			GetByID(ctx, "s1").
			Return(stored, nil).
			Once()

		// When: O clicks the center
		game, applied, err := manager.Play(ctx, "s1", 4)

		// Then: nothing is written
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Equal(t, stored, game)
	})

	t.Run("Invalid cell", func(t *testing.T) {
		// Given: a new stored game
		manager, repo := newTestManager(t)
		repo.EXPECT().
			GetByID(ctx, "s1").
			Return(entity.NewGame("s1"), nil).
			Once()

		// When: clicking outside the board
		_, _, err := manager.Play(ctx, "s1", 9)

		// Then: ErrInvalidCell is returned
		require.ErrorIs(t, err, apperror.ErrInvalidCell)
	})

	t.Run("Storage failure", func(t *testing.T) {
		// Given: a repository that fails on write
		manager, repo := newTestManager(t)
		repo.EXPECT().
			GetByID(ctx, "s1").
			Return(entity.NewGame("s1"), nil).
			Once()
		repo.EXPECT().
			CreateOrUpdate(ctx, mock.AnythingOfType("*entity.Game")).
			Return(errRedisDown).
			Once()

		// When: playing a move
		game, applied, err := manager.Play(ctx, "s1", 0)

		// Then: the error is returned
		require.ErrorIs(t, err, errRedisDown)
		assert.False(t, applied)
		assert.Nil(t, game)
	})
}

func TestGameManager_JumpTo(t *testing.T) {
	ctx := context.Background()

	t.Run("Stores the new position", func(t *testing.T) {
		// Given: a game with two moves
		manager, repo := newTestManager(t)
		stored := &entity.Game{ID: "s1", History: []entity.Snapshot{{}, {entity.X}, {entity.X, entity.O}}, CurrentMove: 2}
		repo.EXPECT().
			GetByID(ctx, "s1").
			Return(stored, nil).
			Once()
		repo.EXPECT().
			CreateOrUpdate(ctx, mock.MatchedBy(func(game *entity.Game) bool {
				return game.CurrentMove == 0 && len(game.History) == 3
			})).
			Return(nil).
			Once()

		// When: jumping to the start
		game, err := manager.JumpTo(ctx, "s1", 0)

		// Then: the start is selected
		require.NoError(t, err)
		assert.Equal(t, 0, game.CurrentMove)
	})

	t.Run("Out of range", func(t *testing.T) {
		// Given: a new game
		manager, repo := newTestManager(t)
		repo.EXPECT().
			GetByID(ctx, "s1").
			Return(entity.NewGame("s1"), nil).
			Once()

		// When: jumping past history
		game, err := manager.JumpTo(ctx, "s1", 3)

		// Then: ErrOutOfRange is returned
		require.ErrorIs(t, err, apperror.ErrOutOfRange)
		assert.Nil(t, game)
	})
}

func TestGameManager_ToggleOrder(t *testing.T) {
	ctx := context.Background()

	// Given: a new game
	manager, repo := newTestManager(t)
	repo.EXPECT().
		GetByID(ctx, "s1").
		Return(entity.NewGame("s1"), nil).
		Once()
	repo.EXPECT().
		CreateOrUpdate(ctx, mock.MatchedBy(func(game *entity.Game) bool {
			return game.DisplayReversed
		})).
		Return(nil).
		Once()

	// When: toggling the order
	game, err := manager.ToggleOrder(ctx, "s1")

	// Then: the display is reversed
	require.NoError(t, err)
	assert.True(t, game.DisplayReversed)
}

func TestGameManager_Restart(t *testing.T) {
	ctx := context.Background()

	t.Run("Replaces the stored game", func(t *testing.T) {
		// Given: a stored game
		manager, repo := newTestManager(t)
		repo.EXPECT().
			DeleteByID(ctx, "s1").
			Return(nil).
			Once()
		repo.EXPECT().
			CreateOrUpdate(ctx, entity.NewGame("s1")).
			Return(nil).
			Once()

		// When: restarting
		game, err := manager.Restart(ctx, "s1")

		// Then: a fresh game is returned
		require.NoError(t, err)
		assert.Equal(t, entity.NewGame("s1"), game)
	})

	t.Run("Missing game is not an error", func(t *testing.T) {
		// Given: no stored game
		manager, repo := newTestManager(t)
		repo.EXPECT().
			DeleteByID(ctx, "s1").
			Return(apperror.ErrGameNotFound).
			Once()
		repo.EXPECT().
			CreateOrUpdate(ctx, entity.NewGame("s1")).
			Return(nil).
			Once()

		// When: restarting
		_, err := manager.Restart(ctx, "s1")

		// Then: no error is returned
		require.NoError(t, err)
	})
}

func TestGameManager_WithMemoryRepository(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	manager := NewGameManager(logger, repository.NewMemoryGameRepository())

	// Given: three moves played
	for _, cell := range []int{0, 4, 8} {
		_, applied, err := manager.Play(ctx, "s1", cell)
		require.NoError(t, err)
		require.True(t, applied)
	}

	// When: jumping back, toggling and playing a different move
	_, err := manager.JumpTo(ctx, "s1", 1)
	require.NoError(t, err)
	_, err = manager.ToggleOrder(ctx, "s1")
	require.NoError(t, err)
	game, applied, err := manager.Play(ctx, "s1", 2)
	require.NoError(t, err)
	require.True(t, applied)

	// Then: the future was discarded and the display stays reversed
	assert.Len(t, game.History, 3)
	assert.Equal(t, 2, game.CurrentMove)
	assert.True(t, game.DisplayReversed)

	stored, err := manager.GetOrCreateGame(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, game, stored)
}

// slowGameRepo widens the gap between loading and storing a game.
type slowGameRepo struct {
	repository.GameRepository
	delay time.Duration
}

func (that *slowGameRepo) GetByID(ctx context.Context, id string) (*entity.Game, error) {
	time.Sleep(that.delay)
	return that.GameRepository.GetByID(ctx, id)
}

func TestGameManager_ConcurrentPlays(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	for round := range 20 {
		// Given: a slow repository shared by two requests on one session
		manager := NewGameManager(logger, &slowGameRepo{
			GameRepository: repository.NewMemoryGameRepository(),
			delay:          2 * time.Millisecond,
		})

		// When: two different cells are played at the same time
		var wg sync.WaitGroup
		applied := make([]bool, 2)
		for i, cell := range []int{0, 1} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, ok, err := manager.Play(ctx, "s1", cell)
				assert.NoError(t, err)
				applied[i] = ok
			}()
		}
		wg.Wait()

		// Then: both moves are accepted and both are stored
		require.Equal(t, []bool{true, true}, applied, "round %d", round)

		game, err := manager.GetOrCreateGame(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, game.History, 3, "round %d", round)
		assert.Equal(t, 2, game.CurrentMove)

		board := game.CurrentSnapshot()
		assert.NotEqual(t, entity.Empty, board[0])
		assert.NotEqual(t, entity.Empty, board[1])
		assert.NotEqual(t, board[0], board[1])
	}
}

func TestSessionLocks(t *testing.T) {
	t.Run("Serialises one session", func(t *testing.T) {
		// Given: a held lock
		locks := newSessionLocks()
		unlock := locks.lock("s1")

		// When: a second caller asks for the same session
		acquired := make(chan struct{})
		go func() {
			locks.lock("s1")()
			close(acquired)
		}()

		// Then: it waits until the first one unlocks
		select {
		case <-acquired:
			t.Fatal("lock acquired while held")
		case <-time.After(20 * time.Millisecond):
		}

		unlock()
		<-acquired
	})

	t.Run("Other sessions are independent", func(t *testing.T) {
		// Given: a held lock on one session
		locks := newSessionLocks()
		unlock := locks.lock("s1")
		defer unlock()

		// When/Then: another session locks right away
		locks.lock("s2")()
	})

	t.Run("Released entries are dropped", func(t *testing.T) {
		// Given: a session locked and released
		locks := newSessionLocks()
		locks.lock("s1")()

		// Then: no entry is kept
		assert.Empty(t, locks.locks)
	})
}
