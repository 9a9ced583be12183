package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rocketscienceinc/tictactoe-timetravel/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/entity"
)

type sqliteGame struct {
	conn *sql.DB
}

// NewSQLiteGameRepository expects the games table created by storage.SQLiteStorage.Init.
func NewSQLiteGameRepository(conn *sql.DB) GameRepository {
	return &sqliteGame{
		conn: conn,
	}
}

func (that *sqliteGame) CreateOrUpdate(ctx context.Context, game *entity.Game) error {
	gameJSON, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("could not marshal game: %w", err)
	}

	query := `INSERT INTO games (id, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`

	if _, err = that.conn.ExecContext(ctx, query, game.ID, string(gameJSON), time.Now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("can't save game: %w", err)
	}

	return nil
}

func (that *sqliteGame) GetByID(ctx context.Context, id string) (*entity.Game, error) {
	query := `SELECT state FROM games WHERE id = ?`

	var state string

	err := that.conn.QueryRowContext(ctx, query, id).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("can't find game: %w", err)
	}

	return decodeGame([]byte(state))
}

func (that *sqliteGame) DeleteByID(ctx context.Context, id string) error {
	query := `DELETE FROM games WHERE id = ?`

	result, err := that.conn.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("can't delete game: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("can't count deleted games: %w", err)
	}

	if affected == 0 {
		return apperror.ErrGameNotFound
	}

	return nil
}
