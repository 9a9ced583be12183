package application

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/tictactoe-timetravel/internal/config"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/repository"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-timetravel/transport/rest"
	"github.com/rocketscienceinc/tictactoe-timetravel/transport/websocket"
)

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gameRepo, closeStorage, err := openGameRepository(ctx, log, conf)
	if err != nil {
		return err
	}
	defer closeStorage()

	gameManager := usecase.NewGameManager(logger, gameRepo)

	errCh := make(chan error, 2)

	// run HTTP server
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		handlers := rest.NewHandlers(logger, gameManager)
		if httpErr := rest.Start(ctx, conf.HTTPPort, handlers.Routes()); httpErr != nil {
			errCh <- fmt.Errorf("HTTP server error: %w", httpErr)
			return
		}
		errCh <- nil
	}()

	// run Websocket server
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger, gameManager)
		if wsErr := rest.Start(ctx, conf.SocketPort, wsServer.Handler(ctx)); wsErr != nil {
			errCh <- fmt.Errorf("WebSocket server error: %w", wsErr)
			return
		}
		errCh <- nil
	}()

	var runErr error
	for range 2 {
		if err = <-errCh; err != nil && runErr == nil {
			log.Error("server failed, shutting down", "error", err)
			runErr = err
			stop()
		}
	}

	log.Info("Application stopped")

	return runErr
}

// openGameRepository picks the game store configured by Storage.Driver.
func openGameRepository(ctx context.Context, log *slog.Logger, conf *config.Config) (repository.GameRepository, func(), error) {
	log = log.With("driver", conf.Storage.Driver)

	switch conf.Storage.Driver {
	case config.StorageRedis:
		redisStorage, err := storage.NewRedisStorage(ctx, conf.Redis.GetRedisAddr())
		if err != nil {
			return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
		}

		log.Info("Using redis storage", "addr", conf.Redis.GetRedisAddr())

		return repository.NewGameRepository(redisStorage.Connection, conf.Redis.TTL), func() {
			if err = redisStorage.Close(); err != nil {
				log.Error("could not close redis storage", "error", err)
			}
		}, nil

	case config.StorageSQLite:
		sqliteStorage, err := storage.NewSQLiteStorage(conf.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open sqlite storage: %w", err)
		}

		if err = sqliteStorage.Init(ctx); err != nil {
			_ = sqliteStorage.Close()
			return nil, nil, fmt.Errorf("could not init sqlite storage: %w", err)
		}

		log.Info("Using sqlite storage", "path", conf.SQLite.Path)

		return repository.NewSQLiteGameRepository(sqliteStorage.Connection), func() {
			if err = sqliteStorage.Close(); err != nil {
				log.Error("could not close sqlite storage", "error", err)
			}
		}, nil

	default:
		log.Info("Using in-memory storage")

		return repository.NewMemoryGameRepository(), func() {}, nil
	}
}
