package websocket

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-timetravel/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/entity"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/tictactoe"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrMissingArg    = errors.New("missing argument")
)

// dispatch runs the action handler and replies with the game view or an
// error message. Only transport failures are returned.
func (that *Server) dispatch(ctx context.Context, sessionID string, msg *Message, bufrw *bufio.ReadWriter) error {
	log := that.logger.With("method", "dispatch", "action", msg.Action, "session", sessionID)

	game, err := that.handle(ctx, sessionID, msg)
	if err != nil {
		log.Info("action failed", "error", err)
		return that.sendErrorResponse(bufrw, msg.Action, err)
	}

	view := tictactoe.Render(game)

	if err = that.sendMessage(bufrw, msg.Action, ResponsePayload{Game: &view}); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}

	return nil
}

func (that *Server) handle(ctx context.Context, sessionID string, msg *Message) (*entity.Game, error) {
	handler, ok := that.handlers[msg.Action]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, msg.Action)
	}

	var payload RequestPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	return handler(ctx, sessionID, payload)
}

func (that *Server) sendErrorResponse(bufrw *bufio.ReadWriter, action string, err error) error {
	message := "internal error"

	switch {
	case errors.Is(err, ErrUnknownAction), errors.Is(err, ErrMissingArg),
		errors.Is(err, apperror.ErrInvalidCell), errors.Is(err, apperror.ErrOutOfRange):
		message = err.Error()
	default:
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			message = "malformed payload"
		}
	}

	return that.sendMessage(bufrw, action, ResponsePayload{Error: message})
}

func (that *Server) handleState(ctx context.Context, sessionID string, _ RequestPayload) (*entity.Game, error) {
	return that.manager.GetOrCreateGame(ctx, sessionID)
}

func (that *Server) handlePlay(ctx context.Context, sessionID string, payload RequestPayload) (*entity.Game, error) {
	if payload.Cell == nil {
		return nil, fmt.Errorf("%w: cell", ErrMissingArg)
	}

	game, _, err := that.manager.Play(ctx, sessionID, *payload.Cell)

	return game, err
}

func (that *Server) handleJump(ctx context.Context, sessionID string, payload RequestPayload) (*entity.Game, error) {
	if payload.Move == nil {
		return nil, fmt.Errorf("%w: move", ErrMissingArg)
	}

	return that.manager.JumpTo(ctx, sessionID, *payload.Move)
}

func (that *Server) handleToggle(ctx context.Context, sessionID string, _ RequestPayload) (*entity.Game, error) {
	return that.manager.ToggleOrder(ctx, sessionID)
}

func (that *Server) handleRestart(ctx context.Context, sessionID string, _ RequestPayload) (*entity.Game, error) {
	return that.manager.Restart(ctx, sessionID)
}
