package rest

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rocketscienceinc/tictactoe-timetravel/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/entity"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/tictactoe"
)

//go:embed templates/index.html
var templatesFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

var errInvalidParam = errors.New("invalid path parameter")

type gameManager interface {
	GetOrCreateGame(ctx context.Context, id string) (*entity.Game, error)
	Play(ctx context.Context, id string, cell int) (*entity.Game, bool, error)
	JumpTo(ctx context.Context, id string, move int) (*entity.Game, error)
	ToggleOrder(ctx context.Context, id string) (*entity.Game, error)
	Restart(ctx context.Context, id string) (*entity.Game, error)
}

// action applies one transition to the session's game.
type action func(ctx context.Context, sessionID string, req *http.Request) (*entity.Game, error)

type Handlers struct {
	logger  *slog.Logger
	manager gameManager
}

func NewHandlers(logger *slog.Logger, manager gameManager) *Handlers {
	return &Handlers{
		logger:  logger.With("component", "rest"),
		manager: manager,
	}
}

// Routes registers the browser pages, the JSON API and /ping.
func (that *Handlers) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ping", that.PingHandler)

	mux.HandleFunc("GET /{$}", that.page)
	mux.HandleFunc("POST /play/{cell}", that.redirectAfter(that.play))
	mux.HandleFunc("POST /jump/{move}", that.redirectAfter(that.jump))
	mux.HandleFunc("POST /toggle", that.redirectAfter(that.toggle))
	mux.HandleFunc("POST /restart", that.redirectAfter(that.restart))

	mux.HandleFunc("GET /api/game", that.jsonAfter(that.current))
	mux.HandleFunc("POST /api/play/{cell}", that.jsonAfter(that.play))
	mux.HandleFunc("POST /api/jump/{move}", that.jsonAfter(that.jump))
	mux.HandleFunc("POST /api/toggle", that.jsonAfter(that.toggle))
	mux.HandleFunc("POST /api/restart", that.jsonAfter(that.restart))

	return mux
}

func (that *Handlers) PingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		that.logger.Error("failed to write pong", "error", err)
	}
}

func (that *Handlers) page(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "page")

	sessionID, _ := pkg.SessionID(w, r)

	game, err := that.manager.GetOrCreateGame(r.Context(), sessionID)
	if err != nil {
		that.writeError(w, log, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err = pageTemplate.Execute(w, tictactoe.Render(game)); err != nil {
		log.Error("failed to render page", "error", err)
	}
}

func (that *Handlers) redirectAfter(apply action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := that.logger.With("method", "redirectAfter", "path", r.URL.Path)

		sessionID, _ := pkg.SessionID(w, r)

		if _, err := apply(r.Context(), sessionID, r); err != nil {
			that.writeError(w, log, err)
			return
		}

		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (that *Handlers) jsonAfter(apply action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := that.logger.With("method", "jsonAfter", "path", r.URL.Path)

		sessionID, _ := pkg.SessionID(w, r)

		game, err := apply(r.Context(), sessionID, r)
		if err != nil {
			that.writeError(w, log, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err = json.NewEncoder(w).Encode(tictactoe.Render(game)); err != nil {
			log.Error("failed to encode game", "error", err)
		}
	}
}

func (that *Handlers) current(ctx context.Context, sessionID string, _ *http.Request) (*entity.Game, error) {
	return that.manager.GetOrCreateGame(ctx, sessionID)
}

func (that *Handlers) play(ctx context.Context, sessionID string, req *http.Request) (*entity.Game, error) {
	cell, err := intPathValue(req, "cell")
	if err != nil {
		return nil, err
	}

	game, _, err := that.manager.Play(ctx, sessionID, cell)

	return game, err
}

func (that *Handlers) jump(ctx context.Context, sessionID string, req *http.Request) (*entity.Game, error) {
	move, err := intPathValue(req, "move")
	if err != nil {
		return nil, err
	}

	return that.manager.JumpTo(ctx, sessionID, move)
}

func (that *Handlers) toggle(ctx context.Context, sessionID string, _ *http.Request) (*entity.Game, error) {
	return that.manager.ToggleOrder(ctx, sessionID)
}

func (that *Handlers) restart(ctx context.Context, sessionID string, _ *http.Request) (*entity.Game, error) {
	return that.manager.Restart(ctx, sessionID)
}

func (that *Handlers) writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, errInvalidParam), errors.Is(err, apperror.ErrInvalidCell), errors.Is(err, apperror.ErrOutOfRange):
		log.Info("rejected request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Error("request failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func intPathValue(req *http.Request, name string) (int, error) {
	value, err := strconv.Atoi(req.PathValue(name))
	if err != nil {
		return 0, errors.Join(errInvalidParam, err)
	}

	return value, nil
}
