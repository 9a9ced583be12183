package websocket

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rocketscienceinc/tictactoe-timetravel/internal/entity"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/pkg"
)

type gameManager interface {
	GetOrCreateGame(ctx context.Context, id string) (*entity.Game, error)
	Play(ctx context.Context, id string, cell int) (*entity.Game, bool, error)
	JumpTo(ctx context.Context, id string, move int) (*entity.Game, error)
	ToggleOrder(ctx context.Context, id string) (*entity.Game, error)
	Restart(ctx context.Context, id string) (*entity.Game, error)
}

type handlerFunc func(ctx context.Context, sessionID string, payload RequestPayload) (*entity.Game, error)

type Server struct {
	logger  *slog.Logger
	manager gameManager

	handlers map[string]handlerFunc
}

func New(logger *slog.Logger, manager gameManager) *Server {
	server := &Server{
		logger:  logger.With("component", "websocket"),
		manager: manager,

		handlers: make(map[string]handlerFunc),
	}

	server.handlers["game:state"] = server.handleState
	server.handlers["game:play"] = server.handlePlay
	server.handlers["game:jump"] = server.handleJump
	server.handlers["game:toggle"] = server.handleToggle
	server.handlers["game:restart"] = server.handleRestart

	return server
}

// Handler serves the upgrade endpoint at /ws. Connections close when ctx is done.
func (that *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.upgradeToWebSocket(ctx, w, r)
	})

	return mux
}

// upgradeToWebSocket - upgrades the connection to WebSocket.
func (that *Server) upgradeToWebSocket(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeConnection")

	if !strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
		http.Error(writer, "not a websocket upgrade", http.StatusBadRequest)
		return
	}

	key := req.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		http.Error(writer, "missing Sec-WebSocket-Key", http.StatusBadRequest)
		return
	}

	sessionID, _ := pkg.SessionID(writer, req)

	hijacker, ok := writer.(http.Hijacker)
	if !ok {
		log.Error("web server does not support hijacking")
		http.Error(writer, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	conn, bufrw, err := hijacker.Hijack()
	if err != nil {
		log.Error("failed to hijack connection", "error", err)
		return
	}

	defer conn.Close()

	// drop the read/write timeouts inherited from the http server
	if err = conn.SetDeadline(time.Time{}); err != nil {
		log.Error("failed to reset deadline", "error", err)
		return
	}

	if err = writeHandshake(bufrw, key, writer.Header()); err != nil {
		log.Error("failed to write handshake", "error", err)
		return
	}

	log = log.With("session", sessionID)
	log.Info("WebSocket connection established")

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if err = that.handleMessages(ctx, sessionID, bufrw); err != nil {
		log.Error("error handling messages", "error", err)
		return
	}

	log.Info("WebSocket connection closed")
}

// writeHandshake answers the upgrade by hand because the connection is
// already hijacked; cookies set on header are copied into the response.
func writeHandshake(bufrw *bufio.ReadWriter, key string, header http.Header) error {
	response := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + pkg.GenerateAcceptKey(key) + "\r\n"

	for _, cookie := range header.Values("Set-Cookie") {
		response += "Set-Cookie: " + cookie + "\r\n"
	}

	if _, err := bufrw.WriteString(response + "\r\n"); err != nil {
		return fmt.Errorf("failed to write handshake: %w", err)
	}

	return bufrw.Flush()
}

// handleMessages - processes messages from the client until it closes the connection.
func (that *Server) handleMessages(ctx context.Context, sessionID string, bufrw *bufio.ReadWriter) error {
	log := that.logger.With("method", "handleMessages", "session", sessionID)

	onControl := func(control frame) error {
		if control.opCode != opPing {
			return nil
		}
		return writeFrame(bufrw, frame{isFin: true, opCode: opPong, length: control.length, payload: control.payload})
	}

	for {
		request, err := readMessage(bufrw, onControl)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		if request.opCode == opClose {
			_ = writeFrame(bufrw, frame{isFin: true, opCode: opClose})
			return nil
		}

		var message Message
		if err = json.Unmarshal(request.payload, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			if err = that.sendMessage(bufrw, "error", ResponsePayload{Error: "malformed message"}); err != nil {
				return err
			}
			continue
		}

		if err = that.dispatch(ctx, sessionID, &message, bufrw); err != nil {
			return err
		}
	}
}
