package websocket

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-timetravel/internal/entity"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/repository"
	"github.com/rocketscienceinc/tictactoe-timetravel/internal/usecase"
)

const testKey = "dGhlIHNhbXBsZSBub25jZQ=="

type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
	resp   *http.Response
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	manager := usecase.NewGameManager(logger, repository.NewMemoryGameRepository())

	ctx, cancel := context.WithCancel(context.Background())
	server := httptest.NewServer(New(logger, manager).Handler(ctx))

	t.Cleanup(func() {
		cancel()
		server.Close()
	})

	return server
}

func dial(t *testing.T, server *httptest.Server, cookie string) *testClient {
	t.Helper()

	conn, err := net.Dial("tcp", strings.TrimPrefix(server.URL, "http://"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	req, err := http.NewRequest(http.MethodGet, server.URL+"/ws", nil)
	require.NoError(t, err)
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Sec-WebSocket-Key", testKey)
	req.Header.Set("Sec-WebSocket-Version", "13")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: pkg.SessionCookieName, Value: cookie})
	}
	require.NoError(t, req.Write(conn))

	reader := bufio.NewReader(conn)
	resp, err := http.ReadResponse(reader, req)
	require.NoError(t, err)

	return &testClient{t: t, conn: conn, reader: reader, resp: resp}
}

func (that *testClient) send(action string, payload any) {
	that.t.Helper()

	msg := map[string]any{"action": action}
	if payload != nil {
		msg["payload"] = payload
	}

	data, err := json.Marshal(msg)
	require.NoError(that.t, err)

	_, err = that.conn.Write(clientFrame(opText, true, data))
	require.NoError(that.t, err)
}

func (that *testClient) receive() (string, ResponsePayload) {
	that.t.Helper()

	got, err := readFrame(that.reader)
	require.NoError(that.t, err)
	require.Equal(that.t, opText, got.opCode)

	var message Message
	require.NoError(that.t, json.Unmarshal(got.payload, &message))

	var payload ResponsePayload
	require.NoError(that.t, json.Unmarshal(message.Payload, &payload))

	return message.Action, payload
}

func TestUpgrade(t *testing.T) {
	t.Run("Handshake accepts the key and issues a session", func(t *testing.T) {
		// Given
		server := newTestServer(t)

		// When
		client := dial(t, server, "")

		// Then
		assert.Equal(t, http.StatusSwitchingProtocols, client.resp.StatusCode)
		assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", client.resp.Header.Get("Sec-WebSocket-Accept"))

		var session string
		for _, cookie := range client.resp.Cookies() {
			if cookie.Name == pkg.SessionCookieName {
				session = cookie.Value
			}
		}
		assert.NotEmpty(t, session)
	})

	t.Run("Plain GET is rejected", func(t *testing.T) {
		// Given
		server := newTestServer(t)

		// When
		resp, err := http.Get(server.URL + "/ws")
		require.NoError(t, err)
		defer resp.Body.Close()

		// Then
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGameActions(t *testing.T) {
	t.Run("Play, jump and toggle", func(t *testing.T) {
		// Given
		client := dial(t, newTestServer(t), "ws-session")

		client.send("game:state", nil)
		action, resp := client.receive()
		require.Equal(t, "game:state", action)
		require.Empty(t, resp.Error)
		assert.Equal(t, "ws-session", resp.Game.ID)
		assert.Equal(t, "Next player: X", resp.Game.Board.Status)

		// When
		for _, cell := range []int{0, 3, 1} {
			client.send("game:play", map[string]int{"cell": cell})
			_, resp = client.receive()
			require.Empty(t, resp.Error)
		}

		// Then
		assert.Equal(t, 3, resp.Game.CurrentMove)
		assert.Equal(t, entity.X, resp.Game.Board.Rows[0][1].Mark)
		assert.Equal(t, "Next player: O", resp.Game.Board.Status)

		client.send("game:jump", map[string]int{"move": 1})
		action, resp = client.receive()
		require.Equal(t, "game:jump", action)
		assert.Equal(t, 1, resp.Game.CurrentMove)
		assert.Len(t, resp.Game.Moves, 4)

		client.send("game:toggle", nil)
		_, resp = client.receive()
		assert.True(t, resp.Game.Reversed)
		assert.Equal(t, 3, resp.Game.Moves[0].Move)
		assert.Equal(t, 1, resp.Game.CurrentMove)

		client.send("game:restart", nil)
		_, resp = client.receive()
		assert.Equal(t, 0, resp.Game.CurrentMove)
		assert.Len(t, resp.Game.Moves, 1)
	})

	t.Run("Errors are reported and the connection stays open", func(t *testing.T) {
		// Given
		client := dial(t, newTestServer(t), "ws-errors")

		cases := []struct {
			action  string
			payload any
			want    string
		}{
			{action: "game:jump", payload: map[string]int{"move": 5}, want: "out of history range"},
			{action: "game:play", payload: map[string]int{"cell": 9}, want: "invalid cell index"},
			{action: "game:play", payload: nil, want: "missing argument"},
			{action: "game:fly", payload: nil, want: "unknown action"},
			{action: "game:play", payload: map[string]string{"cell": "x"}, want: "malformed payload"},
		}

		for _, tc := range cases {
			// When
			client.send(tc.action, tc.payload)
			action, resp := client.receive()

			// Then
			assert.Equal(t, tc.action, action)
			assert.Nil(t, resp.Game)
			assert.Contains(t, resp.Error, tc.want)
		}

		client.send("game:state", nil)
		_, resp := client.receive()
		require.NotNil(t, resp.Game)
		assert.Equal(t, 0, resp.Game.CurrentMove)
	})

	t.Run("Malformed message", func(t *testing.T) {
		// Given
		client := dial(t, newTestServer(t), "ws-garbage")

		// When
		_, err := client.conn.Write(clientFrame(opText, true, []byte("not json")))
		require.NoError(t, err)

		// Then
		action, resp := client.receive()
		assert.Equal(t, "error", action)
		assert.Equal(t, "malformed message", resp.Error)
	})
}

func TestControlFrames(t *testing.T) {
	t.Run("Ping is answered with pong", func(t *testing.T) {
		// Given
		client := dial(t, newTestServer(t), "ws-ping")

		// When
		_, err := client.conn.Write(clientFrame(opPing, true, []byte("hi")))
		require.NoError(t, err)

		// Then
		got, err := readFrame(client.reader)
		require.NoError(t, err)
		assert.Equal(t, opPong, got.opCode)
		assert.Equal(t, "hi", string(got.payload))
	})

	t.Run("Ping inside a fragmented message", func(t *testing.T) {
		// Given
		client := dial(t, newTestServer(t), "ws-fragments")

		// When
		for _, data := range [][]byte{
			clientFrame(opText, false, []byte(`{"action":"game:`)),
			clientFrame(opPing, true, []byte("mid")),
			clientFrame(opContinuation, true, []byte(`state"}`)),
		} {
			_, err := client.conn.Write(data)
			require.NoError(t, err)
		}

		// Then
		got, err := readFrame(client.reader)
		require.NoError(t, err)
		assert.Equal(t, opPong, got.opCode)
		assert.Equal(t, "mid", string(got.payload))

		action, resp := client.receive()
		assert.Equal(t, "game:state", action)
		require.NotNil(t, resp.Game)
		assert.Equal(t, "ws-fragments", resp.Game.ID)
	})

	t.Run("Close is echoed", func(t *testing.T) {
		// Given
		client := dial(t, newTestServer(t), "ws-close")

		// When
		_, err := client.conn.Write(clientFrame(opClose, true, nil))
		require.NoError(t, err)

		// Then
		got, err := readFrame(client.reader)
		require.NoError(t, err)
		assert.Equal(t, opClose, got.opCode)

		_, err = readFrame(client.reader)
		require.Error(t, err)
	})
}
