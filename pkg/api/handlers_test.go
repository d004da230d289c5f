package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/awari/pkg/awari"
	"github.com/yourusername/awari/pkg/retro"
	"github.com/yourusername/awari/pkg/storage"
)

// solveTable analyses the 2x1 game, small enough to check values by hand.
func solveTable(t *testing.T, opts retro.Options) (*awari.Geometry, *retro.Table) {
	t.Helper()
	g := awari.MustGeometry(2, 1)
	s, err := retro.NewSolver(g, storage.NewRAM[retro.State](g.NBoards), opts)
	require.NoError(t, err)
	table, err := s.Run(context.Background())
	require.NoError(t, err)
	return g, table
}

func newTestServer(t *testing.T) (*Server, *awari.Geometry) {
	t.Helper()
	g, table := solveTable(t, retro.Options{})
	srv := NewServer(g, DefaultConfig(), "test-version", zerolog.Nop())
	srv.SetTable(table)
	return srv, g
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			rd = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestHealthHandler(t *testing.T) {
	g := awari.MustGeometry(2, 1)
	h := NewHandlers(g, "test-version", nil, nil, zerolog.Nop())

	w := do(t, http.HandlerFunc(h.Health), "GET", "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	health := decode[HealthResponse](t, w)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test-version", health.Version)
	assert.Equal(t, g.String(), health.Geometry)
	assert.False(t, health.Ready)
	assert.Equal(t, -1, health.Finished)
	assert.Equal(t, DefaultPoolConfig().MaxEvals, health.Pool.Evals.Max)
}

func TestHealthHandlerReady(t *testing.T) {
	srv, g := newTestServer(t)

	w := do(t, srv.Handler(), "GET", "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	health := decode[HealthResponse](t, w)
	assert.True(t, health.Ready)
	assert.Equal(t, g.Seeds, health.Finished)
}

func TestValueHandler(t *testing.T) {
	srv, g := newTestServer(t)
	code := func(s string) uint64 {
		b, err := g.ParseBoard(s)
		require.NoError(t, err)
		return g.Encode(b)
	}

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCode   string
		wantValue  int
	}{
		{"single seed", fmt.Sprintf("code=%d", code("1,0|0,0")), http.StatusOK, "", 1},
		{"two seeds", fmt.Sprintf("code=%d", code("1,1|0,0")), http.StatusOK, "", 2},
		{"lost", fmt.Sprintf("code=%d", code("2,0|0,0")), http.StatusOK, "", -2},
		{"empty board", "code=0", http.StatusOK, "", 0},
		{"missing code", "", http.StatusBadRequest, "MISSING_CODE", 0},
		{"not a number", "code=abc", http.StatusBadRequest, "INVALID_CODE", 0},
		{"out of range", fmt.Sprintf("code=%d", g.NBoards), http.StatusNotFound, "CODE_RANGE", 0},
		{"unreachable shape", fmt.Sprintf("code=%d", code("0,0|1,1")), http.StatusNotFound, "NOT_IN_TABLE", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv.Handler(), "GET", "/api/value?"+tt.query, nil)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, w).Code)
				return
			}
			resp := decode[ValueResponse](t, w)
			assert.Equal(t, tt.wantValue, resp.Value)
		})
	}
}

func TestValueHandlerUnfinishedClass(t *testing.T) {
	g, table := solveTable(t, retro.Options{MaxSeeds: 2})
	srv := NewServer(g, DefaultConfig(), "test", zerolog.Nop())
	srv.SetTable(table)

	b, err := g.ParseBoard("2,2|0,0")
	require.NoError(t, err)
	w := do(t, srv.Handler(), "GET", fmt.Sprintf("/api/value?code=%d", g.Encode(b)), nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "UNFINISHED", decode[ErrorResponse](t, w).Code)
}

func TestNotReady(t *testing.T) {
	srv := NewServer(awari.MustGeometry(2, 1), DefaultConfig(), "test", zerolog.Nop())

	w := do(t, srv.Handler(), "GET", "/api/value?code=1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, srv.Handler(), "POST", "/api/evaluate", EvaluateRequest{Board: "1,0|0,0"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "NOT_READY", decode[ErrorResponse](t, w).Code)
}

func TestEvaluateHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"valid board", EvaluateRequest{Board: "1,0|0,0"}, http.StatusOK, ""},
		{"start position", EvaluateRequest{Board: "1,1|1,1"}, http.StatusOK, ""},
		{"missing board", EvaluateRequest{}, http.StatusBadRequest, "MISSING_BOARD"},
		{"too many seeds", EvaluateRequest{Board: "3,3|0,0"}, http.StatusBadRequest, "INVALID_BOARD"},
		{"wrong width", EvaluateRequest{Board: "1,0,0"}, http.StatusBadRequest, "INVALID_BOARD"},
		{"invalid JSON", "{not json", http.StatusBadRequest, "INVALID_JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv.Handler(), "POST", "/api/evaluate", tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, w).Code)
			}
		})
	}
}

func TestEvaluateResponse(t *testing.T) {
	srv, g := newTestServer(t)

	w := do(t, srv.Handler(), "POST", "/api/evaluate", EvaluateRequest{Board: "1,0|0,0"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[EvaluateResponse](t, w)

	b, err := g.ParseBoard("1,0|0,0")
	require.NoError(t, err)
	assert.True(t, resp.InTable)
	require.NotNil(t, resp.Code)
	assert.Equal(t, g.Encode(b), *resp.Code)
	assert.Equal(t, 1, resp.Value)
	assert.Equal(t, []int{0}, resp.BestMoves)
	require.Len(t, resp.Successors, 1)
	assert.Equal(t, SuccessorResponse{Pit: 0, Reward: 0, Board: "0,0|0,1", Value: 1, Best: true}, resp.Successors[0])

	// The starting position is valued by looking one move ahead.
	w = do(t, srv.Handler(), "POST", "/api/evaluate", EvaluateRequest{Board: "1,1|1,1"})
	require.Equal(t, http.StatusOK, w.Code)
	start := decode[EvaluateResponse](t, w)
	assert.False(t, start.InTable)
	assert.Nil(t, start.Code)
	require.NotEmpty(t, start.Successors)
	for _, s := range start.Successors {
		assert.LessOrEqual(t, s.Value, start.Value)
		assert.Equal(t, s.Value == start.Value, s.Best)
	}
}

func TestEvaluateNoMoves(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv.Handler(), "POST", "/api/evaluate", EvaluateRequest{Board: "0,0|1,1"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[EvaluateResponse](t, w)
	assert.Equal(t, -2, resp.Value)
	assert.Empty(t, resp.Successors)
	assert.Equal(t, []int{}, resp.BestMoves)
}

func TestCORSHeaders(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv.Handler(), "OPTIONS", "/api/evaluate", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv.Handler(), "GET", "/api/health", nil)

	w := do(t, srv.Handler(), "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `awari_api_requests_total{route="GET /api/health",status="200"}`)
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// wsReply is WSResponse with the payload left undecoded.
type wsReply struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg any) wsReply {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
	return readReply(t, conn)
}

func readReply(t *testing.T, conn *websocket.Conn) wsReply {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var r wsReply
	require.NoError(t, conn.ReadJSON(&r))
	return r
}

func TestWebSocketQueries(t *testing.T) {
	srv, g := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	conn := dialWS(t, ts)

	r := roundTrip(t, conn, map[string]string{"type": "ping", "id": "p1"})
	assert.Equal(t, "pong", r.Type)
	assert.Equal(t, "p1", r.ID)

	b, err := g.ParseBoard("1,1|0,0")
	require.NoError(t, err)
	r = roundTrip(t, conn, map[string]any{"type": "value", "id": "v1", "payload": ValueRequest{Code: g.Encode(b)}})
	require.Equal(t, "result", r.Type, r.Error)
	var val ValueResponse
	require.NoError(t, json.Unmarshal(r.Payload, &val))
	assert.Equal(t, 2, val.Value)
	assert.Equal(t, "1,1|0,0", val.Board)

	r = roundTrip(t, conn, map[string]any{"type": "evaluate", "id": "e1", "payload": EvaluateRequest{Board: "2,0|0,0"}})
	require.Equal(t, "result", r.Type, r.Error)
	var ev EvaluateResponse
	require.NoError(t, json.Unmarshal(r.Payload, &ev))
	assert.Equal(t, -2, ev.Value)

	r = roundTrip(t, conn, map[string]any{"type": "value", "id": "v2", "payload": ValueRequest{Code: g.NBoards}})
	assert.Equal(t, "error", r.Type)
	assert.Equal(t, "CODE_RANGE", r.Code)

	r = roundTrip(t, conn, map[string]string{"type": "rollout", "id": "x"})
	assert.Equal(t, "error", r.Type)
	assert.Equal(t, "UNKNOWN_TYPE", r.Code)
}

func TestWebSocketProgress(t *testing.T) {
	g := awari.MustGeometry(2, 1)
	srv := NewServer(g, DefaultConfig(), "test", zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	conn := dialWS(t, ts)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "id": "s"}))
	// Messages are handled in order, so the pong means the subscription is live.
	r := roundTrip(t, conn, map[string]string{"type": "ping", "id": "p"})
	require.Equal(t, "pong", r.Type)

	solver, err := retro.NewSolver(g, storage.NewRAM[retro.State](g.NBoards), retro.Options{Reporter: srv.Hub()})
	require.NoError(t, err)
	table, err := solver.Run(context.Background())
	require.NoError(t, err)
	srv.SetTable(table)

	seen := make(map[string]bool)
	for {
		r := readReply(t, conn)
		require.Equal(t, "progress", r.Type)
		assert.Equal(t, "s", r.ID)
		var ev Event
		require.NoError(t, json.Unmarshal(r.Payload, &ev))
		assert.Equal(t, solver.RunID(), ev.RunID)
		seen[ev.Type] = true
		if ev.Type == EventFinished {
			require.NotNil(t, ev.Summary)
			assert.Equal(t, g.String(), ev.Summary.Geometry)
			break
		}
	}
	assert.True(t, seen[EventClassStarted])
	assert.True(t, seen[EventClassDone])

	r = roundTrip(t, conn, map[string]string{"type": "subscribe", "id": "again"})
	assert.Equal(t, "SUBSCRIBED", r.Code)
}

func TestProgressSSE(t *testing.T) {
	g := awari.MustGeometry(2, 1)
	srv := NewServer(g, DefaultConfig(), "test", zerolog.Nop())
	_, table := solveTable(t, retro.Options{Reporter: srv.Hub()})
	srv.SetTable(table)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	// The run is over, so the stream replays it and ends.
	resp, err := http.Get(ts.URL + "/api/progress/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, "event: class_done\n")
	assert.Contains(t, text, "event: finished\n")
	assert.True(t, strings.HasSuffix(text, "event: done\n\n"))
	assert.NotContains(t, text, "event: level_done")
}
