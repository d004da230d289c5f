package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yourusername/awari/pkg/awari"
	"github.com/yourusername/awari/pkg/retro"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	g       *awari.Geometry
	table   atomic.Pointer[retro.Table]
	version string
	pool    *WorkerPool
	hub     *Hub
	log     zerolog.Logger
}

// NewHandlers creates handlers for tables of geometry g. Queries fail with
// 503 until SetTable is called.
func NewHandlers(g *awari.Geometry, version string, pool *WorkerPool, hub *Hub, log zerolog.Logger) *Handlers {
	if pool == nil {
		pool = NewWorkerPool(DefaultPoolConfig())
	}
	if hub == nil {
		hub = NewHub(log)
	}
	return &Handlers{g: g, version: version, pool: pool, hub: hub, log: log}
}

// SetTable starts serving t. t must be finished or only be read for the
// classes it reports as finished.
func (h *Handlers) SetTable(t *retro.Table) { h.table.Store(t) }

// apiError is a failed query together with its HTTP status.
type apiError struct {
	status int
	code   string
	err    error
}

func (e *apiError) Error() string { return e.err.Error() }

func badRequest(code string, err error) *apiError {
	return &apiError{status: http.StatusBadRequest, code: code, err: err}
}

// classify maps table errors onto HTTP statuses.
func classify(err error) *apiError {
	var ae *apiError
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.Is(err, awari.ErrCodeRange):
		return &apiError{status: http.StatusNotFound, code: "CODE_RANGE", err: err}
	case errors.Is(err, retro.ErrNotInTable):
		return &apiError{status: http.StatusNotFound, code: "NOT_IN_TABLE", err: err}
	case errors.Is(err, retro.ErrUnfinished):
		return &apiError{status: http.StatusConflict, code: "UNFINISHED", err: err}
	default:
		return &apiError{status: http.StatusInternalServerError, code: "TABLE_ERROR", err: err}
	}
}

var errNotReady = &apiError{
	status: http.StatusServiceUnavailable,
	code:   "NOT_READY",
	err:    errors.New("no table is being served yet"),
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err *apiError) {
	writeJSON(w, err.status, ErrorResponse{Error: err.Error(), Code: err.code})
}

// lookup is the value query shared by HTTP and WebSocket clients.
func (h *Handlers) lookup(code uint64) (ValueResponse, error) {
	t := h.table.Load()
	if t == nil {
		return ValueResponse{}, errNotReady
	}
	b, err := h.g.Decode(code)
	if err != nil {
		return ValueResponse{}, err
	}
	v, err := t.Value(code)
	if err != nil {
		return ValueResponse{}, err
	}
	return valueResponse(code, b, v), nil
}

// evaluate is the board evaluation shared by HTTP and WebSocket clients.
func (h *Handlers) evaluate(text string) (EvaluateResponse, error) {
	t := h.table.Load()
	if t == nil {
		return EvaluateResponse{}, errNotReady
	}
	if text == "" {
		return EvaluateResponse{}, badRequest("MISSING_BOARD", errors.New("board is required"))
	}
	b, err := h.g.ParseBoard(text)
	if err != nil {
		return EvaluateResponse{}, badRequest("INVALID_BOARD", err)
	}
	ev, err := t.Evaluate(b)
	if err != nil {
		return EvaluateResponse{}, err
	}
	return EvaluationToResponse(ev), nil
}

// Health handles GET /api/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Version:  h.version,
		Geometry: h.g.String(),
		Finished: -1,
		Pool:     h.pool.Stats(),
	}
	if t := h.table.Load(); t != nil {
		resp.Ready = true
		resp.Finished = t.MaxSeeds()
	}
	if id := h.hub.RunID(); id != uuid.Nil {
		resp.RunID = id.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Value handles GET /api/value?code=N
func (h *Handlers) Value(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("code")
	if raw == "" {
		writeError(w, badRequest("MISSING_CODE", errors.New("code is required")))
		return
	}
	code, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, badRequest("INVALID_CODE", fmt.Errorf("invalid code %q", raw)))
		return
	}

	if err := h.pool.AcquireLookup(r.Context()); err != nil {
		writeError(w, &apiError{status: http.StatusServiceUnavailable, code: "SERVER_BUSY", err: err})
		return
	}
	defer h.pool.ReleaseLookup()

	resp, err := h.lookup(code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Evaluate handles POST /api/evaluate
func (h *Handlers) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, badRequest("INVALID_JSON", errors.New("invalid JSON")))
		return
	}

	if err := h.pool.AcquireEval(r.Context()); err != nil {
		writeError(w, &apiError{status: http.StatusServiceUnavailable, code: "SERVER_BUSY", err: err})
		return
	}
	defer h.pool.ReleaseEval()

	resp, err := h.evaluate(req.Board)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	ae := classify(err)
	if ae.status >= http.StatusInternalServerError && ae != errNotReady {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("query failed")
	}
	writeError(w, ae)
}
