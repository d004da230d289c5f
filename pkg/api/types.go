// Package api serves a solved awari table over HTTP/JSON and streams the
// progress of a running analysis over WebSocket and Server-Sent Events.
package api

import (
	"github.com/yourusername/awari/pkg/awari"
	"github.com/yourusername/awari/pkg/retro"
)

// ============================================================================
// Request Types
// ============================================================================

// EvaluateRequest is the request body for board evaluation.
type EvaluateRequest struct {
	Board string `json:"board"` // Board text, own pits first: "3,3,0,1|2,0,0,4"
}

// ValueRequest is the WebSocket payload of a "value" message.
type ValueRequest struct {
	Code uint64 `json:"code"`
}

// ============================================================================
// Response Types
// ============================================================================

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status   string    `json:"status"`
	Version  string    `json:"version"`
	Geometry string    `json:"geometry"`
	Ready    bool      `json:"ready"`              // A table is being served
	Finished int       `json:"finished"`           // Largest analysed seed class, -1 when not ready
	RunID    string    `json:"run_id,omitempty"`   // Run whose progress the hub carries
	Pool     PoolStats `json:"pool"`
}

// ValueResponse is the response of a code lookup.
type ValueResponse struct {
	Code  uint64 `json:"code"`
	Board string `json:"board"`
	Seeds int    `json:"seeds"`
	Value int    `json:"value"`
}

// SuccessorResponse describes one valid move of an evaluated board.
type SuccessorResponse struct {
	Pit    int    `json:"pit"`
	Reward int    `json:"reward"`
	Board  string `json:"board"` // Successor, seen from the opponent
	Value  int    `json:"value"` // Outcome of the move for the mover
	Best   bool   `json:"best"`
}

// EvaluateResponse is the response for board evaluation.
type EvaluateResponse struct {
	Board      string              `json:"board"`
	InTable    bool                `json:"in_table"`
	Code       *uint64             `json:"code,omitempty"` // Set only for boards the table carries
	Value      int                 `json:"value"`
	BestMoves  []int               `json:"best_moves"`
	Successors []SuccessorResponse `json:"successors"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// EvaluationToResponse converts a table evaluation to its JSON form.
func EvaluationToResponse(ev retro.Evaluation) EvaluateResponse {
	resp := EvaluateResponse{
		Board:      ev.Board.String(),
		InTable:    ev.InTable,
		Value:      ev.Value,
		BestMoves:  ev.BestMoves(),
		Successors: make([]SuccessorResponse, len(ev.Moves)),
	}
	if resp.BestMoves == nil {
		resp.BestMoves = []int{}
	}
	if ev.InTable {
		code := ev.Code
		resp.Code = &code
	}
	for i, m := range ev.Moves {
		resp.Successors[i] = SuccessorResponse{
			Pit:    m.Pit,
			Reward: m.Reward,
			Board:  m.Successor.String(),
			Value:  m.Value,
			Best:   m.Best,
		}
	}
	return resp
}

func valueResponse(code uint64, b awari.Board, v int8) ValueResponse {
	return ValueResponse{Code: code, Board: b.String(), Seeds: b.Total(), Value: int(v)}
}
