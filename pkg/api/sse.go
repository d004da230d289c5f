package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ProgressSSE streams solver progress as Server-Sent Events.
// GET /api/progress/stream
//
// Finished classes of the current run are replayed first. The stream ends
// with a "done" event after the run's "finished" event, or when the client
// disconnects.
func (h *Handlers) ProgressSSE(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// The stream outlives the server's write timeout.
	rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	snapshot, events, cancel := h.hub.SubscribeWithSnapshot(wsSendBuffer)
	defer cancel()

	for _, ev := range snapshot {
		writeSSEEvent(w, ev.Type, ev)
		if ev.Type == EventFinished {
			writeSSEEvent(w, "done", nil)
			rc.Flush()
			return
		}
	}
	if err := rc.Flush(); err != nil {
		h.log.Warn().Err(err).Msg("progress stream cannot flush")
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			writeSSEEvent(w, ev.Type, ev)
			if ev.Type == EventFinished {
				writeSSEEvent(w, "done", nil)
				rc.Flush()
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// writeSSEEvent writes a Server-Sent Event to the response.
func writeSSEEvent(w http.ResponseWriter, event string, data any) {
	fmt.Fprintf(w, "event: %s\n", event)
	if data != nil {
		jsonData, _ := json.Marshal(data)
		fmt.Fprintf(w, "data: %s\n", jsonData)
	}
	fmt.Fprintf(w, "\n")
}
