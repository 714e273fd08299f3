package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/giantswarm/fedctl/internal/workflow"
	"github.com/giantswarm/fedctl/pkg/logging"
)

// heartbeatInterval bounds how long a client can go without any bytes
// arriving, so an idle workflow doesn't look like a dead connection
// to an intermediary proxy.
const heartbeatInterval = 15 * time.Second

// handleEvents streams a workflow's Event log over Server-Sent Events,
// the same net/http.Flusher technique the teacher's OAuth callback
// handling documents needing (spec §6 "GET /v1/workflows/{id}/events").
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := workflow.ID(r.PathValue("id"))

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ch, unsubscribe := s.engine.Subscribe(id)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				logging.Error("Gateway", err, "encoding event for workflow %s", logging.TruncateID(id.String()))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
				return
			}
			flusher.Flush()
			if ev.Kind == workflow.EventWorkflowTerminal {
				return
			}
		}
	}
}
