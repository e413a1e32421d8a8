package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harborview/claims-triage/internal/model"
)

// handleEventStream serves workflow events over SSE. Each connection
// gets its own bus subscription; heartbeats keep idle connections from
// being reaped by proxies.
func (s *apiServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, unsubscribe := s.bus.Subscribe()
	defer unsubscribe()

	heartbeatSecs := s.cfg.Events.HeartbeatSecs
	if heartbeatSecs <= 0 {
		heartbeatSecs = 30
	}
	heartbeat := time.NewTicker(time.Duration(heartbeatSecs) * time.Second)
	defer heartbeat.Stop()

	log := zap.L().With(zap.String("component", "api.sse"))
	log.Debug("sse subscriber connected")

	for {
		select {
		case <-r.Context().Done():
			log.Debug("sse subscriber disconnected")
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			if err := writeSSE(w, ev); err != nil {
				log.Debug("sse write failed", zap.Error(err))
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			ev := model.Event{
				ID:        uuid.NewString(),
				Type:      model.EventHeartbeat,
				Message:   "heartbeat",
				Timestamp: time.Now().UTC(),
			}
			if err := writeSSE(w, ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSE writes one event in text/event-stream framing.
func writeSSE(w http.ResponseWriter, ev model.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
	return err
}
