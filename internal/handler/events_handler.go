package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go-directory-wiki/internal/logger"
	"go-directory-wiki/internal/service"
)

// EventsHandler streams committed changes as server-sent events so open
// views can refresh.
type EventsHandler struct {
	notifier  *service.Notifier
	heartbeat time.Duration
	log       logger.Logger
}

// NewEventsHandler creates an EventsHandler.
func NewEventsHandler(n *service.Notifier, heartbeat time.Duration, log logger.Logger) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &EventsHandler{notifier: n, heartbeat: heartbeat, log: log}
}

func (h *EventsHandler) streamHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Subscribe before the first flush so nothing published after the client
	// sees the stream open is missed.
	sub := h.notifier.Subscribe()
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				h.log.Error(err, "Failed to encode change event")
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, payload)
			flusher.Flush()
		}
	}
}
