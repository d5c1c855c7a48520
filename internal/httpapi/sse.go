package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/MimeLyc/segmented-transcript-translator/internal/task"
)

// Hub fans manager events out to SSE subscribers. It implements
// task.Sink and never blocks the caller: a subscriber that cannot
// keep up loses events, and the next one carries the fresh state.
type Hub struct {
	mu   sync.Mutex
	subs map[chan task.Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan task.Event]struct{})}
}

func (h *Hub) OnTaskEvent(event task.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *Hub) subscribe() (chan task.Event, func()) {
	ch := make(chan task.Event, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

func (s *Server) handleTaskStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.hub == nil {
		writeError(w, http.StatusNotImplemented, "event stream is not configured")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	taskFilter := r.URL.Query().Get("task")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func(event string, payload any) bool {
		data, err := json.Marshal(payload)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	events, unsubscribe := s.hub.subscribe()
	defer unsubscribe()

	// Initial snapshot so a reconnecting client does not wait for the
	// next transition to learn current state.
	if !send("snapshot", s.manager.List()) {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-events:
			if taskFilter != "" && event.TaskID != taskFilter {
				continue
			}
			if !send("progress", event) {
				return
			}
		}
	}
}
