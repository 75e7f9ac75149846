package progress

import (
	"fmt"
	"net/http"
	"sync"
)

// StreamHandler is an http.Handler that streams progress lines as they
// happen to every connected client, as incrementally-flushed HTML. It is a
// long-poll display surface only: slow clients get events dropped rather
// than ever backpressuring the exporter.
type StreamHandler struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

// NewStreamHandler returns a StreamHandler ready to accept clients.
func NewStreamHandler() *StreamHandler {
	return &StreamHandler{subs: make(map[chan Event]struct{})}
}

// Publish implements Observer. Events are delivered best-effort.
func (h *StreamHandler) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default: // client not keeping up
		}
	}
}

// Close disconnects all clients. Further events are discarded.
func (h *StreamHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
		delete(h.subs, ch)
	}
}

func (h *StreamHandler) subscribe() (chan Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	ch := make(chan Event, 64)
	h.subs[ch] = struct{}{}
	return ch, true
}

func (h *StreamHandler) unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// ServeHTTP streams progress lines until the run finishes or the client
// disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch, ok := h.subscribe()
	if !ok {
		http.Error(w, "export finished", http.StatusGone)
		return
	}
	defer h.unsubscribe(ch)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	fmt.Fprint(w, "<html><body><h3>Export progress</h3>\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, open := <-ch:
			if !open {
				fmt.Fprint(w, "<p>done</p></body></html>\n")
				flusher.Flush()
				return
			}
			fmt.Fprintf(w, "<p>[%s] %d/%d (%.1f%%) ok=%d failed=%d %s</p>\n",
				e.Stage, e.Processed, e.Total, e.Percent(), e.Succeeded, e.Failed, e.Message)
			flusher.Flush()
		}
	}
}
