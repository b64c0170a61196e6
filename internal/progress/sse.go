package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/sin-text/backend/internal/models"
)

// SSESink writes events as `data: <json>\n\n` frames on an open
// text/event-stream response.
type SSESink struct {
	mu     sync.Mutex
	w      io.Writer
	flush  func()
	closed bool
	once   sync.Once
}

// NewSSESink sets the event-stream headers, commits the 200 status and returns
// a sink bound to w.
func NewSSESink(w http.ResponseWriter) *SSESink {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	s := &SSESink{w: w, flush: func() {}}
	if f, ok := w.(http.Flusher); ok {
		s.flush = f.Flush
	}
	return s
}

// Emit writes one event and flushes it.
func (s *SSESink) Emit(evt models.ProgressEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	data, err := json.Marshal(stamp(evt))
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	s.flush()
	return nil
}

// Close marks the stream finished. The HTTP handler returning ends the response.
func (s *SSESink) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	})
	return nil
}
