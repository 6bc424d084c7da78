package chi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/meridian-data/datamart/internal/domain"
)

// endMarker terminates the part stream. Clients stop reading on it.
const endMarker = "[DONE]"

// StreamWriter frames chat parts as server-sent events. It implements
// chat.Emitter; each part becomes one event flushed immediately so cards
// appear as tools complete.
type StreamWriter struct {
	w  http.ResponseWriter
	f  http.Flusher
	mu sync.Mutex

	started bool
}

// NewStreamWriter prepares an SSE stream over w. Returns an error when the
// underlying writer cannot flush, which means streaming is impossible.
func NewStreamWriter(w http.ResponseWriter) (*StreamWriter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	return &StreamWriter{w: w, f: f}, nil
}

// Started reports whether any event has been written. Once true the response
// status and content type are committed and errors can only be reported
// in-stream.
func (s *StreamWriter) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Emit implements chat.Emitter.
func (s *StreamWriter) Emit(part domain.Part) error {
	payload, err := json.Marshal(part)
	if err != nil {
		return fmt.Errorf("encode part: %w", err)
	}
	return s.writeEvent("", payload)
}

// EmitError reports a turn failure in-stream after parts have been written.
func (s *StreamWriter) EmitError(message string) error {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return fmt.Errorf("encode error event: %w", err)
	}
	return s.writeEvent("error", payload)
}

// End writes the stream terminator.
func (s *StreamWriter) End() error {
	return s.writeEvent("", []byte(endMarker))
}

func (s *StreamWriter) writeEvent(event string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	if event != "" {
		if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
			return fmt.Errorf("write event name: %w", err)
		}
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event data: %w", err)
	}
	s.f.Flush()
	return nil
}
