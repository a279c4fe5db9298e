package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"kitchen-sync/internal/domain"
)

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteProblem writes a simplified RFC 7807 Problem+JSON body.
func WriteProblem(w http.ResponseWriter, code int, kind, detail string) {
	WriteJSON(w, code, map[string]any{
		"type":   kind,
		"kind":   kind,
		"title":  http.StatusText(code),
		"status": code,
		"detail": detail,
	})
}

// WriteError maps err onto a problem response.
func WriteError(w http.ResponseWriter, err error) {
	WriteProblem(w, domain.HTTPStatus(err), domain.Kind(err), err.Error())
}

var ErrStreamingUnsupported = errors.New("streaming unsupported")

// Stream writes server-sent events.
type Stream struct {
	w http.ResponseWriter
	f http.Flusher
}

func NewStream(w http.ResponseWriter) (*Stream, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	f.Flush()
	return &Stream{w: w, f: f}, nil
}

// Event sends v as one JSON-encoded event named event.
func (s *Stream) Event(event string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, b); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}
