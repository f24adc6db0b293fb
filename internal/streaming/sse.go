// Package streaming renders an orchestrator.Event stream onto an HTTP
// response as Server-Sent Events, per spec.md §4.11.
package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/haasonsaas/docassist/internal/errkind"
	"github.com/haasonsaas/docassist/internal/orchestrator"
)

// DefaultIdleTimeout is how long writeWithDeadline waits for the client's connection to
// accept a frame before treating it as stalled.
const DefaultIdleTimeout = 30 * time.Second

// frame is the wire shape of one `data:` payload. Fields are omitted when
// zero so each event type only carries the keys spec.md §4.11 lists for it.
type frame struct {
	Text              string `json:"text,omitempty"`
	ToolCallStarted   bool   `json:"tool_call_started,omitempty"`
	ToolCallProgress  bool   `json:"tool_call_progress,omitempty"`
	ToolCallCompleted bool   `json:"tool_call_completed,omitempty"`
	ID                string `json:"id,omitempty"`
	Name              string `json:"name,omitempty"`
	TurnBoundary      bool   `json:"turn_boundary,omitempty"`
	Error             bool   `json:"error,omitempty"`
	Kind              string `json:"kind,omitempty"`
	Message           string `json:"message,omitempty"`
	Done              bool   `json:"done,omitempty"`
}

func encode(ev orchestrator.Event) ([]byte, error) {
	f := frame{}
	switch ev.Type {
	case orchestrator.EventText:
		f.Text = ev.Text
	case orchestrator.EventToolCallStarted:
		f.ToolCallStarted = true
		f.ID = ev.ToolCallID
		f.Name = ev.ToolName
	case orchestrator.EventToolCallCompleted:
		f.ToolCallCompleted = true
		f.ID = ev.ToolCallID
		f.Name = ev.ToolName
	case orchestrator.EventTurnBoundary:
		f.TurnBoundary = true
	case orchestrator.EventErr:
		f.Error = true
		f.Kind = ev.ErrorKind
		f.Message = ev.Message
	case orchestrator.EventDone:
		f.Done = true
	default:
		return nil, fmt.Errorf("streaming: unknown event type %q", ev.Type)
	}
	return json.Marshal(f)
}

// Writer renders Events onto an http.ResponseWriter as SSE frames, one
// `data:` line per event, flushing after each write so the client sees
// tokens as they arrive rather than once the handler returns.
type Writer struct {
	w           http.ResponseWriter
	flusher     http.Flusher
	idleTimeout time.Duration
}

// NewWriter sets the SSE response headers and returns a Writer. It returns
// an error if w does not support flushing (required for incremental
// delivery over a plain net/http server).
func NewWriter(w http.ResponseWriter, idleTimeout time.Duration) (*Writer, error) {
	fl, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming: response writer does not support flushing")
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fl.Flush()
	return &Writer{w: w, flusher: fl, idleTimeout: idleTimeout}, nil
}

// Pump drains events off the channel, writing each as an SSE frame. It
// returns once the channel closes or the write side stalls past the idle
// timeout, in which case it cancels cancel (stopping the upstream
// orchestrator turn) and emits a final `{error, kind:client_gone}` frame on
// a best-effort basis before returning.
func (sw *Writer) Pump(ctx context.Context, events <-chan orchestrator.Event, cancel context.CancelFunc) error {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := sw.writeWithDeadline(ev); err != nil {
				cancel()
				sw.writeWithDeadline(orchestrator.Event{
					Type:      orchestrator.EventErr,
					ErrorKind: string(errkind.ClientGone),
					Message:   err.Error(),
				})
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// writeWithDeadline writes one frame, but gives up and reports a stall if
// the underlying write doesn't return within the idle timeout. net/http's
// ResponseWriter.Write has no context parameter, so the write runs on its
// own goroutine and the timeout is enforced by racing it against a timer;
// a write that later completes after the timeout fires is simply discarded.
func (sw *Writer) writeWithDeadline(ev orchestrator.Event) error {
	b, err := encode(ev)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		_, werr := fmt.Fprintf(sw.w, "data: %s\n\n", b)
		if werr == nil {
			sw.flusher.Flush()
		}
		done <- werr
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(sw.idleTimeout):
		return fmt.Errorf("streaming: client write stalled past %s", sw.idleTimeout)
	}
}
