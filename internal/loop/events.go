package loop

import (
	"context"

	"github.com/shelfwise/shelfwise/internal/model"
)

// EventType identifies a lifecycle event emitted by a streaming invocation.
type EventType string

// Lifecycle events, in emission order. Every stream ends with exactly one
// terminal event: EventComplete or EventFailed.
const (
	EventStart      EventType = "start"
	EventAnalyzing  EventType = "analyzing"
	EventThinking   EventType = "thinking"
	EventConfirming EventType = "confirming"
	EventResult     EventType = "result"
	EventComplete   EventType = "complete"
	EventFailed     EventType = "failed"
)

// Terminal reports whether the event type ends a stream.
func (t EventType) Terminal() bool {
	return t == EventComplete || t == EventFailed
}

// Event is a single lifecycle notification from a streaming loop run.
type Event struct {
	Type      EventType            `json:"type"`
	Attempt   int                  `json:"attempt,omitempty"`
	Feedback  string               `json:"feedback,omitempty"`
	Reasoning string               `json:"reasoning,omitempty"`
	Analysis  *model.AnalysisResult `json:"analysis,omitempty"`
	Result    *model.ProcessResult  `json:"result,omitempty"`
	Err       string               `json:"error,omitempty"`
}

// RunStream executes the confirmation loop in a goroutine and returns a
// channel of ordered lifecycle events. The channel is closed after the
// terminal event; consumers must drain it.
func RunStream(ctx context.Context, hooks Hooks, maxRetries int) <-chan Event {
	events := make(chan Event, 8)

	go func() {
		defer close(events)

		emit := func(ev Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}

		// run emits the terminal event itself on every exit path.
		_, _ = run(ctx, hooks, maxRetries, emit)
	}()

	return events
}
