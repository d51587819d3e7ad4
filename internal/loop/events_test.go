package loop

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise/internal/model"
)

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestRunStreamHappyPath(t *testing.T) {
	t.Parallel()

	h := &countingHooks{verdicts: []model.ConfirmationVerdict{accept()}}
	events := collect(t, RunStream(context.Background(), h.hooks(), 3))

	types := make([]EventType, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []EventType{
		EventStart, EventAnalyzing, EventThinking, EventConfirming, EventResult, EventComplete,
	}, types)
}

func TestRunStreamExactlyOneTerminalEvent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		hooks func() Hooks
		want  EventType
	}{
		{
			name: "complete on accept",
			hooks: func() Hooks {
				h := &countingHooks{verdicts: []model.ConfirmationVerdict{accept()}}
				return h.hooks()
			},
			want: EventComplete,
		},
		{
			name: "complete on exhaustion",
			hooks: func() Hooks {
				h := &countingHooks{verdicts: []model.ConfirmationVerdict{reject("no"), reject("no")}}
				return h.hooks()
			},
			want: EventComplete,
		},
		{
			name: "failed on adapter error",
			hooks: func() Hooks {
				h := &countingHooks{analyzeErr: model.NewAdapterError("analyze", errors.New("down"))}
				return h.hooks()
			},
			want: EventFailed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			events := collect(t, RunStream(context.Background(), tc.hooks(), 2))
			require.NotEmpty(t, events)

			terminals := 0
			for _, ev := range events {
				if ev.Type.Terminal() {
					terminals++
				}
			}
			assert.Equal(t, 1, terminals)
			assert.Equal(t, tc.want, events[len(events)-1].Type)
		})
	}
}

func TestRunStreamInvalidMaxRetries(t *testing.T) {
	t.Parallel()

	h := &countingHooks{}
	events := collect(t, RunStream(context.Background(), h.hooks(), 0))

	require.Len(t, events, 1)
	assert.Equal(t, EventFailed, events[0].Type)
}
