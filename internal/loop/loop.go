// Package loop implements the analyze -> confirm retry protocol that
// gates every model-proposed change before it is committed or queued for
// human review.
package loop

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/shelfwise/shelfwise/internal/model"
)

// Hooks supplies the domain-specific steps of one confirmation loop
// invocation. Analyze proposes, Confirm independently validates, Apply
// commits exactly once after confirmation, and OnExhausted runs exactly
// once when no attempt is confirmed before maxRetries, queueing the
// proposal for human review.
type Hooks struct {
	Analyze     func(ctx context.Context, feedback string) (*model.AnalysisResult, error)
	Confirm     func(ctx context.Context, analysis *model.AnalysisResult) (*model.ConfirmationVerdict, error)
	Apply       func(ctx context.Context, analysis *model.AnalysisResult) (*model.ProcessResult, error)
	OnExhausted func(ctx context.Context, last *model.AnalysisResult, attempts int, lastFeedback string) (*model.ProcessResult, error)
}

// loopState tracks one in-flight invocation. It is owned exclusively by Run
// and discarded at loop exit.
type loopState struct {
	attempt  int
	feedback string
	analysis *model.AnalysisResult
}

// Run executes the confirmation loop with up to maxRetries confirmation
// attempts. Adapter errors abort immediately and are returned to the
// caller; a semantic rejection (including malformed model output) consumes
// one retry. An exhausted loop never returns an error: it returns the
// OnExhausted result with NeedsReview set.
func Run(ctx context.Context, hooks Hooks, maxRetries int) (*model.ProcessResult, error) {
	return run(ctx, hooks, maxRetries, nil)
}

func run(ctx context.Context, hooks Hooks, maxRetries int, emit func(Event)) (*model.ProcessResult, error) {
	send := func(ev Event) {
		if emit != nil {
			emit(ev)
		}
	}

	if maxRetries < 1 {
		err := eris.Errorf("maxRetries must be >= 1, got %d", maxRetries)
		send(Event{Type: EventFailed, Err: err.Error()})
		return nil, err
	}

	send(Event{Type: EventStart})

	st := &loopState{}
	if err := st.analyze(ctx, hooks, send); err != nil {
		return nil, err
	}

	for st.attempt < maxRetries {
		send(Event{Type: EventConfirming, Attempt: st.attempt + 1, Analysis: st.analysis})

		verdict, err := hooks.Confirm(ctx, st.analysis)
		if err != nil {
			// Unparseable confirmation output is a rejection, not a failure.
			if model.IsValidationError(err) {
				verdict = &model.ConfirmationVerdict{Confirmed: false, Feedback: err.Error()}
			} else {
				send(Event{Type: EventFailed, Err: err.Error()})
				return nil, eris.Wrap(err, "confirmation loop: confirm")
			}
		}

		if verdict.Confirmed {
			result, err := hooks.Apply(ctx, st.analysis)
			if err != nil {
				send(Event{Type: EventFailed, Err: err.Error()})
				return nil, eris.Wrap(err, "confirmation loop: apply")
			}
			result.Attempts = st.attempt + 1
			send(Event{Type: EventResult, Attempt: result.Attempts, Result: result})
			send(Event{Type: EventComplete, Result: result})
			return result, nil
		}

		st.feedback = verdict.Feedback
		st.attempt++

		if st.attempt < maxRetries {
			if err := st.analyze(ctx, hooks, send); err != nil {
				return nil, err
			}
		}
	}

	result, err := hooks.OnExhausted(ctx, st.analysis, maxRetries, st.feedback)
	if err != nil {
		send(Event{Type: EventFailed, Err: err.Error()})
		return nil, eris.Wrap(err, "confirmation loop: exhausted")
	}
	result.Attempts = maxRetries
	result.NeedsReview = true
	send(Event{Type: EventResult, Attempt: maxRetries, Result: result})
	send(Event{Type: EventComplete, Result: result})
	return result, nil
}

// analyze runs one analysis step. Malformed analysis output becomes an
// abstention carrying the validation detail, so it still flows through the
// confirmation tier and retry accounting stays uniform.
func (st *loopState) analyze(ctx context.Context, hooks Hooks, send func(Event)) error {
	send(Event{Type: EventAnalyzing, Attempt: st.attempt + 1, Feedback: st.feedback})

	analysis, err := hooks.Analyze(ctx, st.feedback)
	if err != nil {
		if model.IsValidationError(err) {
			analysis = &model.AnalysisResult{Reasoning: err.Error()}
		} else {
			send(Event{Type: EventFailed, Err: err.Error()})
			return eris.Wrap(err, "confirmation loop: analyze")
		}
	}

	st.analysis = analysis
	if analysis.Reasoning != "" {
		send(Event{Type: EventThinking, Attempt: st.attempt + 1, Reasoning: analysis.Reasoning})
	}
	return nil
}
