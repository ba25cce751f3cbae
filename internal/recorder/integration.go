package recorder

import (
	"context"

	"github.com/akshat/snaptrail/internal/agent"
)

// StateFunc captures the current browser state for post-action
// screenshots. The demo driver backs it with the chromedp session.
type StateFunc func(ctx context.Context) (*agent.BrowserState, error)

// Callbacks returns the step and done callbacks for a recorder, ready to
// be registered on the host's two callback slots.
func Callbacks(rec *Recorder) (agent.StepCallback, agent.DoneCallback) {
	stepCallback := func(state *agent.BrowserState, output *agent.Output, stepNumber int) {
		rec.HandleStep(state, output, stepNumber)
	}
	doneCallback := func(result *agent.RunResult) {
		rec.Finalize(result)
	}
	return stepCallback, doneCallback
}

// WrapMultiAct decorates a MultiAct function so that after the original
// executes, one screenshot per result plus the step's results file are
// recorded. The original's return value and error pass through unchanged;
// recorder failures never surface here.
func WrapMultiAct(original agent.MultiActFunc, rec *Recorder, stateFn StateFunc) agent.MultiActFunc {
	return func(ctx context.Context, actions []agent.Action) ([]agent.ActionResult, error) {
		results, err := original(ctx, actions)
		if err != nil {
			return results, err
		}

		var capture func() (*agent.BrowserState, error)
		if stateFn != nil {
			capture = func() (*agent.BrowserState, error) {
				return stateFn(ctx)
			}
		}
		rec.HandleExecute(capture, results)

		return results, nil
	}
}

// Attach wires a recorder into an agent: both callback slots plus the
// wrapped MultiAct. Returns the recorder for chaining.
func Attach(a *agent.Agent, rec *Recorder, stateFn StateFunc) *Recorder {
	stepCallback, doneCallback := Callbacks(rec)
	a.RegisterNewStepCallback(stepCallback)
	a.RegisterDoneCallback(doneCallback)
	a.MultiAct = WrapMultiAct(a.MultiAct, rec, stateFn)
	return rec
}
