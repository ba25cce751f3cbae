package agent

import (
	"context"
	"time"
)

// BrowserState is a snapshot of the page the agent is looking at.
// Screenshot is base64-encoded PNG data as delivered by the capture
// backend; HTML is the page's outer HTML. Either may be empty when the
// backend could not capture it.
type BrowserState struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Screenshot string `json:"screenshot,omitempty"`
	HTML       string `json:"-"`
}

// StateAssessment is the agent's evaluation of where it stands before
// choosing the next actions.
type StateAssessment struct {
	EvaluationPreviousGoal string `json:"evaluation_previous_goal,omitempty"`
	Memory                 string `json:"memory,omitempty"`
	NextGoal               string `json:"next_goal,omitempty"`
}

// Action is a single browser action the agent wants executed. Params is
// deliberately loose: it carries whatever the planner produced.
type Action struct {
	Name   string `json:"name"`
	Params any    `json:"params,omitempty"`
}

// Output is what the agent produces at the start of each step: an
// assessment of the current state plus the actions to execute.
type Output struct {
	State   *StateAssessment `json:"current_state,omitempty"`
	Actions []Action         `json:"actions"`
}

// ActionResult is the outcome of executing one Action.
type ActionResult struct {
	ExtractedContent string `json:"extracted_content,omitempty"`
	Error            string `json:"error,omitempty"`
	Success          bool   `json:"success"`
	IsDone           bool   `json:"is_done"`
	IncludeInMemory  bool   `json:"include_in_memory"`
}

// RunResult is the terminal outcome of a whole run.
type RunResult struct {
	Status     string         `json:"status"`
	FinalURL   string         `json:"final_url,omitempty"`
	Steps      int            `json:"steps"`
	FinishedAt time.Time      `json:"finished_at"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// StepCallback fires once per step, before the step's actions execute.
// stepNumber is already incremented by the agent when the callback runs.
type StepCallback func(state *BrowserState, output *Output, stepNumber int)

// DoneCallback fires exactly once per run, after the last step.
type DoneCallback func(result *RunResult)

// MultiActFunc executes a batch of actions and returns one result per
// action, in order.
type MultiActFunc func(ctx context.Context, actions []Action) ([]ActionResult, error)

// Executor turns a single action into a result. The demo driver backs
// this with a chromedp session; a real host supplies its own.
type Executor interface {
	Execute(ctx context.Context, action Action) (ActionResult, error)
	State(ctx context.Context) (*BrowserState, error)
}

// Agent is the minimal host surface the recorder plugs into: two callback
// slots plus MultiAct held as a swappable function field, so wrapping is
// explicit decoration rather than method patching.
type Agent struct {
	Executor Executor

	OnNewStep StepCallback
	OnDone    DoneCallback
	MultiAct  MultiActFunc

	step int
}

func New(exec Executor) *Agent {
	a := &Agent{Executor: exec}
	a.MultiAct = a.multiAct
	return a
}

// RegisterNewStepCallback installs the per-step callback slot.
func (a *Agent) RegisterNewStepCallback(cb StepCallback) {
	a.OnNewStep = cb
}

// RegisterDoneCallback installs the end-of-run callback slot.
func (a *Agent) RegisterDoneCallback(cb DoneCallback) {
	a.OnDone = cb
}

func (a *Agent) multiAct(ctx context.Context, actions []Action) ([]ActionResult, error) {
	results := make([]ActionResult, 0, len(actions))
	for _, act := range actions {
		res, err := a.Executor.Execute(ctx, act)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Run drives a scripted sequence of outputs through the callback slots
// and MultiAct in host order: step callback, then action execution. It
// performs no planning; the outputs are supplied by the caller.
func (a *Agent) Run(ctx context.Context, script []Output) (*RunResult, error) {
	var lastState *BrowserState
	for _, out := range script {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a.step++

		state, err := a.Executor.State(ctx)
		if err != nil {
			state = &BrowserState{}
		}
		lastState = state

		if a.OnNewStep != nil {
			a.OnNewStep(state, &out, a.step)
		}

		if _, err := a.MultiAct(ctx, out.Actions); err != nil {
			return nil, err
		}
	}

	result := &RunResult{
		Status:     "ok",
		Steps:      a.step,
		FinishedAt: time.Now(),
	}
	if lastState != nil {
		result.FinalURL = lastState.URL
	}
	if a.OnDone != nil {
		a.OnDone(result)
	}
	return result, nil
}
