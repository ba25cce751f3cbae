package agent

import (
	"context"
	"errors"
	"testing"
)

type scriptedExecutor struct {
	executed []string
	failOn   string
}

func (s *scriptedExecutor) Execute(ctx context.Context, action Action) (ActionResult, error) {
	if action.Name == s.failOn {
		return ActionResult{}, errors.New("boom")
	}
	s.executed = append(s.executed, action.Name)
	return ActionResult{ExtractedContent: action.Name, Success: true}, nil
}

func (s *scriptedExecutor) State(ctx context.Context) (*BrowserState, error) {
	return &BrowserState{URL: "https://x.test"}, nil
}

func TestRunFiresCallbacksInHostOrder(t *testing.T) {
	exec := &scriptedExecutor{}
	a := New(exec)

	var order []string
	a.RegisterNewStepCallback(func(state *BrowserState, output *Output, stepNumber int) {
		order = append(order, "step")
		if stepNumber != len(order) {
			t.Errorf("step callback got number %d at call %d", stepNumber, len(order))
		}
	})
	a.RegisterDoneCallback(func(result *RunResult) {
		order = append(order, "done")
	})

	script := []Output{
		{Actions: []Action{{Name: "navigate"}}},
		{Actions: []Action{{Name: "click"}}},
	}
	result, err := a.Run(context.Background(), script)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != "ok" || result.Steps != 2 {
		t.Errorf("unexpected result: %+v", result)
	}

	want := []string{"step", "step", "done"}
	if len(order) != len(want) {
		t.Fatalf("callback order %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("callback order %v, want %v", order, want)
		}
	}
	if len(exec.executed) != 2 {
		t.Errorf("expected 2 executed actions, got %v", exec.executed)
	}
}

func TestRunAbortsOnExecutorError(t *testing.T) {
	exec := &scriptedExecutor{failOn: "click"}
	a := New(exec)

	doneFired := false
	a.RegisterDoneCallback(func(result *RunResult) { doneFired = true })

	script := []Output{
		{Actions: []Action{{Name: "navigate"}}},
		{Actions: []Action{{Name: "click"}}},
	}
	if _, err := a.Run(context.Background(), script); err == nil {
		t.Fatal("expected executor error to abort the run")
	}
	if doneFired {
		t.Error("done callback must not fire for an aborted run")
	}
}
