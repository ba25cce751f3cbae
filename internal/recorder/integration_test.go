package recorder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/akshat/snaptrail/internal/agent"
)

// fakeExecutor drives agent.Agent in tests without a browser.
type fakeExecutor struct {
	states int
}

func (f *fakeExecutor) Execute(ctx context.Context, action agent.Action) (agent.ActionResult, error) {
	return agent.ActionResult{ExtractedContent: "did " + action.Name, Success: true}, nil
}

func (f *fakeExecutor) State(ctx context.Context) (*agent.BrowserState, error) {
	f.states++
	return &agent.BrowserState{
		URL:        "https://fake.test",
		Screenshot: fakeImage("fake"),
	}, nil
}

func TestWrapMultiActPreservesResults(t *testing.T) {
	rec, base := newTestRecorder(t)

	want := []agent.ActionResult{
		{ExtractedContent: "one", Success: true},
		{ExtractedContent: "two", Success: true, IsDone: true},
	}
	original := func(ctx context.Context, actions []agent.Action) ([]agent.ActionResult, error) {
		return want, nil
	}

	stateFn := func(ctx context.Context) (*agent.BrowserState, error) {
		return &agent.BrowserState{Screenshot: fakeImage("s")}, nil
	}
	wrapped := WrapMultiAct(original, rec, stateFn)

	got, err := wrapped(context.Background(), []agent.Action{{Name: "a"}, {Name: "b"}})
	if err != nil {
		t.Fatalf("wrapped call returned error: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("wrapping must not change the return value: got %v want %v", got, want)
	}

	dirs := stepDirs(t, base)
	if len(dirs) != 1 {
		t.Fatalf("expected 1 step directory, got %d", len(dirs))
	}
	for _, name := range []string{"screenshot_1.png", "screenshot_2.png", "results.json"} {
		if _, err := os.Stat(filepath.Join(dirs[0], name)); err != nil {
			t.Errorf("missing %s", name)
		}
	}
}

func TestWrapMultiActPropagatesOriginalError(t *testing.T) {
	rec, base := newTestRecorder(t)

	wantErr := errors.New("browser crashed")
	original := func(ctx context.Context, actions []agent.Action) ([]agent.ActionResult, error) {
		return nil, wantErr
	}
	wrapped := WrapMultiAct(original, rec, nil)

	_, err := wrapped(context.Background(), []agent.Action{{Name: "a"}})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected the original error, got %v", err)
	}
	if dirs := stepDirs(t, base); len(dirs) != 0 {
		t.Errorf("no artifacts expected when the original fails, got %v", dirs)
	}
}

func TestWrapMultiActSurvivesCaptureFailure(t *testing.T) {
	rec, base := newTestRecorder(t)

	want := []agent.ActionResult{{ExtractedContent: "ok", Success: true}}
	original := func(ctx context.Context, actions []agent.Action) ([]agent.ActionResult, error) {
		return want, nil
	}
	stateFn := func(ctx context.Context) (*agent.BrowserState, error) {
		return nil, errors.New("no page")
	}
	wrapped := WrapMultiAct(original, rec, stateFn)

	got, err := wrapped(context.Background(), []agent.Action{{Name: "a"}})
	if err != nil {
		t.Fatalf("capture failure must not surface: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("capture failure must not change results: %v", got)
	}

	dirs := stepDirs(t, base)
	if len(dirs) != 1 {
		t.Fatalf("expected 1 step directory, got %d", len(dirs))
	}
	if _, err := os.Stat(filepath.Join(dirs[0], "results.json")); err != nil {
		t.Error("results.json should be written even without screenshots")
	}
	if _, err := os.Stat(filepath.Join(dirs[0], "screenshot_1.png")); !os.IsNotExist(err) {
		t.Error("no screenshot expected when capture fails")
	}
}

func TestAttachRecordsFullRun(t *testing.T) {
	base := t.TempDir()
	rec := New(Options{BaseDir: base, SavePlans: true}, nil, nil)

	exec := &fakeExecutor{}
	host := agent.New(exec)
	Attach(host, rec, exec.State)

	script := []agent.Output{
		{
			State:   &agent.StateAssessment{NextGoal: "first"},
			Actions: []agent.Action{{Name: "navigate"}},
		},
		{
			State:   &agent.StateAssessment{NextGoal: "second"},
			Actions: []agent.Action{{Name: "click"}, {Name: "scroll"}},
		},
	}

	result, err := host.Run(context.Background(), script)
	if err != nil {
		t.Fatal(err)
	}
	if result.Steps != 2 {
		t.Errorf("expected 2 steps, got %d", result.Steps)
	}

	dirs := stepDirs(t, base)
	if len(dirs) != 2 {
		t.Fatalf("expected 2 step directories, got %d: %v", len(dirs), dirs)
	}

	// First step: initial capture plus one per-result capture.
	for _, name := range []string{"screenshot_0.png", "screenshot_1.png", "plan.json", "results.json"} {
		if _, err := os.Stat(filepath.Join(dirs[0], name)); err != nil {
			t.Errorf("step 0 missing %s", name)
		}
	}
	// Second step had two actions.
	for _, name := range []string{"screenshot_0.png", "screenshot_1.png", "screenshot_2.png", "plan.json", "results.json"} {
		if _, err := os.Stat(filepath.Join(dirs[1], name)); err != nil {
			t.Errorf("step 1 missing %s", name)
		}
	}

	aggs := aggregateFiles(t, base)
	if len(aggs) != 1 {
		t.Fatalf("expected 1 aggregate file, got %d", len(aggs))
	}
	plans := readAggregate(t, aggs[0])
	if len(plans) != 2 || plans[0]["next_goal"] != "first" || plans[1]["next_goal"] != "second" {
		t.Errorf("aggregate should hold both plans in order: %v", plans)
	}
}
