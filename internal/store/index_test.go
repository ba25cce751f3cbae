package store

import (
	"path/filepath"
	"testing"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndex_RunLifecycle(t *testing.T) {
	idx := newTestIndex(t)

	if err := idx.AddRun("run-1", "/tmp/shots"); err != nil {
		t.Fatalf("AddRun failed: %v", err)
	}
	if err := idx.AddStep("run-1", 0, "/tmp/shots/execute_000_x"); err != nil {
		t.Fatalf("AddStep failed: %v", err)
	}
	if err := idx.AddStep("run-1", 1, "/tmp/shots/execute_001_x"); err != nil {
		t.Fatalf("AddStep failed: %v", err)
	}
	if err := idx.SetAggregate("run-1", "/tmp/shots/all_plans_x.json"); err != nil {
		t.Fatalf("SetAggregate failed: %v", err)
	}
	if err := idx.FinishRun("run-1", "ok", 2); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	runs, err := idx.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0]["status"] != "ok" {
		t.Errorf("expected status ok, got %v", runs[0]["status"])
	}
	if runs[0]["steps"] != 2 {
		t.Errorf("expected 2 steps, got %v", runs[0]["steps"])
	}
	if runs[0]["aggregate_path"] != "/tmp/shots/all_plans_x.json" {
		t.Errorf("unexpected aggregate path: %v", runs[0]["aggregate_path"])
	}

	steps, err := idx.ListSteps("run-1")
	if err != nil {
		t.Fatalf("ListSteps failed: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0]["step_number"] != 0 || steps[1]["step_number"] != 1 {
		t.Errorf("steps out of order: %v", steps)
	}
}

func TestIndex_ListRunsEmpty(t *testing.T) {
	idx := newTestIndex(t)

	runs, err := idx.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no runs, got %d", len(runs))
	}
}
