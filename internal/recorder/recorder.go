package recorder

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/akshat/snaptrail/internal/agent"
	"github.com/akshat/snaptrail/internal/observability"
	"github.com/akshat/snaptrail/internal/store"
	"github.com/google/uuid"
)

// Options configures a Recorder.
type Options struct {
	BaseDir      string
	DirPrefix    string
	SavePlans    bool
	SavePageText bool
}

// Recorder persists screenshots, plans and action results for each agent
// step into a deterministic directory layout, and aggregates all plans of
// a run into a single file when the run finishes.
//
// Every write is best-effort: a failed artifact never produces an error
// for the host, only a log event.
type Recorder struct {
	baseDir      string
	dirPrefix    string
	savePlans    bool
	savePageText bool

	log   *observability.Logger
	index *store.Index

	runID    string
	seq      int
	stepNum  int
	stepDir  string
	stepOpen bool
	plans    []json.RawMessage
}

// New creates a Recorder rooted at opts.BaseDir, creating the directory
// if needed. index may be nil to disable the sqlite run index.
func New(opts Options, log *observability.Logger, index *store.Index) *Recorder {
	if opts.DirPrefix == "" {
		opts.DirPrefix = "execute"
	}
	if err := os.MkdirAll(opts.BaseDir, 0755); err != nil && log != nil {
		log.LogError("", 0, "mkdir_base", err)
	}
	return &Recorder{
		baseDir:      opts.BaseDir,
		dirPrefix:    opts.DirPrefix,
		savePlans:    opts.SavePlans,
		savePageText: opts.SavePageText,
		log:          log,
		index:        index,
	}
}

// RunID returns the identifier of the active run, or "" when no run is
// active.
func (r *Recorder) RunID() string {
	return r.runID
}

// openStep fixes the current step's directory. The timestamp is taken
// once here, so every artifact of the step lands in the same directory
// even across a second boundary. The sequence number is never reused
// within the process, which keeps directory names unique even when two
// steps share a timestamp.
func (r *Recorder) openStep() {
	if r.runID == "" {
		r.runID = uuid.New().String()
		if r.index != nil {
			if err := r.index.AddRun(r.runID, r.baseDir); err != nil {
				r.logError("index_add_run", err)
			}
		}
	}

	r.stepNum = r.seq
	r.seq++

	ts := time.Now().Format("20060102_150405")
	dir := filepath.Join(r.baseDir, fmt.Sprintf("%s_%03d_%s", r.dirPrefix, r.stepNum, ts))
	if err := os.MkdirAll(dir, 0755); err != nil {
		r.logError("mkdir_step", err)
	}
	r.stepDir = dir
	r.stepOpen = true

	if r.index != nil {
		if err := r.index.AddStep(r.runID, r.stepNum, dir); err != nil {
			r.logError("index_add_step", err)
		}
	}

	observability.SetStatus(observability.PhaseRecording, r.runID, r.stepNum)
	if r.log != nil {
		r.log.LogStep(r.runID, r.stepNum, dir)
	}
}

// HandleStep records the artifacts available at the start of a step: the
// initial screenshot, the plan, and the readable page text. stepNumber is
// the host's counter, already incremented when the callback fires; it is
// recorded inside the plan but does not drive directory naming.
func (r *Recorder) HandleStep(state *agent.BrowserState, output *agent.Output, stepNumber int) {
	r.openStep()
	r.SaveScreenshot(state, 0)
	r.SavePlan(output, stepNumber-1)
	r.SavePageText(state)
}

// HandleExecute records one screenshot per action result plus the step's
// results file, then closes the step. stateFn is invoked once per result
// so each capture reflects the page at save time; a nil or failing
// stateFn only skips screenshots.
func (r *Recorder) HandleExecute(stateFn func() (*agent.BrowserState, error), results []agent.ActionResult) {
	if !r.stepOpen {
		r.openStep()
	}

	for i := range results {
		if stateFn == nil {
			break
		}
		state, err := stateFn()
		if err != nil {
			r.logError("capture_state", err)
			continue
		}
		r.SaveScreenshot(state, i+1)
	}

	r.SaveResults(results)

	// Close the step so a following HandleStep (or a second execute for
	// the same logical step) opens a fresh directory.
	r.stepOpen = false
}

// Finalize records the run's terminal result in the last step directory,
// writes the plan aggregate, and resets per-run state. A later HandleStep
// silently begins a new run; the directory sequence number keeps counting
// so names stay unique across runs.
func (r *Recorder) Finalize(result *agent.RunResult) {
	if result != nil && r.stepDir != "" {
		if r.stepOpen {
			r.SaveResults(result)
		} else if data, err := json.MarshalIndent(result, "", "  "); err == nil {
			// The step already has per-action results; keep them and
			// record the terminal outcome only if nothing is there.
			path := filepath.Join(r.stepDir, "results.json")
			if err := writeFileOnce(path, data); err != nil {
				r.logError("results_write", err)
			}
		}
	}
	r.saveAllPlans()

	if r.index != nil && r.runID != "" {
		status := "ok"
		if result != nil && result.Status != "" {
			status = result.Status
		}
		if err := r.index.FinishRun(r.runID, status, len(r.plans)); err != nil {
			r.logError("index_finish_run", err)
		}
	}

	observability.SetStatus(observability.PhaseFinalized, r.runID, r.stepNum)
	r.runID = ""
	r.stepDir = ""
	r.stepOpen = false
	r.plans = nil
}

// SaveScreenshot decodes the state's base64 screenshot and writes it as
// screenshot_<idx>.png in the current step directory. Screenshots are
// write-once; an existing file is left untouched. Returns the path, or
// "" when nothing was written.
func (r *Recorder) SaveScreenshot(state *agent.BrowserState, idx int) string {
	if state == nil || state.Screenshot == "" {
		if r.log != nil {
			r.log.LogError(r.runID, r.stepNum, "screenshot", errNoImage)
		}
		return ""
	}
	if !r.stepOpen {
		r.openStep()
	}

	raw, err := base64.StdEncoding.DecodeString(state.Screenshot)
	if err != nil {
		r.logError("screenshot_decode", err)
		return ""
	}

	path := filepath.Join(r.stepDir, fmt.Sprintf("screenshot_%d.png", idx))
	if err := writeFileOnce(path, raw); err != nil {
		r.logError("screenshot_write", err)
		return ""
	}

	observability.ArtifactWritten()
	if r.log != nil {
		r.log.LogArtifact(observability.EventTypeScreenshot, r.runID, r.stepNum, path)
	}
	return path
}

// SavePlan serializes the step's plan record to plan.json and appends it
// to the in-memory aggregate. Fields that fail to serialize are dropped
// individually so one bad value never loses the whole record. No-op when
// plan saving is disabled.
func (r *Recorder) SavePlan(output *agent.Output, agentStep int) string {
	if !r.savePlans || output == nil {
		return ""
	}
	if !r.stepOpen {
		r.openStep()
	}

	fields := []looseField{
		{"step_number", r.stepNum},
		{"agent_step", agentStep},
		{"timestamp", time.Now().Format(time.RFC3339)},
		{"current_state", output.State},
		{"actions", output.Actions},
	}
	if output.State != nil {
		fields = append(fields,
			looseField{"next_goal", output.State.NextGoal},
			looseField{"evaluation", output.State.EvaluationPreviousGoal},
		)
	}

	data := r.marshalLoose(fields)
	r.plans = append(r.plans, data)

	path := filepath.Join(r.stepDir, "plan.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		r.logError("plan_write", err)
		return ""
	}

	observability.ArtifactWritten()
	if r.log != nil {
		r.log.LogArtifact(observability.EventTypePlan, r.runID, r.stepNum, path)
	}
	return path
}

// SaveResults writes the step's results.json. v is either the step's
// action results or, at the end of a run, the terminal run result.
func (r *Recorder) SaveResults(v any) string {
	if !r.stepOpen {
		r.openStep()
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		r.logError("results_marshal", err)
		return ""
	}

	path := filepath.Join(r.stepDir, "results.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		r.logError("results_write", err)
		return ""
	}

	observability.ArtifactWritten()
	if r.log != nil {
		r.log.LogArtifact(observability.EventTypeResults, r.runID, r.stepNum, path)
	}
	return path
}

// SavePageText extracts the readable text of the captured page and writes
// it as page.txt. Skipped when disabled or when no HTML was captured.
func (r *Recorder) SavePageText(state *agent.BrowserState) string {
	if !r.savePageText || state == nil || state.HTML == "" {
		return ""
	}
	if !r.stepOpen {
		r.openStep()
	}

	text, err := extractPageText(state.HTML, state.URL)
	if err != nil {
		r.logError("page_text_extract", err)
		return ""
	}

	path := filepath.Join(r.stepDir, "page.txt")
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		r.logError("page_text_write", err)
		return ""
	}

	observability.ArtifactWritten()
	if r.log != nil {
		r.log.LogArtifact(observability.EventTypePageText, r.runID, r.stepNum, path)
	}
	return path
}

// saveAllPlans writes every plan collected since run start into a single
// aggregate file at the base directory, in step order.
func (r *Recorder) saveAllPlans() {
	if !r.savePlans || len(r.plans) == 0 {
		return
	}

	ts := time.Now().Format("20060102_150405")
	path := filepath.Join(r.baseDir, fmt.Sprintf("all_plans_%s.json", ts))

	data, err := json.MarshalIndent(r.plans, "", "  ")
	if err != nil {
		r.logError("aggregate_marshal", err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		r.logError("aggregate_write", err)
		return
	}

	observability.ArtifactWritten()
	if r.log != nil {
		r.log.LogAggregate(r.runID, path, len(r.plans))
	}
	if r.index != nil && r.runID != "" {
		if err := r.index.SetAggregate(r.runID, path); err != nil {
			r.logError("index_aggregate", err)
		}
	}
}

func (r *Recorder) logError(op string, err error) {
	if r.log != nil {
		r.log.LogError(r.runID, r.stepNum, op, err)
	}
}

type looseField struct {
	key string
	val any
}

// marshalLoose serializes fields one by one, dropping any field whose
// value cannot be marshaled, so the remaining record is always valid
// JSON.
func (r *Recorder) marshalLoose(fields []looseField) json.RawMessage {
	buf := []byte("{")
	first := true
	for _, f := range fields {
		val, err := json.Marshal(f.val)
		if err != nil {
			r.logError("plan_field_"+f.key, err)
			continue
		}
		key, _ := json.Marshal(f.key)
		if !first {
			buf = append(buf, ',')
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
		first = false
	}
	return append(buf, '}')
}

// writeFileOnce writes data to path only if the file does not exist yet.
func writeFileOnce(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

var errNoImage = fmt.Errorf("no screenshot available in browser state")
