package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/planweave/planweave/internal/mode"
	"github.com/planweave/planweave/internal/pool"
	"github.com/planweave/planweave/internal/reason"
	"github.com/planweave/planweave/internal/registry"
	"github.com/planweave/planweave/internal/signal"
	"github.com/planweave/planweave/internal/snapshot"
	"github.com/planweave/planweave/pkg/models"
)

// step is one scripted engine outcome, with an optional hook that runs
// before the outcome is returned.
type step struct {
	out    *reason.Outcome
	before func()
}

// openCall records what each Open exposed to the engine.
type openCall struct {
	system string
	tools  []string
}

// fakeEngine replays one script per Open call and records the toolsets
// and prompts it saw.
type fakeEngine struct {
	scripts [][]step
	calls   []openCall
	prompts []string
	submits [][]reason.ToolResult
}

func (f *fakeEngine) Open(system string, tools []registry.Capability) reason.Exchange {
	names := make([]string, len(tools))
	for i, c := range tools {
		names[i] = c.Name
	}
	idx := len(f.calls)
	f.calls = append(f.calls, openCall{system: system, tools: names})
	var script []step
	if idx < len(f.scripts) {
		script = f.scripts[idx]
	}
	return &fakeExchange{engine: f, steps: script}
}

type fakeExchange struct {
	engine *fakeEngine
	steps  []step
	pos    int
}

func (f *fakeExchange) next() (*reason.Outcome, error) {
	if f.pos >= len(f.steps) {
		return nil, errors.New("script exhausted")
	}
	s := f.steps[f.pos]
	f.pos++
	if s.before != nil {
		s.before()
	}
	return s.out, nil
}

func (f *fakeExchange) Prompt(ctx context.Context, text string) (*reason.Outcome, error) {
	f.engine.prompts = append(f.engine.prompts, text)
	return f.next()
}

func (f *fakeExchange) Submit(ctx context.Context, results []reason.ToolResult) (*reason.Outcome, error) {
	f.engine.submits = append(f.engine.submits, results)
	return f.next()
}

// workerEngine replays the same outcome sequence for every worker
// exchange the pool opens.
type workerEngine struct {
	outcomes []*reason.Outcome
}

func (w *workerEngine) Open(system string, tools []registry.Capability) reason.Exchange {
	steps := make([]step, len(w.outcomes))
	for i, out := range w.outcomes {
		steps[i] = step{out: out}
	}
	return &fakeExchange{engine: &fakeEngine{}, steps: steps}
}

func workerDone(summary string) *reason.Outcome {
	return &reason.Outcome{
		Text: `{"progress_summary":"` + summary + `","task_done":true}`,
		Done: true,
	}
}

func invoke(name, input string) *reason.Outcome {
	return &reason.Outcome{
		Invocations: []reason.ToolInvocation{
			{ID: "t-" + name, Name: name, Input: json.RawMessage(input)},
		},
	}
}

func finalAnswer(text string) *reason.Outcome {
	return &reason.Outcome{Text: text, Done: true}
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New(registry.Builtin()...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func testPool(t *testing.T, engine reason.Engine, workerBudget int) *pool.Manager {
	t.Helper()
	return pool.NewManager(pool.ManagerConfig{
		Registry: testRegistry(t),
		Engine:   engine,
		Runner: reason.RunnerFunc(func(ctx context.Context, name string, input json.RawMessage) (string, error) {
			return "ok", nil
		}),
		IterationBudget: workerBudget,
	})
}

func testStore(t *testing.T) *snapshot.Store {
	t.Helper()
	store, err := snapshot.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("snapshot.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

const decomposeInput = `{
	"analysis": "two independent pieces",
	"subtasks": [
		{"description": "write the schema migration"},
		{"description": "update the billing code"}
	]
}`

const createWorkerInput = `{
	"name": "builder",
	"capabilities": ["read_file", "write_file"],
	"system_prompt": "You implement code changes."
}`

func TestEnforcedRunToCompletion(t *testing.T) {
	engine := &fakeEngine{scripts: [][]step{{
		{out: invoke(OpDecompose, decomposeInput)},
		{out: invoke(OpCreateWorker, createWorkerInput)},
		{out: invoke(OpExecuteWorker, `{"subtask_id":0,"worker":"builder"}`)},
		{out: invoke(OpExecuteWorker, `{"subtask_id":1,"worker":"builder"}`)},
		{out: finalAnswer("both subtasks finished")},
	}}}
	workers := &workerEngine{outcomes: []*reason.Outcome{workerDone("implemented")}}
	store := testStore(t)

	o := New(Config{Mode: mode.Enforced}, Deps{
		Engine:   engine,
		Registry: testRegistry(t),
		Pool:     testPool(t, workers, 5),
		Store:    store,
	})

	res, err := o.Run(context.Background(), "migrate the billing service")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Summary != "both subtasks finished" {
		t.Errorf("summary = %q", res.Summary)
	}

	// Enforced exposes the full planning toolset from the first exchange.
	if len(engine.calls) != 1 {
		t.Fatalf("engine opened %d times, want 1", len(engine.calls))
	}
	toolset := strings.Join(engine.calls[0].tools, ",")
	if !strings.Contains(toolset, OpDecompose) || strings.Contains(toolset, OpEnterPlanning) {
		t.Errorf("enforced toolset = %v", engine.calls[0].tools)
	}

	rm := o.Notebook().Roadmap
	if rm == nil || len(rm.Subtasks) != 2 {
		t.Fatalf("roadmap = %+v", rm)
	}
	for _, sub := range rm.Subtasks {
		if sub.State != models.SubtaskDone {
			t.Errorf("subtask %d state = %s, want done", sub.ID, sub.State)
		}
		if len(sub.AssignedWorkers) == 0 || sub.AssignedWorkers[0] != "builder" {
			t.Errorf("subtask %d workers = %v", sub.ID, sub.AssignedWorkers)
		}
	}

	metas, err := store.ListByRun(o.RunID())
	if err != nil {
		t.Fatalf("ListByRun: %v", err)
	}
	if len(metas) == 0 {
		t.Fatal("no snapshots written during run")
	}
	var sawReasoning, sawAction bool
	for _, m := range metas {
		switch m.Phase {
		case snapshot.PhasePostReasoning:
			sawReasoning = true
		case snapshot.PhasePostAction:
			sawAction = true
		}
	}
	if !sawReasoning || !sawAction {
		t.Errorf("snapshot phases incomplete: reasoning=%v action=%v", sawReasoning, sawAction)
	}
}

func TestDynamicTakesPlanningEntry(t *testing.T) {
	engine := &fakeEngine{scripts: [][]step{
		{
			{out: invoke(OpEnterPlanning, `{}`)},
		},
		{
			{out: invoke(OpDecompose, decomposeInput)},
			{out: finalAnswer("roadmap laid out")},
		},
	}}

	o := New(Config{Mode: mode.Dynamic}, Deps{
		Engine:   engine,
		Registry: testRegistry(t),
		Pool:     testPool(t, &workerEngine{}, 5),
	})

	res, err := o.Run(context.Background(), "rewrite the import pipeline")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Summary != "roadmap laid out" {
		t.Errorf("summary = %q", res.Summary)
	}

	if len(engine.calls) != 2 {
		t.Fatalf("engine opened %d times, want 2 (reopen after entry)", len(engine.calls))
	}
	if len(engine.calls[0].tools) != 1 || engine.calls[0].tools[0] != OpEnterPlanning {
		t.Errorf("initial toolset = %v, want only %s", engine.calls[0].tools, OpEnterPlanning)
	}
	second := strings.Join(engine.calls[1].tools, ",")
	if !strings.Contains(second, OpDecompose) || !strings.Contains(second, OpExecuteWorker) {
		t.Errorf("post-entry toolset = %v", engine.calls[1].tools)
	}
	// The reopened exchange replays the notebook.
	if len(engine.prompts) != 2 || !strings.Contains(engine.prompts[1], "rewrite the import pipeline") {
		t.Errorf("reentry prompt missing task context: %q", engine.prompts)
	}
}

func TestDynamicAnswersDirectly(t *testing.T) {
	engine := &fakeEngine{scripts: [][]step{{
		{out: finalAnswer("the answer is 42")},
	}}}

	o := New(Config{Mode: mode.Dynamic}, Deps{
		Engine:   engine,
		Registry: testRegistry(t),
		Pool:     testPool(t, &workerEngine{}, 5),
	})

	res, err := o.Run(context.Background(), "what is 6 times 7")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Summary != "the answer is 42" {
		t.Errorf("summary = %q", res.Summary)
	}
	if o.Notebook().Roadmap != nil {
		t.Error("a direct answer must not create a roadmap")
	}
}

func TestDisableRejectsPlanningOperations(t *testing.T) {
	engine := &fakeEngine{scripts: [][]step{{
		{out: invoke(OpDecompose, decomposeInput)},
		{out: finalAnswer("done without planning")},
	}}}

	o := New(Config{Mode: mode.Disable}, Deps{
		Engine:   engine,
		Registry: testRegistry(t),
		Pool:     testPool(t, &workerEngine{}, 5),
	})

	if _, err := o.Run(context.Background(), "quick fix"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(engine.calls[0].tools) != 0 {
		t.Errorf("disable mode exposed tools: %v", engine.calls[0].tools)
	}
	if len(engine.submits) != 1 {
		t.Fatalf("submits = %d, want 1", len(engine.submits))
	}
	tr := engine.submits[0][0]
	if !tr.IsError || !strings.Contains(tr.Content, "planning disabled") {
		t.Errorf("tool result = %+v, want planning-disabled error", tr)
	}
	if o.Notebook().Roadmap != nil {
		t.Error("disabled planning must not create a roadmap")
	}
}

// budget-exhausting worker: keeps invoking tools so the loop hits its
// iteration cap.
func churningWorker() *workerEngine {
	out := &reason.Outcome{
		Invocations: []reason.ToolInvocation{
			{ID: "c1", Name: "read_file", Input: json.RawMessage(`{"path":"x"}`)},
		},
	}
	return &workerEngine{outcomes: []*reason.Outcome{out, out, out, out, out}}
}

func TestRetrySameWorkerThenReplan(t *testing.T) {
	engine := &fakeEngine{scripts: [][]step{{
		{out: invoke(OpDecompose, `{"analysis":"a","subtasks":[{"description":"hard thing"}]}`)},
		{out: invoke(OpCreateWorker, createWorkerInput)},
		{out: invoke(OpExecuteWorker, `{"subtask_id":0,"worker":"builder"}`)},
		{out: finalAnswer("replanning needed")},
	}}}

	o := New(Config{Mode: mode.Enforced, RetryPolicy: RetrySameWorker, MaxAttempts: 2}, Deps{
		Engine:   engine,
		Registry: testRegistry(t),
		Pool:     testPool(t, churningWorker(), 1),
	})

	if _, err := o.Run(context.Background(), "do the hard thing"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	sub := o.Notebook().Roadmap.Subtasks[0]
	if sub.State != models.SubtaskPlanned {
		t.Errorf("state = %s, want planned after exhausted attempts", sub.State)
	}
	if sub.Attempt != 1 {
		t.Errorf("attempt = %d, want 1 after replan transition", sub.Attempt)
	}
	if len(sub.AssignedWorkers) != 2 {
		t.Fatalf("assigned workers = %v, want 2 attempts", sub.AssignedWorkers)
	}
	for _, w := range sub.AssignedWorkers {
		if w != "builder" {
			t.Errorf("same-worker policy dispatched to %q", w)
		}
	}
	// The engine is told to revise before re-dispatching.
	tr := engine.submits[2][0]
	if tr.IsError || !strings.Contains(tr.Content, "returned to planned") {
		t.Errorf("execute result = %+v", tr)
	}
}

func TestRetryReplacePolicyRotatesWorkers(t *testing.T) {
	secondWorker := `{
		"name": "fixer",
		"capabilities": ["read_file"],
		"system_prompt": "You fix things."
	}`
	engine := &fakeEngine{scripts: [][]step{{
		{out: invoke(OpDecompose, `{"analysis":"a","subtasks":[{"description":"hard thing"}]}`)},
		{out: invoke(OpCreateWorker, createWorkerInput)},
		{out: invoke(OpCreateWorker, secondWorker)},
		{out: invoke(OpExecuteWorker, `{"subtask_id":0,"worker":"builder"}`)},
		{out: finalAnswer("gave up")},
	}}}

	o := New(Config{Mode: mode.Enforced, RetryPolicy: RetryReplace, MaxAttempts: 2}, Deps{
		Engine:   engine,
		Registry: testRegistry(t),
		Pool:     testPool(t, churningWorker(), 1),
	})

	if _, err := o.Run(context.Background(), "do the hard thing"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	sub := o.Notebook().Roadmap.Subtasks[0]
	if len(sub.AssignedWorkers) != 2 {
		t.Fatalf("assigned workers = %v, want 2 attempts", sub.AssignedWorkers)
	}
	if sub.AssignedWorkers[0] != "builder" || sub.AssignedWorkers[1] != "fixer" {
		t.Errorf("replace policy order = %v, want [builder fixer]", sub.AssignedWorkers)
	}
}

func TestPauseAndResumeAcrossProcesses(t *testing.T) {
	dir := t.TempDir()
	store := testStore(t)
	watcher, err := signal.NewWatcher(dir)
	if err != nil {
		t.Fatalf("signal.NewWatcher: %v", err)
	}
	defer watcher.Close()

	workerScript := &workerEngine{outcomes: []*reason.Outcome{workerDone("first piece built")}}
	engine := &fakeEngine{scripts: [][]step{{
		{out: invoke(OpDecompose, decomposeInput)},
		{out: invoke(OpCreateWorker, createWorkerInput)},
		{out: invoke(OpExecuteWorker, `{"subtask_id":0,"worker":"builder"}`)},
		// Pause lands before this outcome's invocations are dispatched.
		{out: invoke(OpExecuteWorker, `{"subtask_id":1,"worker":"builder"}`), before: func() {
			if err := watcher.SendPause(); err != nil {
				t.Errorf("SendPause: %v", err)
			}
		}},
	}}}

	first := New(Config{Mode: mode.Enforced}, Deps{
		Engine:   engine,
		Registry: testRegistry(t),
		Pool:     testPool(t, workerScript, 5),
		Store:    store,
		Signals:  watcher,
	})
	res, err := first.Run(context.Background(), "migrate the billing service")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Paused {
		t.Fatal("run was not paused")
	}
	runID := first.RunID()

	// A fresh orchestrator restores the run from its last snapshot.
	resumeEngine := &fakeEngine{scripts: [][]step{{
		{out: invoke(OpExecuteWorker, `{"subtask_id":1,"worker":"builder"}`)},
		{out: finalAnswer("run complete")},
	}}}
	second := New(Config{Mode: mode.Enforced}, Deps{
		Engine:   resumeEngine,
		Registry: testRegistry(t),
		Pool:     testPool(t, workerScript, 5),
		Store:    store,
	})

	res2, err := second.Resume(context.Background(), runID)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if res2.Summary != "run complete" {
		t.Errorf("summary = %q", res2.Summary)
	}
	if len(resumeEngine.prompts) == 0 || !strings.Contains(resumeEngine.prompts[0], "subtask 1") {
		t.Errorf("resume prompt missing resume point: %q", resumeEngine.prompts)
	}

	rm := second.Notebook().Roadmap
	for _, sub := range rm.Subtasks {
		if sub.State != models.SubtaskDone {
			t.Errorf("subtask %d state = %s after resume, want done", sub.ID, sub.State)
		}
	}
	// The restored pool carries the worker created before the pause.
	if _, err := second.pool.Get("builder"); err != nil {
		t.Errorf("worker not restored: %v", err)
	}
}

func TestResumeIncompatibleSnapshotFallsThrough(t *testing.T) {
	store := testStore(t)
	payload, _ := json.Marshal(map[string]any{
		"schema_version": snapshot.SchemaVersion + 1,
		"run_id":         "old-run",
		"state":          map[string]any{},
	})
	meta := snapshot.Meta{
		ID:            "old-snap",
		RunID:         "old-run",
		Phase:         snapshot.PhasePostAction,
		SchemaVersion: snapshot.SchemaVersion + 1,
	}
	if err := store.Put(meta, payload); err != nil {
		t.Fatalf("Put: %v", err)
	}

	o := New(Config{Mode: mode.Enforced}, Deps{
		Engine:   &fakeEngine{},
		Registry: testRegistry(t),
		Pool:     testPool(t, &workerEngine{}, 5),
		Store:    store,
	})
	_, err := o.Resume(context.Background(), "old-run")
	if !errors.Is(err, snapshot.ErrIncompatibleVersion) {
		t.Errorf("Resume error = %v, want ErrIncompatibleVersion", err)
	}
}
