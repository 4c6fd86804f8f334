package pool

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/planweave/planweave/internal/reason"
	"github.com/planweave/planweave/internal/registry"
	"github.com/planweave/planweave/pkg/models"
)

// scriptedEngine replays a fixed sequence of outcomes per exchange.
type scriptedEngine struct {
	outcomes []*reason.Outcome
}

func (s *scriptedEngine) Open(system string, tools []registry.Capability) reason.Exchange {
	return &scriptedExchange{outcomes: s.outcomes}
}

type scriptedExchange struct {
	outcomes []*reason.Outcome
	pos      int
}

func (s *scriptedExchange) next() (*reason.Outcome, error) {
	if s.pos >= len(s.outcomes) {
		return nil, errors.New("script exhausted")
	}
	out := s.outcomes[s.pos]
	s.pos++
	return out, nil
}

func (s *scriptedExchange) Prompt(ctx context.Context, text string) (*reason.Outcome, error) {
	return s.next()
}

func (s *scriptedExchange) Submit(ctx context.Context, results []reason.ToolResult) (*reason.Outcome, error) {
	return s.next()
}

func noopRunner() reason.ToolRunner {
	return reason.RunnerFunc(func(ctx context.Context, name string, input json.RawMessage) (string, error) {
		return "ok", nil
	})
}

func newTestManager(t *testing.T, engine reason.Engine) *Manager {
	t.Helper()
	reg, err := registry.New(registry.Builtin()...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return NewManager(ManagerConfig{
		Registry:        reg,
		Engine:          engine,
		Runner:          noopRunner(),
		IterationBudget: 5,
	})
}

func testWorker(name string) models.WorkerInfo {
	return models.WorkerInfo{
		Name:         name,
		Capabilities: []string{"read_file", "write_file"},
		SystemPrompt: "You write reports.",
		Description:  "report writer",
	}
}

func TestCreateWorker(t *testing.T) {
	m := newTestManager(t, &scriptedEngine{})

	if err := m.CreateWorker(testWorker("writer"), false); err != nil {
		t.Fatalf("CreateWorker failed: %v", err)
	}

	info, err := m.Get("writer")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if info.Origin != models.OriginDynamic {
		t.Errorf("origin = %s, want dynamic default", info.Origin)
	}
}

func TestCreateWorker_DuplicateName(t *testing.T) {
	m := newTestManager(t, &scriptedEngine{})
	m.CreateWorker(testWorker("writer"), false)

	err := m.CreateWorker(testWorker("writer"), false)
	if !errors.Is(err, ErrWorkerExists) {
		t.Errorf("err = %v, want ErrWorkerExists", err)
	}

	// Explicit overwrite is allowed.
	replacement := testWorker("writer")
	replacement.Description = "rewritten"
	if err := m.CreateWorker(replacement, true); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	info, _ := m.Get("writer")
	if info.Description != "rewritten" {
		t.Errorf("overwrite did not replace the record")
	}
}

func TestCreateWorker_UnknownCapability(t *testing.T) {
	m := newTestManager(t, &scriptedEngine{})

	w := testWorker("writer")
	w.Capabilities = append(w.Capabilities, "time_travel")
	err := m.CreateWorker(w, false)
	if !errors.Is(err, registry.ErrUnknownCapability) {
		t.Errorf("err = %v, want ErrUnknownCapability", err)
	}
}

func TestShowPool_CreationOrder(t *testing.T) {
	m := newTestManager(t, &scriptedEngine{})
	for _, name := range []string{"gamma", "alpha", "beta"} {
		m.CreateWorker(testWorker(name), false)
	}

	infos := m.ShowPool()
	want := []string{"gamma", "alpha", "beta"}
	if len(infos) != 3 {
		t.Fatalf("pool size = %d, want 3", len(infos))
	}
	for i := range want {
		if infos[i].Name != want[i] {
			t.Errorf("pool[%d] = %q, want %q", i, infos[i].Name, want[i])
		}
	}
}

func TestExecute_UnknownWorker(t *testing.T) {
	m := newTestManager(t, &scriptedEngine{})
	st := &models.Subtask{Spec: models.SubtaskSpec{Description: "d"}}

	_, err := m.Execute(context.Background(), st, "ghost", "do it")
	if !errors.Is(err, ErrWorkerNotFound) {
		t.Errorf("err = %v, want ErrWorkerNotFound", err)
	}
}

func TestExecute_TaskDone(t *testing.T) {
	engine := &scriptedEngine{outcomes: []*reason.Outcome{
		{Text: `{"progress_summary":"wrote the report","next_step":"","generated_files":{"out.md":"the report"},"task_done":true}`, Done: true},
	}}
	m := newTestManager(t, engine)
	m.CreateWorker(testWorker("writer"), false)

	st := &models.Subtask{Spec: models.SubtaskSpec{Description: "write"}}
	resp, err := m.Execute(context.Background(), st, "writer", "write the report")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !resp.TaskDone {
		t.Error("TaskDone = false, want true")
	}
	if resp.GeneratedFiles["out.md"] != "the report" {
		t.Errorf("GeneratedFiles = %v", resp.GeneratedFiles)
	}
}

func TestExecute_MalformedPayload(t *testing.T) {
	engine := &scriptedEngine{outcomes: []*reason.Outcome{
		{Text: `{"progress_summary":"did things"}`, Done: true},
	}}
	m := newTestManager(t, engine)
	m.CreateWorker(testWorker("writer"), false)

	st := &models.Subtask{Spec: models.SubtaskSpec{Description: "write"}}
	_, err := m.Execute(context.Background(), st, "writer", "write")
	if !errors.Is(err, ErrParse) {
		t.Errorf("err = %v, want ErrParse", err)
	}
}

func TestExecute_BudgetExceededYieldsSyntheticResponse(t *testing.T) {
	outcomes := make([]*reason.Outcome, 0, 10)
	for i := 0; i < 10; i++ {
		outcomes = append(outcomes, &reason.Outcome{
			Invocations: []reason.ToolInvocation{
				{ID: "t", Name: "read_file", Input: json.RawMessage(`{}`)},
			},
		})
	}
	m := newTestManager(t, &scriptedEngine{outcomes: outcomes})
	m.CreateWorker(testWorker("writer"), false)

	st := &models.Subtask{Spec: models.SubtaskSpec{Description: "write"}}
	resp, err := m.Execute(context.Background(), st, "writer", "write")
	if !errors.Is(err, reason.ErrBudgetExceeded) {
		t.Fatalf("err = %v, want ErrBudgetExceeded", err)
	}
	if resp == nil || resp.TaskDone {
		t.Error("budget breach must yield a synthetic not-done response")
	}
}

func TestExecute_DropsPhantomFiles(t *testing.T) {
	engine := &scriptedEngine{outcomes: []*reason.Outcome{
		{Text: `{"progress_summary":"done","generated_files":{"real.md":"exists","ghost.md":"missing"},"task_done":true}`, Done: true},
	}}
	reg, _ := registry.New(registry.Builtin()...)
	m := NewManager(ManagerConfig{
		Registry:        reg,
		Engine:          engine,
		Runner:          noopRunner(),
		IterationBudget: 5,
		CheckFile:       func(path string) bool { return path == "real.md" },
	})
	m.CreateWorker(testWorker("writer"), false)

	st := &models.Subtask{Spec: models.SubtaskSpec{Description: "write"}}
	resp, err := m.Execute(context.Background(), st, "writer", "write")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if _, ok := resp.GeneratedFiles["ghost.md"]; ok {
		t.Error("phantom file survived the existence check")
	}
	if _, ok := resp.GeneratedFiles["real.md"]; !ok {
		t.Error("real file was dropped")
	}
	if len(resp.DroppedFiles) != 1 || resp.DroppedFiles[0] != "ghost.md" {
		t.Errorf("DroppedFiles = %v, want [ghost.md]", resp.DroppedFiles)
	}
}

func TestParseWorkerResponse(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		wantErr bool
		done    bool
	}{
		{"clean json", `{"progress_summary":"x","task_done":true}`, false, true},
		{"surrounded by prose", "Here you go:\n{\"progress_summary\":\"x\",\"task_done\":false}\nDone.", false, false},
		{"missing task_done", `{"progress_summary":"x"}`, true, false},
		{"no json at all", "I finished everything", true, false},
		{"broken json", `{"task_done": tru`, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ParseWorkerResponse(tt.output)
			if tt.wantErr {
				if !errors.Is(err, ErrParse) {
					t.Errorf("err = %v, want ErrParse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.TaskDone != tt.done {
				t.Errorf("TaskDone = %v, want %v", resp.TaskDone, tt.done)
			}
		})
	}
}

func TestRebuild(t *testing.T) {
	m := newTestManager(t, &scriptedEngine{})

	infos := []models.WorkerInfo{
		{Name: "a", Capabilities: []string{"read_file"}, Origin: models.OriginBuiltin},
		{Name: "b", Capabilities: []string{"write_file"}, Origin: models.OriginDynamic},
	}
	if err := m.Rebuild(infos); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	pool := m.ShowPool()
	if len(pool) != 2 || pool[0].Name != "a" || pool[1].Name != "b" {
		t.Errorf("rebuilt pool = %v", pool)
	}

	// Stale capability names fail the rebuild.
	bad := []models.WorkerInfo{{Name: "c", Capabilities: []string{"vanished_tool"}}}
	if err := m.Rebuild(bad); !errors.Is(err, registry.ErrUnknownCapability) {
		t.Errorf("err = %v, want ErrUnknownCapability", err)
	}
}

func TestLoadProfiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workers.yaml")
	content := `workers:
  - name: researcher
    description: Gathers information.
    system_prompt: You research topics thoroughly.
    capabilities: [read_file, web_search]
  - name: scribe
    description: Writes documents.
    system_prompt: You write clear prose.
    capabilities: [read_file, write_file]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write profiles: %v", err)
	}

	m := newTestManager(t, &scriptedEngine{})
	if err := m.LoadProfiles(path); err != nil {
		t.Fatalf("LoadProfiles failed: %v", err)
	}

	infos := m.ShowPool()
	if len(infos) != 2 {
		t.Fatalf("pool size = %d, want 2", len(infos))
	}
	for _, info := range infos {
		if info.Origin != models.OriginBuiltin {
			t.Errorf("worker %s origin = %s, want builtin", info.Name, info.Origin)
		}
	}
}
