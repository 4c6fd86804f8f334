// Package notebook holds the mutable session context: user input history,
// the latest decomposition analysis, and the generated-artifact map.
// The notebook is an audit trail; no operation removes history.
package notebook

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/planweave/planweave/pkg/models"
)

// Notebook is the session context shared between the orchestrator and the
// roadmap manager. Only those two mutate it: the roadmap manager owns the
// Roadmap field, the orchestrator owns UserInput and Files. Workers never
// write here directly.
type Notebook struct {
	// CreatedAt is when the session started.
	CreatedAt time.Time `json:"created_at"`
	// UserInput is the append-only ordered history of user messages.
	UserInput []string `json:"user_input"`
	// Analysis is the latest decomposition rationale, overwritten each time.
	Analysis string `json:"analysis,omitempty"`
	// Files maps generated file paths to descriptions, last-write-wins.
	Files map[string]string `json:"files,omitempty"`
	// Roadmap is the current decomposition, owned by the roadmap manager.
	Roadmap *models.Roadmap `json:"roadmap,omitempty"`
	// TaskDir is the per-task working directory once planning mode is entered.
	TaskDir string `json:"task_dir,omitempty"`
}

// New creates an empty notebook.
func New() *Notebook {
	return &Notebook{
		CreatedAt: time.Now(),
		Files:     make(map[string]string),
	}
}

// RecordUserInput appends a user message to the history.
func (n *Notebook) RecordUserInput(text string) {
	n.UserInput = append(n.UserInput, text)
}

// RecordAnalysis overwrites the single current analysis slot.
func (n *Notebook) RecordAnalysis(text string) {
	n.Analysis = text
}

// MergeGeneratedFiles overwrites keys present in the argument and
// preserves all others.
func (n *Notebook) MergeGeneratedFiles(files map[string]string) {
	if n.Files == nil {
		n.Files = make(map[string]string, len(files))
	}
	for path, desc := range files {
		n.Files[path] = desc
	}
}

// SetRoadmap replaces the roadmap reference. Called only by the roadmap
// manager, which is the sole writer of roadmap state.
func (n *Notebook) SetRoadmap(r *models.Roadmap) {
	n.Roadmap = r
}

// ContextForReasoning composes a read-only view of the session for the
// reasoning engine: input history, current roadmap state, and the file
// listing. The engine sees a rendering, never the notebook itself.
func (n *Notebook) ContextForReasoning() string {
	var b strings.Builder

	b.WriteString("## All User Input\n")
	for i, input := range n.UserInput {
		fmt.Fprintf(&b, "%d. %s\n", i+1, input)
	}

	b.WriteString("\n## Session Context\n")
	ctx := struct {
		Analysis string          `json:"analysis,omitempty"`
		Roadmap  *models.Roadmap `json:"roadmap,omitempty"`
		TaskDir  string          `json:"task_dir,omitempty"`
	}{
		Analysis: n.Analysis,
		Roadmap:  n.Roadmap,
		TaskDir:  n.TaskDir,
	}
	encoded, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		encoded = []byte("{}")
	}
	b.WriteString("```json\n")
	b.Write(encoded)
	b.WriteString("\n```\n")

	if len(n.Files) > 0 {
		b.WriteString("\n## Generated Files\n")
		paths := make([]string, 0, len(n.Files))
		for p := range n.Files {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			fmt.Fprintf(&b, "- %s: %s\n", p, n.Files[p])
		}
	}

	return b.String()
}

// Summary renders the final answer material once every subtask is done.
func (n *Notebook) Summary() string {
	var b strings.Builder
	if n.Roadmap != nil {
		fmt.Fprintf(&b, "Task: %s\n", n.Roadmap.OriginalTask)
		fmt.Fprintf(&b, "Subtasks completed: %d\n", len(n.Roadmap.Subtasks))
	}
	if len(n.Files) > 0 {
		b.WriteString("Artifacts:\n")
		paths := make([]string, 0, len(n.Files))
		for p := range n.Files {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			fmt.Fprintf(&b, "  %s: %s\n", p, n.Files[p])
		}
	}
	return b.String()
}
