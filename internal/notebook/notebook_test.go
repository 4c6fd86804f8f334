package notebook

import (
	"strings"
	"testing"

	"github.com/planweave/planweave/pkg/models"
)

func TestRecordUserInput_AppendsInOrder(t *testing.T) {
	n := New()
	n.RecordUserInput("first")
	n.RecordUserInput("second")

	if len(n.UserInput) != 2 {
		t.Fatalf("UserInput len = %d, want 2", len(n.UserInput))
	}
	if n.UserInput[0] != "first" || n.UserInput[1] != "second" {
		t.Errorf("UserInput = %v, want [first second]", n.UserInput)
	}
}

func TestRecordAnalysis_Overwrites(t *testing.T) {
	n := New()
	n.RecordAnalysis("v1")
	n.RecordAnalysis("v2")

	if n.Analysis != "v2" {
		t.Errorf("Analysis = %q, want %q", n.Analysis, "v2")
	}
}

func TestMergeGeneratedFiles(t *testing.T) {
	n := New()
	n.MergeGeneratedFiles(map[string]string{
		"a.md": "draft",
		"b.md": "notes",
	})
	n.MergeGeneratedFiles(map[string]string{
		"a.md": "final",
		"c.md": "extra",
	})

	if len(n.Files) != 3 {
		t.Fatalf("Files len = %d, want 3", len(n.Files))
	}
	if n.Files["a.md"] != "final" {
		t.Errorf("a.md = %q, want last-write-wins %q", n.Files["a.md"], "final")
	}
	if n.Files["b.md"] != "notes" {
		t.Errorf("b.md = %q, should be preserved", n.Files["b.md"])
	}
}

func TestContextForReasoning_ComposesSections(t *testing.T) {
	n := New()
	n.RecordUserInput("write a report")
	n.RecordAnalysis("two phases")
	n.SetRoadmap(&models.Roadmap{OriginalTask: "write a report"})
	n.MergeGeneratedFiles(map[string]string{"out.md": "the report"})

	view := n.ContextForReasoning()

	for _, want := range []string{
		"## All User Input",
		"write a report",
		"## Session Context",
		"two phases",
		"## Generated Files",
		"out.md",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("ContextForReasoning missing %q", want)
		}
	}
}

func TestContextForReasoning_ExcludesRawFileContent(t *testing.T) {
	n := New()
	view := n.ContextForReasoning()
	if !strings.Contains(view, "## All User Input") {
		t.Error("empty notebook should still render the input section")
	}
	if strings.Contains(view, "## Generated Files") {
		t.Error("file section should be omitted when no files exist")
	}
}
