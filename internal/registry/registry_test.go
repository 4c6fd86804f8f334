package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNew_RejectsDuplicates(t *testing.T) {
	_, err := New(
		Capability{Name: "read_file"},
		Capability{Name: "read_file"},
	)
	if err == nil {
		t.Fatal("expected error for duplicate capability name")
	}
}

func TestNew_RejectsEmptyName(t *testing.T) {
	_, err := New(Capability{Description: "nameless"})
	if err == nil {
		t.Fatal("expected error for empty capability name")
	}
}

func TestLookup(t *testing.T) {
	r, err := New(Builtin()...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	c, err := r.Lookup("read_file")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if c.Name != "read_file" {
		t.Errorf("Lookup name = %q, want %q", c.Name, "read_file")
	}

	_, err = r.Lookup("teleport")
	if !errors.Is(err, ErrUnknownCapability) {
		t.Errorf("Lookup unknown = %v, want ErrUnknownCapability", err)
	}
}

func TestNames_PreservesRegistrationOrder(t *testing.T) {
	r, err := New(
		Capability{Name: "c"},
		Capability{Name: "a"},
		Capability{Name: "b"},
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	names := r.Names()
	want := []string{"c", "a", "b"}
	if len(names) != len(want) {
		t.Fatalf("Names len = %d, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestSubset(t *testing.T) {
	r, err := New(Builtin()...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	subset, err := r.Subset([]string{"read_file", "write_file"})
	if err != nil {
		t.Fatalf("Subset failed: %v", err)
	}
	if len(subset) != 2 {
		t.Errorf("Subset len = %d, want 2", len(subset))
	}

	_, err = r.Subset([]string{"read_file", "levitate"})
	if !errors.Is(err, ErrUnknownCapability) {
		t.Errorf("Subset with unknown = %v, want ErrUnknownCapability", err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.yaml")
	content := `capabilities:
  - name: fetch_url
    description: Fetch a URL and return the body.
    properties:
      url:
        type: string
        description: URL to fetch
    required: [url]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	caps, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if len(caps) != 1 {
		t.Fatalf("got %d capabilities, want 1", len(caps))
	}
	if caps[0].Name != "fetch_url" {
		t.Errorf("capability name = %q, want fetch_url", caps[0].Name)
	}
	if len(caps[0].Required) != 1 || caps[0].Required[0] != "url" {
		t.Errorf("required = %v, want [url]", caps[0].Required)
	}
}

func TestLoadManifest_MissingName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.yaml")
	content := "capabilities:\n  - description: no name here\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	if _, err := LoadManifest(path); err == nil {
		t.Error("expected error for manifest entry without name")
	}
}

func TestFromManifest_BuiltinOnly(t *testing.T) {
	r, err := FromManifest("")
	if err != nil {
		t.Fatalf("FromManifest failed: %v", err)
	}
	if !r.Has("run_shell") {
		t.Error("builtin registry should include run_shell")
	}
}
