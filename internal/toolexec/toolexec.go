// Package toolexec executes the builtin worker capabilities against the
// local filesystem and shell. It implements reason.ToolRunner, so both
// workers and the control loop share one execution path.
package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxResultBytes caps tool output returned to the engine.
const maxResultBytes = 64 * 1024

// Runner executes capability invocations rooted at a working directory.
type Runner struct {
	root   string
	shell  CommandRunner
	logger *zap.Logger
}

// New creates a runner rooted at dir. Relative paths in tool input are
// resolved against it; paths escaping the root are rejected.
func New(dir string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{root: dir, shell: NewShell(), logger: logger}
}

// FileExists reports whether a worker-claimed artifact is actually on
// disk. Used to drop phantom entries from worker responses.
func (r *Runner) FileExists(path string) bool {
	resolved, err := r.resolve(path)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(resolved)
	return statErr == nil
}

// Invoke executes one capability invocation and returns its output.
func (r *Runner) Invoke(ctx context.Context, name string, input json.RawMessage) (string, error) {
	r.logger.Debug("tool invoked", zap.String("tool", name))
	switch name {
	case "read_file":
		return r.readFile(input)
	case "write_file":
		return r.writeFile(input)
	case "edit_file":
		return r.editFile(input)
	case "list_directory":
		return r.listDirectory(input)
	case "search_files":
		return r.searchFiles(input)
	case "run_shell":
		return r.runShell(ctx, input)
	case "web_search":
		return "", fmt.Errorf("web_search is not configured in this environment")
	default:
		return "", fmt.Errorf("no executor for capability %q", name)
	}
}

// resolve maps a tool-supplied path into the working directory.
func (r *Runner) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is empty")
	}
	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(r.root, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(r.root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q escapes the working directory", path)
	}
	return p, nil
}

func (r *Runner) readFile(input json.RawMessage) (string, error) {
	var args struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("parse read_file input: %w", err)
	}
	path, err := r.resolve(args.Path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return clamp(string(data)), nil
}

func (r *Runner) writeFile(input json.RawMessage) (string, error) {
	var args struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("parse write_file input: %w", err)
	}
	path, err := r.resolve(args.Path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(args.Content), 0644); err != nil {
		return "", err
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(args.Content), args.Path), nil
}

func (r *Runner) editFile(input json.RawMessage) (string, error) {
	var args struct {
		Path    string `json:"path"`
		OldText string `json:"old_text"`
		NewText string `json:"new_text"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("parse edit_file input: %w", err)
	}
	path, err := r.resolve(args.Path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	content := string(data)
	switch strings.Count(content, args.OldText) {
	case 0:
		return "", fmt.Errorf("old_text not found in %s", args.Path)
	case 1:
	default:
		return "", fmt.Errorf("old_text is not unique in %s", args.Path)
	}
	content = strings.Replace(content, args.OldText, args.NewText, 1)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", err
	}
	return fmt.Sprintf("edited %s", args.Path), nil
}

func (r *Runner) listDirectory(input json.RawMessage) (string, error) {
	var args struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("parse list_directory input: %w", err)
	}
	path := args.Path
	if path == "" {
		path = "."
	}
	resolved, err := r.resolve(path)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		lines = append(lines, name)
	}
	sort.Strings(lines)
	if len(lines) == 0 {
		return "(empty directory)", nil
	}
	return strings.Join(lines, "\n"), nil
}

func (r *Runner) searchFiles(input json.RawMessage) (string, error) {
	var args struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("parse search_files input: %w", err)
	}
	re, err := regexp.Compile(args.Pattern)
	if err != nil {
		return "", fmt.Errorf("invalid pattern: %w", err)
	}
	start := args.Path
	if start == "" {
		start = "."
	}
	resolved, err := r.resolve(start)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	err = filepath.WalkDir(resolved, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		rel, _ := filepath.Rel(r.root, path)
		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				fmt.Fprintf(&b, "%s:%d: %s\n", rel, i+1, strings.TrimSpace(line))
				if b.Len() > maxResultBytes {
					return filepath.SkipAll
				}
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if b.Len() == 0 {
		return "no matches", nil
	}
	return clamp(b.String()), nil
}

func (r *Runner) runShell(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Command   string `json:"command"`
		TimeoutMS int    `json:"timeout_ms"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("parse run_shell input: %w", err)
	}
	if args.Command == "" {
		return "", fmt.Errorf("command is empty")
	}
	if args.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(args.TimeoutMS)*time.Millisecond)
		defer cancel()
	}
	output, err := r.shell.RunShell(ctx, r.root, args.Command)
	if err != nil {
		// Include captured output so the engine sees what failed.
		return "", fmt.Errorf("%s: %s", err, clamp(string(output)))
	}
	if len(output) == 0 {
		return "(no output)", nil
	}
	return clamp(string(output)), nil
}

func clamp(s string) string {
	if len(s) <= maxResultBytes {
		return s
	}
	return s[:maxResultBytes] + "\n... (truncated)"
}
