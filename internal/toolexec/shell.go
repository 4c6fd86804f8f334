package toolexec

import (
	"context"
	"os/exec"
)

// CommandRunner abstracts command execution so tests can stub the shell.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr output.
	// The working directory is set to workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) ([]byte, error)

	// RunShell executes a shell command through "sh -c".
	RunShell(ctx context.Context, workDir string, command string) ([]byte, error)
}

// Shell implements CommandRunner using os/exec.
type Shell struct{}

// NewShell creates a Shell.
func NewShell() *Shell {
	return &Shell{}
}

// Run executes a command and returns combined stdout/stderr output.
func (s *Shell) Run(ctx context.Context, workDir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}
	return cmd.CombinedOutput()
}

// RunShell executes a shell command through "sh -c".
func (s *Shell) RunShell(ctx context.Context, workDir string, command string) ([]byte, error) {
	return s.Run(ctx, workDir, "sh", "-c", command)
}
