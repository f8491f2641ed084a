// Package exec provides abstractions for command execution.
// Cloud stores and machine identification shell out to platform tools
// (aws, az, ioreg, wmic, kenv); this package lets tests replace them.
package exec

import (
	"bytes"
	"context"
	"os/exec"
)

// CommandExecutor runs external commands.
type CommandExecutor interface {
	// LookPath reports where name would be found on PATH.
	LookPath(name string) (string, error)
	// Execute runs a command with the given context and arguments.
	// Returns stdout, stderr, and any error that occurred.
	Execute(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)
}

// RealCommandExecutor executes actual commands using os/exec.
type RealCommandExecutor struct{}

// LookPath searches PATH for name.
func (r *RealCommandExecutor) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Execute runs an actual command.
func (r *RealCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// DefaultExecutor returns the standard production executor.
func DefaultExecutor() CommandExecutor {
	return &RealCommandExecutor{}
}
