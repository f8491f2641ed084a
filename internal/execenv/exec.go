// Package execenv starts worker processes that receive their handoff
// record on an inherited pipe.
package execenv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	dserrors "github.com/systmms/dsconf/internal/errors"
	"github.com/systmms/dsconf/internal/logging"
)

// HandoffFD is the descriptor a spawned worker reads its handoff from.
const HandoffFD = 3

// Executor runs worker commands
type Executor struct {
	logger *logging.Logger
}

// New creates a new executor
func New(logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Executor{
		logger: logger,
	}
}

// SpawnOptions configures a worker process
type SpawnOptions struct {
	Command     []string          // Command and arguments to run
	Handoff     []byte            // Written to the child's descriptor 3
	Environment map[string]string // Set over the inherited environment
	Timeout     int               // Timeout in seconds (0 for no timeout)
	Stdout      io.Writer         // os.Stdout when nil
	Stderr      io.Writer         // os.Stderr when nil
	Redact      []string          // Values hidden from logs and errors
}

// Spawn starts the command, writes the handoff to its descriptor 3 and
// waits for it to exit. A non-zero exit is a CommandError carrying the
// child's exit code.
func (e *Executor) Spawn(ctx context.Context, options SpawnOptions) error {
	if err := ValidateCommand(options.Command); err != nil {
		return err
	}

	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(options.Timeout)*time.Second)
		defer cancel()
	}

	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("failed to create handoff pipe: %w", err)
	}

	cmd := exec.CommandContext(ctx, options.Command[0], options.Command[1:]...)
	cmd.Env = buildEnvironment(options.Environment)
	cmd.Stdout = orDefault(options.Stdout, os.Stdout)
	cmd.Stderr = orDefault(options.Stderr, os.Stderr)
	cmd.Stdin = os.Stdin
	cmd.ExtraFiles = []*os.File{r}

	line := logging.Redact(strings.Join(options.Command, " "), options.Redact)
	e.logger.Debug("Spawning worker: %s", line)

	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return dserrors.CommandError{
			Command:    line,
			Message:    err.Error(),
			Suggestion: "Check that the command is executable",
		}
	}
	_ = r.Close()

	written := make(chan error, 1)
	go func() {
		_, err := w.Write(options.Handoff)
		_ = w.Close()
		written <- err
	}()

	waitErr := cmd.Wait()
	if err := <-written; err != nil {
		e.logger.Debug("Worker did not read its handoff: %v", err)
	}

	if waitErr != nil {
		var exitError *exec.ExitError
		if errors.As(waitErr, &exitError) {
			return dserrors.CommandError{
				Command:    line,
				ExitCode:   exitError.ExitCode(),
				Message:    "worker exited with an error",
				Suggestion: "Check the command output above for details",
			}
		}
		return dserrors.CommandError{
			Command:    line,
			Message:    waitErr.Error(),
			Suggestion: "Check the command output above for details",
		}
	}
	return nil
}

func orDefault(w io.Writer, def io.Writer) io.Writer {
	if w == nil {
		return def
	}
	return w
}

// buildEnvironment creates the environment slice for the child process
func buildEnvironment(vars map[string]string) []string {
	envMap := make(map[string]string)
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			envMap[parts[0]] = parts[1]
		}
	}

	for key, value := range vars {
		envMap[key] = value
	}

	result := make([]string, 0, len(envMap))
	for key, value := range envMap {
		result = append(result, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(result)
	return result
}

// PrintValues writes name=value lines with masked values, sorted by name.
func PrintValues(w io.Writer, values map[string]string) {
	if len(values) == 0 {
		fmt.Fprintln(w, "No values resolved")
		return
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fmt.Fprintf(w, "  %s=%s\n", key, MaskValue(values[key]))
	}
}

// MaskValue masks a secret value for display
func MaskValue(value string) string {
	if len(value) == 0 {
		return "(empty)"
	}

	// Show first and last characters for very short values
	if len(value) <= 3 {
		return strings.Repeat("*", len(value))
	}

	if len(value) <= 8 {
		return value[:1] + strings.Repeat("*", len(value)-2) + value[len(value)-1:]
	}

	return value[:3] + strings.Repeat("*", 8) + value[len(value)-2:]
}

// ValidateCommand checks that a command was given and is on PATH
func ValidateCommand(command []string) error {
	if len(command) == 0 {
		return dserrors.UserError{
			Message:    "No command specified",
			Suggestion: "Provide a command after -- (e.g., dsconf spawn -- dsconf worker)",
		}
	}

	if _, err := exec.LookPath(command[0]); err != nil {
		return dserrors.WrapCommandNotFound(command[0], err)
	}
	return nil
}
