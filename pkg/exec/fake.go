package exec

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeResult is the canned outcome of one command line.
type FakeResult struct {
	Stdout string
	Stderr string
	Err    error
}

// FakeExecutor is an in-memory CommandExecutor for tests. Commands are
// matched on their full "name arg1 arg2" line.
type FakeExecutor struct {
	mu        sync.Mutex
	installed map[string]bool
	results   map[string]FakeResult
	calls     []string
}

// NewFakeExecutor returns a FakeExecutor where the named binaries are on
// PATH.
func NewFakeExecutor(installed ...string) *FakeExecutor {
	f := &FakeExecutor{
		installed: make(map[string]bool),
		results:   make(map[string]FakeResult),
	}
	for _, name := range installed {
		f.installed[name] = true
	}
	return f
}

// On registers the result for a command line.
func (f *FakeExecutor) On(line string, result FakeResult) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[line] = result
	return f
}

// Calls returns the command lines executed so far.
func (f *FakeExecutor) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// LookPath implements CommandExecutor.
func (f *FakeExecutor) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.installed[name] {
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	return "/usr/bin/" + name, nil
}

// Execute implements CommandExecutor.
func (f *FakeExecutor) Execute(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, line)

	r, ok := f.results[line]
	if !ok {
		return nil, nil, fmt.Errorf("unexpected command: %s", line)
	}
	return []byte(r.Stdout), []byte(r.Stderr), r.Err
}
