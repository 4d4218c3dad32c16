// Package shelltest provides a scripted shell.Runner for tests.
package shelltest

import (
	"context"
	"strings"
	"sync"

	"github.com/provisionkit/provision/pkg/shell"
)

// Response is what a FakeRunner returns for a matching command line.
type Response struct {
	Output string
	Err    error
}

// FakeRunner records every command and answers from Responses, keyed by the
// command line prefix. Unmatched commands succeed with empty output.
type FakeRunner struct {
	Responses map[string]Response

	mu       sync.Mutex
	Commands []shell.Command
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{Responses: map[string]Response{}}
}

func (r *FakeRunner) Run(ctx context.Context, cmd shell.Command) error {
	_, err := r.Output(ctx, cmd)
	return err
}

func (r *FakeRunner) Output(ctx context.Context, cmd shell.Command) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Commands = append(r.Commands, cmd)

	line := cmd.String()
	best := ""
	for prefix := range r.Responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return "", nil
	}
	resp := r.Responses[best]
	return resp.Output, resp.Err
}

// Lines returns the recorded command lines.
func (r *FakeRunner) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := make([]string, len(r.Commands))
	for i, c := range r.Commands {
		lines[i] = c.String()
	}
	return lines
}
