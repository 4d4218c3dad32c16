// Package provisiontest provides in-memory collaborators for planner tests.
package provisiontest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/provisionkit/provision/pkg/provision"
)

// Call is one recorded collaborator invocation.
type Call struct {
	Kind string
	Args []string

	Shell  *provision.ShellCommand
	Script *provision.ScriptRequest
}

func (c Call) String() string {
	return c.Kind + " " + strings.Join(c.Args, " ")
}

// Recorder implements every collaborator interface and records calls in order.
// Errors maps a call kind ("clone", "update", "copy", "shell", "script") to the
// error returned by that collaborator.
type Recorder struct {
	Errors map[string]error

	mu    sync.Mutex
	calls []Call
}

func NewRecorder() *Recorder {
	return &Recorder{Errors: map[string]error{}}
}

// Planner returns a planner wired entirely to r.
func (r *Recorder) Planner() *provision.Planner {
	return &provision.Planner{
		Source:  r,
		Copier:  r,
		Shell:   r,
		Scripts: r.ScriptRunner(),
	}
}

func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Strings returns the recorded calls rendered with Call.String.
func (r *Recorder) Strings() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

func (r *Recorder) Clone(ctx context.Context, uri string, dir string) error {
	return r.record(Call{Kind: "clone", Args: []string{uri, dir}})
}

func (r *Recorder) Update(ctx context.Context, dir string) error {
	return r.record(Call{Kind: "update", Args: []string{dir}})
}

func (r *Recorder) Copy(src string, dest string) error {
	return r.record(Call{Kind: "copy", Args: []string{src, dest}})
}

func (r *Recorder) Run(ctx context.Context, cmd provision.ShellCommand) error {
	return r.record(Call{Kind: "shell", Args: cmd.Commands, Shell: &cmd})
}

// Scripts returns a ScriptRunner that records into r. Recorder cannot
// implement both Run methods itself.
func (r *Recorder) ScriptRunner() provision.ScriptRunner {
	return scriptRunner{r}
}

type scriptRunner struct {
	r *Recorder
}

func (s scriptRunner) Run(ctx context.Context, req provision.ScriptRequest) error {
	return s.r.record(Call{Kind: "script", Args: []string{req.URI, req.CUDATag}, Script: &req})
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	if err, ok := r.Errors[c.Kind]; ok && err != nil {
		return fmt.Errorf("%s: %w", c.Kind, err)
	}
	return nil
}
