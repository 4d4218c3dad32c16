// Package provision executes provisioning plans.
//
// A Planner walks a plan's steps in order. Before each step it fetches the
// environment facts, evaluates the step's guard, resolves the CUDA tag and
// dispatches to the collaborator that performs the step. The first failing
// step aborts the run.
package provision

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/provisionkit/provision/pkg/cuda"
	perrors "github.com/provisionkit/provision/pkg/errors"
	"github.com/provisionkit/provision/pkg/facts"
	"github.com/provisionkit/provision/pkg/guard"
	"github.com/provisionkit/provision/pkg/plan"
	"github.com/provisionkit/provision/pkg/util/console"
)

type Planner struct {
	Source  SourceControl
	Copier  FileCopier
	Shell   ShellExecutor
	Scripts ScriptRunner

	// Selector picks the CUDA tag substituted into shell steps. The zero value
	// always selects cuda.DefaultTag.
	Selector cuda.Selector
	// Self replaces {{self}} in shell commands.
	Self string

	mu      sync.Mutex
	state   State
	results []StepResult
}

// State returns a snapshot of the planner's state.
func (p *Planner) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Results returns one entry per step reached so far.
func (p *Planner) Results() []StepResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StepResult, len(p.results))
	copy(out, p.results)
	return out
}

// Execute runs pl against the facts returned by provider. It returns nil or a
// *ProvisioningError. A planner runs a single plan; later calls return ErrNotIdle.
func (p *Planner) Execute(ctx context.Context, pl *plan.Plan, provider facts.Provider) error {
	p.mu.Lock()
	if p.state.Phase != Idle {
		p.mu.Unlock()
		return ErrNotIdle
	}
	if pl.Len() == 0 {
		p.state = State{Phase: Succeeded}
		p.mu.Unlock()
		return nil
	}
	if perr := p.checkCollaborators(pl); perr != nil {
		p.state = State{Phase: Failed, Step: perr.Index, Cause: perr}
		p.mu.Unlock()
		return perr
	}
	p.state = State{Phase: Running}
	p.mu.Unlock()

	total := pl.Len()
	for i, step := range pl.Steps {
		p.setStep(i)
		console.Step(i, total, string(step.Method())+" "+step.Title())

		f := provider(ctx)
		result := StepResult{Index: i, Method: string(step.Method()), Title: step.Title()}

		if !guard.Eval(step.Guard(), f) {
			console.Infof("Skipping, %s is false", guard.Describe(step.Guard()))
			result.Outcome = OutcomeSkipped
			p.record(result)
			continue
		}

		start := time.Now()
		tag, err := p.dispatch(ctx, step, f)
		result.CUDATag = tag
		result.Duration = time.Since(start)
		if err != nil {
			result.Outcome = OutcomeFailed
			p.record(result)
			perr := newProvisioningError(i, step, err)
			p.fail(i, perr)
			return perr
		}
		result.Outcome = OutcomeRan
		p.record(result)
	}

	p.mu.Lock()
	p.state = State{Phase: Succeeded, Step: total - 1}
	p.mu.Unlock()
	return nil
}

func (p *Planner) dispatch(ctx context.Context, step plan.Step, f facts.Facts) (string, error) {
	switch s := step.(type) {
	case *plan.Source:
		switch s.Action {
		case plan.SourceUpdate:
			return "", p.Source.Update(ctx, s.Path)
		default:
			return "", p.Source.Clone(ctx, s.URI, s.Path)
		}

	case *plan.Copy:
		return "", p.Copier.Copy(s.Src, s.Dest)

	case *plan.Script:
		tag := p.Selector.Select(f.GPUs)
		return tag, p.Scripts.Run(ctx, ScriptRequest{
			URI:     s.URI,
			Config:  s.Config,
			Facts:   f,
			CUDATag: tag,
		})

	case *plan.Shell:
		tag := p.Selector.Select(f.GPUs)
		console.Debugf("CUDA tag for %v: %s", f.Models(), tag)
		return tag, p.Shell.Run(ctx, ShellCommand{
			Commands: substituteAll(s.Commands, tag, p.self()),
			Venv:     s.Venv,
			Dir:      s.Path,
			Build:    s.Build,
			Env:      s.Env,
			CUDATag:  tag,
		})

	default:
		return "", fmt.Errorf("unsupported step type %T", step)
	}
}

// checkCollaborators fails before anything runs when a step's collaborator is missing.
func (p *Planner) checkCollaborators(pl *plan.Plan) *ProvisioningError {
	for i, step := range pl.Steps {
		var missing string
		switch step.(type) {
		case *plan.Source:
			if p.Source == nil {
				missing = "source control client"
			}
		case *plan.Copy:
			if p.Copier == nil {
				missing = "file copier"
			}
		case *plan.Script:
			if p.Scripts == nil {
				missing = "script runner"
			}
		case *plan.Shell:
			if p.Shell == nil {
				missing = "shell executor"
			}
		}
		if missing != "" {
			return newProvisioningError(i, step, perrors.InvalidPlan("no "+missing+" configured", nil))
		}
	}
	return nil
}

func (p *Planner) self() string {
	if p.Self == "" {
		return "provision"
	}
	return quoteArg(p.Self)
}

func (p *Planner) setStep(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Step = i
}

func (p *Planner) record(r StepResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, r)
}

func (p *Planner) fail(i int, cause error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = State{Phase: Failed, Step: i, Cause: cause}
}

func substituteAll(commands []string, tag string, self string) []string {
	out := make([]string, len(commands))
	for i, c := range commands {
		c = cuda.Substitute(c, tag)
		out[i] = strings.ReplaceAll(c, plan.SelfPlaceholder, self)
	}
	return out
}

func quoteArg(s string) string {
	if strings.ContainsAny(s, " \t") {
		return `"` + s + `"`
	}
	return s
}
