// Package plan defines provisioning plans: ordered, guarded steps, the built-in
// install and update plans, and the loader for plan definition files.
package plan

import (
	"errors"
	"fmt"
)

var ErrEmptyCommand = errors.New("shell step has no commands")

// Plan is a fixed, ordered list of steps.
type Plan struct {
	Name  string
	Steps []Step
}

// Len returns the number of steps.
func (p *Plan) Len() int {
	return len(p.Steps)
}

// Validate checks the parameters each step needs to run.
func (p *Plan) Validate() error {
	for i, step := range p.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Method(), err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch s := step.(type) {
	case *Shell:
		if len(s.Commands) == 0 {
			return ErrEmptyCommand
		}
	case *Copy:
		if s.Src == "" || s.Dest == "" {
			return errors.New("copy step needs both src and dest")
		}
	case *Script:
		if s.URI == "" {
			return errors.New("script step needs a uri")
		}
	case *Source:
		if s.Path == "" {
			return errors.New("source step needs a path")
		}
		if s.Action == SourceClone && s.URI == "" {
			return errors.New("clone step needs a uri")
		}
	default:
		return fmt.Errorf("unknown step type %T", step)
	}
	return nil
}
