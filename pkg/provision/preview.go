package provision

import (
	"github.com/provisionkit/provision/pkg/cuda"
	"github.com/provisionkit/provision/pkg/facts"
	"github.com/provisionkit/provision/pkg/guard"
	"github.com/provisionkit/provision/pkg/plan"
)

// StepPreview describes what Execute would do with a step for fixed facts.
type StepPreview struct {
	Index    int
	Method   string
	Title    string
	Guard    string
	Runs     bool
	CUDATag  string
	Commands []string
}

// Preview evaluates every guard and CUDA tag of pl against f without calling
// any collaborator. {{self}} is left in place.
func Preview(pl *plan.Plan, f facts.Facts, selector cuda.Selector) []StepPreview {
	previews := make([]StepPreview, 0, pl.Len())
	for i, step := range pl.Steps {
		sp := StepPreview{
			Index:  i,
			Method: string(step.Method()),
			Title:  step.Title(),
			Guard:  guard.Describe(step.Guard()),
			Runs:   guard.Eval(step.Guard(), f),
		}
		switch s := step.(type) {
		case *plan.Shell:
			sp.CUDATag = selector.Select(f.GPUs)
			sp.Commands = make([]string, len(s.Commands))
			for j, c := range s.Commands {
				sp.Commands[j] = cuda.Substitute(c, sp.CUDATag)
			}
			sp.Title = cuda.Substitute(sp.Title, sp.CUDATag)
		case *plan.Script:
			sp.CUDATag = selector.Select(f.GPUs)
		}
		previews = append(previews, sp)
	}
	return previews
}
