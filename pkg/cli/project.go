package cli

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/provisionkit/provision/pkg/config"
	"github.com/provisionkit/provision/pkg/env"
	"github.com/provisionkit/provision/pkg/facts"
	"github.com/provisionkit/provision/pkg/git"
	"github.com/provisionkit/provision/pkg/global"
	"github.com/provisionkit/provision/pkg/plan"
	"github.com/provisionkit/provision/pkg/provision"
	"github.com/provisionkit/provision/pkg/shell"
	"github.com/provisionkit/provision/pkg/torch"
	"github.com/provisionkit/provision/pkg/util/console"
	"github.com/provisionkit/provision/pkg/util/files"
	"github.com/provisionkit/provision/pkg/venv"
)

// project is the loaded provision.yaml and the directory plans run in.
type project struct {
	Config *config.Config
	Root   string
}

func loadProject() (*project, error) {
	startDir := global.ProjectDir
	if startDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		startDir = cwd
	}

	explicit := configFlag
	if explicit == "" {
		explicit = env.ConfigFromEnvironment()
	}

	cfg, root, err := config.GetConfig(startDir, explicit, global.ConfigFilename)
	if err != nil {
		return nil, err
	}
	if cfg.Filename() != "" {
		console.Debugf("Using %s", cfg.Filename())
	}
	return &project{Config: cfg, Root: root}, nil
}

// loadPlan returns the plan in planFile, or the named built-in plan.
func (p *project) loadPlan(name string, planFile string) (*plan.Plan, error) {
	if planFile == "" {
		pl := plan.Builtin(name, p.Config)
		if pl == nil {
			return nil, fmt.Errorf("Unknown plan %q", name)
		}
		return pl, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	path, err := files.ResolvePath(cwd, planFile)
	if err != nil {
		return nil, err
	}
	return plan.Load(path)
}

func (p *project) newPlanner(runner shell.Runner) (*provision.Planner, error) {
	selector, err := p.Config.Selector()
	if err != nil {
		return nil, err
	}
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("Failed to find the provision binary: %w", err)
	}

	executor := venv.NewExecutor(p.Root, runner)
	return &provision.Planner{
		Source:   git.NewClient(p.Root, runner),
		Copier:   files.NewCopier(p.Root),
		Shell:    executor,
		Scripts:  torch.NewRunner(executor),
		Selector: selector,
		Self:     self,
	}, nil
}

// factsFlags override detected facts, so a plan can be previewed for another machine.
type factsFlags struct {
	platform  string
	gpuVendor string
	gpus      []string
}

func (f *factsFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.platform, "platform", "", "Override the detected platform (win32, linux, darwin)")
	flags.StringVar(&f.gpuVendor, "gpu-vendor", "", "Override the detected GPU vendor (nvidia, amd, intel, apple)")
	flags.StringArrayVar(&f.gpus, "gpu", []string{}, "Override the detected GPU models, can be repeated")
}

func (f *factsFlags) provider(runner shell.Runner) facts.Provider {
	override := facts.Override{
		Platform:  f.platform,
		GPUVendor: f.gpuVendor,
		GPUModels: f.gpus,
	}
	return override.Wrap(facts.NewDetector(runner).Provider())
}
