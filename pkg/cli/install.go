package cli

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/provisionkit/provision/pkg/shell"
	"github.com/provisionkit/provision/pkg/util/console"
)

type runOptions struct {
	name     string
	planFile string
	dryRun   bool
	facts    factsFlags
}

func newInstallCommand() *cobra.Command {
	opts := &runOptions{name: "install"}
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Clone the application and install it with its dependencies",
		Long: `Clone the application and install it with its dependencies.

Runs the built-in install plan built from provision.yaml: clone the repository,
copy the setup.py overlay, install PyTorch, install a prebuilt flash-attention
wheel on Windows with an NVIDIA GPU, then install the requirements.`,
		Args: cobra.NoArgs,
		RunE: opts.run,
	}
	opts.register(cmd)
	return cmd
}

func newUpdateCommand() *cobra.Command {
	opts := &runOptions{name: "update"}
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Pull the latest application code and re-sync its requirements",
		Long: `Pull the latest application code and re-sync its requirements.

Local changes in the application checkout are discarded.`,
		Args: cobra.NoArgs,
		RunE: opts.run,
	}
	opts.register(cmd)
	return cmd
}

func (o *runOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.planFile, "plan", "", "Run the plan in this YAML or JSON file instead of the built-in one")
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "Show what would run for this machine without running anything")
	o.facts.register(cmd.Flags())
}

func (o *runOptions) run(cmd *cobra.Command, args []string) error {
	proj, err := loadProject()
	if err != nil {
		return err
	}
	pl, err := proj.loadPlan(o.name, o.planFile)
	if err != nil {
		return err
	}

	runner := shell.NewExecRunner()
	provider := o.facts.provider(runner)

	if o.dryRun {
		selector, err := proj.Config.Selector()
		if err != nil {
			return err
		}
		return renderPreview(cmd.OutOrStdout(), pl, provider(contextOf(cmd)), selector)
	}

	planner, err := proj.newPlanner(runner)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt)
	defer stop()

	console.Infof("Running %s plan in %s", pl.Name, proj.Root)
	start := time.Now()
	err = planner.Execute(ctx, pl, provider)
	renderSummary(cmd.OutOrStdout(), planner.Results())
	if err != nil {
		return err
	}
	console.Infof("Finished %s in %s", pl.Name, time.Since(start).Round(time.Second))
	return nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
