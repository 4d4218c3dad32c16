package cli

import (
	"github.com/spf13/cobra"

	"github.com/provisionkit/provision/pkg/plan"
	"github.com/provisionkit/provision/pkg/shell"
)

func newPlanCommand() *cobra.Command {
	var ff factsFlags
	cmd := &cobra.Command{
		Use:   "plan [install|update|FILE]",
		Short: "Show the steps of a plan and which of them would run on this machine",
		Long: `Show the steps of a plan and which of them would run on this machine.

The argument is a built-in plan name or a plan file, and defaults to install.
Guards and CUDA tags are evaluated against the detected facts, which can be
overridden with --platform, --gpu-vendor and --gpu.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "install"
			if len(args) == 1 {
				name = args[0]
			}

			proj, err := loadProject()
			if err != nil {
				return err
			}
			var pl *plan.Plan
			if plan.Builtin(name, proj.Config) != nil {
				pl, err = proj.loadPlan(name, "")
			} else {
				pl, err = proj.loadPlan("", name)
			}
			if err != nil {
				return err
			}

			selector, err := proj.Config.Selector()
			if err != nil {
				return err
			}
			provider := ff.provider(shell.NewExecRunner())
			return renderPreview(cmd.OutOrStdout(), pl, provider(contextOf(cmd)), selector)
		},
	}
	ff.register(cmd.Flags())
	return cmd
}
