package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/provisionkit/provision/pkg/env"
	"github.com/provisionkit/provision/pkg/global"
	"github.com/provisionkit/provision/pkg/util/console"
)

var configFlag string

func NewRootCommand() (*cobra.Command, error) {
	rootCmd := cobra.Command{
		Use:   "provision",
		Short: "Install and update a GPU Python application in its own virtual environment",
		Long: `Install and update a GPU Python application in its own virtual environment.

provision clones the application, overlays a custom setup.py, installs PyTorch
for the GPU it finds, adds prebuilt flash-attention wheels where they exist and
installs the application's dependencies with uv.`,
		Version: fmt.Sprintf("%s (built %s)", global.Version, global.BuildTime),
		// This stops errors being printed because we print them in cmd/provision/main.go
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			console.ConfigureForTerminal(env.NoColor())
			if global.Verbose {
				console.SetLevel(console.DebugLevel)
			}
			cmd.SilenceUsage = true
		},
		SilenceErrors: true,
	}
	setPersistentFlags(&rootCmd)

	rootCmd.AddCommand(
		newInstallCommand(),
		newUpdateCommand(),
		newPlanCommand(),
		newFactsCommand(),
		newFlashAttnCommand(),
	)

	return &rootCmd, nil
}

func setPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVarP(&global.Verbose, "verbose", "v", false, "Verbose output")
	cmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to "+global.ConfigFilename+", defaults to $"+env.ConfigEnvVarName+" or the nearest one in a parent directory")
	cmd.PersistentFlags().StringVarP(&global.ProjectDir, "project-dir", "D", "", "Project directory, defaults to current working directory")
}
