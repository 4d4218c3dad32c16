package cli

import (
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/provisionkit/provision/pkg/shell"
	"github.com/provisionkit/provision/pkg/util/console"
	"github.com/provisionkit/provision/pkg/venv"
	"github.com/provisionkit/provision/pkg/wheels"
)

func newFlashAttnCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flash-attn CUDA_TAG INDEX",
		Short: "Install the newest prebuilt flash-attention wheel that fits the active virtual environment",
		Long: `Install the newest prebuilt flash-attention wheel that fits the active virtual environment.

INDEX is a file or URL listing wheel URLs, one per line, or an HTML page linking
to them. A wheel fits when its filename names the environment's Python tag
(cp312), CUDA_TAG (cu128) and torch series (torch2.7). Finding no wheel is not
an error.`,
		Example: `  provision flash-attn cu128 ../flash.txt`,
		Args:    cobra.ExactArgs(2),
		RunE:    cmdFlashAttn,
	}
	return cmd
}

func cmdFlashAttn(cmd *cobra.Command, args []string) error {
	cudaTag, indexArg := args[0], args[1]

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	index, err := wheels.ParseIndex(indexArg, cwd)
	if err != nil {
		return err
	}

	python := "python"
	if active := venv.ActiveVenv(); active != "" {
		python = venv.Python(active, runtime.GOOS)
	}
	console.Debugf("Using interpreter %s", python)

	installer := wheels.NewFlashInstaller(shell.NewExecRunner(), python)
	_, err = installer.Install(contextOf(cmd), cudaTag, index)
	return err
}
