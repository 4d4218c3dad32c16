package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/provisionkit/provision/pkg/shell"
)

func newFactsCommand() *cobra.Command {
	var ff factsFlags
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "facts",
		Short: "Show the platform and GPUs plan guards are evaluated against",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := ff.provider(shell.NewExecRunner())(contextOf(cmd))
			out := cmd.OutOrStdout()

			if asJSON {
				data, err := json.MarshalIndent(f, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}

			gpus := "none"
			if models := f.Models(); len(models) > 0 {
				gpus = strings.Join(models, ", ")
			}
			vendor := f.GPUVendor
			if vendor == "" {
				vendor = "none"
			}
			fmt.Fprintf(out, "platform:   %s\n", f.Platform)
			fmt.Fprintf(out, "arch:       %s\n", f.Arch)
			fmt.Fprintf(out, "gpu vendor: %s\n", vendor)
			fmt.Fprintf(out, "gpus:       %s\n", gpus)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print facts as JSON")
	ff.register(cmd.Flags())
	return cmd
}
