package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/logrusorgru/aurora"
	"github.com/olekukonko/tablewriter"

	"github.com/provisionkit/provision/pkg/cuda"
	"github.com/provisionkit/provision/pkg/facts"
	"github.com/provisionkit/provision/pkg/plan"
	"github.com/provisionkit/provision/pkg/provision"
	"github.com/provisionkit/provision/pkg/util/console"
)

func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	if width, err := console.GetWidth(); err == nil && width > 0 {
		table.SetColWidth(int(width) / 2)
	}
	return table
}

func addRow(table *tablewriter.Table, cols []string, colors []tablewriter.Colors) {
	if colorOutput() {
		table.Rich(cols, colors)
	} else {
		table.Append(cols)
	}
}

// colorOutput is true when colored console output is on and stdout is a terminal.
func colorOutput() bool {
	return console.ConsoleInstance.Color && console.IsTTY(os.Stdout)
}

func renderPreview(w io.Writer, pl *plan.Plan, f facts.Facts, selector cuda.Selector) error {
	models := "no GPU"
	if len(f.GPUs) > 0 {
		models = strings.Join(f.Models(), ", ")
	}
	heading := fmt.Sprintf("Plan %s on %s/%s, %s", pl.Name, f.Platform, f.Arch, models)
	if colorOutput() {
		heading = aurora.Bold(heading).String()
	}
	if _, err := fmt.Fprintln(w, heading); err != nil {
		return err
	}

	table := newTable(w, "#", "Method", "Step", "When", "CUDA", "Runs")
	for _, p := range provision.Preview(pl, f, selector) {
		runs, color := "yes", tablewriter.FgGreenColor
		if !p.Runs {
			runs, color = "skip", tablewriter.FgYellowColor
		}
		addRow(table,
			[]string{strconv.Itoa(p.Index + 1), p.Method, p.Title, p.Guard, p.CUDATag, runs},
			[]tablewriter.Colors{{}, {}, {}, {}, {}, {color}},
		)
	}
	table.Render()
	return nil
}

func renderSummary(w io.Writer, results []provision.StepResult) {
	if len(results) == 0 {
		return
	}
	table := newTable(w, "#", "Method", "Step", "Result", "CUDA", "Time")
	for _, r := range results {
		color := tablewriter.FgGreenColor
		switch r.Outcome {
		case provision.OutcomeSkipped:
			color = tablewriter.FgYellowColor
		case provision.OutcomeFailed:
			color = tablewriter.FgRedColor
		}
		duration := ""
		if r.Outcome != provision.OutcomeSkipped {
			duration = r.Duration.Round(time.Millisecond).String()
		}
		addRow(table,
			[]string{strconv.Itoa(r.Index + 1), r.Method, r.Title, string(r.Outcome), r.CUDATag, duration},
			[]tablewriter.Colors{{}, {}, {}, {color}, {}, {}},
		)
	}
	table.Render()
}
