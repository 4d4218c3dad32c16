// Package console provides a standard interface for user- and machine-interface with the console
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/logrusorgru/aurora"
)

// Console represents a standardized interface for console UI. It is designed to abstract:
// - Writing main output
// - Telling the user which provisioning step is running
// - Switching between human and machine modes (e.g. no colors when output is piped to a log file)
type Console struct {
	Color     bool
	IsMachine bool
	Level     Level

	// Out and Err default to os.Stdout and os.Stderr when nil.
	Out io.Writer
	Err io.Writer

	mu sync.Mutex
}

// Debug prints a verbose debugging message, that is not displayed by default to the user.
func (c *Console) Debug(msg string) {
	c.log(DebugLevel, msg)
}

// Info tells the user what's going on.
func (c *Console) Info(msg string) {
	c.log(InfoLevel, msg)
}

// Warn tells the user that something might break.
func (c *Console) Warn(msg string) {
	c.log(WarnLevel, msg)
}

// Error tells the user that something is broken.
func (c *Console) Error(msg string) {
	c.log(ErrorLevel, msg)
}

// Fatal level message, followed by exit
func (c *Console) Fatal(msg string) {
	c.log(FatalLevel, msg)
	os.Exit(1)
}

// Debugf is Debug with formatting.
func (c *Console) Debugf(msg string, v ...interface{}) {
	c.log(DebugLevel, fmt.Sprintf(msg, v...))
}

// Infof is Info with formatting.
func (c *Console) Infof(msg string, v ...interface{}) {
	c.log(InfoLevel, fmt.Sprintf(msg, v...))
}

// Warnf is Warn with formatting.
func (c *Console) Warnf(msg string, v ...interface{}) {
	c.log(WarnLevel, fmt.Sprintf(msg, v...))
}

// Errorf is Error with formatting.
func (c *Console) Errorf(msg string, v ...interface{}) {
	c.log(ErrorLevel, fmt.Sprintf(msg, v...))
}

// Fatalf is Fatal with formatting.
func (c *Console) Fatalf(msg string, v ...interface{}) {
	c.log(FatalLevel, fmt.Sprintf(msg, v...))
	os.Exit(1)
}

// Step announces the start of provisioning step index (zero-based) out of total.
func (c *Console) Step(index, total int, title string) {
	if InfoLevel < c.Level {
		return
	}
	prefix := fmt.Sprintf("[%d/%d]", index+1, total)
	if c.Color {
		prefix = aurora.Bold(aurora.Cyan(prefix)).String()
	}
	c.writeLines(c.errWriter(), prefix+" "+title)
}

// Output a string to stdout. Useful for printing primary output of a command, or the output of a subcommand.
// A newline is added to the string.
func (c *Console) Output(s string) {
	c.writeLines(c.outWriter(), s)
}

// Stream echoes a line of subprocess output to stderr, indented under the current step.
func (c *Console) Stream(line string) {
	if c.IsMachine {
		c.writeLines(c.errWriter(), line)
		return
	}
	prefix := "  │ "
	if c.Color {
		prefix = aurora.Faint(prefix).String()
	}
	c.writeLines(c.errWriter(), prefix+line)
}

func (c *Console) log(level Level, msg string) {
	if level < c.Level {
		return
	}

	prompt := ""
	if c.Color {
		switch level {
		case WarnLevel:
			prompt = aurora.Yellow("⚠ ").String()
		case ErrorLevel, FatalLevel:
			prompt = aurora.Red("ⅹ ").String()
		}
	} else if level >= WarnLevel {
		prompt = strings.ToUpper(level.String()) + ": "
	}

	lines := strings.Split(msg, "\n")
	for i, line := range lines {
		if c.Color && level == DebugLevel {
			line = aurora.Faint(line).String()
		}
		lines[i] = prompt + line
	}
	c.writeLines(c.errWriter(), lines...)
}

func (c *Console) writeLines(w io.Writer, lines ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

func (c *Console) outWriter() io.Writer {
	if c.Out != nil {
		return c.Out
	}
	return os.Stdout
}

func (c *Console) errWriter() io.Writer {
	if c.Err != nil {
		return c.Err
	}
	return os.Stderr
}
