package console

import (
	"os"

	"github.com/moby/term"
)

// GetWidth returns the width of the terminal attached to stderr, or 0 if stderr is not a terminal.
func GetWidth() (uint16, error) {
	fd := os.Stderr.Fd()
	if !term.IsTerminal(fd) {
		return 0, nil
	}
	ws, err := term.GetWinsize(fd)
	if err != nil {
		return 0, err
	}
	return ws.Width, nil
}

// ConfigureForTerminal switches the global console into machine mode when stderr is not a
// terminal, and drops colors when that happens or when noColor is set.
func ConfigureForTerminal(noColor bool) {
	interactive := term.IsTerminal(os.Stderr.Fd())
	ConsoleInstance.IsMachine = !interactive
	SetColor(interactive && !noColor)
}
