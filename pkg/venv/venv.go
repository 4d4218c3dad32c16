// Package venv runs shell steps inside a Python virtual environment.
package venv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/provisionkit/provision/pkg/env"
	"github.com/provisionkit/provision/pkg/provision"
	"github.com/provisionkit/provision/pkg/shell"
	"github.com/provisionkit/provision/pkg/util/console"
	"github.com/provisionkit/provision/pkg/util/files"
)

// Executor implements provision.ShellExecutor. Step directories are resolved
// against Root and venv paths against the step directory.
type Executor struct {
	Root   string
	Runner shell.Runner
	GOOS   string

	// HasCommand reports whether a binary is on PATH.
	HasCommand func(name string) bool
	// Environ is the base process environment.
	Environ func() []string
}

func NewExecutor(root string, runner shell.Runner) *Executor {
	return &Executor{
		Root:       root,
		Runner:     runner,
		GOOS:       runtime.GOOS,
		HasCommand: shell.CommandExists,
		Environ:    os.Environ,
	}
}

func (e *Executor) Run(ctx context.Context, cmd provision.ShellCommand) error {
	dir, err := files.ResolvePath(e.Root, cmd.Dir)
	if err != nil {
		return err
	}

	environ := newEnviron(e.environ(), e.GOOS)
	if cmd.Venv != "" {
		venvDir, err := files.ResolvePath(dir, cmd.Venv)
		if err != nil {
			return err
		}
		if err := e.ensure(ctx, venvDir, dir); err != nil {
			return err
		}
		environ.activate(venvDir)
	}
	keys := make([]string, 0, len(cmd.Env))
	for k := range cmd.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		environ.set(k, cmd.Env[k])
	}
	if cmd.CUDATag != "" {
		environ.set(env.CUDATagEnvVarName, cmd.CUDATag)
	}

	if cmd.Build {
		if err := e.prepareBuild(ctx, dir, environ.list()); err != nil {
			return fmt.Errorf("Failed to prepare build tools: %w", err)
		}
	}

	for _, line := range cmd.Commands {
		if err := e.runLine(ctx, line, dir, environ.list()); err != nil {
			return err
		}
	}
	return nil
}

// ensure creates venvDir unless it already holds a virtual environment.
func (e *Executor) ensure(ctx context.Context, venvDir string, dir string) error {
	exists, err := files.Exists(filepath.Join(venvDir, "pyvenv.cfg"))
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	console.Infof("Creating virtual environment %s", venvDir)
	var c shell.Command
	if e.hasCommand("uv") {
		c = shell.Command{Name: "uv", Args: []string{"venv", venvDir}, Dir: dir}
	} else {
		c = shell.Command{Name: e.systemPython(), Args: []string{"-m", "venv", venvDir}, Dir: dir}
	}
	if err := e.Runner.Run(ctx, c); err != nil {
		return fmt.Errorf("Failed to create virtual environment %s: %w", venvDir, err)
	}
	return nil
}

func (e *Executor) prepareBuild(ctx context.Context, dir string, environ []string) error {
	compiler := "cc"
	if e.GOOS == "windows" {
		compiler = "cl"
	}
	if !e.hasCommand(compiler) {
		console.Warnf("No C compiler (%s) found on PATH. Packages without prebuilt wheels will fail to build.", compiler)
	}

	install := "uv pip install wheel ninja"
	if !e.hasCommand("uv") {
		install = "python -m pip install wheel ninja"
	}
	return e.runLine(ctx, install, dir, environ)
}

func (e *Executor) runLine(ctx context.Context, line string, dir string, environ []string) error {
	name, args := shell.Interpreter(e.GOOS)
	return e.Runner.Run(ctx, shell.Command{
		Name: name,
		Args: append(args, line),
		Dir:  dir,
		Env:  environ,
	})
}

func (e *Executor) systemPython() string {
	if e.GOOS == "windows" {
		return "python"
	}
	if e.hasCommand("python3") {
		return "python3"
	}
	return "python"
}

func (e *Executor) hasCommand(name string) bool {
	if e.HasCommand == nil {
		return shell.CommandExists(name)
	}
	return e.HasCommand(name)
}

func (e *Executor) environ() []string {
	if e.Environ == nil {
		return os.Environ()
	}
	return e.Environ()
}

// BinDir is the directory holding a virtual environment's executables.
func BinDir(venvDir string, goos string) string {
	if goos == "windows" {
		return filepath.Join(venvDir, "Scripts")
	}
	return filepath.Join(venvDir, "bin")
}

// Python returns the interpreter of venvDir, or "python" when the venv has none.
func Python(venvDir string, goos string) string {
	name := "python"
	if goos == "windows" {
		name = "python.exe"
	}
	path := filepath.Join(BinDir(venvDir, goos), name)
	if files.IsExecutable(path) {
		return path
	}
	return "python"
}

// ActiveVenv returns $VIRTUAL_ENV, the venv of the current process if any.
func ActiveVenv() string {
	return strings.TrimSpace(os.Getenv("VIRTUAL_ENV"))
}
