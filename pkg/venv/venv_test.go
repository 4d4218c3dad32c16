package venv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/provisionkit/provision/pkg/provision"
	"github.com/provisionkit/provision/pkg/shell"
	"github.com/provisionkit/provision/pkg/shell/shelltest"
)

func newTestExecutor(t *testing.T, goos string, commands ...string) (*Executor, *shelltest.FakeRunner, string) {
	t.Helper()
	root := t.TempDir()
	runner := shelltest.NewFakeRunner()
	available := map[string]bool{}
	for _, c := range commands {
		available[c] = true
	}
	return &Executor{
		Root:       root,
		Runner:     runner,
		GOOS:       goos,
		HasCommand: func(name string) bool { return available[name] },
		Environ:    func() []string { return []string{"PATH=/usr/bin", "HOME=/home/u", "PYTHONHOME=/opt/py"} },
	}, runner, root
}

func envValue(c shell.Command, key string) string {
	e := newEnviron(c.Env, "linux")
	return e.get(key)
}

func TestRunCreatesVenvWithUV(t *testing.T) {
	e, runner, root := newTestExecutor(t, "linux", "uv", "cc")
	app := filepath.Join(root, "app")
	venvDir := filepath.Join(app, "env")

	err := e.Run(context.Background(), provision.ShellCommand{
		Commands: []string{"uv pip install -r requirements.txt"},
		Venv:     "env",
		Dir:      "app",
		CUDATag:  "cu126",
	})
	require.NoError(t, err)

	require.Equal(t, []string{
		"uv venv " + venvDir,
		"sh -c uv pip install -r requirements.txt",
	}, runner.Lines())

	c := runner.Commands[1]
	require.Equal(t, app, c.Dir)
	require.Equal(t, venvDir, envValue(c, "VIRTUAL_ENV"))
	require.Equal(t, filepath.Join(venvDir, "bin")+":/usr/bin", envValue(c, "PATH"))
	require.Equal(t, "cu126", envValue(c, "PROVISION_CUDA_TAG"))
	require.Equal(t, "", envValue(c, "PYTHONHOME"))
	require.Equal(t, "/home/u", envValue(c, "HOME"))
}

func TestRunFallsBackToPythonVenv(t *testing.T) {
	e, runner, root := newTestExecutor(t, "linux", "python3")

	require.NoError(t, e.Run(context.Background(), provision.ShellCommand{Commands: []string{"true"}, Venv: "env"}))
	require.Equal(t, "python3 -m venv "+filepath.Join(root, "env"), runner.Lines()[0])
}

func TestRunReusesExistingVenv(t *testing.T) {
	e, runner, root := newTestExecutor(t, "linux", "uv")
	venvDir := filepath.Join(root, "app", "env")
	require.NoError(t, os.MkdirAll(venvDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(venvDir, "pyvenv.cfg"), []byte("home = /usr/bin\n"), 0o644))

	require.NoError(t, e.Run(context.Background(), provision.ShellCommand{Commands: []string{"true"}, Venv: "env", Dir: "app"}))
	require.Equal(t, []string{"sh -c true"}, runner.Lines())
}

func TestRunBuildPreparation(t *testing.T) {
	e, runner, _ := newTestExecutor(t, "linux", "uv")

	err := e.Run(context.Background(), provision.ShellCommand{
		Commands: []string{"uv pip install -e ."},
		Build:    true,
		Env:      map[string]string{"UV_NO_BUILD_ISOLATION": "1", "DISTUTILS_USE_SDK": "1"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		"sh -c uv pip install wheel ninja",
		"sh -c uv pip install -e .",
	}, runner.Lines())
	for _, c := range runner.Commands {
		require.Equal(t, "1", envValue(c, "UV_NO_BUILD_ISOLATION"))
		require.Equal(t, "1", envValue(c, "DISTUTILS_USE_SDK"))
	}
}

func TestRunOnWindows(t *testing.T) {
	e, runner, root := newTestExecutor(t, "windows", "uv")
	e.Environ = func() []string { return []string{`Path=C:\Windows`} }
	venvDir := filepath.Join(root, "env")

	require.NoError(t, e.Run(context.Background(), provision.ShellCommand{Commands: []string{"dir"}, Venv: "env"}))
	c := runner.Commands[1]
	require.Equal(t, "cmd", c.Name)
	require.Equal(t, []string{"/C", "dir"}, c.Args)
	require.Contains(t, c.Env, "Path="+filepath.Join(venvDir, "Scripts")+`;C:\Windows`)
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	e, runner, _ := newTestExecutor(t, "linux")
	cause := &shell.ExitError{Command: "sh -c false", ExitCode: 1}
	runner.Responses["sh -c false"] = shelltest.Response{Err: cause}

	err := e.Run(context.Background(), provision.ShellCommand{Commands: []string{"true", "false", "echo never"}})
	require.Error(t, err)

	var exitErr *shell.ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, 1, exitErr.ExitCode)
	require.Len(t, runner.Commands, 2)
}

func TestEnvironSetIsCaseInsensitiveOnWindows(t *testing.T) {
	e := newEnviron([]string{"Path=a"}, "windows")
	e.set("PATH", "b")
	require.Equal(t, []string{"Path=b"}, e.list())

	e = newEnviron([]string{"Path=a"}, "linux")
	e.set("PATH", "b")
	require.Equal(t, []string{"Path=a", "PATH=b"}, e.list())
}

func TestPythonFallsBack(t *testing.T) {
	require.Equal(t, "python", Python(t.TempDir(), "linux"))
}
