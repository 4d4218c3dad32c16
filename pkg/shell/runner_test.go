package shell

import (
	"bufio"
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPipeTo(t *testing.T) {
	var lines []string
	err := PipeTo(strings.NewReader("one\ntwo\n\nthree"), func(line string) {
		lines = append(lines, line)
	})
	require.NoError(t, err)
	require.Equal(t, []string{"one", "two", "", "three"}, lines)
}

func TestPipeToDrainsAfterLongLine(t *testing.T) {
	long := strings.Repeat("a", 2*1024*1024)
	r := strings.NewReader("first\n" + long + "\nlast\n")
	var lines []string
	err := PipeTo(r, func(line string) {
		lines = append(lines, line)
	})
	require.ErrorIs(t, err, bufio.ErrTooLong)
	require.Equal(t, []string{"first"}, lines)
	require.Zero(t, r.Len())
}

func TestInterpreter(t *testing.T) {
	name, args := Interpreter("windows")
	require.Equal(t, "cmd", name)
	require.Equal(t, []string{"/C"}, args)

	name, args = Interpreter("linux")
	require.Equal(t, "sh", name)
	require.Equal(t, []string{"-c"}, args)
}

func TestExecRunnerExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	r := NewExecRunner()

	out, err := r.Output(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo hello"}})
	require.NoError(t, err)
	require.Equal(t, "hello", out)

	err = r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "exit 3"}})
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 3, exitErr.ExitCode)
	require.Equal(t, `"sh -c exit 3" exited with code 3`, exitErr.Error())
}

func TestExecRunnerLongOutputLine(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	err := NewExecRunner().Run(ctx, Command{Name: "sh", Args: []string{"-c", `head -c 3000000 /dev/zero | tr '\0' a`}})
	require.ErrorIs(t, err, bufio.ErrTooLong)
	require.Less(t, time.Since(start), 10*time.Second)
}

func TestExecRunnerCancelKillsPipeline(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := NewExecRunner().Run(ctx, Command{Name: "sh", Args: []string{"-c", "sleep 30 | cat"}})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 10*time.Second)
}

func TestCmdLine(t *testing.T) {
	name, args := Interpreter("windows")
	line, ok := cmdLine(Command{Name: name, Args: append(args, `"C:\Program Files\provision.exe" flash-attn cu128 ../flash.txt`)})
	require.True(t, ok)
	require.Equal(t, `cmd /S /C ""C:\Program Files\provision.exe" flash-attn cu128 ../flash.txt"`, line)

	_, ok = cmdLine(Command{Name: "git", Args: []string{"/C", "status"}})
	require.False(t, ok)
	_, ok = cmdLine(Command{Name: "cmd", Args: []string{"/K", "dir"}})
	require.False(t, ok)
}
