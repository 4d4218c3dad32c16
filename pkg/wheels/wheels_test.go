package wheels

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/provisionkit/provision/pkg/shell/shelltest"
)

const flashTxt = `
https://github.com/example/releases/download/v2.7.0/flash_attn-2.7.0+cu126torch2.6-cp312-cp312-win_amd64.whl
https://github.com/example/releases/download/v2.7.4/flash_attn-2.7.4+cu128torch2.7-cp312-cp312-win_amd64.whl
https://github.com/example/releases/download/v2.7.4.post1/flash_attn-2.7.4.post1+cu128torch2.7-cp312-cp312-win_amd64.whl
https://github.com/example/releases/download/v2.7.4/flash_attn-2.7.4+cu126torch2.7-cp311-cp311-win_amd64.whl
https://github.com/example/releases/download/bad/flash_attn-2.7.4.postX+cu128torch2.7-cp312-cp312-win_amd64.whl
https://github.com/example/releases/download/v1/README.md
`

func TestWheelSourceString(t *testing.T) {
	require.Equal(t, "file", IndexSourceFile.String())
	require.Equal(t, "url", IndexSourceURL.String())
	require.Equal(t, "unknown", IndexSource(9).String())
}

func TestParseIndex(t *testing.T) {
	idx, err := ParseIndex("https://example.com/flash.html", "/tmp")
	require.NoError(t, err)
	require.Equal(t, &Index{Source: IndexSourceURL, URL: "https://example.com/flash.html"}, idx)

	idx, err = ParseIndex("../flash.txt", "/srv/project/app")
	require.NoError(t, err)
	require.Equal(t, &Index{Source: IndexSourceFile, Path: "/srv/project/flash.txt"}, idx)

	_, err = ParseIndex("  ", "/tmp")
	require.Error(t, err)
}

func TestParseWheels(t *testing.T) {
	wheels := ParseWheels(flashTxt, "")
	require.Len(t, wheels, 4)
	require.Equal(t, "2.7.0", wheels[0].Version.String())
	require.Equal(t, "2.7.4.1", wheels[2].Version.String())
	require.Equal(t, "flash_attn-2.7.4+cu126torch2.7-cp311-cp311-win_amd64.whl", wheels[3].Filename)
}

func TestParseWheelsHTML(t *testing.T) {
	html := `<html><body>
<a href="flash_attn-2.7.4+cu128torch2.7-cp312-cp312-win_amd64.whl">one</a>
<a href="https://mirror.example.com/flash_attn-2.6.3+cu126torch2.5-cp310-cp310-win_amd64.whl">two</a>
<a href="../">parent</a>
</body></html>`

	wheels := ParseWheels(html, "https://example.com/whl/index.html")
	require.Len(t, wheels, 2)
	require.Equal(t, "https://example.com/whl/flash_attn-2.7.4+cu128torch2.7-cp312-cp312-win_amd64.whl", wheels[0].URL)
	require.Equal(t, "https://mirror.example.com/flash_attn-2.6.3+cu126torch2.5-cp310-cp310-win_amd64.whl", wheels[1].URL)
}

func TestMatchPrefersNewest(t *testing.T) {
	wheels := ParseWheels(flashTxt, "")

	w, ok := Match(wheels, "cp312", "cu128", "2.7")
	require.True(t, ok)
	require.Equal(t, "flash_attn-2.7.4.post1+cu128torch2.7-cp312-cp312-win_amd64.whl", w.Filename)

	w, ok = Match(wheels, "cp311", "cu126", "2.7")
	require.True(t, ok)
	require.Equal(t, "2.7.4", w.Version.String())

	_, ok = Match(wheels, "cp313", "cu128", "2.7")
	require.False(t, ok)

	// input order is untouched
	require.Equal(t, "2.7.0", wheels[0].Version.String())
}

func TestTorchSeries(t *testing.T) {
	for input, expected := range map[string]string{
		"2.4.0+cu121":     "2.4",
		"2.1.0a0+git5f3d": "2.1",
		"2.7.1":           "2.7",
		"2.6":             "2.6",
	} {
		series, err := TorchSeries(input)
		require.NoError(t, err, input)
		require.Equal(t, expected, series, input)
	}

	_, err := TorchSeries("not a version")
	require.Error(t, err)
}

func writeIndex(t *testing.T) *Index {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flash.txt")
	require.NoError(t, os.WriteFile(path, []byte(flashTxt), 0o644))
	return &Index{Source: IndexSourceFile, Path: path}
}

func TestFlashInstallerInstallsMatch(t *testing.T) {
	runner := shelltest.NewFakeRunner()
	runner.Responses["python -c import platform"] = shelltest.Response{Output: "cp312"}
	runner.Responses["python -c import torch"] = shelltest.Response{Output: "2.7.0+cu128"}

	installed, err := NewFlashInstaller(runner, "python").Install(context.Background(), "cu128", writeIndex(t))
	require.NoError(t, err)
	require.True(t, installed)

	lines := runner.Lines()
	require.Len(t, lines, 3)
	require.Equal(t, "uv pip install https://github.com/example/releases/download/v2.7.4.post1/flash_attn-2.7.4.post1+cu128torch2.7-cp312-cp312-win_amd64.whl", lines[2])
}

func TestFlashInstallerNoMatch(t *testing.T) {
	runner := shelltest.NewFakeRunner()
	runner.Responses["python -c import platform"] = shelltest.Response{Output: "cp310"}
	runner.Responses["python -c import torch"] = shelltest.Response{Output: "2.7.0"}

	installed, err := NewFlashInstaller(runner, "python").Install(context.Background(), "cu128", writeIndex(t))
	require.NoError(t, err)
	require.False(t, installed)
	require.Len(t, runner.Commands, 2)
}

func TestFlashInstallerTorchMissing(t *testing.T) {
	runner := shelltest.NewFakeRunner()
	runner.Responses["python -c import platform"] = shelltest.Response{Output: "cp312"}
	runner.Responses["python -c import torch"] = shelltest.Response{Err: errors.New("ModuleNotFoundError")}

	_, err := NewFlashInstaller(runner, "python").Install(context.Background(), "cu128", writeIndex(t))
	require.ErrorIs(t, err, ErrTorchMissing)
}

func TestFlashInstallerMissingIndex(t *testing.T) {
	runner := shelltest.NewFakeRunner()
	runner.Responses["python -c import platform"] = shelltest.Response{Output: "cp312"}
	runner.Responses["python -c import torch"] = shelltest.Response{Output: "2.7.0"}

	_, err := NewFlashInstaller(runner, "python").Install(context.Background(), "cu128", &Index{Path: filepath.Join(t.TempDir(), "missing.txt")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Failed to read wheel index")
}
