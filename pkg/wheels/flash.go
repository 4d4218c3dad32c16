package wheels

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/provisionkit/provision/pkg/shell"
	"github.com/provisionkit/provision/pkg/util/console"
)

var ErrTorchMissing = errors.New("PyTorch is not installed in this environment, cannot pick a flash-attention wheel")

const (
	pythonTagScript    = "import platform; print('cp%s%s' % platform.python_version_tuple()[:2])"
	torchVersionScript = "import torch; print(torch.__version__)"
)

// FlashInstaller installs the newest flash-attention wheel that fits the
// interpreter Python.
type FlashInstaller struct {
	Runner shell.Runner
	Python string
}

func NewFlashInstaller(runner shell.Runner, python string) *FlashInstaller {
	return &FlashInstaller{Runner: runner, Python: python}
}

// Environment is what the interpreter reports about itself.
type Environment struct {
	PythonTag   string
	TorchSeries string
}

func (f *FlashInstaller) Environment(ctx context.Context) (Environment, error) {
	tag, err := f.Runner.Output(ctx, shell.Command{Name: f.Python, Args: []string{"-c", pythonTagScript}})
	if err != nil {
		return Environment{}, fmt.Errorf("Failed to determine Python version: %w", err)
	}
	torchVersion, err := f.Runner.Output(ctx, shell.Command{Name: f.Python, Args: []string{"-c", torchVersionScript}})
	if err != nil {
		console.Debugf("torch import failed: %s", err)
		return Environment{}, ErrTorchMissing
	}
	series, err := TorchSeries(torchVersion)
	if err != nil {
		return Environment{}, err
	}
	return Environment{PythonTag: strings.TrimSpace(tag), TorchSeries: series}, nil
}

// Install picks a wheel from index for cudaTag and installs it with uv. It
// reports whether a wheel was installed; no match is not an error, the
// application's own requirements then decide how flash-attention gets in.
func (f *FlashInstaller) Install(ctx context.Context, cudaTag string, index *Index) (bool, error) {
	env, err := f.Environment(ctx)
	if err != nil {
		return false, err
	}

	wheels, err := index.Read()
	if err != nil {
		return false, err
	}

	console.Infof("Searching %s for flash-attention: Python %s, CUDA %s, torch %s", index, env.PythonTag, cudaTag, env.TorchSeries)
	wheel, ok := Match(wheels, env.PythonTag, cudaTag, env.TorchSeries)
	if !ok {
		console.Warnf("No flash-attention wheel in %s for Python %s, CUDA %s, torch %s", index, env.PythonTag, cudaTag, env.TorchSeries)
		return false, nil
	}

	console.Infof("Installing %s", wheel.Filename)
	if err := f.Runner.Run(ctx, shell.Command{Name: "uv", Args: []string{"pip", "install", wheel.URL}}); err != nil {
		return false, fmt.Errorf("Failed to install %s: %w", wheel.URL, err)
	}
	return true, nil
}
