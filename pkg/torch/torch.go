// Package torch installs PyTorch and its optional acceleration packages for
// the GPU found on the host. It serves the torch.js script of plan files.
package torch

import (
	"context"
	"fmt"
	"strings"

	"github.com/provisionkit/provision/pkg/errors"
	"github.com/provisionkit/provision/pkg/facts"
	"github.com/provisionkit/provision/pkg/provision"
	"github.com/provisionkit/provision/pkg/util/console"
)

const (
	IndexBase = "https://download.pytorch.org/whl/"
	CPUIndex  = IndexBase + "cpu"
	ROCmIndex = IndexBase + "rocm6.2.4"
)

var scriptURIs = map[string]bool{
	"torch.js": true,
	"torch":    true,
}

// Runner implements provision.ScriptRunner by running the torch install
// commands through a shell executor.
type Runner struct {
	Shell provision.ShellExecutor
}

func NewRunner(shell provision.ShellExecutor) *Runner {
	return &Runner{Shell: shell}
}

func (r *Runner) Run(ctx context.Context, req provision.ScriptRequest) error {
	commands, err := Commands(req)
	if err != nil {
		return err
	}
	return r.Shell.Run(ctx, provision.ShellCommand{
		Commands: commands,
		Venv:     req.Config.Venv,
		Dir:      req.Config.Path,
		CUDATag:  req.CUDATag,
	})
}

// Commands returns the install commands for the request's facts.
func Commands(req provision.ScriptRequest) ([]string, error) {
	if !scriptURIs[req.URI] {
		return nil, errors.ScriptDelegation(fmt.Sprintf("Unknown script %q, only torch.js is available", req.URI))
	}

	f := req.Facts
	nvidia := f.GPUVendor == facts.VendorNVIDIA
	packages := "torch torchvision torchaudio"

	var commands []string
	switch {
	case nvidia:
		commands = append(commands, install(packages, IndexURL(req.CUDATag)))
	case f.GPUVendor == facts.VendorAMD && f.Platform == facts.PlatformWindows:
		commands = append(commands, install("torch-directml", ""))
	case f.GPUVendor == facts.VendorAMD && f.Platform == facts.PlatformLinux:
		commands = append(commands, install(packages, ROCmIndex))
	case f.Platform == facts.PlatformDarwin:
		commands = append(commands, install(packages, ""))
	default:
		commands = append(commands, install(packages, CPUIndex))
	}

	cfg := req.Config
	if cfg.XFormers {
		if nvidia {
			commands = append(commands, install("xformers", IndexURL(req.CUDATag)))
		} else {
			console.Warn("Skipping xformers, it needs an NVIDIA GPU")
		}
	}
	if cfg.Triton {
		switch {
		case !nvidia:
			console.Debug("Skipping triton, no NVIDIA GPU")
		case f.Platform == facts.PlatformWindows:
			commands = append(commands, install("triton-windows", ""))
		default:
			commands = append(commands, install("triton", ""))
		}
	}
	if cfg.SageAttention {
		if nvidia {
			commands = append(commands, install("sageattention", ""))
		} else {
			console.Warn("Skipping sageattention, it needs an NVIDIA GPU")
		}
	}
	return commands, nil
}

// IndexURL is the PyTorch wheel index for a CUDA tag such as cu126.
func IndexURL(cudaTag string) string {
	return IndexBase + cudaTag
}

func install(packages string, index string) string {
	parts := []string{"uv pip install", packages}
	if index != "" {
		parts = append(parts, "--index-url", index)
	}
	return strings.Join(parts, " ")
}
