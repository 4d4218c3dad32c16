package plan

import (
	"strings"

	"github.com/provisionkit/provision/pkg/config"
	"github.com/provisionkit/provision/pkg/cuda"
	"github.com/provisionkit/provision/pkg/guard"
)

const (
	// SelfPlaceholder is replaced with the path of the running provision binary.
	SelfPlaceholder = "{{self}}"

	// TorchScript is the URI of the PyTorch installer script.
	TorchScript = "torch.js"

	// FlashAttentionGuard limits the prebuilt flash-attention wheels to Windows machines with an NVIDIA GPU.
	FlashAttentionGuard = "{{platform === 'win32' && kernel.gpu === 'nvidia' && kernel.gpus && kernel.gpus.length > 0}}"
)

// Install is the full bootstrap: clone, overlay, torch, flash-attention, then the
// main dependency install, which is always the last shell step.
func Install(cfg *config.Config) *Plan {
	steps := []Step{
		&Source{Action: SourceClone, URI: cfg.Repository, Path: cfg.App},
	}
	if cfg.Overlay != nil {
		steps = append(steps, &Copy{Src: cfg.Overlay.Src, Dest: cfg.Overlay.Dest})
	}
	steps = append(steps, &Script{
		URI: TorchScript,
		Config: ScriptConfig{
			Venv:          cfg.Venv,
			Path:          cfg.App,
			Triton:        cfg.Torch.Triton,
			XFormers:      cfg.Torch.XFormers,
			SageAttention: cfg.Torch.SageAttention,
		},
	})
	if cfg.FlashAttention.Enabled {
		steps = append(steps, &Shell{
			Venv: cfg.Venv,
			Path: cfg.App,
			When: guard.MustParse(FlashAttentionGuard),
			Commands: []string{
				strings.Join([]string{SelfPlaceholder, "flash-attn", cuda.Placeholder, cfg.FlashAttention.Index}, " "),
			},
		})
	}

	commands := []string{"uv pip install -U setuptools"}
	if cfg.Requirements != "" {
		commands = append(commands, "uv pip install -r "+cfg.Requirements)
	}
	commands = append(commands, "uv pip install -e .")
	if len(cfg.Packages) > 0 {
		commands = append(commands, "uv pip install "+strings.Join(cfg.Packages, " "))
	}
	steps = append(steps, &Shell{
		Venv:     cfg.Venv,
		Path:     cfg.App,
		Build:    true,
		Env:      copyEnv(cfg.Env),
		Commands: commands,
	})

	return &Plan{Name: "install", Steps: steps}
}

// Update discards local changes in the checkout, pulls, re-applies the overlay
// and re-syncs the requirements.
func Update(cfg *config.Config) *Plan {
	steps := []Step{
		&Source{Action: SourceUpdate, Path: cfg.App},
	}
	if cfg.Overlay != nil {
		steps = append(steps, &Copy{Src: cfg.Overlay.Src, Dest: cfg.Overlay.Dest})
	}
	steps = append(steps, &Shell{
		Venv:     cfg.Venv,
		Path:     cfg.App,
		Commands: []string{"uv pip install -r " + cfg.UpdateRequirements},
	})
	return &Plan{Name: "update", Steps: steps}
}

// Builtin returns the named built-in plan, or nil.
func Builtin(name string, cfg *config.Config) *Plan {
	switch name {
	case "install":
		return Install(cfg)
	case "update":
		return Update(cfg)
	default:
		return nil
	}
}

func copyEnv(env map[string]string) map[string]string {
	if len(env) == 0 {
		return nil
	}
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}
