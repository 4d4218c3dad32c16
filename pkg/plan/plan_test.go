package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/provisionkit/provision/pkg/config"
	"github.com/provisionkit/provision/pkg/facts"
)

func methods(p *Plan) []Method {
	out := make([]Method, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Method()
	}
	return out
}

func TestInstallOrder(t *testing.T) {
	p := Install(config.DefaultConfig())

	require.Equal(t, "install", p.Name)
	require.Equal(t, []Method{MethodGitClone, MethodCopy, MethodScript, MethodShell, MethodShell}, methods(p))
	require.NoError(t, p.Validate())

	clone := p.Steps[0].(*Source)
	require.Equal(t, "https://github.com/Deathdadev/Direct3D-S2.git", clone.URI)
	require.Equal(t, "app", clone.Path)

	cp := p.Steps[1].(*Copy)
	require.Equal(t, "setup-new.py", cp.Src)
	require.Equal(t, "app/setup.py", cp.Dest)

	script := p.Steps[2].(*Script)
	require.Equal(t, TorchScript, script.URI)
	require.Equal(t, ScriptConfig{Venv: "env", Path: "app", Triton: true}, script.Config)
	require.Nil(t, script.Guard())
}

func TestInstallFlashAttentionStepIsGuarded(t *testing.T) {
	p := Install(config.DefaultConfig())
	flash := p.Steps[3].(*Shell)

	require.Equal(t, []string{"{{self}} flash-attn {{cuda}} ../flash.txt"}, flash.Commands)
	require.NotNil(t, flash.Guard())

	win := facts.Facts{
		Platform:  facts.PlatformWindows,
		GPUVendor: facts.VendorNVIDIA,
		GPUs:      []facts.GPU{{Model: "NVIDIA GeForce RTX 5090", Vendor: facts.VendorNVIDIA}},
	}
	require.True(t, flash.Guard().Eval(win))

	linux := win
	linux.Platform = facts.PlatformLinux
	require.False(t, flash.Guard().Eval(linux))

	noGPU := facts.Facts{Platform: facts.PlatformWindows}
	require.False(t, flash.Guard().Eval(noGPU))
}

func TestInstallMainStepIsLast(t *testing.T) {
	cfg := config.DefaultConfig()
	p := Install(cfg)

	last := p.Steps[len(p.Steps)-1].(*Shell)
	require.True(t, last.Build)
	require.Nil(t, last.Guard())
	require.Equal(t, "env", last.Venv)
	require.Equal(t, "app", last.Path)
	require.Equal(t, []string{
		"uv pip install -U setuptools",
		"uv pip install -r ../requirements-new.txt",
		"uv pip install -e .",
		"uv pip install gradio devicetorch timm kornia",
	}, last.Commands)
	require.Equal(t, "unsafe-best-match", last.Env["UV_INDEX_STRATEGY"])

	// the plan owns its env
	last.Env["UV_INDEX_STRATEGY"] = "first-index"
	require.Equal(t, "unsafe-best-match", cfg.Env["UV_INDEX_STRATEGY"])
}

func TestInstallWithoutOptionalSteps(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Overlay = nil
	cfg.FlashAttention.Enabled = false
	cfg.Packages = nil

	p := Install(cfg)
	require.Equal(t, []Method{MethodGitClone, MethodScript, MethodShell}, methods(p))
	require.Len(t, p.Steps[2].(*Shell).Commands, 3)
}

func TestUpdateOrder(t *testing.T) {
	p := Update(config.DefaultConfig())

	require.Equal(t, "update", p.Name)
	require.Equal(t, []Method{MethodGitUpdate, MethodCopy, MethodShell}, methods(p))
	require.NoError(t, p.Validate())

	sync := p.Steps[2].(*Shell)
	require.Equal(t, []string{"uv pip install -r requirements.txt"}, sync.Commands)
	require.False(t, sync.Build)
	require.Equal(t, "app", sync.Path)
}

func TestBuiltin(t *testing.T) {
	cfg := config.DefaultConfig()
	require.Equal(t, "install", Builtin("install", cfg).Name)
	require.Equal(t, "update", Builtin("update", cfg).Name)
	require.Nil(t, Builtin("uninstall", cfg))
}

func TestValidate(t *testing.T) {
	for _, tt := range []struct {
		name string
		step Step
	}{
		{"empty shell", &Shell{}},
		{"copy without dest", &Copy{Src: "a"}},
		{"script without uri", &Script{}},
		{"clone without uri", &Source{Action: SourceClone, Path: "app"}},
		{"update without path", &Source{Action: SourceUpdate}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			p := &Plan{Steps: []Step{&Shell{Commands: []string{"true"}}, tt.step}}
			err := p.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), "step 1")
		})
	}
}

func TestTitles(t *testing.T) {
	require.Equal(t, "a (+2 more) (in app)", (&Shell{Commands: []string{"a", "b", "c"}, Path: "app"}).Title())
	require.Equal(t, "torch.js [triton, xformers] (in app)", (&Script{URI: "torch.js", Config: ScriptConfig{Path: "app", Triton: true, XFormers: true}}).Title())
	require.Equal(t, "reset and pull app", (&Source{Action: SourceUpdate, Path: "app"}).Title())
}
