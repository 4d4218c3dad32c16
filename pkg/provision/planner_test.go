package provision_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/provisionkit/provision/pkg/config"
	"github.com/provisionkit/provision/pkg/cuda"
	perrors "github.com/provisionkit/provision/pkg/errors"
	"github.com/provisionkit/provision/pkg/facts"
	"github.com/provisionkit/provision/pkg/guard"
	"github.com/provisionkit/provision/pkg/plan"
	"github.com/provisionkit/provision/pkg/provision"
	"github.com/provisionkit/provision/pkg/provision/provisiontest"
)

var (
	winRTX5090 = facts.Facts{
		Platform:  facts.PlatformWindows,
		Arch:      "amd64",
		GPUVendor: facts.VendorNVIDIA,
		GPUs:      []facts.GPU{{Model: "NVIDIA GeForce RTX 5090", Vendor: facts.VendorNVIDIA}},
	}
	linuxRTX3090 = facts.Facts{
		Platform:  facts.PlatformLinux,
		Arch:      "amd64",
		GPUVendor: facts.VendorNVIDIA,
		GPUs:      []facts.GPU{{Model: "NVIDIA GeForce RTX 3090", Vendor: facts.VendorNVIDIA}},
	}
)

func newPlanner(r *provisiontest.Recorder) *provision.Planner {
	p := r.Planner()
	p.Selector = cuda.DefaultSelector
	p.Self = "/opt/provision"
	return p
}

func TestInstallOnWindowsBlackwell(t *testing.T) {
	r := provisiontest.NewRecorder()
	p := newPlanner(r)

	err := p.Execute(context.Background(), plan.Install(config.DefaultConfig()), facts.Static(winRTX5090))
	require.NoError(t, err)

	require.Equal(t, []string{
		"clone https://github.com/Deathdadev/Direct3D-S2.git app",
		"copy setup-new.py app/setup.py",
		"script torch.js cu128",
		"shell /opt/provision flash-attn cu128 ../flash.txt",
		"shell uv pip install -U setuptools uv pip install -r ../requirements-new.txt uv pip install -e . uv pip install gradio devicetorch timm kornia",
	}, r.Strings())

	calls := r.Calls()
	flash := calls[3].Shell
	require.Equal(t, "cu128", flash.CUDATag)
	require.Equal(t, "env", flash.Venv)
	require.Equal(t, "app", flash.Dir)
	require.False(t, flash.Build)

	main := calls[4].Shell
	require.True(t, main.Build)
	require.Equal(t, "1", main.Env["UV_NO_BUILD_ISOLATION"])

	script := calls[2].Script
	require.Equal(t, winRTX5090, script.Facts)
	require.True(t, script.Config.Triton)

	require.Equal(t, provision.State{Phase: provision.Succeeded, Step: 4}, p.State())
}

func TestInstallOnLinuxSkipsFlashAttention(t *testing.T) {
	r := provisiontest.NewRecorder()
	p := newPlanner(r)

	err := p.Execute(context.Background(), plan.Install(config.DefaultConfig()), facts.Static(linuxRTX3090))
	require.NoError(t, err)

	calls := r.Calls()
	require.Len(t, calls, 4)
	last := calls[3]
	require.Equal(t, "shell", last.Kind)
	require.Equal(t, "cu126", last.Shell.CUDATag)

	results := p.Results()
	require.Len(t, results, 5)
	require.Equal(t, provision.OutcomeSkipped, results[3].Outcome)
	require.Equal(t, provision.OutcomeRan, results[4].Outcome)
	require.Equal(t, "cu126", results[4].CUDATag)
}

func TestAbsentGPUFactsSkipWithoutCalls(t *testing.T) {
	r := provisiontest.NewRecorder()
	p := newPlanner(r)

	pl := &plan.Plan{Steps: []plan.Step{
		&plan.Shell{
			Commands: []string{"{{self}} flash-attn {{cuda}} ../flash.txt"},
			When:     guard.MustParse(plan.FlashAttentionGuard),
		},
	}}
	err := p.Execute(context.Background(), pl, facts.Static(facts.Facts{Platform: facts.PlatformWindows}))
	require.NoError(t, err)
	require.Empty(t, r.Calls())
	require.Equal(t, provision.Succeeded, p.State().Phase)
}

func TestDeterministicCallSequence(t *testing.T) {
	run := func() []string {
		r := provisiontest.NewRecorder()
		require.NoError(t, newPlanner(r).Execute(context.Background(), plan.Install(config.DefaultConfig()), facts.Static(winRTX5090)))
		return r.Strings()
	}
	require.Equal(t, run(), run())
}

func TestFailFast(t *testing.T) {
	r := provisiontest.NewRecorder()
	cause := errors.New("torch index unreachable")
	r.Errors["script"] = cause
	p := newPlanner(r)

	err := p.Execute(context.Background(), plan.Install(config.DefaultConfig()), facts.Static(winRTX5090))
	require.Error(t, err)

	var perr *provision.ProvisioningError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, 2, perr.Index)
	require.Equal(t, "script.start", perr.Method)
	require.Equal(t, perrors.CodeScriptDelegationFailure, perr.Code())
	require.Equal(t, perrors.CodeScriptDelegationFailure, perrors.Code(err))
	require.ErrorIs(t, err, cause)
	require.Equal(t, "step 2 (script.start) failed [SCRIPT_DELEGATION_FAILURE]: script: torch index unreachable", err.Error())

	require.Len(t, r.Calls(), 3)
	state := p.State()
	require.Equal(t, provision.Failed, state.Phase)
	require.Equal(t, 2, state.Step)
	require.Equal(t, err, state.Cause)
}

func TestFailureCodes(t *testing.T) {
	for _, tt := range []struct {
		kind string
		step plan.Step
		code string
	}{
		{"clone", &plan.Source{Action: plan.SourceClone, URI: "u", Path: "app"}, perrors.CodeCloneFailure},
		{"update", &plan.Source{Action: plan.SourceUpdate, Path: "app"}, perrors.CodeCloneFailure},
		{"copy", &plan.Copy{Src: "a", Dest: "b"}, perrors.CodeCopyFailure},
		{"shell", &plan.Shell{Commands: []string{"false"}}, perrors.CodeShellStepFailure},
	} {
		t.Run(tt.kind, func(t *testing.T) {
			r := provisiontest.NewRecorder()
			r.Errors[tt.kind] = errors.New("boom")
			err := newPlanner(r).Execute(context.Background(), &plan.Plan{Steps: []plan.Step{tt.step}}, facts.Static(linuxRTX3090))
			require.Equal(t, tt.code, perrors.Code(err))
		})
	}
}

func TestCollaboratorCodeIsKept(t *testing.T) {
	r := provisiontest.NewRecorder()
	r.Errors["script"] = perrors.InvalidPlan("bad", nil)
	err := newPlanner(r).Execute(context.Background(), &plan.Plan{Steps: []plan.Step{&plan.Script{URI: "torch.js"}}}, facts.Static(linuxRTX3090))
	require.Equal(t, perrors.CodeInvalidPlan, perrors.Code(err))
}

func TestEmptyPlanSucceeds(t *testing.T) {
	r := provisiontest.NewRecorder()
	p := newPlanner(r)

	require.Equal(t, provision.Idle, p.State().Phase)
	require.NoError(t, p.Execute(context.Background(), &plan.Plan{}, facts.Static(linuxRTX3090)))
	require.Equal(t, provision.Succeeded, p.State().Phase)
	require.Empty(t, r.Calls())
}

func TestMissingCollaboratorFailsBeforeRunning(t *testing.T) {
	r := provisiontest.NewRecorder()
	p := newPlanner(r)
	p.Copier = nil

	err := p.Execute(context.Background(), plan.Install(config.DefaultConfig()), facts.Static(winRTX5090))
	var perr *provision.ProvisioningError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, 1, perr.Index)
	require.Equal(t, perrors.CodeInvalidPlan, perr.Code())
	require.Contains(t, err.Error(), "no file copier configured")
	require.Empty(t, r.Calls())

	state := p.State()
	require.Equal(t, provision.Failed, state.Phase)
	require.Equal(t, 1, state.Step)
}

func TestPlannerRunsOnce(t *testing.T) {
	r := provisiontest.NewRecorder()
	p := newPlanner(r)
	pl := plan.Update(config.DefaultConfig())

	require.NoError(t, p.Execute(context.Background(), pl, facts.Static(linuxRTX3090)))
	require.ErrorIs(t, p.Execute(context.Background(), pl, facts.Static(linuxRTX3090)), provision.ErrNotIdle)
	require.Len(t, r.Calls(), 3)
}

func TestFactsFetchedPerStep(t *testing.T) {
	r := provisiontest.NewRecorder()
	p := newPlanner(r)

	calls := 0
	provider := func(context.Context) facts.Facts {
		calls++
		return linuxRTX3090
	}
	require.NoError(t, p.Execute(context.Background(), plan.Update(config.DefaultConfig()), provider))
	require.Equal(t, 3, calls)
}

func TestUpdatePlan(t *testing.T) {
	r := provisiontest.NewRecorder()
	require.NoError(t, newPlanner(r).Execute(context.Background(), plan.Update(config.DefaultConfig()), facts.Static(linuxRTX3090)))
	require.Equal(t, []string{
		"update app",
		"copy setup-new.py app/setup.py",
		"shell uv pip install -r requirements.txt",
	}, r.Strings())
}

func TestSelfIsQuoted(t *testing.T) {
	r := provisiontest.NewRecorder()
	p := r.Planner()
	p.Self = `C:\Program Files\provision.exe`

	pl := &plan.Plan{Steps: []plan.Step{&plan.Shell{Commands: []string{"{{self}} facts"}}}}
	require.NoError(t, p.Execute(context.Background(), pl, facts.Static(winRTX5090)))
	require.Equal(t, []string{`"C:\Program Files\provision.exe" facts`}, r.Calls()[0].Args)
	require.Equal(t, cuda.DefaultTag, r.Calls()[0].Shell.CUDATag)
}
