package facts

import (
	"context"
	"regexp"
	"runtime"
	"strings"

	"github.com/provisionkit/provision/pkg/shell"
	"github.com/provisionkit/provision/pkg/util/console"
)

var lspciControllerRegex = regexp.MustCompile(`(?i)(?:VGA compatible controller|3D controller|Display controller):\s*(.+)$`)

// Detector inspects the local machine.
type Detector struct {
	Runner shell.Runner
	GOOS   string
	GOARCH string
}

func NewDetector(runner shell.Runner) *Detector {
	return &Detector{Runner: runner, GOOS: runtime.GOOS, GOARCH: runtime.GOARCH}
}

// Provider returns the detector as a facts.Provider.
func (d *Detector) Provider() Provider {
	return d.Detect
}

// Detect never fails: anything it cannot determine is left empty.
func (d *Detector) Detect(ctx context.Context) Facts {
	f := Facts{
		Platform: PlatformFromGOOS(d.GOOS),
		Arch:     d.GOARCH,
	}
	f.GPUs = d.detectGPUs(ctx)
	if len(f.GPUs) > 0 {
		f.GPUVendor = f.GPUs[0].Vendor
	}
	return f
}

func (d *Detector) detectGPUs(ctx context.Context) []GPU {
	out, err := d.Runner.Output(ctx, shell.Command{
		Name: "nvidia-smi",
		Args: []string{"--query-gpu=name", "--format=csv,noheader"},
	})
	if err == nil {
		if gpus := parseNvidiaSMI(out); len(gpus) > 0 {
			return gpus
		}
	} else {
		console.Debugf("nvidia-smi unavailable: %s", err)
	}

	switch d.GOOS {
	case "linux":
		out, err := d.Runner.Output(ctx, shell.Command{Name: "lspci"})
		if err != nil {
			console.Debugf("lspci unavailable: %s", err)
			return nil
		}
		return parseLspci(out)
	case "darwin":
		if isAppleSiliconMac(d.GOOS, d.GOARCH) {
			return []GPU{{Model: "Apple Silicon", Vendor: VendorApple}}
		}
	}
	return nil
}

func parseNvidiaSMI(out string) []GPU {
	var gpus []GPU
	for _, line := range strings.Split(out, "\n") {
		model := strings.TrimSpace(line)
		if model == "" {
			continue
		}
		gpus = append(gpus, GPU{Model: model, Vendor: VendorNVIDIA})
	}
	return gpus
}

func parseLspci(out string) []GPU {
	var gpus []GPU
	for _, line := range strings.Split(out, "\n") {
		m := lspciControllerRegex.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		desc := strings.TrimSpace(m[1])
		gpus = append(gpus, GPU{Model: desc, Vendor: vendorFromDescription(desc)})
	}
	return gpus
}

func vendorFromDescription(desc string) string {
	lower := strings.ToLower(desc)
	switch {
	case strings.Contains(lower, "nvidia"):
		return VendorNVIDIA
	case strings.Contains(lower, "amd"), strings.Contains(lower, "advanced micro devices"), strings.Contains(lower, "radeon"):
		return VendorAMD
	case strings.Contains(lower, "intel"):
		return VendorIntel
	default:
		return ""
	}
}

// isAppleSiliconMac returns whether the current machine is an Apple silicon computer, such as the MacBook Air with M1.
func isAppleSiliconMac(goos string, goarch string) bool {
	return goos == "darwin" && goarch == "arm64"
}
