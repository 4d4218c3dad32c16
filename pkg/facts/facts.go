// Package facts describes the host a plan runs on: operating system, architecture and GPUs.
package facts

import (
	"context"
	"strings"
)

const (
	PlatformWindows = "win32"
	PlatformLinux   = "linux"
	PlatformDarwin  = "darwin"

	VendorNVIDIA = "nvidia"
	VendorAMD    = "amd"
	VendorIntel  = "intel"
	VendorApple  = "apple"
)

// GPU is a single detected graphics adapter.
type GPU struct {
	Model  string `json:"model"`
	Vendor string `json:"vendor,omitempty"`
}

// Facts is a read-only snapshot of the environment. A zero GPUVendor or an empty
// GPUs list means no GPU was found.
type Facts struct {
	Platform  string `json:"platform"`
	Arch      string `json:"arch"`
	GPUVendor string `json:"gpu,omitempty"`
	GPUs      []GPU  `json:"gpus,omitempty"`
}

// Models returns the model names of all GPUs, in detection order.
func (f Facts) Models() []string {
	models := make([]string, 0, len(f.GPUs))
	for _, gpu := range f.GPUs {
		models = append(models, gpu.Model)
	}
	return models
}

// Provider returns the current facts. It is called once per step so facts that
// only become available during provisioning are picked up.
type Provider func(ctx context.Context) Facts

// Static returns a Provider that always answers f.
func Static(f Facts) Provider {
	return func(context.Context) Facts {
		return f
	}
}

// Override replaces individual fields of another provider's facts.
type Override struct {
	Platform  string
	GPUVendor string
	GPUModels []string
}

func (o Override) IsEmpty() bool {
	return o.Platform == "" && o.GPUVendor == "" && len(o.GPUModels) == 0
}

// Wrap layers the override on top of p.
func (o Override) Wrap(p Provider) Provider {
	if o.IsEmpty() {
		return p
	}
	return func(ctx context.Context) Facts {
		f := p(ctx)
		if o.Platform != "" {
			f.Platform = o.Platform
		}
		if o.GPUVendor != "" {
			f.GPUVendor = strings.ToLower(o.GPUVendor)
		}
		if len(o.GPUModels) > 0 {
			f.GPUs = make([]GPU, 0, len(o.GPUModels))
			for _, model := range o.GPUModels {
				f.GPUs = append(f.GPUs, GPU{Model: model, Vendor: f.GPUVendor})
			}
		}
		return f
	}
}

// PlatformFromGOOS maps a Go GOOS value onto the platform names used by plan guards.
func PlatformFromGOOS(goos string) string {
	if goos == "windows" {
		return PlatformWindows
	}
	return goos
}
