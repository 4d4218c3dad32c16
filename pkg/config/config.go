package config

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v2"

	"github.com/provisionkit/provision/pkg/cuda"
)

// Overlay is the custom build descriptor copied over the cloned tree.
type Overlay struct {
	Src  string `json:"src" yaml:"src"`
	Dest string `json:"dest" yaml:"dest"`
}

// Torch holds the optional acceleration backends installed next to PyTorch.
type Torch struct {
	Triton        bool `json:"triton,omitempty" yaml:"triton"`
	XFormers      bool `json:"xformers,omitempty" yaml:"xformers"`
	SageAttention bool `json:"sageattention,omitempty" yaml:"sageattention"`
}

type FlashAttention struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Index is the wheel list handed to `provision flash-attn`, relative to the app directory.
	Index string `json:"index,omitempty" yaml:"index"`
}

type CUDA struct {
	Pattern    string `json:"pattern,omitempty" yaml:"pattern"`
	MatchTag   string `json:"match_tag,omitempty" yaml:"match_tag"`
	DefaultTag string `json:"default_tag,omitempty" yaml:"default_tag"`
}

type Config struct {
	Repository string   `json:"repository" yaml:"repository"`
	App        string   `json:"app" yaml:"app"`
	Venv       string   `json:"venv" yaml:"venv"`
	Overlay    *Overlay `json:"overlay,omitempty" yaml:"overlay"`
	// Requirements is installed by the install plan, relative to the app directory.
	Requirements string `json:"requirements" yaml:"requirements"`
	// UpdateRequirements is re-synced by the update plan, relative to the app directory.
	UpdateRequirements string            `json:"update_requirements" yaml:"update_requirements"`
	Packages           []string          `json:"packages,omitempty" yaml:"packages"`
	Env                map[string]string `json:"env,omitempty" yaml:"env"`
	Torch              Torch             `json:"torch" yaml:"torch"`
	FlashAttention     FlashAttention    `json:"flash_attention" yaml:"flash_attention"`
	CUDA               CUDA              `json:"cuda" yaml:"cuda"`

	filename string
}

// DefaultConfig reproduces the stock Direct3D-S2 installer.
func DefaultConfig() *Config {
	return &Config{
		Repository: "https://github.com/Deathdadev/Direct3D-S2.git",
		App:        "app",
		Venv:       "env",
		Overlay: &Overlay{
			Src:  "setup-new.py",
			Dest: "app/setup.py",
		},
		Requirements:       "../requirements-new.txt",
		UpdateRequirements: "requirements.txt",
		Packages:           []string{"gradio", "devicetorch", "timm", "kornia"},
		Env: map[string]string{
			"UV_INDEX_STRATEGY":     "unsafe-best-match",
			"UV_NO_BUILD_ISOLATION": "1",
			"DISTUTILS_USE_SDK":     "1",
		},
		Torch: Torch{Triton: true},
		FlashAttention: FlashAttention{
			Enabled: true,
			Index:   "../flash.txt",
		},
	}
}

func FromYAML(contents []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.UnmarshalStrict(contents, config); err != nil {
		return nil, fmt.Errorf("Failed to parse config yaml: %w", err)
	}
	return config, nil
}

// Filename is the file the config was loaded from, or "" for built-in defaults.
func (c *Config) Filename() string {
	return c.filename
}

func (c *Config) Validate() error {
	if c.Repository == "" {
		return fmt.Errorf("repository must be set")
	}
	if c.App == "" {
		return fmt.Errorf("app must be set")
	}
	if c.Venv == "" {
		return fmt.Errorf("venv must be set")
	}
	if c.UpdateRequirements == "" {
		return fmt.Errorf("update_requirements must be set")
	}
	if c.Overlay != nil && (c.Overlay.Src == "" || c.Overlay.Dest == "") {
		return fmt.Errorf("overlay needs both src and dest")
	}
	if c.FlashAttention.Enabled && c.FlashAttention.Index == "" {
		return fmt.Errorf("flash_attention.index must be set when flash_attention is enabled")
	}
	if _, err := c.Selector(); err != nil {
		return fmt.Errorf("cuda.pattern is not a valid regular expression: %w", err)
	}
	return nil
}

// Selector builds the CUDA tag selector from the cuda block.
func (c *Config) Selector() (cuda.Selector, error) {
	return cuda.NewSelector(c.CUDA.Pattern, c.CUDA.MatchTag, c.CUDA.DefaultTag)
}

// EnvKeys returns the names of the extra environment variables in sorted order.
func (c *Config) EnvKeys() []string {
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
