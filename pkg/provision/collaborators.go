package provision

import (
	"context"

	"github.com/provisionkit/provision/pkg/facts"
	"github.com/provisionkit/provision/pkg/plan"
)

// SourceControl materialises and refreshes the application checkout.
type SourceControl interface {
	Clone(ctx context.Context, uri string, dir string) error
	// Update discards local changes (hard reset to HEAD) and pulls.
	Update(ctx context.Context, dir string) error
}

// FileCopier overlays a file onto the checkout.
type FileCopier interface {
	Copy(src string, dest string) error
}

// ShellCommand is a shell step with its placeholders already substituted.
type ShellCommand struct {
	Commands []string
	Venv     string
	Dir      string
	Build    bool
	Env      map[string]string
	CUDATag  string
}

type ShellExecutor interface {
	Run(ctx context.Context, cmd ShellCommand) error
}

// ScriptRequest is handed to a ScriptRunner. Config is passed through untouched.
type ScriptRequest struct {
	URI     string
	Config  plan.ScriptConfig
	Facts   facts.Facts
	CUDATag string
}

type ScriptRunner interface {
	Run(ctx context.Context, req ScriptRequest) error
}
