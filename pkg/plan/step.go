package plan

import (
	"fmt"
	"strings"

	"github.com/provisionkit/provision/pkg/guard"
)

// Method is the discriminator of a step record in a plan file.
type Method string

const (
	MethodShell     Method = "shell.run"
	MethodCopy      Method = "fs.copy"
	MethodScript    Method = "script.start"
	MethodGitClone  Method = "git.clone"
	MethodGitUpdate Method = "git.update"
)

// Step is one provisioning action. The set of implementations is closed:
// *Shell, *Copy, *Script and *Source.
type Step interface {
	Method() Method
	// Guard returns the step's guard, or nil when the step always runs.
	Guard() guard.Expr
	// Title is a one-line description for logs and tables.
	Title() string

	isStep()
}

// Shell runs Commands in order inside an optional virtual environment.
type Shell struct {
	Commands []string          `json:"message"`
	Venv     string            `json:"venv,omitempty"`
	Path     string            `json:"path,omitempty"`
	Build    bool              `json:"build,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
	When     guard.Expr        `json:"-"`
}

func (s *Shell) Method() Method    { return MethodShell }
func (s *Shell) Guard() guard.Expr { return s.When }
func (s *Shell) isStep()           {}

func (s *Shell) Title() string {
	summary := ""
	if len(s.Commands) > 0 {
		summary = s.Commands[0]
		if len(s.Commands) > 1 {
			summary += fmt.Sprintf(" (+%d more)", len(s.Commands)-1)
		}
	}
	return withDir(summary, s.Path)
}

// Copy overlays Src onto Dest.
type Copy struct {
	Src  string     `json:"src"`
	Dest string     `json:"dest"`
	When guard.Expr `json:"-"`
}

func (c *Copy) Method() Method    { return MethodCopy }
func (c *Copy) Guard() guard.Expr { return c.When }
func (c *Copy) Title() string     { return c.Src + " → " + c.Dest }
func (c *Copy) isStep()           {}

// ScriptConfig is handed to the script runner untouched.
type ScriptConfig struct {
	Venv          string `json:"venv,omitempty"`
	Path          string `json:"path,omitempty"`
	Triton        bool   `json:"triton,omitempty"`
	XFormers      bool   `json:"xformers,omitempty"`
	SageAttention bool   `json:"sageattention,omitempty"`
}

// Features lists the enabled feature toggles by name.
func (c ScriptConfig) Features() []string {
	var features []string
	if c.Triton {
		features = append(features, "triton")
	}
	if c.XFormers {
		features = append(features, "xformers")
	}
	if c.SageAttention {
		features = append(features, "sageattention")
	}
	return features
}

// Script delegates to an external script identified by URI.
type Script struct {
	URI    string       `json:"uri"`
	Config ScriptConfig `json:"params"`
	When   guard.Expr   `json:"-"`
}

func (s *Script) Method() Method    { return MethodScript }
func (s *Script) Guard() guard.Expr { return s.When }
func (s *Script) isStep()           {}

func (s *Script) Title() string {
	title := s.URI
	if features := s.Config.Features(); len(features) > 0 {
		title += " [" + strings.Join(features, ", ") + "]"
	}
	return withDir(title, s.Config.Path)
}

// SourceAction selects what the source control client does.
type SourceAction string

const (
	SourceClone  SourceAction = "clone"
	SourceUpdate SourceAction = "update"
)

// Source materialises or refreshes the application checkout at Path.
type Source struct {
	Action SourceAction `json:"-"`
	URI    string       `json:"uri,omitempty"`
	Path   string       `json:"path"`
	When   guard.Expr   `json:"-"`
}

func (s *Source) Method() Method {
	if s.Action == SourceUpdate {
		return MethodGitUpdate
	}
	return MethodGitClone
}

func (s *Source) Guard() guard.Expr { return s.When }
func (s *Source) isStep()           {}

func (s *Source) Title() string {
	if s.Action == SourceUpdate {
		return "reset and pull " + s.Path
	}
	return s.URI + " → " + s.Path
}

func withDir(title, dir string) string {
	if dir == "" {
		return title
	}
	return title + " (in " + dir + ")"
}
