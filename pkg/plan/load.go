package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/provisionkit/provision/pkg/errors"
	"github.com/provisionkit/provision/pkg/guard"
)

type rawPlan struct {
	Name string    `json:"name"`
	Run  []rawStep `json:"run"`
}

type rawStep struct {
	Method string    `json:"method"`
	Params rawParams `json:"params"`
}

type rawParams struct {
	Message json.RawMessage        `json:"message"`
	Venv    string                 `json:"venv"`
	Path    string                 `json:"path"`
	Build   bool                   `json:"build"`
	Env     map[string]interface{} `json:"env"`
	When    string                 `json:"when"`
	Src     string                 `json:"src"`
	Dest    string                 `json:"dest"`
	From    string                 `json:"from"`
	To      string                 `json:"to"`
	URI     string                 `json:"uri"`
	Params  *ScriptConfig          `json:"params"`
}

// Load reads a plan definition file (YAML or JSON). The plan is named after
// the file unless the document sets a name.
func Load(path string) (*Plan, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := Parse(contents)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

// Parse decodes and validates a plan definition document.
func Parse(contents []byte) (*Plan, error) {
	doc, err := yaml.YAMLToJSON(contents)
	if err != nil {
		return nil, errors.InvalidPlan("Failed to parse plan", err)
	}
	if err := ValidateJSON(doc); err != nil {
		return nil, errors.InvalidPlan("Invalid plan", err)
	}

	var raw rawPlan
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, errors.InvalidPlan("Failed to decode plan", err)
	}

	p := &Plan{Name: raw.Name}
	for i, rs := range raw.Run {
		step, err := decodeStep(rs)
		if err != nil {
			if errors.IsGuardEvaluation(err) {
				return nil, errors.GuardEvaluation(fmt.Sprintf("step %d (%s)", i, rs.Method), err)
			}
			return nil, errors.InvalidPlan(fmt.Sprintf("step %d (%s)", i, rs.Method), err)
		}
		p.Steps = append(p.Steps, step)
	}
	if err := p.Validate(); err != nil {
		return nil, errors.InvalidPlan("Invalid plan", err)
	}
	return p, nil
}

func decodeStep(rs rawStep) (Step, error) {
	var when guard.Expr
	if strings.TrimSpace(rs.Params.When) != "" {
		g, err := guard.Parse(rs.Params.When)
		if err != nil {
			return nil, errors.GuardEvaluation("when", err)
		}
		when = g
	}

	params := rs.Params
	switch Method(rs.Method) {
	case MethodShell:
		commands, err := decodeMessage(params.Message)
		if err != nil {
			return nil, err
		}
		return &Shell{
			Commands: commands,
			Venv:     params.Venv,
			Path:     params.Path,
			Build:    params.Build,
			Env:      stringifyEnv(params.Env),
			When:     when,
		}, nil
	case MethodCopy:
		return &Copy{
			Src:  firstNonEmpty(params.Src, params.From),
			Dest: firstNonEmpty(params.Dest, params.To),
			When: when,
		}, nil
	case MethodScript:
		s := &Script{URI: params.URI, When: when}
		if params.Params != nil {
			s.Config = *params.Params
		}
		return s, nil
	case MethodGitClone:
		return &Source{Action: SourceClone, URI: params.URI, Path: params.Path, When: when}, nil
	case MethodGitUpdate:
		return &Source{Action: SourceUpdate, Path: params.Path, When: when}, nil
	default:
		return nil, fmt.Errorf("unknown method %q", rs.Method)
	}
}

func decodeMessage(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("message must be a string or a list of strings: %w", err)
	}
	return list, nil
}

func stringifyEnv(env map[string]interface{}) map[string]string {
	if len(env) == 0 {
		return nil
	}
	out := make(map[string]string, len(env))
	for k, value := range env {
		switch v := value.(type) {
		case string:
			out[k] = v
		case float64:
			out[k] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(v)
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
