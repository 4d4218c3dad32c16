package venv

import "strings"

// environ is an ordered KEY=VALUE list. Keys are case-insensitive on Windows.
type environ struct {
	goos string
	vars []string
}

func newEnviron(base []string, goos string) *environ {
	vars := make([]string, len(base))
	copy(vars, base)
	return &environ{goos: goos, vars: vars}
}

func (e *environ) index(key string) int {
	for i, kv := range e.vars {
		k, _, _ := strings.Cut(kv, "=")
		if k == key || (e.goos == "windows" && strings.EqualFold(k, key)) {
			return i
		}
	}
	return -1
}

func (e *environ) get(key string) string {
	if i := e.index(key); i >= 0 {
		_, v, _ := strings.Cut(e.vars[i], "=")
		return v
	}
	return ""
}

func (e *environ) set(key, value string) {
	if i := e.index(key); i >= 0 {
		k, _, _ := strings.Cut(e.vars[i], "=")
		e.vars[i] = k + "=" + value
		return
	}
	e.vars = append(e.vars, key+"="+value)
}

func (e *environ) unset(key string) {
	if i := e.index(key); i >= 0 {
		e.vars = append(e.vars[:i], e.vars[i+1:]...)
	}
}

// activate does what the venv's activate script does.
func (e *environ) activate(venvDir string) {
	sep := ":"
	if e.goos == "windows" {
		sep = ";"
	}
	bin := BinDir(venvDir, e.goos)
	if path := e.get("PATH"); path != "" {
		e.set("PATH", bin+sep+path)
	} else {
		e.set("PATH", bin)
	}
	e.set("VIRTUAL_ENV", venvDir)
	e.unset("PYTHONHOME")
}

func (e *environ) list() []string {
	out := make([]string, len(e.vars))
	copy(out, e.vars)
	return out
}
