// Package guard implements the typed predicates that gate provisioning steps.
//
// Guards are evaluated against an explicit facts.Facts value. Evaluation never
// fails: a fact that is absent (no GPU vendor, an empty GPU list) makes positive
// tests against it false. A != comparison against an absent fact is true.
package guard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/provisionkit/provision/pkg/facts"
)

// Expr is a boolean predicate over environment facts.
type Expr interface {
	Eval(f facts.Facts) bool
	String() string
}

// Field names a fact a guard can read.
type Field string

const (
	FieldPlatform Field = "platform"
	FieldArch     Field = "arch"
	FieldGPU      Field = "kernel.gpu"
	FieldGPUs     Field = "kernel.gpus"
)

func (f Field) value(fs facts.Facts) string {
	switch f {
	case FieldPlatform:
		return fs.Platform
	case FieldArch:
		return fs.Arch
	case FieldGPU:
		return fs.GPUVendor
	default:
		return ""
	}
}

// Op is a comparison operator.
type Op string

const (
	OpEq Op = "=="
	OpNe Op = "!="
	OpGt Op = ">"
	OpGe Op = ">="
	OpLt Op = "<"
	OpLe Op = "<="
)

func (op Op) compareInt(a, b int) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	default:
		return false
	}
}

// Truthy is true when the field is a non-empty string, or for kernel.gpus, a non-empty list.
type Truthy struct {
	Field Field
}

func (t Truthy) Eval(f facts.Facts) bool {
	if t.Field == FieldGPUs {
		return len(f.GPUs) > 0
	}
	return t.Field.value(f) != ""
}

func (t Truthy) String() string {
	return string(t.Field)
}

// Compare tests a string field for (in)equality. Only OpEq and OpNe are valid.
type Compare struct {
	Field Field
	Op    Op
	Value string
}

func (c Compare) Eval(f facts.Facts) bool {
	v := c.Field.value(f)
	if c.Op == OpNe {
		return v != c.Value
	}
	return v == c.Value
}

func (c Compare) String() string {
	return fmt.Sprintf("%s %s %s", c.Field, c.Op, quote(c.Value))
}

// Count compares the number of detected GPUs against N.
type Count struct {
	Op Op
	N  int
}

func (c Count) Eval(f facts.Facts) bool {
	return c.Op.compareInt(len(f.GPUs), c.N)
}

func (c Count) String() string {
	return fmt.Sprintf("%s.length %s %d", FieldGPUs, c.Op, c.N)
}

// ModelMatch is true when any GPU model matches Pattern.
type ModelMatch struct {
	Pattern *regexp.Regexp
}

func (m ModelMatch) Eval(f facts.Facts) bool {
	for _, gpu := range f.GPUs {
		if m.Pattern.MatchString(gpu.Model) {
			return true
		}
	}
	return false
}

func (m ModelMatch) String() string {
	return fmt.Sprintf("%s.model =~ %s", FieldGPUs, quote(m.Pattern.String()))
}

// And is true when every operand is. An empty And is true.
type And []Expr

func (a And) Eval(f facts.Facts) bool {
	for _, e := range a {
		if !e.Eval(f) {
			return false
		}
	}
	return true
}

func (a And) String() string {
	return join(a, " && ", func(e Expr) bool {
		_, isOr := e.(Or)
		return isOr
	})
}

// Or is true when any operand is. An empty Or is false.
type Or []Expr

func (o Or) Eval(f facts.Facts) bool {
	for _, e := range o {
		if e.Eval(f) {
			return true
		}
	}
	return false
}

func (o Or) String() string {
	return join(o, " || ", func(Expr) bool { return false })
}

// Not negates X.
type Not struct {
	X Expr
}

func (n Not) Eval(f facts.Facts) bool {
	return !n.X.Eval(f)
}

func (n Not) String() string {
	switch n.X.(type) {
	case And, Or, Compare, Count, ModelMatch:
		return "!(" + n.X.String() + ")"
	default:
		return "!" + n.X.String()
	}
}

// Const is a literal true or false.
type Const bool

func (c Const) Eval(facts.Facts) bool {
	return bool(c)
}

func (c Const) String() string {
	return strconv.FormatBool(bool(c))
}

// Eval evaluates e, treating a nil guard as always true.
func Eval(e Expr, f facts.Facts) bool {
	if e == nil {
		return true
	}
	return e.Eval(f)
}

// Describe renders e for display, with "always" for a nil guard.
func Describe(e Expr) string {
	if e == nil {
		return "always"
	}
	return e.String()
}

func join(exprs []Expr, sep string, needsParens func(Expr) bool) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		s := e.String()
		if needsParens(e) {
			s = "(" + s + ")"
		}
		parts[i] = s
	}
	return strings.Join(parts, sep)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}
