// Package cuda picks the CUDA tag of the prebuilt GPU wheels to install.
package cuda

import (
	"regexp"
	"strings"

	"github.com/provisionkit/provision/pkg/facts"
)

const (
	// Placeholder is replaced with the selected tag in shell step commands.
	Placeholder = "{{cuda}}"

	DefaultTag   = "cu126"
	Blackwell    = "cu128"
	DefaultMatch = ` 50.+`
)

// Selector chooses MatchTag when any GPU model matches Pattern, DefaultTag otherwise.
type Selector struct {
	Pattern    *regexp.Regexp
	MatchTag   string
	DefaultTag string
}

// DefaultSelector sends RTX 50-series cards to the cu128 wheels and everything else to cu126.
var DefaultSelector = Selector{
	Pattern:    regexp.MustCompile(DefaultMatch),
	MatchTag:   Blackwell,
	DefaultTag: DefaultTag,
}

// NewSelector compiles pattern. Empty arguments fall back to the defaults.
func NewSelector(pattern, matchTag, defaultTag string) (Selector, error) {
	s := DefaultSelector
	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Selector{}, err
		}
		s.Pattern = re
	}
	if matchTag != "" {
		s.MatchTag = matchTag
	}
	if defaultTag != "" {
		s.DefaultTag = defaultTag
	}
	return s, nil
}

// Select returns exactly one tag. An empty or nil list yields DefaultTag, and a
// selector without a DefaultTag falls back to the package DefaultTag.
func (s Selector) Select(gpus []facts.GPU) string {
	if s.Pattern != nil && s.MatchTag != "" {
		for _, gpu := range gpus {
			if s.Pattern.MatchString(gpu.Model) {
				return s.MatchTag
			}
		}
	}
	if s.DefaultTag == "" {
		return DefaultTag
	}
	return s.DefaultTag
}

// SelectTag applies DefaultSelector.
func SelectTag(gpus []facts.GPU) string {
	return DefaultSelector.Select(gpus)
}

// Substitute replaces every Placeholder in command with tag.
func Substitute(command, tag string) string {
	return strings.ReplaceAll(command, Placeholder, tag)
}
