package bundle

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// knownClasses are legacy installation classes that need no class
// action script and are safe to publish.
var knownClasses = []string{"none", "manifest"}

// Validator inspects legacy package bundles and accumulates findings
// instead of raising them, so one pass over many bundles surfaces
// every problem at once. Callers consult Warnings and Errors only
// after all intended bundles have been visited.
type Validator struct {
	visited  bool
	warnings map[string]struct{}
	errors   map[string]struct{}
}

var _ Visitor = (*Validator)(nil)

func NewValidator() *Validator {
	return &Validator{
		warnings: map[string]struct{}{},
		errors:   map[string]struct{}{},
	}
}

// Visit records findings for one bundle. Bundles without an identity
// have nothing to validate.
func (v *Validator) Visit(b Bundle) {
	if b.Identity() == "" {
		return
	}

	if v.visited {
		v.warnings["WARNING: Several SVR4 packages detected. "+
			"Multiple pkg.summary and pkg.description attributes may have been generated."] = struct{}{}
	}

	for _, a := range b.Actions() {
		path, ok := a.Attrs["path"]
		if !ok {
			continue
		}
		class, ok := b.ClassForPath(path)
		if !ok || slices.Contains(knownClasses, class) {
			continue
		}
		v.errors[fmt.Sprintf(
			"ERROR: class action script used in %s: %s belongs to %q class",
			b.Identity(), path, class)] = struct{}{}
	}

	for _, script := range b.Scripts() {
		v.errors[fmt.Sprintf(
			"ERROR: script present in %s: %s",
			b.Identity(), script)] = struct{}{}
	}

	v.visited = true
}

func (v *Validator) Warnings() []string { return sorted(v.warnings) }
func (v *Validator) Errors() []string   { return sorted(v.errors) }

func sorted(set map[string]struct{}) []string {
	out := maps.Keys(set)
	slices.Sort(out)
	return out
}
