// Package manifest parses package manifest text into an ordered
// action sequence and exposes the package identity it declares.
package manifest

import (
	"fmt"
	"strings"

	"pkgpress.run/internal/actions"
	"pkgpress.run/internal/fmri"
)

// Manifest is an ordered sequence of actions built once per
// invocation and discarded after the transaction completes.
type Manifest struct {
	Actions []*actions.Action
}

// ParseError reports a syntax problem at a 1-based global line of
// the aggregated input.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Parse parses manifest text, one action per logical line. Blank
// lines and # comments are skipped but still counted for
// diagnostics.
func Parse(content string) (*Manifest, error) {
	m := &Manifest{}
	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		a, err := actions.ParseLine(trimmed)
		if err != nil {
			return nil, &ParseError{Line: i + 1, Reason: err.Error()}
		}
		m.Actions = append(m.Actions, a)
	}
	return m, nil
}

type DuplicateIdentityError struct{}

func (e *DuplicateIdentityError) Error() string {
	return "manifest declares more than one pkg.fmri"
}

type MissingIdentityError struct{}

func (e *MissingIdentityError) Error() string {
	return "manifest does not set pkg.fmri"
}

type MissingVersionError struct {
	FMRI string
}

func (e *MissingVersionError) Error() string {
	return fmt.Sprintf(
		"the pkg.fmri attribute %q in the package manifest must include a version",
		e.FMRI)
}

// FMRI returns the identity the manifest declares. A manifest
// intended for publication must declare exactly one identity and
// that identity must include a version.
func (m *Manifest) FMRI() (*fmri.FMRI, error) {
	var found *fmri.FMRI
	for _, a := range m.Actions {
		if !a.IsIdentity() {
			continue
		}
		f, err := fmri.Parse(a.Attrs["value"])
		if err != nil {
			return nil, err
		}
		if found != nil {
			return nil, &DuplicateIdentityError{}
		}
		found = f
	}
	if found == nil {
		return nil, &MissingIdentityError{}
	}
	if !found.HasVersion() {
		return nil, &MissingVersionError{FMRI: found.String()}
	}
	return found, nil
}
