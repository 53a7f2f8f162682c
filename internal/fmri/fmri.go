// Package fmri implements parsing and formatting of fully qualified
// package identities of the form
// pkg://publisher/name@release,build-branch:timestamp.
// Every component after the name is optional.
package fmri

import (
	"fmt"
	"strings"
)

const scheme = "pkg://"

// Version is the version component of an FMRI. Release is the only
// mandatory part once a version is present at all.
type Version struct {
	Release   string
	Build     string
	Branch    string
	Timestamp string
}

func (v *Version) String() string {
	var b strings.Builder
	b.WriteString(v.Release)
	if v.Build != "" {
		b.WriteString(",")
		b.WriteString(v.Build)
	}
	if v.Branch != "" {
		b.WriteString("-")
		b.WriteString(v.Branch)
	}
	if v.Timestamp != "" {
		b.WriteString(":")
		b.WriteString(v.Timestamp)
	}
	return b.String()
}

// FMRI is a fully qualified package identity.
type FMRI struct {
	Publisher string
	Name      string
	Version   *Version
}

type InvalidError struct {
	FMRI   string
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid package FMRI %q: %s", e.FMRI, e.Reason)
}

func newInvalidError(raw, reason string) *InvalidError {
	return &InvalidError{FMRI: raw, Reason: reason}
}

// Parse parses a package FMRI. The pkg:// scheme and the publisher
// are optional, as is the whole version part.
func Parse(raw string) (*FMRI, error) {
	rest := raw
	out := &FMRI{}

	switch {
	case strings.HasPrefix(rest, scheme):
		rest = strings.TrimPrefix(rest, scheme)
		pub, remainder, found := strings.Cut(rest, "/")
		if !found || pub == "" {
			return nil, newInvalidError(raw, "publisher prefix without a package name")
		}
		out.Publisher = pub
		rest = remainder
	case strings.HasPrefix(rest, "pkg:/"):
		rest = strings.TrimPrefix(rest, "pkg:/")
	}

	name, version, hasVersion := strings.Cut(rest, "@")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return nil, newInvalidError(raw, "missing package name")
	}
	if strings.ContainsAny(name, "@ \t") {
		return nil, newInvalidError(raw, "malformed package name")
	}
	out.Name = name

	if !hasVersion {
		return out, nil
	}
	if version == "" {
		return nil, newInvalidError(raw, "empty version")
	}
	v, err := parseVersion(raw, version)
	if err != nil {
		return nil, err
	}
	out.Version = v
	return out, nil
}

func parseVersion(raw, version string) (*Version, error) {
	v := &Version{}
	if rest, ts, ok := cutLast(version, ":"); ok {
		if ts == "" {
			return nil, newInvalidError(raw, "empty timestamp")
		}
		v.Timestamp = ts
		version = rest
	}
	if rest, branch, ok := cutLast(version, "-"); ok {
		v.Branch = branch
		version = rest
	}
	if rest, build, ok := strings.Cut(version, ","); ok {
		v.Build = build
		version = rest
	}
	if version == "" {
		return nil, newInvalidError(raw, "missing release component")
	}
	v.Release = version
	return v, nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

// MustParse is Parse for statically known inputs. It panics on error.
func MustParse(raw string) *FMRI {
	f, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *FMRI) HasVersion() bool {
	return f.Version != nil
}

// WithoutTimestamp returns a copy with any timestamp component
// removed. Timestamps are assigned by the repository at close time
// and must not be supplied by manifests.
func (f *FMRI) WithoutTimestamp() *FMRI {
	out := *f
	if f.Version != nil {
		v := *f.Version
		v.Timestamp = ""
		out.Version = &v
	}
	return &out
}

func (f *FMRI) String() string {
	var b strings.Builder
	if f.Publisher != "" {
		b.WriteString(scheme)
		b.WriteString(f.Publisher)
		b.WriteString("/")
	}
	b.WriteString(f.Name)
	if f.Version != nil {
		b.WriteString("@")
		b.WriteString(f.Version.String())
	}
	return b.String()
}
