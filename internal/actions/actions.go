// Package actions implements the declarative units package manifests
// are made of: files, directories, links and metadata records.
package actions

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// NoHash marks a payload-bearing action whose content has not been
// hashed yet.
const NoHash = "NOHASH"

// TimestampFormat is the basic ISO 8601 form carried by timestamp
// attributes.
const TimestampFormat = "20060102T150405Z"

// Timestamp formats a time the way timestamp attributes carry it.
func Timestamp(ts time.Time) string {
	return ts.UTC().Format(TimestampFormat)
}

// DerivedAttrs are recomputed from the resolved payload bytes during
// publication and must never be trusted from input manifests.
var DerivedAttrs = []string{
	"elfarch",
	"elfbits",
	"elfhash",
	"pkg.content-hash",
	"pkg.csize",
	"pkg.size",
}

// disallowedNames can never be published.
var disallowedNames = []string{"unknown"}

// payloadNames reference file content that has to be resolved to a
// byte source before publication.
var payloadNames = []string{"file", "license"}

// Action is a single declarative unit of a package manifest.
type Action struct {
	Name  string
	Attrs map[string]string
	Hash  string

	// Payload is set by resolution, not by parsing.
	Payload Payload
}

// New builds an action from an action type and key=value operands,
// as supplied on the command line.
func New(name string, kvs []string) (*Action, error) {
	if name == "" {
		return nil, &InvalidActionError{Reason: "empty action type"}
	}
	a := &Action{Name: name, Attrs: map[string]string{}}
	for _, kv := range kvs {
		key, value, found := strings.Cut(kv, "=")
		if !found || key == "" {
			return nil, &InvalidActionError{
				Action: name,
				Reason: fmt.Sprintf("malformed attribute %q, expected key=value", kv),
			}
		}
		if _, ok := a.Attrs[key]; ok {
			return nil, &InvalidActionError{
				Action: name,
				Reason: fmt.Sprintf("duplicate attribute %q", key),
			}
		}
		a.Attrs[key] = value
	}
	if a.HasPayload() && a.Hash == "" {
		a.Hash = a.Attrs["path"]
		if a.Hash == "" {
			a.Hash = NoHash
		}
	}
	return a, nil
}

// HasPayload reports whether the action references file content.
func (a *Action) HasPayload() bool {
	return slices.Contains(payloadNames, a.Name)
}

// Disallowed reports whether the action may never be published.
func (a *Action) Disallowed() bool {
	return slices.Contains(disallowedNames, a.Name)
}

// IsIdentity reports whether the action declares the package
// identity. Identity is metadata for the transaction open call, not
// publishable content.
func (a *Action) IsIdentity() bool {
	if a.Name != "set" {
		return false
	}
	n := a.Attrs["name"]
	return n == "pkg.fmri" || n == "fmri"
}

// StripDerived removes all derived attributes. Idempotent.
func (a *Action) StripDerived() {
	for _, attr := range DerivedAttrs {
		delete(a.Attrs, attr)
	}
}

// String renders the action as one canonical manifest line. The path
// attribute leads, remaining attributes follow in sorted order.
func (a *Action) String() string {
	parts := []string{a.Name}
	if a.HasPayload() && a.Hash != "" {
		parts = append(parts, a.Hash)
	}

	if path, ok := a.Attrs["path"]; ok {
		parts = append(parts, "path="+quoteValue(path))
	}
	keys := maps.Keys(a.Attrs)
	slices.Sort(keys)
	for _, key := range keys {
		if key == "path" {
			continue
		}
		parts = append(parts, key+"="+quoteValue(a.Attrs[key]))
	}
	return strings.Join(parts, " ")
}

func quoteValue(v string) string {
	if !strings.ContainsAny(v, " \t\"'") {
		return v
	}
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) + `"`
}

type InvalidActionError struct {
	Action string
	Line   int // 1-based manifest line, 0 when not line-originated.
	Reason string
}

func (e *InvalidActionError) Error() string {
	msg := "invalid action"
	if e.Action != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Action)
	}
	if e.Line > 0 {
		msg = fmt.Sprintf("%s at line %d", msg, e.Line)
	}
	return msg + ": " + e.Reason
}
