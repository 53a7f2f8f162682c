// Package transform turns parsed manifest actions into publishable
// ones: identity and signature actions are dropped, derived
// attributes stripped, payloads resolved and timestamp overrides
// applied.
package transform

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/gobwas/glob"

	"pkgpress.run/internal/actions"
	"pkgpress.run/internal/bundle"
)

// Mode selects the timestamp and payload semantics of a pipeline.
type Mode int

const (
	// ModePublish resolves payloads and applies timestamp
	// overrides from resolved file payloads.
	ModePublish Mode = iota
	// ModeInclude behaves like ModePublish but leaves unmatched
	// timestamps as declared.
	ModeInclude
	// ModeGenerate never resolves payloads and strips unmatched
	// timestamps to keep generated manifests content-stable.
	ModeGenerate
	// ModeImport resolves payloads like ModePublish but handles
	// timestamps like ModeGenerate: bundle-declared timestamps
	// survive only when a pattern matches.
	ModeImport
)

// Disposition classifies the outcome of transforming one action.
type Disposition int

const (
	// Keep: the action is publishable.
	Keep Disposition = iota
	// Skip: the action is dropped; publication continues.
	Skip
	// Reject: the action is unpublishable and the manifest must
	// not be committed as-is.
	Reject
)

// Result is the outcome of transforming one action. Warning carries
// a user-reportable message for noteworthy skips.
type Result struct {
	Disposition Disposition
	Warning     string
}

// Transformer applies the publication transform rules in order.
type Transformer struct {
	Mode     Mode
	BaseDirs []string
	Bundles  []bundle.Bundle
	patterns []glob.Glob
}

// New builds a transformer. Timestamp patterns are compiled once;
// an invalid pattern fails construction.
func New(mode Mode, baseDirs []string, bundles []bundle.Bundle, timestampPatterns []string) (*Transformer, error) {
	t := &Transformer{Mode: mode, BaseDirs: baseDirs, Bundles: bundles}
	for _, p := range timestampPatterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp pattern %q: %w", p, err)
		}
		t.patterns = append(t.patterns, g)
	}
	return t, nil
}

// Transform mutates a in place and reports its disposition. A nil
// error with Reject means the action must not be added; callers must
// not continue adding remaining actions to an open transaction.
func (t *Transformer) Transform(ctx context.Context, a *actions.Action) (Result, error) {
	log := logr.FromContextOrDiscard(ctx).V(1)

	switch {
	case a.IsIdentity():
		log.Info("dropping identity action", "action", a.String())
		return Result{Disposition: Skip}, nil
	case a.Name == "signature":
		// Signatures are recomputed at commit time and must
		// never be re-published verbatim.
		return Result{
			Disposition: Skip,
			Warning:     fmt.Sprintf("WARNING: Omitting signature action '%s'", a),
		}, nil
	case a.Disallowed():
		return Result{Disposition: Reject}, nil
	}

	if a.HasPayload() {
		a.StripDerived()
		if t.Mode != ModeGenerate {
			payload, err := t.resolvePayload(a)
			if err != nil {
				return Result{}, err
			}
			a.Payload = payload
		}
	}
	if t.Mode == ModeGenerate {
		// Keep generated manifests minimal so they stay valid
		// after content changes.
		delete(a.Attrs, "pkg.size")
	}

	if err := t.applyTimestamp(a); err != nil {
		return Result{}, err
	}
	return Result{Disposition: Keep}, nil
}

// resolvePayload searches the base directories, then the bundles,
// for the action's path. Exactly one location must hold the bytes.
func (t *Transformer) resolvePayload(a *actions.Action) (actions.Payload, error) {
	relPath := a.Attrs["path"]

	var (
		found      []actions.Payload
		candidates []string
	)
	for _, dir := range t.BaseDirs {
		full := filepath.Join(dir, filepath.FromSlash(relPath))
		if fi, err := os.Stat(full); err == nil && fi.Mode().IsRegular() {
			found = append(found, &actions.FilePayload{Path: full})
			candidates = append(candidates, full)
		}
	}
	for _, b := range t.Bundles {
		if p, ok := b.Payload(relPath); ok {
			found = append(found, p)
			candidates = append(candidates, "bundle:"+b.Identity())
		}
	}

	if len(found) != 1 {
		return nil, &actions.UnresolvedPayloadError{
			Action:     a.Name,
			Path:       relPath,
			Candidates: candidates,
		}
	}
	return found[0], nil
}

// applyTimestamp implements the conditional timestamp override. The
// pattern decision is pure set membership: it does not depend on
// pattern order.
func (t *Transformer) applyTimestamp(a *actions.Action) error {
	relPath, ok := a.Attrs["path"]
	if !ok {
		return nil
	}

	if t.Mode == ModeGenerate || t.Mode == ModeImport {
		if a.Name != "file" && a.Name != "dir" {
			return nil
		}
		if !t.matches(path.Base(relPath)) {
			delete(a.Attrs, "timestamp")
		}
		return nil
	}

	if a.Name != "file" || !t.matches(path.Base(relPath)) {
		return nil
	}
	fp, ok := a.Payload.(*actions.FilePayload)
	if !ok {
		// Payload came from a bundle; no mtime is available.
		return nil
	}
	mtime, err := fp.ModTime()
	if err != nil {
		return fmt.Errorf("read mtime for %s: %w", relPath, err)
	}
	a.Attrs["timestamp"] = actions.Timestamp(mtime)
	return nil
}

func (t *Transformer) matches(basename string) bool {
	for _, g := range t.patterns {
		if g.Match(basename) {
			return true
		}
	}
	return false
}
