// Package bundle reads legacy package sources and translates them
// into manifest actions. Two bundle kinds are supported: plain
// filesystem trees and directory-format SVR4 packages.
package bundle

import (
	"fmt"
	"os"
	"path/filepath"

	"pkgpress.run/internal/actions"
)

// Bundle is a legacy package source translated into actions.
type Bundle interface {
	// Identity is the name the source declares for itself, empty
	// for sources without one.
	Identity() string
	Actions() []*actions.Action
	// ClassForPath reports the legacy installation class a path is
	// filed under, if any.
	ClassForPath(path string) (string, bool)
	// Scripts lists embedded install/remove scripts declared by
	// the source.
	Scripts() []string
	// Payload locates the byte source for a path delivered by this
	// bundle.
	Payload(path string) (actions.Payload, bool)
}

// Visitor inspects bundles before their actions are trusted.
type Visitor interface {
	Visit(Bundle)
}

// Options control how sources are translated.
type Options struct {
	// TargetPaths forces the named paths to be emitted as file
	// actions even when the source declares them as hardlinks.
	TargetPaths []string
	// DefaultOwner applies root:bin ownership to entries without
	// explicit ownership.
	DefaultOwner bool
}

type InvalidBundleError struct {
	Path   string
	Reason string
}

func (e *InvalidBundleError) Error() string {
	return fmt.Sprintf("invalid bundle %q: %s", e.Path, e.Reason)
}

// Make opens the source at path as a bundle. A directory containing
// pkginfo and pkgmap files is treated as a directory-format SVR4
// package, any other directory as a plain filesystem tree.
func Make(path string, opts Options) (Bundle, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, &InvalidBundleError{Path: path, Reason: err.Error()}
	}
	if !fi.IsDir() {
		return nil, &InvalidBundleError{Path: path, Reason: "not a directory"}
	}

	if isSVR4Dir(path) {
		return makeSVR4Bundle(path, opts)
	}
	return makeFSBundle(path, opts)
}

func isSVR4Dir(path string) bool {
	for _, name := range []string{"pkginfo", "pkgmap"} {
		if _, err := os.Stat(filepath.Join(path, name)); err != nil {
			return false
		}
	}
	return true
}
