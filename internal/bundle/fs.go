package bundle

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"pkgpress.run/internal/actions"
)

// fsBundle translates a plain directory tree into dir, file and link
// actions. It declares no identity, classes or scripts.
type fsBundle struct {
	root string
	acts []*actions.Action
}

func makeFSBundle(root string, opts Options) (*fsBundle, error) {
	b := &fsBundle{root: root}

	walker := func(path string, entry fs.DirEntry, ioErr error) error {
		if ioErr != nil {
			return fmt.Errorf("access file %s: %w", path, ioErr)
		}
		if path == "." {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		var a *actions.Action
		switch {
		case entry.IsDir():
			a = &actions.Action{Name: "dir", Attrs: map[string]string{
				"path": path,
				"mode": fmt.Sprintf("%04o", info.Mode().Perm()),
			}}
		case info.Mode()&fs.ModeSymlink != 0:
			target, err := os.Readlink(filepath.Join(root, path))
			if err != nil {
				return fmt.Errorf("readlink %s: %w", path, err)
			}
			a = &actions.Action{Name: "link", Attrs: map[string]string{
				"path":   path,
				"target": target,
			}}
		case info.Mode().IsRegular():
			a = &actions.Action{Name: "file", Attrs: map[string]string{
				"path":      path,
				"mode":      fmt.Sprintf("%04o", info.Mode().Perm()),
				"timestamp": actions.Timestamp(info.ModTime()),
			}, Hash: actions.NoHash}
		default:
			// Sockets, devices and the like cannot be delivered.
			return nil
		}

		if opts.DefaultOwner && a.Name != "link" {
			a.Attrs["owner"] = "root"
			a.Attrs["group"] = "bin"
		}
		b.acts = append(b.acts, a)
		return nil
	}

	if err := fs.WalkDir(os.DirFS(root), ".", walker); err != nil {
		return nil, &InvalidBundleError{Path: root, Reason: err.Error()}
	}
	return b, nil
}

func (b *fsBundle) Identity() string           { return "" }
func (b *fsBundle) Actions() []*actions.Action { return b.acts }
func (b *fsBundle) Scripts() []string          { return nil }

func (b *fsBundle) ClassForPath(string) (string, bool) { return "", false }

func (b *fsBundle) Payload(path string) (actions.Payload, bool) {
	full := filepath.Join(b.root, filepath.FromSlash(path))
	fi, err := os.Stat(full)
	if err != nil || !fi.Mode().IsRegular() {
		return nil, false
	}
	return &actions.FilePayload{Path: full}, true
}
