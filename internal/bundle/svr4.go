package bundle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/slices"

	"pkgpress.run/internal/actions"
)

// install files that describe the package rather than scripting its
// installation.
var svr4NonScripts = []string{"pkginfo", "pkgmap", "copyright", "depend"}

// svr4Bundle reads a directory-format SVR4 package: a pkginfo
// properties file, a pkgmap listing every delivered object, payload
// trees under reloc/ and root/ and scripts under install/.
type svr4Bundle struct {
	root    string
	pkgName string
	acts    []*actions.Action
	classes map[string]string
	scripts []string

	// aliases maps emitted paths to the bundle path actually
	// holding their bytes (hardlinks delivered as files).
	aliases map[string]string
}

func makeSVR4Bundle(root string, opts Options) (*svr4Bundle, error) {
	b := &svr4Bundle{
		root:    root,
		classes: map[string]string{},
		aliases: map[string]string{},
	}

	info, err := parsePkginfo(filepath.Join(root, "pkginfo"))
	if err != nil {
		return nil, &InvalidBundleError{Path: root, Reason: err.Error()}
	}
	b.pkgName = info["PKG"]

	if summary := info["NAME"]; summary != "" {
		b.acts = append(b.acts, setAction("pkg.summary", summary))
	}
	if desc := info["DESC"]; desc != "" {
		b.acts = append(b.acts, setAction("pkg.description", desc))
	}

	if err := b.readPkgmap(filepath.Join(root, "pkgmap"), opts); err != nil {
		return nil, &InvalidBundleError{Path: root, Reason: err.Error()}
	}
	if err := b.readScripts(); err != nil {
		return nil, &InvalidBundleError{Path: root, Reason: err.Error()}
	}
	return b, nil
}

func setAction(name, value string) *actions.Action {
	return &actions.Action{Name: "set", Attrs: map[string]string{
		"name":  name,
		"value": value,
	}}
}

func parsePkginfo(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		info[key] = strings.Trim(value, `"`)
	}
	return info, scanner.Err()
}

// readPkgmap translates pkgmap entries into actions. Entry format:
//
//	part ftype class path[=target] [mode owner group] ...
//
// f/e/v entries become files, d directories, s symlinks and l
// hardlinks. i entries name install files, which become scripts
// unless they are descriptive.
func (b *svr4Bundle) readPkgmap(path string, opts Options) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return fmt.Errorf("short pkgmap entry %q", line)
		}

		ftype := fields[1]
		if ftype == "i" {
			if name := fields[2]; !slices.Contains(svr4NonScripts, name) {
				b.scripts = append(b.scripts, name)
			}
			continue
		}
		if len(fields) < 4 {
			return fmt.Errorf("short pkgmap entry %q", line)
		}

		class := fields[2]
		objPath, target, _ := strings.Cut(fields[3], "=")
		objPath = strings.TrimPrefix(objPath, "/")
		if class != "" && class != "none" {
			b.classes[objPath] = class
		}

		a, err := b.entryAction(ftype, objPath, target, fields[4:], opts)
		if err != nil {
			return err
		}
		if a != nil {
			b.acts = append(b.acts, a)
		}
	}
	return scanner.Err()
}

func (b *svr4Bundle) entryAction(
	ftype, objPath, target string, perms []string, opts Options,
) (*actions.Action, error) {
	switch ftype {
	case "f", "e", "v":
		return b.fileAction(objPath, perms, opts), nil
	case "d":
		a := &actions.Action{Name: "dir", Attrs: map[string]string{"path": objPath}}
		applyPerms(a, perms, opts)
		return a, nil
	case "s":
		return &actions.Action{Name: "link", Attrs: map[string]string{
			"path":   objPath,
			"target": target,
		}}, nil
	case "l":
		if slices.Contains(opts.TargetPaths, objPath) {
			// Hardlinks the manifest declares as files are
			// delivered as files sourced from the link target.
			b.aliases[objPath] = strings.TrimPrefix(target, "/")
			return b.fileAction(objPath, perms, opts), nil
		}
		return &actions.Action{Name: "hardlink", Attrs: map[string]string{
			"path":   objPath,
			"target": target,
		}}, nil
	default:
		return nil, fmt.Errorf("unsupported pkgmap entry type %q for %q", ftype, objPath)
	}
}

func (b *svr4Bundle) fileAction(objPath string, perms []string, opts Options) *actions.Action {
	a := &actions.Action{
		Name:  "file",
		Attrs: map[string]string{"path": objPath},
		Hash:  actions.NoHash,
	}
	applyPerms(a, perms, opts)
	// File entries carry mode owner group size cksum modtime.
	if len(perms) >= 6 {
		if secs, err := strconv.ParseInt(perms[5], 10, 64); err == nil {
			a.Attrs["timestamp"] = actions.Timestamp(time.Unix(secs, 0))
		}
	}
	return a
}

func applyPerms(a *actions.Action, perms []string, opts Options) {
	if len(perms) >= 3 {
		a.Attrs["mode"] = perms[0]
		a.Attrs["owner"] = perms[1]
		a.Attrs["group"] = perms[2]
		return
	}
	if opts.DefaultOwner {
		a.Attrs["owner"] = "root"
		a.Attrs["group"] = "bin"
	}
}

func (b *svr4Bundle) readScripts() error {
	entries, err := os.ReadDir(filepath.Join(b.root, "install"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || slices.Contains(svr4NonScripts, entry.Name()) {
			continue
		}
		if !slices.Contains(b.scripts, entry.Name()) {
			b.scripts = append(b.scripts, entry.Name())
		}
	}
	return nil
}

func (b *svr4Bundle) Identity() string           { return b.pkgName }
func (b *svr4Bundle) Actions() []*actions.Action { return b.acts }
func (b *svr4Bundle) Scripts() []string          { return b.scripts }

func (b *svr4Bundle) ClassForPath(path string) (string, bool) {
	class, ok := b.classes[path]
	return class, ok
}

func (b *svr4Bundle) Payload(path string) (actions.Payload, bool) {
	if target, ok := b.aliases[path]; ok {
		path = target
	}
	for _, sub := range []string{"reloc", "root"} {
		full := filepath.Join(b.root, sub, filepath.FromSlash(path))
		if fi, err := os.Stat(full); err == nil && fi.Mode().IsRegular() {
			return &svr4Payload{path: full}, true
		}
	}
	return nil, false
}

// svr4Payload exposes no modification time: file timestamps come from
// the pkgmap, not from mtimes inside the payload tree.
type svr4Payload struct {
	path string
}

func (p *svr4Payload) Open() (io.ReadCloser, error) {
	return os.Open(p.path)
}

func (p *svr4Payload) Size() (int64, error) {
	fi, err := os.Stat(p.path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
