// Package repository implements a filesystem-backed package
// repository: the destination behind path and file:// URIs and the
// target of the create-repository and refresh-index administrative
// operations.
//
// Layout under the repository root:
//
//	pkgpress.repository   repository properties (TOML)
//	catalog.toml          browsable package catalog
//	trans/<id>/           in-progress transactions
//	pkg/<name>/<version>  published manifests
//	file/<hash>           content store, keyed by payload hash
package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	configName  = "pkgpress.repository"
	catalogName = "catalog.toml"
	transDir    = "trans"
	packageDir  = "pkg"
	fileDir     = "file"
)

// Properties are repository configuration values grouped by section.
type Properties map[string]map[string]string

type config struct {
	Publisher  map[string]string `toml:"publisher"`
	Repository map[string]string `toml:"repository"`
	Extra      Properties        `toml:"property,omitempty"`
}

// Repository is an opened filesystem repository.
type Repository struct {
	root string
	cfg  config
}

type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no package repository at %q", e.Path)
}

type AlreadyExistsError struct {
	Path string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("a package repository already exists at %q", e.Path)
}

type InvalidPropertyError struct {
	Property string
	Reason   string
}

func (e *InvalidPropertyError) Error() string {
	return fmt.Sprintf("invalid repository property %q: %s", e.Property, e.Reason)
}

// ParseProperty splits a section.name=value argument as accepted by
// create-repository --set-property.
func ParseProperty(arg string) (section, name, value string, err error) {
	prop, value, found := strings.Cut(arg, "=")
	if !found {
		return "", "", "", &InvalidPropertyError{
			Property: arg,
			Reason:   "property arguments must be of the form '<section.property>=<value>'",
		}
	}
	section, name, found = strings.Cut(prop, ".")
	if !found || section == "" || name == "" {
		return "", "", "", &InvalidPropertyError{
			Property: arg,
			Reason:   "property arguments must be of the form '<section.property>=<value>'",
		}
	}
	return section, name, value, nil
}

// Create initializes a new repository at root. The publisher prefix
// defaults to "default" unless overridden by a publisher.prefix
// property.
func Create(root string, props Properties) (*Repository, error) {
	if _, err := os.Stat(filepath.Join(root, configName)); err == nil {
		return nil, &AlreadyExistsError{Path: root}
	}

	cfg := config{
		Publisher:  map[string]string{"prefix": "default"},
		Repository: map[string]string{"version": "4"},
	}
	for section, values := range props {
		for name, value := range values {
			switch section {
			case "publisher":
				cfg.Publisher[name] = value
			case "repository":
				cfg.Repository[name] = value
			default:
				if cfg.Extra == nil {
					cfg.Extra = Properties{}
				}
				if cfg.Extra[section] == nil {
					cfg.Extra[section] = map[string]string{}
				}
				cfg.Extra[section][name] = value
			}
		}
	}

	for _, dir := range []string{transDir, packageDir, fileDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create repository layout: %w", err)
		}
	}

	r := &Repository{root: root, cfg: cfg}
	if err := r.writeConfig(); err != nil {
		return nil, err
	}
	if err := r.writeCatalog(&Catalog{}); err != nil {
		return nil, err
	}
	return r, nil
}

// Open opens an existing repository.
func Open(root string) (*Repository, error) {
	r := &Repository{root: root}
	raw, err := os.ReadFile(filepath.Join(root, configName))
	if err != nil {
		return nil, &NotFoundError{Path: root}
	}
	if err := toml.Unmarshal(raw, &r.cfg); err != nil {
		return nil, fmt.Errorf("parse repository configuration: %w", err)
	}
	return r, nil
}

// Publisher returns the repository's publisher prefix.
func (r *Repository) Publisher() string {
	return r.cfg.Publisher["prefix"]
}

func (r *Repository) writeConfig() error {
	f, err := os.Create(filepath.Join(r.root, configName))
	if err != nil {
		return fmt.Errorf("write repository configuration: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(r.cfg)
}
