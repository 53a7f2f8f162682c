package repository

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"golang.org/x/exp/slices"
)

// CatalogEntry records one published package version.
type CatalogEntry struct {
	Name      string `toml:"name"`
	Version   string `toml:"version"`
	FMRI      string `toml:"fmri"`
	Published string `toml:"published"`
}

// Catalog is the browsable index of the repository.
type Catalog struct {
	Packages []CatalogEntry `toml:"package"`
}

// ReadCatalog loads the repository catalog.
func (r *Repository) ReadCatalog() (*Catalog, error) {
	raw, err := os.ReadFile(filepath.Join(r.root, catalogName))
	if err != nil {
		if os.IsNotExist(err) {
			return &Catalog{}, nil
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c := &Catalog{}
	if err := toml.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return c, nil
}

func (r *Repository) writeCatalog(c *Catalog) error {
	slices.SortFunc(c.Packages, func(a, b CatalogEntry) int {
		if a.Name != b.Name {
			if a.Name < b.Name {
				return -1
			}
			return 1
		}
		if a.Version < b.Version {
			return -1
		}
		if a.Version > b.Version {
			return 1
		}
		return 0
	})

	f, err := os.Create(filepath.Join(r.root, catalogName))
	if err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

// rebuildCatalog reconstructs the catalog from published manifests.
func (r *Repository) rebuildCatalog() error {
	c := &Catalog{}

	pkgRoot := filepath.Join(r.root, packageDir)
	names, err := os.ReadDir(pkgRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return r.writeCatalog(c)
		}
		return fmt.Errorf("scan packages: %w", err)
	}

	for _, nameEntry := range names {
		if !nameEntry.IsDir() {
			continue
		}
		name, err := url.PathUnescape(nameEntry.Name())
		if err != nil {
			continue
		}
		versions, err := os.ReadDir(filepath.Join(pkgRoot, nameEntry.Name()))
		if err != nil {
			return fmt.Errorf("scan package versions: %w", err)
		}
		for _, versionEntry := range versions {
			version, err := url.PathUnescape(versionEntry.Name())
			if err != nil {
				continue
			}
			fi, err := versionEntry.Info()
			if err != nil {
				return fmt.Errorf("stat manifest: %w", err)
			}
			c.Packages = append(c.Packages, CatalogEntry{
				Name:      name,
				Version:   version,
				FMRI:      fmt.Sprintf("pkg://%s/%s@%s", r.Publisher(), name, version),
				Published: fi.ModTime().UTC().Format("2006-01-02T15:04:05Z"),
			})
		}
	}
	return r.writeCatalog(c)
}
