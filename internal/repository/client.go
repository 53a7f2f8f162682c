package repository

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"pkgpress.run/internal/actions"
	"pkgpress.run/internal/fmri"
	"pkgpress.run/internal/transaction"
)

// StatePublished is reported after a successful commit.
const StatePublished = "PUBLISHED"

var _ transaction.Client = (*Repository)(nil)

type UnknownTransactionError struct {
	ID string
}

func (e *UnknownTransactionError) Error() string {
	return fmt.Sprintf("no open transaction %q", e.ID)
}

type transMeta struct {
	PkgName string `toml:"pkg_name"`
	Opened  string `toml:"opened"`
	Append  bool   `toml:"append"`
}

// Open stages a new transaction for the named package and returns
// its identifier.
func (r *Repository) Open(ctx context.Context, pkgName string) (string, error) {
	return r.stage(pkgName, false)
}

// Append stages a transaction that reopens a published package.
func (r *Repository) Append(ctx context.Context, pkgName string) (string, error) {
	return r.stage(pkgName, true)
}

func (r *Repository) stage(pkgName string, appendTxn bool) (string, error) {
	f, err := fmri.Parse(pkgName)
	if err != nil {
		return "", err
	}
	if !f.HasVersion() {
		return "", &fmri.InvalidError{FMRI: pkgName, Reason: "a version is required to open a transaction"}
	}

	id := uuid.NewString()
	dir := r.transPath(id)
	if err := os.MkdirAll(filepath.Join(dir, fileDir), 0o755); err != nil {
		return "", fmt.Errorf("stage transaction: %w", err)
	}

	meta := transMeta{
		PkgName: f.String(),
		Opened:  time.Now().UTC().Format(time.RFC3339),
		Append:  appendTxn,
	}
	mf, err := os.Create(filepath.Join(dir, "meta.toml"))
	if err != nil {
		return "", fmt.Errorf("stage transaction: %w", err)
	}
	defer mf.Close()
	if err := toml.NewEncoder(mf).Encode(meta); err != nil {
		return "", fmt.Errorf("stage transaction: %w", err)
	}
	return id, nil
}

// Add appends one action to a staged transaction. Payload bytes are
// stored under their content hash and the size attributes are
// recomputed from the stored bytes.
func (r *Repository) Add(ctx context.Context, id string, a *actions.Action) error {
	dir, err := r.openTrans(id)
	if err != nil {
		return err
	}

	if a.Payload != nil {
		hash, size, err := r.storePayload(dir, a.Payload)
		if err != nil {
			return fmt.Errorf("store payload for %s: %w", a.Attrs["path"], err)
		}
		a.Hash = hash
		a.Attrs["pkg.size"] = strconv.FormatInt(size, 10)
		a.Attrs["pkg.csize"] = strconv.FormatInt(size, 10)
	}

	mf, err := os.OpenFile(filepath.Join(dir, "manifest"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("append to staged manifest: %w", err)
	}
	defer mf.Close()
	if _, err := fmt.Fprintln(mf, a.String()); err != nil {
		return fmt.Errorf("append to staged manifest: %w", err)
	}
	return nil
}

func (r *Repository) storePayload(transDir string, p actions.Payload) (string, int64, error) {
	src, err := p.Open()
	if err != nil {
		return "", 0, err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(transDir, "payload-*")
	if err != nil {
		return "", 0, err
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", 0, err
	}

	hash := fmt.Sprintf("%x", h.Sum(nil))
	if err := os.Rename(tmp.Name(), filepath.Join(transDir, fileDir, hash)); err != nil {
		return "", 0, err
	}
	return hash, size, nil
}

// Close commits or abandons a staged transaction. Committing assigns
// the publication timestamp and promotes manifest and payloads into
// the repository proper.
func (r *Repository) Close(ctx context.Context, id string, abandon, addToCatalog bool) (string, string, error) {
	dir, err := r.openTrans(id)
	if err != nil {
		return "", "", err
	}
	if abandon {
		if err := os.RemoveAll(dir); err != nil {
			return "", "", fmt.Errorf("abandon transaction: %w", err)
		}
		return "", "", nil
	}

	var meta transMeta
	if _, err := toml.DecodeFile(filepath.Join(dir, "meta.toml"), &meta); err != nil {
		return "", "", fmt.Errorf("read transaction metadata: %w", err)
	}
	f, err := fmri.Parse(meta.PkgName)
	if err != nil {
		return "", "", err
	}
	f.Version.Timestamp = time.Now().UTC().Format("20060102T150405Z")
	if f.Publisher == "" {
		f.Publisher = r.Publisher()
	}

	if err := r.promote(dir, f); err != nil {
		return "", "", err
	}
	if addToCatalog {
		if err := r.catalogAdd(f); err != nil {
			return "", "", err
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		return "", "", fmt.Errorf("discard staging: %w", err)
	}
	return StatePublished, f.String(), nil
}

func (r *Repository) promote(dir string, f *fmri.FMRI) error {
	stored, err := os.ReadDir(filepath.Join(dir, fileDir))
	if err != nil {
		return fmt.Errorf("scan staged payloads: %w", err)
	}
	for _, entry := range stored {
		src := filepath.Join(dir, fileDir, entry.Name())
		dst := filepath.Join(r.root, fileDir, entry.Name())
		if _, err := os.Stat(dst); err == nil {
			continue // content already stored
		}
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("promote payload: %w", err)
		}
	}

	manifestDst := filepath.Join(r.root, packageDir,
		url.PathEscape(f.Name), url.PathEscape(f.Version.String()))
	if err := os.MkdirAll(filepath.Dir(manifestDst), 0o755); err != nil {
		return fmt.Errorf("promote manifest: %w", err)
	}
	manifestSrc := filepath.Join(dir, "manifest")
	if _, err := os.Stat(manifestSrc); os.IsNotExist(err) {
		// A transaction may close without actions.
		return os.WriteFile(manifestDst, nil, 0o644)
	}
	if err := os.Rename(manifestSrc, manifestDst); err != nil {
		return fmt.Errorf("promote manifest: %w", err)
	}
	return nil
}

func (r *Repository) catalogAdd(f *fmri.FMRI) error {
	c, err := r.ReadCatalog()
	if err != nil {
		return err
	}
	c.Packages = append(c.Packages, CatalogEntry{
		Name:      f.Name,
		Version:   f.Version.String(),
		FMRI:      f.String(),
		Published: time.Now().UTC().Format("2006-01-02T15:04:05Z"),
	})
	return r.writeCatalog(c)
}

// RefreshIndex rebuilds the catalog from the published manifests.
func (r *Repository) RefreshIndex(ctx context.Context) error {
	return r.rebuildCatalog()
}

func (r *Repository) transPath(id string) string {
	return filepath.Join(r.root, transDir, id)
}

func (r *Repository) openTrans(id string) (string, error) {
	dir := r.transPath(id)
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		return "", &UnknownTransactionError{ID: id}
	}
	return dir, nil
}
