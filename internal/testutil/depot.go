// Package testutil provides test doubles shared across packages: a
// mock transaction client and an in-memory repository depot serving
// the transaction wire protocol over HTTP.
package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strings"

	"pkgpress.run/internal/actions"
	"pkgpress.run/internal/repository"
)

// Depot serves the transaction protocol over HTTP, backed by a
// filesystem repository. Handler is plugged into httptest.Server.
type Depot struct {
	Repo *repository.Repository
}

func NewDepot(repo *repository.Repository) *Depot {
	return &Depot{Repo: repo}
}

func (d *Depot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Split the escaped form: package names carry escaped slashes.
	segments := strings.Split(strings.Trim(r.URL.EscapedPath(), "/"), "/")
	if len(segments) < 2 {
		http.Error(w, "short request path", http.StatusBadRequest)
		return
	}

	var err error
	switch op := segments[0]; op {
	case "open", "append":
		err = d.open(w, r, op, segments)
	case "add":
		err = d.add(w, r, segments)
	case "close", "abandon":
		err = d.close(w, r, op, segments)
	case "admin":
		err = d.Repo.RefreshIndex(r.Context())
	default:
		http.Error(w, "unknown operation "+op, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func (d *Depot) open(w http.ResponseWriter, r *http.Request, op string, segments []string) error {
	pkgName, err := url.PathUnescape(segments[len(segments)-1])
	if err != nil {
		return err
	}
	var id string
	if op == "open" {
		id, err = d.Repo.Open(r.Context(), pkgName)
	} else {
		id, err = d.Repo.Append(r.Context(), pkgName)
	}
	if err != nil {
		return err
	}
	w.Header().Set("Transaction-Id", id)
	return nil
}

func (d *Depot) add(w http.ResponseWriter, r *http.Request, segments []string) error {
	if len(segments) < 4 {
		return &repository.UnknownTransactionError{ID: ""}
	}
	id := segments[2]
	name := segments[3]

	a, err := actions.New(name, r.Header.Values("X-Pkg-Attr"))
	if err != nil {
		return err
	}
	if a.HasPayload() {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		a.Payload = &BytesPayload{Data: data}
	}
	return d.Repo.Add(r.Context(), id, a)
}

func (d *Depot) close(w http.ResponseWriter, r *http.Request, op string, segments []string) error {
	if len(segments) < 3 {
		return &repository.UnknownTransactionError{ID: ""}
	}
	id := segments[2]
	abandon := op == "abandon"
	addToCatalog := r.URL.Query().Get("no-catalog") == ""

	state, pkgFMRI, err := d.Repo.Close(r.Context(), id, abandon, addToCatalog)
	if err != nil {
		return err
	}
	w.Header().Set("Package-State", state)
	w.Header().Set("Package-Fmri", pkgFMRI)
	return nil
}

// BytesPayload is an in-memory payload byte source.
type BytesPayload struct {
	Data []byte
}

func (p *BytesPayload) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(p.Data)), nil
}

func (p *BytesPayload) Size() (int64, error) {
	return int64(len(p.Data)), nil
}
