package transport

import (
	"fmt"
	"strings"

	"pkgpress.run/internal/repository"
	"pkgpress.run/internal/transaction"
)

// Options configure destination-specific behavior.
type Options struct {
	// SSLKey and SSLCert enable client TLS for https destinations.
	SSLKey  string
	SSLCert string
}

// LocalPath reports whether repoURI names a filesystem destination
// and, if so, returns the path it resolves to.
func LocalPath(repoURI string) (string, bool) {
	switch {
	case strings.HasPrefix(repoURI, "file://"):
		return strings.TrimPrefix(repoURI, "file://"), true
	case repoURI == "",
		strings.HasPrefix(repoURI, "null:"),
		strings.HasPrefix(repoURI, "http://"),
		strings.HasPrefix(repoURI, "https://"):
		return "", false
	default:
		return repoURI, true
	}
}

// Dial returns a transaction client for a repository URI: http and
// https URIs get the HTTP client, null: the discarding sink, and
// file:// URIs or plain paths the filesystem-backed repository.
func Dial(repoURI string, opts Options) (transaction.Client, error) {
	switch {
	case repoURI == "":
		return nil, fmt.Errorf("no destination repository provided")
	case strings.HasPrefix(repoURI, "null:"):
		return Null{}, nil
	case strings.HasPrefix(repoURI, "http://"), strings.HasPrefix(repoURI, "https://"):
		return NewHTTPClient(repoURI, opts.SSLKey, opts.SSLCert)
	case strings.HasPrefix(repoURI, "file://"):
		return repository.Open(strings.TrimPrefix(repoURI, "file://"))
	default:
		return repository.Open(repoURI)
	}
}
