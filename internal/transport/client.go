// Package transport connects the transaction orchestrator to a
// destination repository: over HTTP for remote repositories, through
// the filesystem store for local paths, or into a null sink.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"pkgpress.run/internal/actions"
	"pkgpress.run/internal/transaction"
)

// Wire protocol headers. The repository answers transaction
// identifiers and publication results in response headers; action
// attributes travel as repeated request headers.
const (
	headerTransactionID = "Transaction-Id"
	headerPackageState  = "Package-State"
	headerPackageFMRI   = "Package-Fmri"
	headerActionAttr    = "X-Pkg-Attr"
)

// ProtocolError reports a non-success answer from the repository.
type ProtocolError struct {
	Op      string
	Status  int
	Message string
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("repository refused %s (HTTP %d)", e.Op, e.Status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// HTTPClient speaks the transaction protocol against a remote
// repository endpoint.
type HTTPClient struct {
	base *url.URL
	http *http.Client
}

var _ transaction.Client = (*HTTPClient)(nil)

// NewHTTPClient builds a client for the repository at repoURI.
// keyFile and certFile optionally configure client TLS.
func NewHTTPClient(repoURI, keyFile, certFile string) (*HTTPClient, error) {
	base, err := url.Parse(repoURI)
	if err != nil {
		return nil, fmt.Errorf("parse repository URI %q: %w", repoURI, err)
	}

	httpClient := &http.Client{}
	if keyFile != "" || certFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("load client TLS credentials: %w", err)
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
		}
	}
	return &HTTPClient{base: base, http: httpClient}, nil
}

func (c *HTTPClient) Open(ctx context.Context, pkgName string) (string, error) {
	return c.openCall(ctx, "open", pkgName)
}

func (c *HTTPClient) Append(ctx context.Context, pkgName string) (string, error) {
	return c.openCall(ctx, "append", pkgName)
}

func (c *HTTPClient) openCall(ctx context.Context, op, pkgName string) (string, error) {
	resp, err := c.post(ctx, op, []string{op, "0", pkgName}, nil, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	id := resp.Header.Get(headerTransactionID)
	if id == "" {
		return "", &ProtocolError{Op: op, Status: resp.StatusCode, Message: "no transaction identifier in response"}
	}
	return id, nil
}

func (c *HTTPClient) Add(ctx context.Context, id string, a *actions.Action) error {
	header := http.Header{}
	for key, value := range a.Attrs {
		header.Add(headerActionAttr, key+"="+value)
	}

	var body io.Reader
	if a.Payload != nil {
		payload, err := a.Payload.Open()
		if err != nil {
			return fmt.Errorf("open payload for %s: %w", a.Attrs["path"], err)
		}
		defer payload.Close()
		body = payload
	}

	resp, err := c.post(ctx, "add", []string{"add", "0", id, a.Name}, header, body)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *HTTPClient) Close(ctx context.Context, id string, abandon, addToCatalog bool) (string, string, error) {
	op := "close"
	query := url.Values{}
	if abandon {
		op = "abandon"
	} else if !addToCatalog {
		query.Set("no-catalog", "1")
	}

	resp, err := c.post(ctx, op, []string{op, "0", id}, nil, nil, query)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	return resp.Header.Get(headerPackageState), resp.Header.Get(headerPackageFMRI), nil
}

func (c *HTTPClient) RefreshIndex(ctx context.Context) error {
	query := url.Values{"cmd": []string{"refresh-index"}}
	resp, err := c.post(ctx, "refresh-index", []string{"admin", "0"}, nil, nil, query)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *HTTPClient) post(
	ctx context.Context, op string, segments []string,
	header http.Header, body io.Reader, query ...url.Values,
) (*http.Response, error) {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	target := c.base.JoinPath(escaped...)
	if len(query) > 0 {
		target.RawQuery = query[0].Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	for key, values := range header {
		req.Header[key] = values
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &ProtocolError{Op: op, Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	return resp, nil
}
