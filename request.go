package restsource

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CacheOptions enables shared-cache participation for a single call. A call
// without CacheOptions never reads or writes the shared cache; memoization
// still applies.
type CacheOptions struct {
	// MaxTTL is how long the primary cache entry stays valid.
	MaxTTL time.Duration
	// MaxTTLIfError extends the window during which a stale copy may be
	// served if the origin fails. The stale entry lives for
	// MaxTTL + MaxTTLIfError.
	MaxTTLIfError time.Duration
}

// staleWindow is the full lifetime of the stale-if-error entry. The window is
// additive, so it is always at least the primary TTL.
func (c *CacheOptions) staleWindow() time.Duration {
	return c.MaxTTL + c.MaxTTLIfError
}

// RequestOptions are the per-call options accepted by the verb methods. All
// fields are optional.
type RequestOptions struct {
	// Query is merged into any query string already present in the path.
	// Keys are serialized in sorted order so equivalent calls produce
	// identical cache keys.
	Query url.Values
	// Headers override the instance-level default headers key by key.
	Headers map[string]string
	// Body may be nil, []byte, string, io.Reader, or any JSON-marshalable
	// value. Structured values are JSON-encoded and get a
	// Content-Type: application/json default.
	Body any
	// Cache opts this call into the shared cache.
	Cache *CacheOptions
	// Memoize controls the in-flight map. nil means the default: true for
	// GET, false for everything else.
	Memoize *bool
	// Meta carries free-form per-call values for hooks to read.
	Meta map[string]any
}

// Request is the normalized descriptor handed to the cache-key function, the
// hooks, and the transport. Hooks may mutate Headers and Body up until the
// transport call is issued; after that the descriptor is frozen.
type Request struct {
	Method  string
	Origin  string
	Path    string // includes the serialized query string
	Headers map[string]string
	Body    []byte
	Cache   *CacheOptions
	Meta    map[string]any
}

// URL returns the absolute request URL.
func (r *Request) URL() string { return r.Origin + r.Path }

func canonicalHeaderKey(name string) string { return http.CanonicalHeaderKey(name) }

// newRequest builds the normalized descriptor for one call: instance default
// headers merged under per-call headers, query parameters folded into the
// path with deterministic (sorted) ordering, and structured bodies
// JSON-encoded.
func (ds *DataSource) newRequest(method, path string, opts *RequestOptions) (*Request, error) {
	req := &Request{
		Method:  method,
		Origin:  ds.origin,
		Headers: make(map[string]string, len(ds.headers)+len(opts.Headers)),
		Cache:   opts.Cache,
		Meta:    opts.Meta,
	}

	for k, v := range ds.headers {
		req.Headers[canonicalHeaderKey(k)] = v
	}
	for k, v := range opts.Headers {
		req.Headers[canonicalHeaderKey(k)] = v
	}

	normPath, err := normalizePath(path, opts.Query)
	if err != nil {
		return nil, err
	}
	req.Path = normPath

	body, contentType, err := encodeBody(opts.Body)
	if err != nil {
		return nil, err
	}
	req.Body = body
	if contentType != "" {
		if _, ok := req.Headers["Content-Type"]; !ok {
			req.Headers["Content-Type"] = contentType
		}
	}

	return req, nil
}

// normalizePath merges extra query values into the path's own query string
// and re-encodes it. url.Values.Encode sorts keys, which keeps cache keys
// stable across parameter-order variance.
func normalizePath(path string, extra url.Values) (string, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", path, err)
	}
	q := u.Query()
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// encodeBody turns the per-call body value into bytes. Strings, byte slices
// and readers pass through untouched; anything else is JSON-encoded and
// reported as application/json.
func encodeBody(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return b, "", nil
	case string:
		return []byte(b), "", nil
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, "", fmt.Errorf("read request body: %w", err)
		}
		return data, "", nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("marshal request body: %w", err)
		}
		return data, "application/json", nil
	}
}
