package restsource

import "fmt"

// TransportError wraps a network-level failure (connection refused, DNS,
// timeout) that occurred before any HTTP response was obtained. The core never
// retries; retry policy belongs to the transport.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: transport failed: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusError captures a response that was obtained but classified as
// unsuccessful. It carries the request descriptor and the full response
// envelope so hooks and callers can inspect the body.
type HTTPStatusError struct {
	StatusCode int
	Request    *Request
	Response   *Response
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s %s: API error (status %d)", e.Request.Method, e.Request.URL(), e.StatusCode)
}

// AbortError indicates the call was cancelled, either via the per-call context
// or via DataSource.Abort. Aborted calls never populate a cache and never fall
// back to a stale entry.
type AbortError struct {
	Err error
}

func (e *AbortError) Error() string { return fmt.Sprintf("request aborted: %v", e.Err) }

func (e *AbortError) Unwrap() error { return e.Err }

// CacheBackendError wraps a failure from the shared key/value store. It is
// never surfaced to callers: reads that fail are treated as misses and writes
// that fail are dropped, both logged.
type CacheBackendError struct {
	Op  string // "get", "set" or "delete"
	Key string
	Err error
}

func (e *CacheBackendError) Error() string {
	return fmt.Sprintf("cache backend %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *CacheBackendError) Unwrap() error { return e.Err }
