package restsource

import (
	"encoding/json"
	"fmt"
)

// Response is the envelope returned by every verb method. One envelope is
// built fresh per call path (live, memoized, shared-cache hit, stale
// fallback); envelopes are never mutated after they are returned.
type Response struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       []byte            `json:"body,omitempty"`

	// FromCache is true when the envelope was served from the shared cache,
	// including the stale-if-error path.
	FromCache bool `json:"-"`
	// Memoized is true when the envelope was served from the instance's
	// in-flight map instead of a fresh transport call. FromCache and
	// Memoized are never both true.
	Memoized bool `json:"-"`

	// MaxTTLSeconds records the primary TTL the envelope was cached with,
	// zero when the call was not cached.
	MaxTTLSeconds int64 `json:"max_ttl,omitempty"`
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// Header returns the first value of the named response header, or "".
func (r *Response) Header(name string) string {
	return r.Headers[canonicalHeaderKey(name)]
}

// clone returns a copy of the envelope with independent flag state. The body
// slice is shared; envelopes are read-only once returned so this is safe.
func (r *Response) clone() *Response {
	cp := *r
	return &cp
}
