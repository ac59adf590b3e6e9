package restsource

import "context"

// Hooks are the optional lifecycle extension points. A nil field means the
// default behavior; none of the hooks change the orchestration guarantees
// beyond what is documented on each field.
type Hooks struct {
	// CacheKey replaces the default key function (origin + path). It is
	// called once per call and its result is used consistently for the
	// in-flight map, the shared cache, and the stale key. It must be a
	// pure function of the descriptor. Returning a constant intentionally
	// collapses distinct paths onto one cache slot.
	CacheKey func(req *Request) string

	// OnRequest runs once per live call, after normalization and before
	// the transport. It never runs for memoized or cached hits. It may
	// mutate headers and body in place; a returned error fails the call.
	OnRequest func(ctx context.Context, req *Request) error

	// OnResponse runs once per live transport response and replaces the
	// default status classification entirely: it must return the (possibly
	// transformed) response to accept it, or an error to reject it. When
	// nil, Policy.IsSuccess decides and failures become *HTTPStatusError.
	OnResponse func(ctx context.Context, req *Request, resp *Response) (*Response, error)

	// OnError runs once per failed live call, before the stale-fallback
	// lookup. It is side-effect only (logging, metrics) and cannot alter
	// control flow. It does not run for aborted calls.
	OnError func(ctx context.Context, err error, req *Request)
}

// cacheKey applies the hook when set, otherwise origin + path. The path
// already carries the sorted query string, so identical descriptors always
// map to identical keys.
func (ds *DataSource) cacheKey(req *Request) string {
	if ds.hooks.CacheKey != nil {
		return ds.hooks.CacheKey(req)
	}
	return req.Origin + req.Path
}
