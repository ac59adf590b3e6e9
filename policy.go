package restsource

import "net/http"

// Policy decides which responses count as successful and which request/
// response pairs qualify for the shared cache. Zero-value fields fall back to
// the defaults below.
type Policy struct {
	// IsSuccess classifies a status code as success. The default accepts
	// 2xx and 3xx plus 304.
	IsSuccess func(statusCode int) bool
	// CacheableMethod reports whether a method participates in shared
	// caching and memoization at all. The default allows GET only.
	// Override to cache e.g. POST responses for idempotent search
	// endpoints.
	CacheableMethod func(method string) bool
	// CacheableStatus reports whether a response status may be written to
	// the shared cache. The default set is {200, 201, 202, 203, 206}.
	CacheableStatus func(statusCode int) bool
}

func defaultIsSuccess(statusCode int) bool {
	return (statusCode >= 200 && statusCode < 400) || statusCode == http.StatusNotModified
}

func defaultCacheableMethod(method string) bool {
	return method == http.MethodGet
}

// cacheableStatuses is the canonical allow-list for shared-cache writes.
var cacheableStatuses = map[int]bool{
	http.StatusOK:                   true,
	http.StatusCreated:              true,
	http.StatusAccepted:             true,
	http.StatusNonAuthoritativeInfo: true,
	http.StatusPartialContent:       true,
}

func defaultCacheableStatus(statusCode int) bool {
	return cacheableStatuses[statusCode]
}

// withDefaults fills unset predicates.
func (p Policy) withDefaults() Policy {
	if p.IsSuccess == nil {
		p.IsSuccess = defaultIsSuccess
	}
	if p.CacheableMethod == nil {
		p.CacheableMethod = defaultCacheableMethod
	}
	if p.CacheableStatus == nil {
		p.CacheableStatus = defaultCacheableStatus
	}
	return p
}
