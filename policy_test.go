package restsource

import (
	"net/http"
	"testing"
)

func TestDefaultIsSuccess(t *testing.T) {
	cases := []struct {
		status int
		want   bool
	}{
		{200, true},
		{201, true},
		{304, true},
		{399, true},
		{400, false},
		{404, false},
		{500, false},
		{199, false},
	}
	for _, c := range cases {
		if got := defaultIsSuccess(c.status); got != c.want {
			t.Errorf("IsSuccess(%d) = %v, want %v", c.status, got, c.want)
		}
	}
}

func TestDefaultCacheableStatus(t *testing.T) {
	for _, status := range []int{200, 201, 202, 203, 206} {
		if !defaultCacheableStatus(status) {
			t.Errorf("status %d should be cacheable", status)
		}
	}
	for _, status := range []int{204, 301, 304, 400, 500} {
		if defaultCacheableStatus(status) {
			t.Errorf("status %d should not be cacheable", status)
		}
	}
}

func TestDefaultCacheableMethod(t *testing.T) {
	if !defaultCacheableMethod(http.MethodGet) {
		t.Fatal("GET should be cacheable")
	}
	for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodHead} {
		if defaultCacheableMethod(m) {
			t.Errorf("%s should not be cacheable by default", m)
		}
	}
}
