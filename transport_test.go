package restsource

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movies/1", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.Client())
	raw, err := tr.Send(context.Background(), &Request{
		Method:  http.MethodGet,
		Origin:  srv.URL,
		Path:    "/movies/1",
		Headers: map[string]string{"Authorization": "Bearer tok"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, raw.StatusCode)
	assert.Equal(t, "application/json", raw.Headers.Get("Content-Type"))
	assert.JSONEq(t, `{"id":1}`, string(raw.Body))
}

func TestHTTPTransport_ErrorStatusIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.Client())
	raw, err := tr.Send(context.Background(), &Request{Method: http.MethodGet, Origin: srv.URL, Path: "/"})
	require.NoError(t, err, "an obtained response is never a transport error")
	assert.Equal(t, http.StatusInternalServerError, raw.StatusCode)
}

func TestHTTPTransport_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	tr := NewHTTPTransport(nil)
	_, err := tr.Send(context.Background(), &Request{Method: http.MethodGet, Origin: url, Path: "/"})
	require.Error(t, err)
}

func TestHTTPTransport_Body(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"title":"x"}`, string(body))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.Client())
	raw, err := tr.Send(context.Background(), &Request{
		Method:  http.MethodPost,
		Origin:  srv.URL,
		Path:    "/movies",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    []byte(`{"title":"x"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, raw.StatusCode)
}
