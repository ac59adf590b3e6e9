package restsource

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// RawResponse is what the transport hands back: the undecoded result of one
// network round trip.
type RawResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Transport performs the actual network call. The library ships an
// implementation on net/http; tests and exotic setups can substitute their
// own. A Transport must return an error for network-level failures and a
// RawResponse for any obtained HTTP response, whatever its status.
type Transport interface {
	Send(ctx context.Context, req *Request) (*RawResponse, error)
}

type httpTransport struct {
	client *http.Client
}

// NewHTTPTransport returns a Transport backed by the given client. The client
// is typically a process-wide singleton so all data-source instances share
// one keep-alive pool; pass nil to use http.DefaultClient.
func NewHTTPTransport(client *http.Client) Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpTransport{client: client}
}

func (t *httpTransport) Send(ctx context.Context, req *Request) (*RawResponse, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL(), body)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		hreq.Header.Set(k, v)
	}

	resp, err := t.client.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &RawResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}, nil
}
