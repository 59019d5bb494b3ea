package client

import (
	"context"
	"net/http"
)

// HTTPClient is the shared interface for outbound requests to the remote API.
// Implemented by *Client; faked in tests of the API bindings.
type HTTPClient interface {
	Do(ctx context.Context, req *http.Request) (*Response, error)
}

var _ HTTPClient = (*Client)(nil)
