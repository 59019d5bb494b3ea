// Package portalapi is a typed client for the remote DCarbon REST API.
// Every authenticated call carries the caller's bearer token; responses use
// the {status, message, data} envelope.
package portalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	httpclient "github.com/gloriousnetworker/dcarbon-portal/internal/platform/http/client"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/logutil"
)

// Envelope is the remote response wrapper.
type Envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client calls the remote API.
type Client struct {
	http      httpclient.HTTPClient
	baseURL   string
	legacyURL string
	logger    *slog.Logger
}

// New creates a client. legacyURL serves the endpoints that still live on the
// legacy host.
func New(h httpclient.HTTPClient, baseURL, legacyURL string, logger *slog.Logger) *Client {
	return &Client{
		http:      h,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		legacyURL: strings.TrimSuffix(legacyURL, "/"),
		logger:    logutil.NoopIfNil(logger),
	}
}

// Auth carries the caller's remote credentials.
type Auth struct {
	Token  string
	UserID string
}

// File is an upload part.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

type call struct {
	method string
	legacy bool
	path   string
	query  url.Values
	auth   *Auth
	body   any
	files  map[string]File
	fields map[string]string
}

func (c *Client) endpoint(cl call) string {
	base := c.baseURL
	if cl.legacy {
		base = c.legacyURL
	}
	u := base + cl.path
	if len(cl.query) > 0 {
		u += "?" + cl.query.Encode()
	}
	return u
}

// do performs the call and decodes the envelope's data member into out (when non-nil).
func (c *Client) do(ctx context.Context, cl call, out any) error {
	var (
		body        io.Reader
		contentType string
	)
	switch {
	case len(cl.files) > 0:
		buf, ct, err := encodeMultipart(cl.fields, cl.files)
		if err != nil {
			return err
		}
		body, contentType = buf, ct
	case cl.body != nil:
		b, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body, contentType = bytes.NewReader(b), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.endpoint(cl), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cl.auth != nil && cl.auth.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.auth.Token)
	}

	log := logutil.Ctx(ctx)
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		log.Warn("portal api request failed", "method", cl.method, "path", cl.path, "error", err)
		return fmt.Errorf("portal api %s %s: %w", cl.method, cl.path, err)
	}

	var env Envelope
	decodeErr := json.Unmarshal(resp.Body, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Message
		if decodeErr != nil || msg == "" {
			msg = fallbackMessage(resp.StatusCode)
		}
		log.Debug("portal api error response", "method", cl.method, "path", cl.path, "status", resp.StatusCode)
		return &APIError{StatusCode: resp.StatusCode, Message: msg, Data: env.Data}
	}
	if out == nil {
		return nil
	}
	if decodeErr != nil {
		return fmt.Errorf("decode %s response: %w", cl.path, decodeErr)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", cl.path, err)
	}
	return nil
}

func encodeMultipart(fields map[string]string, files map[string]File) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	for field, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, f.Name))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf, mw.FormDataContentType(), nil
}

func esc(s string) string { return url.PathEscape(s) }
