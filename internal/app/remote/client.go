/*
Package remote is the HTTP binding of the remote service.

It is the only place the raw credential is read. Every response is decoded against the
service's error body, {"detail": string | [{"loc": [...], "msg": string}], "code": int},
and mapped onto the errs taxonomy.
*/
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"nyscmate/internal/app/session"
	"nyscmate/internal/pkg/errs"
	"nyscmate/internal/pkg/logx"
)

const (
	// MaxResponseSize caps how much of a response body is read.
	MaxResponseSize = 4 * 1024 * 1024

	userAgent = "nyscmate"
)

// CredentialSource returns the credential to attach to authenticated calls.
type CredentialSource func() session.Credential

// Client talks to the remote service. It carries no timeout of its own: every call is
// bounded by its context, which the request pipeline owns.
type Client struct {
	base   *url.URL
	http   *http.Client
	cred   CredentialSource
	logger zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCredentials sets where authenticated calls get their bearer token.
func WithCredentials(src CredentialSource) Option {
	return func(c *Client) { c.cred = src }
}

// New returns a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", baseURL)
	}

	c := &Client{
		base: u,
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		cred:   func() session.Credential { return "" },
		logger: logx.Component("remote"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// call describes one request.
type call struct {
	method string
	path   string

	// body is JSON-encoded unless it is a *multipartBody.
	body any

	// cred overrides the credential source; used by AuthAPI methods that receive one.
	cred session.Credential

	// auth marks an auth endpoint: 401 there means bad credentials, not an expired session.
	auth bool
}

// do performs c and decodes a successful response into out (if non-nil).
func (cl *Client) do(ctx context.Context, c call, out any) error {
	req, err := cl.newRequest(ctx, c)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := cl.http.Do(req)
	if err != nil {
		// Context errors and transport failures are classified by the pipeline.
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, MaxResponseSize+1))
	if err != nil {
		return err
	}
	if len(body) > MaxResponseSize {
		return errs.NewError(errs.ErrRequestEntityTooLarge).WithMessage("The server response was too large.")
	}

	cl.logger.Debug().
		Str("method", c.method).
		Str("path", c.path).
		Int("status", res.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Remote call")

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return mapStatus(res.StatusCode, c, body)
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errs.Wrap(errs.ErrUnknown, fmt.Errorf("decode %s %s: %w", c.method, c.path, err))
	}
	return nil
}

func (cl *Client) newRequest(ctx context.Context, c call) (*http.Request, error) {
	u := *cl.base
	u.Path = cl.base.Path + c.path

	var (
		body        io.Reader
		contentType string
	)
	switch b := c.body.(type) {
	case nil:
	case *multipartBody:
		body, contentType = b.reader, b.contentType
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, errs.Wrap(errs.ErrInvalidParams, err)
		}
		body, contentType = bytes.NewReader(data), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, c.method, u.String(), body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidParams, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	cred := c.cred
	if cred == "" && !c.auth {
		cred = cl.cred()
	}
	if cred != "" {
		req.Header.Set("Authorization", "Bearer "+cred.Token())
	}
	return req, nil
}
