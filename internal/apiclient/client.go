package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds every request when Config.Timeout is unset.
const DefaultTimeout = 20 * time.Second

// TokenSource supplies the bearer token for outgoing requests.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Tokens  TokenSource
	// OnUnauthorized runs after any 401 answer, before the error is returned.
	OnUnauthorized func()
	HTTPClient     *http.Client
	Logger         *zerolog.Logger
	UserAgent      string
}

// Client talks to the learning-portal REST API.
type Client struct {
	base           *url.URL
	http           *http.Client
	tokens         TokenSource
	onUnauthorized func()
	log            zerolog.Logger
	userAgent      string
}

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("apiclient: empty base url")
	}
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("apiclient: base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("apiclient: base url must be http(s): %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	c := &Client{
		base:           u,
		http:           hc,
		tokens:         cfg.Tokens,
		onUnauthorized: cfg.OnUnauthorized,
		userAgent:      cfg.UserAgent,
	}
	if c.userAgent == "" {
		c.userAgent = "portald"
	}
	if cfg.Logger != nil {
		c.log = *cfg.Logger
	} else {
		c.log = zerolog.Nop()
	}
	return c, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.base.String() }

// request describes one API call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	// contentType overrides JSON encoding when body is an io.Reader.
	contentType string
}

// send performs r and returns the raw 2xx body.
func (c *Client) send(ctx context.Context, r request) ([]byte, error) {
	// r.path holds already escaped segments; keep them as RawPath so ids with
	// reserved characters are encoded once.
	u := *c.base
	rawPath := strings.TrimRight(c.base.EscapedPath(), "/") + "/" + strings.TrimLeft(r.path, "/")
	p, err := url.PathUnescape(rawPath)
	if err != nil {
		return nil, fmt.Errorf("apiclient: path %s: %w", r.path, err)
	}
	u.Path, u.RawPath = p, rawPath
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	contentType := r.contentType
	switch b := r.body.(type) {
	case nil:
	case io.Reader:
		body = b
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("apiclient: encode %s %s: %w", r.method, r.path, err)
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build %s %s: %w", r.method, r.path, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Str("request_id", reqID).Str("method", r.method).Str("path", r.path).Dur("dur", time.Since(start)).Err(err).Msg("api transport failure")
		return nil, newTransportError(r.method, r.path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransportError(r.method, r.path, fmt.Errorf("read response body: %w", err))
	}
	c.log.Debug().Str("request_id", reqID).Str("method", r.method).Str("path", r.path).Int("status", resp.StatusCode).Dur("dur", time.Since(start)).Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := newStatusError(r.method, r.path, resp.StatusCode, raw)
		if e.Kind == KindAuth && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return nil, e
	}
	return raw, nil
}

// do performs r and decodes the (envelope-unwrapped) body into out.
func (c *Client) do(ctx context.Context, r request, out any) error {
	raw, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	return c.decode(r, unwrapEnvelope(raw), out)
}

// doRaw is like do but decodes the body as-is.
func (c *Client) doRaw(ctx context.Context, r request, out any) error {
	raw, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	return c.decode(r, raw, out)
}

func (c *Client) decode(r request, raw []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Kind: KindDecode, Method: r.method, Path: r.path, Body: raw, Err: err}
	}
	return nil
}

// unwrapEnvelope returns the "data" member of a {success, data} envelope, or
// raw unchanged when the body is not one.
func unwrapEnvelope(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return raw
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return raw
	}
	data, hasData := env["data"]
	if _, hasSuccess := env["success"]; !hasSuccess || !hasData {
		return raw
	}
	if string(bytes.TrimSpace(data)) == "null" {
		return raw
	}
	return data
}

// multipartFile builds a single-file multipart body.
func multipartFile(field, filename string, r io.Reader) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
