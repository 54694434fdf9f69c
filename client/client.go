// Package client talks to the catalogue API. Reads of list resources go
// through a request cache and mutations invalidate the resources they change.
package client

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/krisalay/request-cache/api"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// ErrSessionExpired is returned when the API rejects the bearer token.
// The client forgets the token before returning it.
var ErrSessionExpired = errors.New("client: session expired")

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fasthttp.StatusMessage(e.Code)
	}
	return fmt.Sprintf("client: %s %s: %s (%d)", e.Method, e.Path, msg, e.Code)
}

// Query holds the URL query params of a list read. It is also the cache key params.
type Query map[string]string

func (q Query) encode() string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(q[k]))
	}
	return sb.String()
}

// TTLs are the cache lifetimes of each list resource.
type TTLs struct {
	Products       time.Duration
	Scans          time.Duration
	Certifications time.Duration
}

// DefaultTTLs match the freshness the catalogue UI expects.
var DefaultTTLs = TTLs{
	Products:       5 * time.Minute,
	Scans:          time.Minute,
	Certifications: 5 * time.Minute,
}

type Client struct {
	baseURL string
	http    *fasthttp.Client
	timeout time.Duration
	cache   api.Cache
	ttls    TTLs
	logger  *zap.Logger

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithTTLs(ttls TTLs) Option {
	return func(c *Client) { c.ttls = ttls }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithDial replaces how connections are opened, e.g. with an in-memory listener.
func WithDial(dial fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the API at baseURL, e.g. "http://localhost:3000/api".
func New(baseURL string, cache api.Cache, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &fasthttp.Client{
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		timeout: 10 * time.Second,
		cache:   cache,
		ttls:    DefaultTTLs,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) RemoveAuthToken() {
	c.SetAuthToken("")
}

func (c *Client) AuthToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// request sends one API call and decodes the data of the response into out.
func (c *Client) request(ctx context.Context, method, path string, query Query, body, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	uri := c.baseURL + path
	if qs := query.encode(); qs != "" {
		uri += "?" + qs
	}
	req.SetRequestURI(uri)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if token := c.AuthToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "client: encoding %s %s", method, path)
		}
		req.SetBody(b)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	start := time.Now()
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		c.logger.Error("api request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return errors.Wrapf(err, "client: %s %s", method, path)
	}

	code := resp.StatusCode()
	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", code),
		zap.Duration("took", time.Since(start)),
	)

	var env envelope
	decodeErr := json.Unmarshal(resp.Body(), &env)

	if code == fasthttp.StatusUnauthorized {
		c.RemoveAuthToken()
		c.logger.Warn("session expired, token removed", zap.String("path", path))
		return ErrSessionExpired
	}
	if code < 200 || code >= 300 {
		return &StatusError{Method: method, Path: path, Code: code, Message: env.Message}
	}
	if decodeErr != nil {
		return errors.Wrapf(decodeErr, "client: decoding %s %s", method, path)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(env.Data, out), "client: decoding data of %s %s", method, path)
}
