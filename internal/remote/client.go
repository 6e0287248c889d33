package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/matheus3301/plated/internal/bus"
	"github.com/matheus3301/plated/internal/config"
	"github.com/matheus3301/plated/internal/credential"
	"github.com/matheus3301/plated/internal/logging"
	"github.com/matheus3301/plated/internal/store"
	"go.uber.org/zap"
)

const maxErrorBody = 512

// Navigator sends the user to the sign-in entry point.
type Navigator interface {
	RedirectToSignIn()
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func()

func (f NavigatorFunc) RedirectToSignIn() { f() }

// Cache stores the last good response body per endpoint key. Entries
// belong to the signed-in user and are cleared when the credential changes.
type Cache interface {
	PutCache(key string, body []byte) error
	GetCache(key string) (*store.CacheEntry, error)
	ClearCache() error
}

// Options configures a Client. Only BaseURL is required.
type Options struct {
	BaseURL     string
	AuthMode    config.AuthMode
	Timeout     time.Duration
	Credentials credential.Source
	Navigator   Navigator
	Cache       Cache
	Bus         *bus.Bus
	Logger      *zap.Logger
	HTTPClient  *http.Client
}

// Client is the resilient remote client. Every outbound call goes through Call.
type Client struct {
	baseURL   string
	offline   bool
	http      *http.Client
	creds     credential.Source
	navigator Navigator
	cache     Cache
	bus       *bus.Bus
	logger    *zap.Logger
	validate  *validator.Validate
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	if _, err := url.ParseRequestURI(base); err != nil || base == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:   base,
		offline:   opts.AuthMode == config.AuthOffline,
		http:      hc,
		creds:     opts.Credentials,
		navigator: opts.Navigator,
		cache:     opts.Cache,
		bus:       opts.Bus,
		logger:    logging.OrNop(opts.Logger),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// Offline reports whether the client runs in offline/demo mode.
func (c *Client) Offline() bool { return c.offline }

// SignIn stores token as the credential. Cached responses are dropped
// unless the token belongs to the same subject as the previous one.
func (c *Client) SignIn(token string) error {
	if c.creds == nil {
		return errors.New("sign in: no credential store")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("sign in: empty token")
	}
	if !sameSubject(c.creds, token) {
		c.clearCache()
	}
	return c.creds.Save(token)
}

// SignOut removes the credential and every cached response.
func (c *Client) SignOut() error {
	c.clearCache()
	if c.creds == nil {
		return nil
	}
	return c.creds.Clear()
}

func sameSubject(creds credential.Source, token string) bool {
	prev, ok := creds.Token()
	if !ok {
		return false
	}
	a, okA := credential.Subject(prev)
	b, okB := credential.Subject(token)
	return okA && okB && a == b
}

func (c *Client) clearCache() {
	if c.cache == nil {
		return
	}
	if err := c.cache.ClearCache(); err != nil {
		c.logger.Warn("failed to clear response cache", zap.Error(err))
	}
}

// File is one file part of a multipart request.
type File struct {
	Field    string
	Name     string
	Content  io.Reader
	MIMEType string
}

// Request describes one remote call. Body is JSON-encoded; when Files is
// set the request is multipart and Fields become form values. NoCache
// keeps a GET response out of the response cache.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any
	Fields  map[string]string
	Files   []File
	NoCache bool
}

// Key identifies the endpoint for response caching.
func (r Request) Key() string {
	if len(r.Query) == 0 {
		return r.Method + " " + r.Path
	}
	keys := make([]string, 0, len(r.Query))
	for k := range r.Query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+strings.Join(r.Query[k], ","))
	}
	return r.Method + " " + r.Path + "?" + strings.Join(parts, "&")
}

// Call performs req and decodes a successful response into out, which may
// be nil. JSON bodies are unmarshaled; text bodies fill a *string target and
// are otherwise ignored. Failures are returned as *Error.
func (c *Client) Call(ctx context.Context, req Request, out any) error {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if err := c.check(req); err != nil {
		return err
	}

	httpReq, err := c.build(ctx, req)
	if err != nil {
		return &Error{Kind: Rejected, Method: req.Method, Path: req.Path, Err: err}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
		}
		return &Error{Kind: Unavailable, Method: req.Method, Path: req.Path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: Unavailable, Method: req.Method, Path: req.Path, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.fail(req, resp.StatusCode, body)
	}

	isJSON := isJSONContent(resp.Header.Get("Content-Type"))
	if err := decode(body, isJSON, out); err != nil {
		return &Error{Kind: Rejected, Method: req.Method, Path: req.Path, Status: resp.StatusCode, Err: err}
	}
	if isJSON && req.Method == http.MethodGet && !req.NoCache && c.cache != nil && len(body) > 0 {
		if err := c.cache.PutCache(req.Key(), body); err != nil {
			c.logger.Warn("failed to cache response", zap.String("key", req.Key()), zap.Error(err))
		}
	}
	return nil
}

// check validates the request payload before anything reaches the network.
func (c *Client) check(req Request) error {
	if req.Body == nil {
		return nil
	}
	v := reflect.ValueOf(req.Body)
	for v.Kind() == reflect.Pointer && !v.IsNil() {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	if err := c.validate.Struct(req.Body); err != nil {
		return &Error{Kind: Rejected, Method: req.Method, Path: req.Path, Err: fmt.Errorf("invalid payload: %w", err)}
	}
	return nil
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case len(req.Files) > 0:
		buf := &bytes.Buffer{}
		w := multipart.NewWriter(buf)
		for k, v := range req.Fields {
			if err := w.WriteField(k, v); err != nil {
				return nil, err
			}
		}
		for _, f := range req.Files {
			part, err := w.CreateFormFile(f.Field, f.Name)
			if err != nil {
				return nil, err
			}
			if _, err := io.Copy(part, f.Content); err != nil {
				return nil, fmt.Errorf("read %s: %w", f.Name, err)
			}
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		body = buf
		contentType = w.FormDataContentType()
	case req.Body != nil:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.creds != nil {
		if token, ok := c.creds.Token(); ok {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return httpReq, nil
}

// fail builds the classified error for a non-2xx response. Outside offline
// mode an auth failure clears the credential and redirects to sign-in.
func (c *Client) fail(req Request, status int, body []byte) error {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	e := &Error{Kind: kindForStatus(status), Method: req.Method, Path: req.Path, Status: status, Body: text}
	if e.Kind != AuthFailure || c.offline {
		return e
	}

	c.logger.Warn("auth failure, clearing credential", zap.String("path", req.Path), zap.Int("status", status))
	if err := c.SignOut(); err != nil {
		c.logger.Error("failed to clear credential", zap.Error(err))
	}
	c.bus.Publish(bus.NewEvent(bus.KindAuthFailure, map[string]string{"path": req.Path}))
	if c.navigator != nil {
		c.navigator.RedirectToSignIn()
	}
	return e
}

// qualifies reports whether err should be answered with fallback data.
func (c *Client) qualifies(err error) bool {
	switch Classify(err) {
	case Unavailable:
		return true
	case AuthFailure:
		return c.offline
	default:
		return false
	}
}

func isJSONContent(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func decode(body []byte, isJSON bool, out any) error {
	if out == nil || len(body) == 0 {
		return nil
	}
	if isJSON {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	if s, ok := out.(*string); ok {
		*s = string(body)
	}
	return nil
}
