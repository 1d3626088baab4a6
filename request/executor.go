package request

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	clienterrors "github.com/jrsteele09/go-identity-client/internal/errors"
	"github.com/jrsteele09/go-identity-client/session"
)

const defaultTimeout = 30 * time.Second

// Response is the outcome of a successfully executed request (2xx/3xx).
// Error statuses are surfaced through the error taxonomy instead.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON decodes the response body into out.
func (r *Response) JSON(out interface{}) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return errors.Wrap(err, "[Response.JSON] json.Unmarshal")
	}
	return nil
}

// Executor wraps outbound requests with auth-header injection and a single
// 401-triggered refresh-and-replay. It never mutates session state on
// success paths; the one refresh it may force reuses the manager's
// single-flight slot.
type Executor struct {
	manager    *session.Manager
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	nowFunc    func() time.Time
}

type ExecutorOption func(*Executor)

// WithHTTPClient overrides the underlying http client (primarily for testing)
func WithHTTPClient(hc *http.Client) ExecutorOption {
	return func(e *Executor) {
		e.httpClient = hc
	}
}

// WithDefaultTimeout sets the timeout applied when a call specifies none.
func WithDefaultTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = timeout
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		e.nowFunc = now
	}
}

func NewExecutor(manager *session.Manager, baseURL string, options ...ExecutorOption) (*Executor, error) {
	if manager == nil {
		return nil, errors.New("[NewExecutor] manager is required")
	}
	if baseURL == "" {
		return nil, errors.New("[NewExecutor] baseURL is required")
	}

	e := &Executor{
		manager:    manager,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		timeout:    defaultTimeout,
		nowFunc:    time.Now,
	}

	for _, opt := range options {
		opt(e)
	}

	return e, nil
}

// callOptions modify a single request.
type callOptions struct {
	skipAuth  bool
	skipRetry bool
	timeout   time.Duration
	headers   map[string]string
}

type CallOption func(*callOptions)

// SkipAuth sends the request without an Authorization header.
func SkipAuth() CallOption {
	return func(o *callOptions) {
		o.skipAuth = true
	}
}

// SkipRetry disables the 401 refresh-and-replay for this request.
func SkipRetry() CallOption {
	return func(o *callOptions) {
		o.skipRetry = true
	}
}

// WithTimeout overrides the executor's default timeout for this request.
func WithTimeout(timeout time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = timeout
	}
}

// WithHeader adds a header to this request.
func WithHeader(key, value string) CallOption {
	return func(o *callOptions) {
		if o.headers == nil {
			o.headers = map[string]string{}
		}
		o.headers[key] = value
	}
}

// Do executes an authenticated request. body is JSON-marshalled when non-nil.
// On a 401 it forces one refresh through the session manager and replays the
// request exactly once; a second 401 is terminal.
func (e *Executor) Do(ctx context.Context, method, path string, body interface{}, options ...CallOption) (*Response, error) {
	opts := callOptions{timeout: e.timeout}
	for _, opt := range options {
		opt(&opts)
	}

	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "[Executor.Do] json.Marshal body")
		}
		payload = raw
	}

	requestID := uuid.New().String()

	resp, err := e.send(ctx, method, path, payload, opts)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !opts.skipAuth && !opts.skipRetry {
		log.Debug().
			Str("requestId", requestID).
			Str("path", path).
			Msg("401 received, forcing refresh and replaying once")

		if _, err := e.manager.ForceRefresh(ctx); err != nil {
			return nil, errors.Wrap(err, "[Executor.Do] ForceRefresh")
		}

		resp, err = e.send(ctx, method, path, payload, opts)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			// One refresh, one replay. A backend that keeps answering 401
			// does not get a retry loop.
			return nil, clienterrors.Wrapf(clienterrors.ErrAuthenticationExpired, "request %s still unauthorized after refresh", requestID)
		}
	}

	return e.finish(resp)
}

// send performs one HTTP round trip and maps transport failures onto the
// error taxonomy. HTTP statuses are returned for the caller to interpret.
func (e *Executor) send(ctx context.Context, method, path string, payload []byte, opts callOptions) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "[Executor.send] http.NewRequestWithContext")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range opts.headers {
		req.Header.Set(key, value)
	}

	if !opts.skipAuth {
		headers, err := e.manager.AuthHeaders(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "[Executor.send] AuthHeaders")
		}
		for key, value := range headers {
			req.Header.Set(key, value)
		}
	}

	started := e.nowFunc()
	httpResp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, clienterrors.ClassifyTransport(err, e.nowFunc().Sub(started))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, clienterrors.ClassifyTransport(err, e.nowFunc().Sub(started))
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
	}, nil
}

// finish converts remaining error statuses into HTTPStatusError.
func (e *Executor) finish(resp *Response) (*Response, error) {
	if resp.StatusCode >= 400 {
		return nil, &clienterrors.HTTPStatusError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	return resp, nil
}
