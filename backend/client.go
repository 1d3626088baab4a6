package backend

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

	"github.com/pkg/errors"

	clienterrors "github.com/jrsteele09/go-identity-client/internal/errors"
)

const defaultRequestTimeout = 30 * time.Second

var _ API = (*Client)(nil)

// Client is the HTTP implementation of the backend API collaborator.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	nowFunc    func() time.Time
}

type ClientOption func(*Client)

// WithHTTPClient overrides the underlying http client (primarily for testing)
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the default per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.nowFunc = now
	}
}

func NewClient(baseURL string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		timeout:    defaultRequestTimeout,
		nowFunc:    time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body := map[string]string{"email": email, "password": password}
	var result LoginResult
	if err := c.post(ctx, "/auth/login", body, "", &result); err != nil {
		return nil, errors.Wrap(err, "[Client.Login] post")
	}
	return &result, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenGrant, error) {
	body := map[string]string{"refreshToken": refreshToken}
	var grant TokenGrant
	if err := c.post(ctx, "/auth/refresh", body, "", &grant); err != nil {
		return nil, errors.Wrap(err, "[Client.Refresh] post")
	}
	return &grant, nil
}

func (c *Client) User(ctx context.Context, accessToken string) (map[string]interface{}, error) {
	var payload map[string]interface{}
	if err := c.get(ctx, "/auth/me", accessToken, &payload); err != nil {
		return nil, errors.Wrap(err, "[Client.User] get")
	}
	return payload, nil
}

func (c *Client) TenantPublic(ctx context.Context, appID, slug string) (*TenantInfo, error) {
	path := fmt.Sprintf("/tenants/%s/%s/public", url.PathEscape(appID), url.PathEscape(slug))
	var info TenantInfo
	if err := c.get(ctx, path, "", &info); err != nil {
		return nil, errors.Wrap(err, "[Client.TenantPublic] get")
	}
	return &info, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, bearer string, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "json.Marshal")
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(raw), bearer, out)
}

func (c *Client) get(ctx context.Context, path, bearer string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, bearer, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, bearer string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "http.NewRequestWithContext")
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	started := c.nowFunc()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return clienterrors.ClassifyTransport(err, c.nowFunc().Sub(started))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &clienterrors.HTTPStatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response body")
	}
	return nil
}
