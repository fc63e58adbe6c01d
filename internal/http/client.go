// Package http provides the HTTP transport used by the Nexum client: one
// retrying connection-reusing client with bearer injection and a single
// 401-triggered token refresh.
package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	stdhttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/nexum-io/nexum-client/internal/constants"
	"github.com/nexum-io/nexum-client/pkg/nexum"
)

// TokenManager supplies and refreshes the bearer token attached to every
// request.
type TokenManager interface {
	GetToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) error
	SetToken(token string, expiresAt time.Time)
}

// Request is one HTTP request to the API.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers stdhttp.Header

	// Body is JSON-marshaled unless Raw is set.
	Body interface{}

	// Raw, when set, is sent as-is with ContentType.
	Raw         io.Reader
	ContentType string
}

// Response is the outcome of a request, with the full body read.
type Response struct {
	StatusCode int
	Headers    stdhttp.Header
	Body       []byte
}

// Client is the transport: connection reuse, retries for transient
// failures, proxy and TLS configuration, and auth header maintenance.
type Client struct {
	baseURL      string
	httpClient   *retryablehttp.Client
	tokenManager TokenManager
	userAgent    string
	extraHeaders map[string]string
	logger       nexum.Logger
	debug        bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger used for debug output.
func WithLogger(logger nexum.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request/response logging through the logger.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithExtraHeaders adds fixed headers to every request.
func WithExtraHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.extraHeaders = headers
	}
}

// WithRetryConfig tunes the transient-failure retry policy.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = retryMax
		c.httpClient.RetryWaitMin = waitMin
		c.httpClient.RetryWaitMax = waitMax
	}
}

// WithTimeout sets the fixed per-request timeout, uploads included.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient.Timeout = timeout
	}
}

// WithProxy routes all requests through the given proxy URL.
func WithProxy(proxyURL string) Option {
	return func(c *Client) {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return
		}

		transport(c).Proxy = stdhttp.ProxyURL(parsed)
	}
}

// WithTLSSkipVerify disables TLS certificate verification.
func WithTLSSkipVerify(skip bool) Option {
	return func(c *Client) {
		t := transport(c)
		if t.TLSClientConfig == nil {
			t.TLSClientConfig = &tls.Config{} // #nosec G402 -- opt-in via config
		}

		t.TLSClientConfig.InsecureSkipVerify = skip
	}
}

// transport returns the client's http.Transport, cloning the default when
// none is set yet.
func transport(c *Client) *stdhttp.Transport {
	t, ok := c.httpClient.HTTPClient.Transport.(*stdhttp.Transport)
	if !ok || t == nil {
		t = stdhttp.DefaultTransport.(*stdhttp.Transport).Clone()
		c.httpClient.HTTPClient.Transport = t
	}

	return t
}

// NewClient creates a new transport bound to baseURL. The token manager
// may be nil for unauthenticated endpoints such as discovery fetches.
func NewClient(baseURL string, tokenManager TokenManager, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = constants.DefaultRetryMax
	retryClient.RetryWaitMin = constants.DefaultRetryWaitMin
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.HTTPClient.Timeout = constants.DefaultHTTPTimeout
	retryClient.Logger = nil

	client := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   retryClient,
		tokenManager: tokenManager,
		userAgent:    "nexum-client/1.0",
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Do executes the request. Non-2xx responses return both the response and
// a *nexum.APIError carrying the status and body. A 401 triggers exactly
// one token refresh and one retry; a second 401 propagates.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	// Buffer raw bodies so the 401 retry can resend them.
	var rawBody []byte

	if req.Raw != nil {
		raw, err := io.ReadAll(req.Raw)
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}

		rawBody = raw
		req.Raw = bytes.NewReader(rawBody)
	}

	resp, err := c.doOnce(ctx, req)
	if err != nil {
		return resp, err
	}

	if resp.StatusCode == stdhttp.StatusUnauthorized && c.tokenManager != nil {
		refreshErr := c.tokenManager.RefreshToken(ctx)
		if refreshErr == nil {
			if rawBody != nil {
				req.Raw = bytes.NewReader(rawBody)
			}

			if c.debug && c.logger != nil {
				c.logger.Debug("retrying after token refresh", map[string]interface{}{
					"method": req.Method,
					"path":   req.Path,
				})
			}

			resp, err = c.doOnce(ctx, req)
			if err != nil {
				return resp, err
			}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, &nexum.APIError{Status: resp.StatusCode, Body: resp.Body}
	}

	return resp, nil
}

func (c *Client) doOnce(ctx context.Context, req *Request) (*Response, error) {
	fullURL, err := c.buildURL(req)
	if err != nil {
		return nil, err
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	for name, value := range c.extraHeaders {
		httpReq.Header.Set(name, value)
	}

	for name, values := range req.Headers {
		for _, value := range values {
			httpReq.Header.Add(name, value)
		}
	}

	if c.tokenManager != nil {
		token, err := c.tokenManager.GetToken(ctx)
		if err != nil {
			return nil, err
		}

		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("API request", map[string]interface{}{
			"method": req.Method,
			"url":    fullURL,
		})
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("API response", map[string]interface{}{
			"method":      req.Method,
			"url":         fullURL,
			"status_code": httpResp.StatusCode,
		})
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
	}, nil
}

// buildURL resolves the request path against the base URL. Absolute paths
// (upload URLs rooted elsewhere) are used as-is.
func (c *Client) buildURL(req *Request) (string, error) {
	fullURL := req.Path
	if !strings.HasPrefix(fullURL, "http://") && !strings.HasPrefix(fullURL, "https://") {
		if !strings.HasPrefix(fullURL, "/") {
			fullURL = "/" + fullURL
		}

		fullURL = c.baseURL + fullURL
	}

	if len(req.Query) > 0 {
		parsed, err := url.Parse(fullURL)
		if err != nil {
			return "", fmt.Errorf("parsing URL %q: %w", fullURL, err)
		}

		query := parsed.Query()

		for name, values := range req.Query {
			for _, value := range values {
				query.Add(name, value)
			}
		}

		parsed.RawQuery = query.Encode()
		fullURL = parsed.String()
	}

	return fullURL, nil
}

func encodeBody(req *Request) (io.Reader, string, error) {
	if req.Raw != nil {
		return req.Raw, req.ContentType, nil
	}

	if req.Body == nil {
		return nil, "", nil
	}

	data, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", fmt.Errorf("marshaling request body: %w", err)
	}

	return bytes.NewReader(data), "application/json", nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: stdhttp.MethodGet, Path: path, Query: query})
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: stdhttp.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: stdhttp.MethodPut, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: stdhttp.MethodDelete, Path: path})
}

// Upload performs a multipart request with metadata as a JSON part named
// "data" and content as the binary part named "file".
func (c *Client) Upload(ctx context.Context, method, path string, query url.Values, metadata []byte, content io.Reader) (*Response, error) {
	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	metaHeader := make(map[string][]string)
	metaHeader["Content-Disposition"] = []string{`form-data; name="data"; filename="metadata"`}
	metaHeader["Content-Type"] = []string{"application/json; charset=UTF-8"}

	metaPart, err := writer.CreatePart(metaHeader)
	if err != nil {
		return nil, fmt.Errorf("creating metadata part: %w", err)
	}

	_, err = metaPart.Write(metadata)
	if err != nil {
		return nil, fmt.Errorf("writing metadata part: %w", err)
	}

	filePart, err := writer.CreateFormFile("file", "file")
	if err != nil {
		return nil, fmt.Errorf("creating file part: %w", err)
	}

	_, err = io.Copy(filePart, content)
	if err != nil {
		return nil, fmt.Errorf("writing file part: %w", err)
	}

	err = writer.Close()
	if err != nil {
		return nil, fmt.Errorf("finalizing multipart body: %w", err)
	}

	return c.Do(ctx, &Request{
		Method:      method,
		Path:        path,
		Query:       query,
		Raw:         &buf,
		ContentType: writer.FormDataContentType(),
	})
}

// PutRaw performs a PUT of raw bytes to an absolute URL with the given
// headers, bypassing auth. Used for range-bounded upload chunks whose
// target URL is already signed.
func (c *Client) PutRaw(ctx context.Context, rawURL string, headers map[string]string, body []byte) (*Response, error) {
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, stdhttp.MethodPut, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for name, value := range headers {
		httpReq.Header.Set(name, value)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
	}, nil
}

// Stream issues the request and returns the response body as a stream.
// The caller must close it. Used for file downloads.
func (c *Client) Stream(ctx context.Context, method, path string, query url.Values) (io.ReadCloser, error) {
	fullURL, err := c.buildURL(&Request{Path: path, Query: query})
	if err != nil {
		return nil, err
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if c.tokenManager != nil {
		token, err := c.tokenManager.GetToken(ctx)
		if err != nil {
			return nil, err
		}

		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		body, _ := io.ReadAll(httpResp.Body)
		_ = httpResp.Body.Close()

		return nil, &nexum.APIError{Status: httpResp.StatusCode, Body: body}
	}

	return httpResp.Body, nil
}
