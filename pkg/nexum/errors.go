package nexum

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Static errors that can be wrapped with context.
var (
	ErrConfigRequired           = errors.New("config is required")
	ErrBaseURLRequired          = errors.New("base URL is required")
	ErrNoAuthProvided           = errors.New("no authentication provided (token, token getter, client credentials or service account)")
	ErrMissingAccessToken       = errors.New("token endpoint response has no access_token")
	ErrStaticTokenCannotRefresh = errors.New("static token cannot be refreshed")
	ErrInvalidJSON              = errors.New("response body is not valid JSON")
	ErrNoMoreItems              = errors.New("no more items")
	ErrCacheKeyNotFound         = errors.New("key not found")
	ErrCacheEntryExpired        = errors.New("entry expired")
	ErrCacheDisabled            = errors.New("cache disabled")
)

// ConfigError reports an unusable client configuration, such as a missing
// base URL or no authentication strategy. It is fatal and never retried.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Message
}

// NewConfigError creates a ConfigError with a formatted message.
func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// EndpointNotFoundError reports an operation name that does not resolve in
// the endpoint registry. Suggestions carries a human-readable list of
// near-matching registered operations, when any exist.
type EndpointNotFoundError struct {
	Name        string
	Suggestions string
}

func (e *EndpointNotFoundError) Error() string {
	if e.Suggestions == "" {
		return fmt.Sprintf("endpoint %s not found", e.Name)
	}

	return fmt.Sprintf("endpoint %s not found. Did you mean one of these?\n%s", e.Name, e.Suggestions)
}

// BadCallError reports an operation that resolved but was called through the
// wrong dispatch path, or a call with a missing required parameter.
type BadCallError struct {
	Message string
}

func (e *BadCallError) Error() string {
	return e.Message
}

// NewBadCallError creates a BadCallError with a formatted message.
func NewBadCallError(format string, args ...interface{}) *BadCallError {
	return &BadCallError{Message: fmt.Sprintf(format, args...)}
}

// AuthError reports a failed token acquisition or refresh. It is surfaced to
// the caller and never retried automatically.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication error: %s: %v", e.Message, e.Err)
	}

	return "authentication error: " + e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// APIError represents a non-2xx HTTP response. The status code and raw body
// are preserved so callers can distinguish retryable situations from
// permanent failures.
type APIError struct {
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}

	return fmt.Sprintf("HTTP %d: %s", e.Status, body)
}

// StatusOf returns the HTTP status carried by err, if it is or wraps an
// APIError.
func StatusOf(err error) (int, bool) {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Status, true
	}

	return 0, false
}

// IsNotFound checks if the error is an HTTP 404 response.
func IsNotFound(err error) bool {
	status, ok := StatusOf(err)

	return ok && status == http.StatusNotFound
}

// IsUnauthorized checks if the error is an HTTP 401 response.
func IsUnauthorized(err error) bool {
	status, ok := StatusOf(err)

	return ok && status == http.StatusUnauthorized
}

// ErrorBodyContains reports whether err carries an HTTP response body
// containing the given substring.
func ErrorBodyContains(err error, substr string) bool {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return strings.Contains(string(apiErr.Body), substr)
	}

	return false
}
