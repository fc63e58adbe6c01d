// Package nexumclient provides the main entry point for creating Nexum
// API clients.
package nexumclient

import (
	"fmt"
	"strings"

	"github.com/nexum-io/nexum-client/internal/client"
	"github.com/nexum-io/nexum-client/pkg/nexum"
)

// New creates a new API client from config. The base URL is normalized
// (https scheme assumed, trailing slash stripped) before the client is
// built.
func New(config *nexum.Config) (nexum.Client, error) {
	if config == nil {
		return nil, nexum.ErrConfigRequired
	}

	if config.BaseURL == "" {
		return nil, &nexum.ConfigError{Message: nexum.ErrBaseURLRequired.Error()}
	}

	baseURL := strings.TrimSuffix(config.BaseURL, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}

	config.BaseURL = baseURL

	cli, err := client.New(config)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	return cli, nil
}

// NewWithToken creates a client that authenticates with an existing
// bearer token.
func NewWithToken(baseURL, token string) (nexum.Client, error) {
	return New(&nexum.Config{
		BaseURL: baseURL,
		Token:   token,
	})
}

// NewWithClientCredentials creates a client that authenticates with the
// OAuth2 client_credentials grant.
func NewWithClientCredentials(baseURL, clientID, clientSecret string) (nexum.Client, error) {
	return New(&nexum.Config{
		BaseURL:      baseURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
}

// NewWithServiceAccount creates a client that authenticates with a signed
// service-account assertion, optionally impersonating subject.
func NewWithServiceAccount(baseURL string, account *nexum.ServiceAccount, subject string) (nexum.Client, error) {
	return New(&nexum.Config{
		BaseURL:        baseURL,
		ServiceAccount: account,
		Subject:        subject,
	})
}

// NewWithTokenGetter creates a client that acquires tokens through a
// caller-supplied callback.
func NewWithTokenGetter(baseURL string, getter nexum.TokenGetter) (nexum.Client, error) {
	return New(&nexum.Config{
		BaseURL:     baseURL,
		TokenGetter: getter,
	})
}
