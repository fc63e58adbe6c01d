package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nexum-io/nexum-client/internal/constants"
	"github.com/nexum-io/nexum-client/pkg/nexum"
)

// OAuth2Config configures the OAuth2 token manager.
type OAuth2Config struct {
	// TokenURL is the token endpoint.
	TokenURL string

	// ClientID and ClientSecret authenticate the client at the token
	// endpoint (HTTP basic auth).
	ClientID     string
	ClientSecret string

	// RefreshToken, when set, selects the refresh_token grant over
	// client_credentials.
	RefreshToken string

	// AccessToken optionally seeds the manager with an existing token.
	AccessToken string

	// Scopes requested with the client_credentials grant.
	Scopes []string

	// HTTPClient overrides the HTTP client used for token requests.
	HTTPClient *http.Client
}

// OAuth2TokenManager acquires tokens with the client_credentials or
// refresh_token grant and refreshes them in place when they near expiry.
type OAuth2TokenManager struct {
	config     *OAuth2Config
	store      tokenStore
	httpClient *http.Client
	mu         sync.Mutex
}

// NewOAuth2TokenManager creates a new OAuth2 token manager.
func NewOAuth2TokenManager(config *OAuth2Config) *OAuth2TokenManager {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.ShortHTTPTimeout}
	}

	manager := &OAuth2TokenManager{
		config:     config,
		httpClient: httpClient,
	}

	if config.AccessToken != "" {
		manager.store.Set(&Token{
			AccessToken:  config.AccessToken,
			RefreshToken: config.RefreshToken,
		})
	}

	return manager
}

// GetToken returns a valid access token, refreshing if necessary.
func (m *OAuth2TokenManager) GetToken(ctx context.Context) (string, error) {
	token := m.store.Get()
	if token != nil && !token.Expired() {
		return token.AccessToken, nil
	}

	err := m.RefreshToken(ctx)
	if err != nil {
		return "", err
	}

	return m.store.Get().AccessToken, nil
}

// RefreshToken acquires a fresh token: the refresh_token grant when a
// refresh token is available, the client_credentials grant otherwise.
func (m *OAuth2TokenManager) RefreshToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	form := url.Values{}

	refreshToken := m.currentRefreshToken()
	if refreshToken != "" {
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", refreshToken)
	} else {
		form.Set("grant_type", "client_credentials")

		if len(m.config.Scopes) > 0 {
			form.Set("scope", strings.Join(m.config.Scopes, " "))
		}
	}

	token, err := m.fetchToken(ctx, form)
	if err != nil {
		return err
	}

	// The server may rotate the refresh token; keep the old one if not.
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}

	m.store.Set(token)

	return nil
}

func (m *OAuth2TokenManager) currentRefreshToken() string {
	if token := m.store.Get(); token != nil && token.RefreshToken != "" {
		return token.RefreshToken
	}

	return m.config.RefreshToken
}

// SetToken manually sets the access token.
func (m *OAuth2TokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{AccessToken: token, ExpiresAt: expiresAt})
}

// fetchToken POSTs the form to the token endpoint and parses the response.
// Any failure surfaces as an AuthError and is never retried here.
func (m *OAuth2TokenManager) fetchToken(ctx context.Context, form url.Values) (*Token, error) {
	return FetchToken(ctx, m.httpClient, m.config.TokenURL, m.config.ClientID, m.config.ClientSecret, form)
}

// FetchToken POSTs the form to the given token endpoint, authenticating
// with HTTP basic auth when clientID is set, and parses the response. A
// nil httpClient gets a short-timeout default.
func FetchToken(ctx context.Context, httpClient *http.Client, tokenURL, clientID, clientSecret string, form url.Values) (*Token, error) {
	if tokenURL == "" {
		return nil, &nexum.AuthError{Message: "no token endpoint configured"}
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.ShortHTTPTimeout}
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &nexum.AuthError{Message: "building token request", Err: err}
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	if clientID != "" {
		req.SetBasicAuth(clientID, clientSecret)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &nexum.AuthError{Message: "token request failed", Err: err}
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &nexum.AuthError{Message: "reading token response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &nexum.AuthError{
			Message: fmt.Sprintf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	return ParseTokenResponse(body)
}

// ParseTokenResponse decodes a token-endpoint JSON response and stamps the
// expiry from expires_in.
func ParseTokenResponse(body []byte) (*Token, error) {
	var token Token

	err := json.Unmarshal(body, &token)
	if err != nil {
		return nil, &nexum.AuthError{Message: "malformed token response", Err: err}
	}

	if token.AccessToken == "" {
		return nil, &nexum.AuthError{Message: "malformed token response", Err: nexum.ErrMissingAccessToken}
	}

	if token.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	return &token, nil
}
