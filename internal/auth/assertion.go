package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nexum-io/nexum-client/internal/constants"
	"github.com/nexum-io/nexum-client/pkg/nexum"
)

// JWTBearerGrantType is the RFC 7523 grant type for signed-assertion token
// exchange.
const JWTBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// assertionTTL is the validity window claimed by signed assertions.
const assertionTTL = time.Hour

// AssertionConfig configures the signed-assertion (service-account) flow:
// the client proves its identity with an RS256-signed JWT instead of a
// client secret, and may impersonate a user via the subject claim.
type AssertionConfig struct {
	// TokenURL is the token endpoint, which is also the assertion
	// audience unless Audience overrides it.
	TokenURL string
	Audience string

	// Issuer is the service-account email.
	Issuer string

	// Subject is the impersonated user, if any.
	Subject string

	// PrivateKey is the PEM-encoded RSA key; PrivateKeyID is published as
	// the kid header.
	PrivateKey   string
	PrivateKeyID string

	// Scopes claimed by the assertion.
	Scopes []string

	// Claims are merged into the assertion payload.
	Claims map[string]interface{}

	// HTTPClient overrides the HTTP client used for token requests.
	HTTPClient *http.Client
}

// AssertionTokenManager exchanges signed JWT assertions for access tokens.
type AssertionTokenManager struct {
	config     *AssertionConfig
	store      tokenStore
	httpClient *http.Client
	mu         sync.Mutex
}

// NewAssertionTokenManager creates a new assertion token manager.
func NewAssertionTokenManager(config *AssertionConfig) *AssertionTokenManager {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.ShortHTTPTimeout}
	}

	return &AssertionTokenManager{config: config, httpClient: httpClient}
}

// GetToken returns a valid access token, exchanging a fresh assertion when
// the current one nears expiry.
func (m *AssertionTokenManager) GetToken(ctx context.Context) (string, error) {
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

// RefreshToken signs a new assertion and exchanges it at the token
// endpoint. There is no refresh-token flow: re-authentication is the
// refresh.
func (m *AssertionTokenManager) RefreshToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	assertion, err := m.signAssertion()
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("grant_type", JWTBearerGrantType)
	form.Set("assertion", assertion)

	token, err := m.exchange(ctx, form)
	if err != nil {
		return err
	}

	m.store.Set(token)

	return nil
}

// SetToken manually sets the access token.
func (m *AssertionTokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{AccessToken: token, ExpiresAt: expiresAt})
}

func (m *AssertionTokenManager) signAssertion() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(m.config.PrivateKey))
	if err != nil {
		return "", &nexum.AuthError{Message: "parsing service account key", Err: err}
	}

	audience := m.config.Audience
	if audience == "" {
		audience = m.config.TokenURL
	}

	now := time.Now()

	claims := jwt.MapClaims{
		"iss": m.config.Issuer,
		"aud": audience,
		"iat": now.Unix(),
		"exp": now.Add(assertionTTL).Unix(),
	}

	if m.config.Subject != "" {
		claims["sub"] = m.config.Subject
	}

	if len(m.config.Scopes) > 0 {
		claims["scope"] = strings.Join(m.config.Scopes, " ")
	}

	for name, value := range m.config.Claims {
		claims[name] = value
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if m.config.PrivateKeyID != "" {
		token.Header["kid"] = m.config.PrivateKeyID
	}

	signed, err := token.SignedString(key)
	if err != nil {
		return "", &nexum.AuthError{Message: "signing assertion", Err: err}
	}

	return signed, nil
}

func (m *AssertionTokenManager) exchange(ctx context.Context, form url.Values) (*Token, error) {
	oauth := &OAuth2TokenManager{
		config:     &OAuth2Config{TokenURL: m.config.TokenURL},
		httpClient: m.httpClient,
	}

	return oauth.fetchToken(ctx, form)
}
