package auth

import (
	"context"
	"sync"
	"time"

	"github.com/nexum-io/nexum-client/internal/constants"
	"github.com/nexum-io/nexum-client/pkg/nexum"
)

// TokenManager produces and refreshes access tokens for the transport
// layer. Exactly one implementation is active per client instance.
type TokenManager interface {
	// GetToken returns a valid access token, acquiring or refreshing one
	// if necessary.
	GetToken(ctx context.Context) (string, error)

	// RefreshToken forces a refresh. Called by the dispatcher after a 401.
	RefreshToken(ctx context.Context) error

	// SetToken manually sets the access token. Setting the current value
	// is a no-op.
	SetToken(token string, expiresAt time.Time)
}

// Token is an access token with its expiry and optional refresh token, as
// returned by the token endpoint.
type Token struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`

	// ExpiresAt is computed from ExpiresIn at acquisition time. A zero
	// value means the token never expires from the client's perspective.
	ExpiresAt time.Time `json:"-"`
}

// Expired reports whether the token is within the safety margin of its
// expiry.
func (t *Token) Expired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}

	return time.Now().Add(constants.TokenExpiryMargin).After(t.ExpiresAt)
}

// tokenStore is the single shared token/expiry slot of a client instance.
type tokenStore struct {
	mu    sync.RWMutex
	token *Token
}

func (s *tokenStore) Get() *Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// Set stores a token. Storing a token equal to the current one (same access
// token and expiry) is a no-op.
func (s *tokenStore) Set(token *Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != nil && token != nil &&
		s.token.AccessToken == token.AccessToken &&
		s.token.ExpiresAt.Equal(token.ExpiresAt) {
		return
	}

	s.token = token
}

// StaticTokenManager serves a caller-supplied bearer token. It never
// expires from the client's perspective and cannot be refreshed: the
// dispatcher surfaces 401s to the caller instead.
type StaticTokenManager struct {
	store tokenStore
}

// NewStaticTokenManager creates a token manager around a fixed token.
func NewStaticTokenManager(token string) *StaticTokenManager {
	m := &StaticTokenManager{}
	m.store.Set(&Token{AccessToken: token})

	return m
}

func (m *StaticTokenManager) GetToken(ctx context.Context) (string, error) {
	return m.store.Get().AccessToken, nil
}

func (m *StaticTokenManager) RefreshToken(ctx context.Context) error {
	return nexum.ErrStaticTokenCannotRefresh
}

func (m *StaticTokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{AccessToken: token, ExpiresAt: expiresAt})
}

// GetterTokenManager acquires tokens through a caller-supplied callback.
// The callback is re-invoked when the stored token reaches its expiry
// margin, or when the dispatcher forces a refresh after a 401.
type GetterTokenManager struct {
	getter nexum.TokenGetter
	store  tokenStore
	mu     sync.Mutex
}

// NewGetterTokenManager creates a token manager around a token getter.
func NewGetterTokenManager(getter nexum.TokenGetter) *GetterTokenManager {
	return &GetterTokenManager{getter: getter}
}

func (m *GetterTokenManager) GetToken(ctx context.Context) (string, error) {
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

func (m *GetterTokenManager) RefreshToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	accessToken, expiresIn, err := m.getter(ctx)
	if err != nil {
		return &nexum.AuthError{Message: "token getter failed", Err: err}
	}

	token := &Token{AccessToken: accessToken, ExpiresIn: expiresIn}
	if expiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second)
	}

	m.store.Set(token)

	return nil
}

func (m *GetterTokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{AccessToken: token, ExpiresAt: expiresAt})
}
