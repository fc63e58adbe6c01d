package nexum

import (
	"context"
	"time"
)

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// TokenGetter produces an access token and its lifetime in seconds. It is
// re-invoked by the dispatcher when the token expires or a request comes
// back with HTTP 401.
type TokenGetter func(ctx context.Context) (token string, expiresIn int64, err error)

// ServiceAccount holds the key material for the signed-assertion (JWT
// bearer) authentication flow.
type ServiceAccount struct {
	ClientEmail  string   `json:"client_email"             yaml:"client_email"`
	PrivateKey   string   `json:"private_key"              yaml:"private_key"`
	PrivateKeyID string   `json:"private_key_id,omitempty" yaml:"private_key_id,omitempty"`
	TokenURI     string   `json:"token_uri"                yaml:"token_uri"`
	Scopes       []string `json:"scopes,omitempty"         yaml:"scopes,omitempty"`
}

// Config represents client configuration for building a Nexum API client.
//
// # Authentication
//
// Exactly one strategy is used per client instance, chosen in this order:
//  1. Token: a static bearer token, never refreshed by the client itself.
//  2. TokenGetter: a callback invoked for the initial token and re-invoked
//     once when a request returns 401.
//  3. ServiceAccount: the signed-assertion flow; Subject selects the user
//     to impersonate.
//  4. ClientID/ClientSecret: the OAuth2 client_credentials grant, or the
//     refresh_token grant when RefreshToken is also set.
//
// Providing none of these is a configuration error: the client fails fast
// instead of issuing anonymous calls.
type Config struct {
	// BaseURL is the root of the target cell, e.g.
	// "https://go-cell-001.api.nexum.io". Required.
	BaseURL string

	// APIName and APIVersion select the discovery document. They default
	// to "nexum" and "v1".
	APIName    string
	APIVersion string

	// DiscoveryURL overrides the derived discovery document URL.
	DiscoveryURL string

	// Authentication options (provide one).
	Token        string
	TokenGetter  TokenGetter
	ClientID     string
	ClientSecret string
	RefreshToken string
	// TokenURL is the OAuth2 token endpoint used by the client-credentials
	// and refresh-token grants. Defaults to BaseURL + "/v2/token".
	TokenURL       string
	ServiceAccount *ServiceAccount
	// Subject is the email of the user to impersonate in the
	// signed-assertion flow.
	Subject string

	// Prune enables the response pruning filter. PruneFilters overrides
	// the default filter table.
	Prune        bool
	PruneFilters Filters

	// Transport options.
	SkipTLSVerify bool
	ProxyURL      string
	ExtraHeaders  map[string]string
	UserAgent     string
	HTTPTimeout   time.Duration
	RetryMax      int
	RetryWaitMin  time.Duration
	RetryWaitMax  time.Duration
	Debug         bool
	Logger        Logger

	// Cache holds discovery documents across clients. When nil a
	// process-local in-memory cache is used.
	Cache Cache
}
