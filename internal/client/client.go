// Package client implements the discovery-driven Nexum API client: a
// generic dispatcher that resolves operation names against the discovery
// document at runtime instead of hand-writing one method per endpoint.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/nexum-io/nexum-client/internal/auth"
	"github.com/nexum-io/nexum-client/internal/constants"
	nexhttp "github.com/nexum-io/nexum-client/internal/http"
	"github.com/nexum-io/nexum-client/pkg/nexum"
)

// defaultAPIName and defaultAPIVersion select the discovery document when
// the config does not.
const (
	defaultAPIName    = "nexum"
	defaultAPIVersion = "v1"
)

// Client is a discovery-driven API client. One authentication strategy is
// active for its whole lifetime; the discovery document and endpoint
// registry are built lazily on first use and kept for the lifetime of the
// client.
type Client struct {
	config       *nexum.Config
	httpClient   *nexhttp.Client
	tokenManager auth.TokenManager
	cache        nexum.Cache
	logger       nexum.Logger
	filters      nexum.Filters

	baseURL      string
	discoveryURL string
	apiPath      string

	mu       sync.Mutex
	doc      *nexum.DiscoveryDocument
	registry *nexum.Registry

	// cursor is the "last cursor seen" diagnostic. Callers must not
	// overlap Call/IterCall on one instance; the cursor is not
	// per-call state.
	cursorMu sync.RWMutex
	cursor   string
}

// New creates a client from config. Configurations without any
// authentication strategy are rejected: the client never issues silent
// anonymous calls.
func New(config *nexum.Config) (*Client, error) {
	baseURL, err := validateBaseURL(config.BaseURL)
	if err != nil {
		return nil, err
	}

	tokenManager := newTokenManager(config, baseURL)
	if tokenManager == nil {
		return nil, &nexum.ConfigError{Message: nexum.ErrNoAuthProvided.Error()}
	}

	apiName := config.APIName
	if apiName == "" {
		apiName = defaultAPIName
	}

	apiVersion := config.APIVersion
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}

	discoveryURL := config.DiscoveryURL
	if discoveryURL == "" {
		discoveryURL = fmt.Sprintf("%s/discovery/v1/apis/%s/%s/rest", baseURL, apiName, apiVersion)
	}

	cache := config.Cache
	if cache == nil {
		cache = nexum.NewDiscoveryCache(nil)
	}

	var filters nexum.Filters

	if config.Prune {
		filters = config.PruneFilters
		if filters == nil {
			filters = nexum.DefaultFilters()
		}
	}

	client := &Client{
		config:       config,
		tokenManager: tokenManager,
		cache:        cache,
		logger:       config.Logger,
		filters:      filters,
		baseURL:      baseURL,
		discoveryURL: discoveryURL,
		apiPath:      "/" + apiName + "/" + apiVersion,
	}

	client.httpClient = nexhttp.NewClient(baseURL, tokenManager, httpOptions(config)...)

	return client, nil
}

func validateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", &nexum.ConfigError{Message: nexum.ErrBaseURLRequired.Error()}
	}

	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" || parsed.Scheme == "" {
		return "", nexum.NewConfigError("invalid base URL: %s", baseURL)
	}

	return baseURL, nil
}

// newTokenManager picks the authentication strategy, in config precedence
// order. Returns nil when no strategy is configured.
func newTokenManager(config *nexum.Config, baseURL string) auth.TokenManager {
	tokenURL := config.TokenURL
	if tokenURL == "" {
		tokenURL = baseURL + "/v2/token"
	}

	switch {
	case config.Token != "":
		return auth.NewStaticTokenManager(config.Token)

	case config.TokenGetter != nil:
		return auth.NewGetterTokenManager(config.TokenGetter)

	case config.ServiceAccount != nil:
		sa := config.ServiceAccount

		saTokenURL := sa.TokenURI
		if saTokenURL == "" {
			saTokenURL = tokenURL
		}

		return auth.NewAssertionTokenManager(&auth.AssertionConfig{
			TokenURL:     saTokenURL,
			Issuer:       sa.ClientEmail,
			Subject:      config.Subject,
			PrivateKey:   sa.PrivateKey,
			PrivateKeyID: sa.PrivateKeyID,
			Scopes:       sa.Scopes,
		})

	case config.ClientID != "" && config.ClientSecret != "":
		return auth.NewOAuth2TokenManager(&auth.OAuth2Config{
			TokenURL:     tokenURL,
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RefreshToken: config.RefreshToken,
		})

	default:
		return nil
	}
}

func httpOptions(config *nexum.Config) []nexhttp.Option {
	opts := []nexhttp.Option{}

	if config.Logger != nil {
		opts = append(opts, nexhttp.WithLogger(config.Logger))
	}

	if config.Debug {
		opts = append(opts, nexhttp.WithDebug(true))
	}

	if config.UserAgent != "" {
		opts = append(opts, nexhttp.WithUserAgent(config.UserAgent))
	}

	if config.ExtraHeaders != nil {
		opts = append(opts, nexhttp.WithExtraHeaders(config.ExtraHeaders))
	}

	if config.HTTPTimeout > 0 {
		opts = append(opts, nexhttp.WithTimeout(config.HTTPTimeout))
	}

	if config.ProxyURL != "" {
		opts = append(opts, nexhttp.WithProxy(config.ProxyURL))
	}

	if config.SkipTLSVerify {
		opts = append(opts, nexhttp.WithTLSSkipVerify(true))
	}

	if config.RetryMax > 0 {
		waitMin := config.RetryWaitMin
		if waitMin == 0 {
			waitMin = constants.DefaultRetryWaitMin
		}

		waitMax := config.RetryWaitMax
		if waitMax == 0 {
			waitMax = constants.DefaultRetryWaitMax
		}

		opts = append(opts, nexhttp.WithRetryConfig(config.RetryMax, waitMin, waitMax))
	}

	return opts
}

// TokenManager returns the active token manager.
func (c *Client) TokenManager() auth.TokenManager {
	return c.tokenManager
}

// GetToken returns a valid access token for the active strategy.
func (c *Client) GetToken(ctx context.Context) (string, error) {
	return c.tokenManager.GetToken(ctx)
}

// SetToken installs an access token. Setting the current value again is
// a no-op.
func (c *Client) SetToken(token string, expiresAt time.Time) {
	c.tokenManager.SetToken(token, expiresAt)
}

// Help renders a human-readable description of the named operation.
func (c *Client) Help(ctx context.Context, name string) (string, error) {
	registry, err := c.Endpoints(ctx)
	if err != nil {
		return "", err
	}

	return registry.Help(nexum.SplitName(name)...)
}

// Cursor returns the last pagination cursor seen by the client, or the
// empty string when no paginated call is in progress. Diagnostic only.
func (c *Client) Cursor() string {
	c.cursorMu.RLock()
	defer c.cursorMu.RUnlock()

	return c.cursor
}

func (c *Client) setCursor(cursor string) {
	c.cursorMu.Lock()
	defer c.cursorMu.Unlock()

	c.cursor = cursor
}

// Discovery returns the discovery document, fetching and caching it on
// first use. Cache failures degrade to a re-fetch, never to an error.
func (c *Client) Discovery(ctx context.Context) (*nexum.DiscoveryDocument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.doc != nil {
		return c.doc, nil
	}

	doc, err := c.fetchDiscovery(ctx)
	if err != nil {
		return nil, err
	}

	c.doc = doc
	c.registry = nexum.NewRegistry(doc)

	return c.doc, nil
}

func (c *Client) fetchDiscovery(ctx context.Context) (*nexum.DiscoveryDocument, error) {
	if entry, err := c.cache.Get(ctx, c.discoveryURL); err == nil {
		var doc nexum.DiscoveryDocument

		if json.Unmarshal(entry.Data, &doc) == nil {
			return &doc, nil
		}
		// Corrupt cache entry, fall through to a fresh fetch.
	}

	if c.logger != nil {
		c.logger.Debug("fetching discovery document", map[string]interface{}{
			"url": c.discoveryURL,
		})
	}

	resp, err := c.httpClient.Get(ctx, c.discoveryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching discovery document: %w", err)
	}

	var doc nexum.DiscoveryDocument

	err = json.Unmarshal(resp.Body, &doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", nexum.ErrInvalidJSON, err)
	}

	// Multi-tenant deployments publish one document for many cells;
	// rewrite its hosts so calls go to the configured cell.
	err = doc.NormalizeHost(c.baseURL)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(&doc)
	if err == nil {
		_ = c.cache.Set(ctx, c.discoveryURL, &nexum.CacheEntry{
			Data:      data,
			ExpiresAt: time.Now().Add(constants.DiscoveryCacheTTL),
		})
	}

	return &doc, nil
}

// Endpoints returns the flattened endpoint registry, building it on first
// use.
func (c *Client) Endpoints(ctx context.Context) (*nexum.Registry, error) {
	_, err := c.Discovery(ctx)
	if err != nil {
		return nil, err
	}

	return c.registry, nil
}

// InvalidateDiscovery drops the cached discovery document and registry so
// the next call re-fetches them.
func (c *Client) InvalidateDiscovery(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.doc = nil
	c.registry = nil
	_ = c.cache.Delete(ctx, c.discoveryURL)
}

// GetNewClientAs returns a new, independent client authenticated as the
// given user of the given organization, by exchanging this client's
// credentials for an application token on each (re-)authentication. The
// new client shares only the discovery cache.
func (c *Client) GetNewClientAs(userEmail, organizationID string) (nexum.Client, error) {
	if c.config.ClientID == "" || c.config.ClientSecret == "" {
		return nil, nexum.NewConfigError(
			"client credentials are required to derive a client for %s", userEmail)
	}

	tokenURL := fmt.Sprintf("%s/v2/organizations/%s/application-token", c.baseURL, organizationID)
	clientID := c.config.ClientID
	clientSecret := c.config.ClientSecret

	getter := func(ctx context.Context) (string, int64, error) {
		form := url.Values{}
		form.Set("grant_type", "client_credentials")
		form.Set("user_email", userEmail)

		token, err := auth.FetchToken(ctx, nil, tokenURL, clientID, clientSecret, form)
		if err != nil {
			return "", 0, err
		}

		return token.AccessToken, token.ExpiresIn, nil
	}

	derived := *c.config
	derived.Token = ""
	derived.ClientID = ""
	derived.ClientSecret = ""
	derived.ServiceAccount = nil
	derived.TokenGetter = getter
	derived.Cache = c.cache

	return New(&derived)
}
