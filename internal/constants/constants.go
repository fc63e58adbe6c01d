package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout applied to every request,
	// uploads included.
	DefaultHTTPTimeout = 120 * time.Second

	// ShortHTTPTimeout is used for quick operations such as token fetches.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits for the transport layer.
const (
	// DefaultRetryMax is the default maximum number of transport retries.
	DefaultRetryMax = 3

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// Token lifetime handling.
const (
	// TokenExpiryMargin is the safety margin before the stored expiry at
	// which a token is considered expired and eligible for refresh.
	TokenExpiryMargin = 120 * time.Second
)

// Discovery document handling.
const (
	// DiscoveryCacheTTL is how long a fetched discovery document stays
	// valid in the cache.
	DiscoveryCacheTTL = 24 * time.Hour

	// DefaultCacheSize is the default maximum number of entries held by
	// the in-memory cache.
	DefaultCacheSize = 100
)

// Upload handling.
const (
	// UploadChunkSize is the chunk size for resumable uploads,
	// 256 KiB * 200 as required by the storage providers.
	UploadChunkSize = 52_428_800

	// HTTPStatusResumeIncomplete is returned by resumable upload targets
	// when a chunk was accepted and more data is expected.
	HTTPStatusResumeIncomplete = 308
)
