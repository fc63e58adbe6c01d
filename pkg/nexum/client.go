package nexum

import (
	"context"
	"io"
	"time"
)

// Params are the named arguments of one call: path parameters, query
// parameters and the reserved body and fields parameters, mixed in one
// map the way the discovery document declares them.
type Params map[string]interface{}

// Iterator walks a paginated operation item by item, fetching the next
// page only when the previous one is consumed. Not safe for concurrent
// use.
type Iterator interface {
	// HasNext reports whether another item is available, fetching the
	// next page if needed.
	HasNext() bool

	// Next returns the next item. After the last item it returns
	// ErrNoMoreItems, or the error that ended the iteration.
	Next() (interface{}, error)

	// Err returns the error that terminated the iteration, if any.
	Err() error
}

// Client is a discovery-driven API client: operations are addressed by
// name and resolved against the server's discovery document at call time.
type Client interface {
	// Call issues the named operation and follows pagination to
	// completion, returning either a flat item list or a single object.
	Call(ctx context.Context, name string, params Params) (interface{}, error)

	// IterCall issues the named operation lazily, one page at a time.
	IterCall(ctx context.Context, name string, params Params) (Iterator, error)

	// Upload sends metadata plus file content to an upload operation.
	Upload(ctx context.Context, name string, content io.Reader, metadata map[string]interface{}, params Params) (interface{}, error)

	// UploadResumable streams content to a resumable upload session URL
	// in fixed-size chunks.
	UploadResumable(ctx context.Context, uploadURL string, content io.Reader, size int64, cleanup func(context.Context)) (interface{}, error)

	// Download streams a non-JSON response body to w.
	Download(ctx context.Context, w io.Writer, name string, params Params) (int64, error)

	// Discovery returns the discovery document, fetching it on first use.
	Discovery(ctx context.Context) (*DiscoveryDocument, error)

	// Endpoints returns the flattened endpoint registry.
	Endpoints(ctx context.Context) (*Registry, error)

	// Help renders a human-readable description of one operation.
	Help(ctx context.Context, name string) (string, error)

	// GetToken returns a valid access token for the active strategy.
	GetToken(ctx context.Context) (string, error)

	// SetToken installs an access token, replacing the current one.
	// Setting the current value again is a no-op.
	SetToken(token string, expiresAt time.Time)

	// Cursor returns the last pagination cursor seen, for diagnostics.
	Cursor() string

	// GetNewClientAs derives an independent client authenticated as the
	// given user of the given organization.
	GetNewClientAs(userEmail, organizationID string) (Client, error)

	// InvalidateDiscovery drops the cached discovery document so the
	// next call re-fetches it.
	InvalidateDiscovery(ctx context.Context)
}
