package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/nexum-io/nexum-client/internal/constants"
	"github.com/nexum-io/nexum-client/pkg/nexum"
)

// UploadResumable streams content of known total size to a resumable
// upload session URL in fixed-size chunks, one Content-Range PUT per
// chunk. The server answers 308 while it expects more data and 2xx with
// the final resource once the last chunk lands. Any other status aborts
// the upload; cleanup, when given, then runs best-effort so a failed
// upload does not leave a half-written file behind. The size must be
// known and positive: the protocol has no empty-upload shape.
func (c *Client) UploadResumable(ctx context.Context, uploadURL string, content io.Reader, size int64, cleanup func(context.Context)) (interface{}, error) {
	if size <= 0 {
		return nil, nexum.NewBadCallError("upload size must be positive, got %d", size)
	}

	chunk := make([]byte, constants.UploadChunkSize)

	var offset int64

	for offset < size {
		n, err := io.ReadFull(content, chunk)
		if err == io.EOF {
			break
		}

		if err != nil && err != io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("reading upload content: %w", err)
		}

		headers := map[string]string{
			"Content-Range": fmt.Sprintf("bytes %d-%d/%d", offset, offset+int64(n)-1, size),
		}

		resp, err := c.httpClient.PutRaw(ctx, uploadURL, headers, chunk[:n])
		if err != nil {
			c.runCleanup(ctx, cleanup)

			return nil, err
		}

		offset += int64(n)

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if len(resp.Body) == 0 {
				return nil, nil
			}

			var result interface{}

			err = json.Unmarshal(resp.Body, &result)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", nexum.ErrInvalidJSON, err)
			}

			return result, nil

		case resp.StatusCode == constants.HTTPStatusResumeIncomplete:
			continue

		default:
			c.runCleanup(ctx, cleanup)

			return nil, &nexum.APIError{Status: resp.StatusCode, Body: resp.Body}
		}
	}

	c.runCleanup(ctx, cleanup)

	return nil, nexum.NewBadCallError("upload content ended before the declared size of %d bytes", size)
}

func (c *Client) runCleanup(ctx context.Context, cleanup func(context.Context)) {
	if cleanup == nil {
		return
	}

	cleanup(ctx)
}

// Download resolves the named operation and streams its response body to
// w, for file-content endpoints whose responses are not JSON.
func (c *Client) Download(ctx context.Context, w io.Writer, name string, params Params) (int64, error) {
	nameParts := nexum.SplitName(name)

	spec, err := c.resolveCall(ctx, nameParts)
	if err != nil {
		return 0, err
	}

	path, args, err := c.prepareCall(spec, params)
	if err != nil {
		return 0, err
	}

	body, err := c.httpClient.Stream(ctx, spec.HTTPMethod, path, queryValues(args.params))
	if err != nil {
		return 0, err
	}

	defer func() { _ = body.Close() }()

	return io.Copy(w, body)
}
