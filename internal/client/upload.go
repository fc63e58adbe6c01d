package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/nexum-io/nexum-client/pkg/nexum"
)

// Upload dispatches an upload operation: metadata plus file content sent
// as one multipart request to the operation's simple-upload path, rooted
// at the document's rootUrl. Non-upload operations are rejected, the
// mirror of Call rejecting upload operations.
func (c *Client) Upload(ctx context.Context, name string, content io.Reader, metadata map[string]interface{}, params Params) (interface{}, error) {
	nameParts := nexum.SplitName(name)

	registry, err := c.Endpoints(ctx)
	if err != nil {
		return nil, err
	}

	spec, err := registry.Resolve(nameParts...)
	if err != nil {
		return nil, err
	}

	if !spec.IsUpload() {
		return nil, nexum.NewBadCallError(
			"%s is not an upload endpoint, use Call or IterCall instead", nexum.JoinName(nameParts))
	}

	simple := spec.MediaUpload.Protocols.Simple
	if simple == nil || simple.Path == "" {
		return nil, nexum.NewConfigError(
			"operation %s declares no simple upload protocol", nexum.JoinName(nameParts))
	}

	verb := spec.HTTPMethod
	if verb == "" {
		verb = "POST"
	}

	remaining := make(Params, len(params))
	for pname, value := range params {
		remaining[pname] = value
	}

	for pname, param := range spec.Parameters {
		if param.Required {
			if _, present := remaining[pname]; !present {
				return nil, nexum.NewBadCallError("missing required parameter %s", pname)
			}
		}
	}

	uploadPath := expandTemplate(simple.Path, spec, remaining)

	fullURL := strings.TrimSuffix(c.docRootURL(), "/") + "/" + strings.TrimPrefix(uploadPath, "/")

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encoding upload metadata: %w", err)
	}

	resp, err := c.httpClient.Upload(ctx, verb, fullURL, queryValues(remaining), metadataJSON, content)
	if err != nil {
		return nil, err
	}

	if len(resp.Body) == 0 {
		return nil, nil
	}

	var result interface{}

	err = json.Unmarshal(resp.Body, &result)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", nexum.ErrInvalidJSON, err)
	}

	return c.prune(nameParts, result), nil
}

// expandTemplate substitutes {param} placeholders of a path template from
// params, removing each substituted value. Required parameters were
// already checked against the operation spec.
func expandTemplate(template string, spec *nexum.OperationSpec, params Params) string {
	path := template

	for name := range spec.Parameters {
		value, present := params[name]
		if !present {
			continue
		}

		placeholder := "{" + name + "}"
		if !strings.Contains(path, placeholder) {
			continue
		}

		path = strings.ReplaceAll(path, placeholder, stringify(value))
		delete(params, name)
	}

	return path
}

// docRootURL returns the discovery document's (normalized) root URL,
// falling back to the configured base URL.
func (c *Client) docRootURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.doc == nil || c.doc.RootURL == "" {
		return c.baseURL
	}

	return c.doc.RootURL
}
