package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	nexhttp "github.com/nexum-io/nexum-client/internal/http"
	"github.com/nexum-io/nexum-client/pkg/nexum"
)

// Params aliases the public parameter map type.
type Params = nexum.Params

// Call resolves the named operation, issues it, and follows the
// pagination protocol to completion. Paginated responses come back as a
// single flat list of items across all pages; single-object responses
// come back as-is. The name is slash-delimited ("user/list") or given as
// positional segments via JoinName.
func (c *Client) Call(ctx context.Context, name string, params Params) (interface{}, error) {
	nameParts := nexum.SplitName(name)

	spec, err := c.resolveCall(ctx, nameParts)
	if err != nil {
		return nil, err
	}

	path, args, err := c.prepareCall(spec, params)
	if err != nil {
		return nil, err
	}

	cursor := popCursor(args.params)
	c.setCursor(cursor)

	var items []interface{}
	sawPages := false

	for {
		if cursor != "" {
			if args.body != nil {
				args.body["cursor"] = cursor
			} else {
				args.params["cursor"] = cursor
			}
		}

		response, err := c.request(ctx, spec.HTTPMethod, path, args)
		if err != nil {
			c.setCursor("")

			return nil, err
		}

		page, ok := response.(map[string]interface{})
		if !ok {
			c.setCursor("")

			return c.prune(nameParts, response), nil
		}

		more, hasMore := page["more"]
		moreSet := more == true
		pageItems, _ := page["items"].([]interface{})

		if moreSet && len(pageItems) > 0 {
			items = append(items, pageItems...)
			sawPages = true

			cursor, _ = page["cursor"].(string)
			if cursor == "" {
				// A non-terminal page without a cursor cannot be
				// followed; re-issuing the same request would loop on
				// the same page forever.
				c.setCursor("")

				return c.prune(nameParts, items), nil
			}

			c.setCursor(cursor)

			continue
		}

		c.setCursor("")

		if moreSet {
			// The server claims more results but sent none. Stop and
			// return what accumulated rather than loop forever.
			return c.prune(nameParts, items), nil
		}

		if len(pageItems) > 0 {
			items = append(items, pageItems...)

			return c.prune(nameParts, items), nil
		}

		if sawPages {
			return c.prune(nameParts, items), nil
		}

		if hasMore {
			// An explicit "more": false with no items is an empty list,
			// not an object result.
			return []interface{}{}, nil
		}

		return c.prune(nameParts, page), nil
	}
}

// callArgs is one call's arguments after splitting params into their
// destinations.
type callArgs struct {
	params Params
	body   map[string]interface{}
	fields string
}

// resolveCall resolves an operation for the normal call path, rejecting
// upload operations and malformed specs.
func (c *Client) resolveCall(ctx context.Context, nameParts []string) (*nexum.OperationSpec, error) {
	registry, err := c.Endpoints(ctx)
	if err != nil {
		return nil, err
	}

	spec, err := registry.Resolve(nameParts...)
	if err != nil {
		return nil, err
	}

	if spec.IsUpload() {
		return nil, nexum.NewBadCallError(
			"%s is an upload endpoint, use Upload instead", nexum.JoinName(nameParts))
	}

	if spec.HTTPMethod == "" {
		return nil, nexum.NewConfigError(
			"operation %s has no HTTP method in the discovery document", nexum.JoinName(nameParts))
	}

	return spec, nil
}

// prepareCall expands the operation path with the path parameters and
// splits the remaining params into body and query arguments. The caller's
// map is never mutated.
func (c *Client) prepareCall(spec *nexum.OperationSpec, params Params) (string, *callArgs, error) {
	remaining := make(Params, len(params))
	for name, value := range params {
		remaining[name] = value
	}

	body, err := popBody(remaining)
	if err != nil {
		return "", nil, err
	}

	fields, _ := remaining["fields"].(string)
	delete(remaining, "fields")

	path, err := expandPath(spec, remaining)
	if err != nil {
		return "", nil, err
	}

	fullPath := strings.TrimSuffix(c.docBaseURL(), "/") + "/" + strings.TrimPrefix(path, "/")

	return fullPath, &callArgs{params: remaining, body: body, fields: fields}, nil
}

// docBaseURL returns the discovery document's (normalized) base URL,
// falling back to the configured one.
func (c *Client) docBaseURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.doc == nil || c.doc.BaseURL == "" {
		return c.baseURL
	}

	return c.doc.BaseURL
}

// request issues one HTTP exchange and decodes the JSON response. An
// empty response body decodes to nil.
func (c *Client) request(ctx context.Context, verb, path string, args *callArgs) (interface{}, error) {
	query := queryValues(args.params)
	if args.fields != "" {
		query.Set("fields", args.fields)
	}

	var body interface{}
	if args.body != nil {
		body = args.body
	}

	resp, err := c.httpClient.Do(ctx, &nexhttp.Request{
		Method: verb,
		Path:   path,
		Query:  query,
		Body:   body,
	})
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

	return result, nil
}

func (c *Client) prune(nameParts []string, content interface{}) interface{} {
	if c.filters == nil {
		return content
	}

	return c.filters.Apply(nameParts, content)
}

// popCursor removes and returns the caller-supplied starting cursor.
func popCursor(params Params) string {
	cursor, _ := params["cursor"].(string)
	delete(params, "cursor")

	return cursor
}

// popBody removes and normalizes the reserved body parameter: a map is
// taken as-is, a JSON string is decoded. Anything else is a bad call.
func popBody(params Params) (map[string]interface{}, error) {
	raw, ok := params["body"]
	if !ok {
		return nil, nil
	}

	delete(params, "body")

	switch v := raw.(type) {
	case map[string]interface{}:
		return v, nil

	case string:
		var body map[string]interface{}

		err := json.Unmarshal([]byte(v), &body)
		if err != nil {
			return nil, nexum.NewBadCallError("body is not valid JSON: %v", err)
		}

		return body, nil

	case nil:
		return nil, nil

	default:
		return nil, nexum.NewBadCallError("body must be an object or a JSON string, got %T", raw)
	}
}

// expandPath substitutes the operation's path parameters into its URI
// template and removes them from params, checking required parameters of
// every location on the way.
func expandPath(spec *nexum.OperationSpec, params Params) (string, error) {
	path := spec.Path

	for name, param := range spec.Parameters {
		value, present := params[name]

		if param.Required && !present {
			return "", nexum.NewBadCallError("missing required parameter %s", name)
		}

		if param.Location != "path" || !present {
			continue
		}

		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(stringify(value)))
		delete(params, name)
	}

	return path, nil
}

// queryValues renders the leftover params as query parameters.
func queryValues(params Params) url.Values {
	query := url.Values{}

	for name, value := range params {
		switch v := value.(type) {
		case []interface{}:
			for _, item := range v {
				query.Add(name, stringify(item))
			}
		case []string:
			for _, item := range v {
				query.Add(name, item)
			}
		default:
			query.Set(name, stringify(value))
		}
	}

	return query
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
