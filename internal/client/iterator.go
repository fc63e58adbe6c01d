package client

import (
	"context"

	"github.com/nexum-io/nexum-client/pkg/nexum"
)

// IterCall resolves the named operation and returns an iterator that
// fetches pages on demand, yielding one item at a time. Single-object
// responses yield that object once.
func (c *Client) IterCall(ctx context.Context, name string, params Params) (nexum.Iterator, error) {
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

	return &CallIterator{
		ctx:       ctx,
		client:    c,
		nameParts: nameParts,
		verb:      spec.HTTPMethod,
		path:      path,
		args:      args,
		cursor:    cursor,
	}, nil
}

// CallIterator walks a paginated operation page by page. The next page is
// requested only once the previous page's items are consumed, so aborting
// early never fetches pages the caller will not read. Not safe for
// concurrent use.
type CallIterator struct {
	ctx       context.Context
	client    *Client
	nameParts []string
	verb      string
	path      string
	args      *callArgs
	cursor    string

	buffer []interface{}
	done   bool
	err    error
}

// HasNext reports whether another item is available, fetching the next
// page when the buffer is exhausted. A fetch error makes HasNext return
// false; Next surfaces it.
func (it *CallIterator) HasNext() bool {
	if len(it.buffer) > 0 {
		return true
	}

	if it.done {
		return false
	}

	it.fetch()

	return len(it.buffer) > 0
}

// Next returns the next item. After the last item it returns
// nexum.ErrNoMoreItems, or the error that ended the iteration.
func (it *CallIterator) Next() (interface{}, error) {
	if !it.HasNext() {
		if it.err != nil {
			return nil, it.err
		}

		return nil, nexum.ErrNoMoreItems
	}

	item := it.buffer[0]
	it.buffer = it.buffer[1:]

	return it.client.prune(it.nameParts, item), nil
}

// Err returns the error that terminated the iteration, if any.
func (it *CallIterator) Err() error {
	return it.err
}

func (it *CallIterator) fetch() {
	if it.cursor != "" {
		if it.args.body != nil {
			it.args.body["cursor"] = it.cursor
		} else {
			it.args.params["cursor"] = it.cursor
		}
	}

	response, err := it.client.request(it.ctx, it.verb, it.path, it.args)
	if err != nil {
		it.err = err
		it.done = true
		it.client.setCursor("")

		return
	}

	page, ok := response.(map[string]interface{})
	if !ok {
		// Single non-paginated result, yield it once.
		if response != nil {
			it.buffer = []interface{}{response}
		}

		it.done = true
		it.client.setCursor("")

		return
	}

	more := page["more"] == true
	_, paginated := page["more"]
	items, _ := page["items"].([]interface{})

	if !paginated && len(items) == 0 {
		it.buffer = []interface{}{interface{}(page)}
		it.done = true
		it.client.setCursor("")

		return
	}

	it.buffer = items

	if more && len(items) > 0 {
		it.cursor, _ = page["cursor"].(string)
		if it.cursor == "" {
			// No cursor to follow; fetching again would replay the
			// same page.
			it.done = true
			it.client.setCursor("")

			return
		}

		it.client.setCursor(it.cursor)

		return
	}

	// Terminal page, or a "more" claim with no items to back it.
	it.done = true
	it.client.setCursor("")
}
