package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/nexum-io/nexum-client/pkg/nexum"
)

// NewCallCommand creates the call command: the generic dispatcher behind
// the whole API surface.
func NewCallCommand() *cobra.Command {
	var (
		prune     bool
		iterate   bool
		maxItems  int
		bodyParam string
	)

	cmd := &cobra.Command{
		Use:   "call <operation> [key=value ...]",
		Short: "Call an API operation by name",
		Long: `Call any operation published in the discovery document.

Parameters are given as key=value pairs. The reserved "body" parameter
carries the request body of POST operations, either inline JSON or
@path to read it from a file. Paginated operations are followed to
completion and printed as one flat list.

Examples:
  nexum call user/get uid=user@example.com
  nexum call user/list fields=items(id,email)
  nexum call feed/subscribers body='{"feed": "42"}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}

			if bodyParam != "" {
				params["body"] = parseValue(bodyParam)
			}

			client, err := buildClient(prune)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			if iterate {
				return runIterate(ctx, client, args[0], params, maxItems)
			}

			result, err := client.Call(ctx, args[0], params)
			if err != nil {
				return err
			}

			return renderResult(result)
		},
	}

	cmd.Flags().BoolVar(&prune, "prune", false, "strip heavyweight denormalized fields from responses")
	cmd.Flags().BoolVar(&iterate, "iterate", false, "fetch pages lazily and stop after --max-items")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "with --iterate, stop after this many items (0 = all)")
	cmd.Flags().StringVar(&bodyParam, "body", "", "request body, inline JSON or @path")

	return cmd
}

func runIterate(ctx context.Context, client nexum.Client, name string, params nexum.Params, maxItems int) error {
	iter, err := client.IterCall(ctx, name, params)
	if err != nil {
		return err
	}

	items := []interface{}{}

	for iter.HasNext() {
		item, err := iter.Next()
		if err != nil {
			if errors.Is(err, nexum.ErrNoMoreItems) {
				break
			}

			return err
		}

		items = append(items, item)

		if maxItems > 0 && len(items) >= maxItems {
			break
		}
	}

	if err := iter.Err(); err != nil {
		return err
	}

	return renderResult(items)
}
