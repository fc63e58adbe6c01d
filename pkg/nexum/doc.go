// Package nexum provides the types, errors, and helpers for working with
// the Nexum platform API.
//
// # Overview
//
// Unlike SDKs that hand-write one method per endpoint, this client is driven
// by the platform's discovery document: a JSON description of every callable
// operation, its HTTP verb, path template, and parameters. The document is
// fetched once, cached (see Cache), and flattened into a Registry that the
// dispatcher uses to validate parameters and build requests at runtime.
//
// A concrete client is provided by the nexumclient package, which wires
// configuration, transport, and authentication:
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/nexum-io/nexum-client/pkg/nexum"
//	  "github.com/nexum-io/nexum-client/pkg/nexumclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := nexumclient.New(&nexum.Config{
//	    BaseURL:      "https://go-cell-001.api.nexum.example",
//	    ClientID:     "my-client",
//	    ClientSecret: "...",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  users, err := cli.Call(ctx, "user/list", nil)
//	  if err != nil { log.Fatal(err) }
//	  _ = users
//	}
//
// Operations are addressed by slash-joined names ("user/list") or positional
// segments. Call collects every page of a paginated response; IterCall
// returns a pull-based iterator yielding one item at a time.
//
// # Errors
//
// Failures are classified: ConfigError (unusable configuration),
// EndpointNotFoundError (unknown operation, with suggestions), BadCallError
// (wrong dispatch path or missing parameter), AuthError (token flows), and
// APIError (non-2xx responses, status and body preserved). Helpers such as
// IsNotFound and Translate/NilOnStatus make per-call-site error policies
// explicit and composable.
package nexum
