// Package nexumclient provides the primary entry point for constructing
// a discovery-driven Nexum API client implementing the nexum.Client
// interface.
//
// It layers configuration, HTTP transport, authentication, and discovery
// document handling on top of the types defined in the nexum package.
// Most applications should import nexumclient to build a client, then
// address operations by their discovery name.
//
// Quick start
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
//
//	  // With an access token you already have:
//	  cli, err := nexumclient.NewWithToken("https://api.example.com", "eyJhbGciOi...")
//	  if err != nil { log.Fatal(err) }
//
//	  // Or with OAuth2 client credentials. Tokens are acquired and
//	  // refreshed automatically:
//	  cli, err = nexumclient.New(&nexum.Config{
//	    BaseURL:      "https://api.example.com",
//	    ClientID:     "client-id",
//	    ClientSecret: "client-secret",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  // Operations are addressed by name; list calls paginate to
//	  // completion and come back as one flat list.
//	  users, err := cli.Call(ctx, "user/list", nexum.Params{"fields": "items(id,email)"})
//	  if err != nil { log.Fatal(err) }
//	  _ = users
//	}
//
// # Authentication strategies
//
// Exactly one strategy is active per client, chosen from the config in
// precedence order: a static token, a token-getter callback, a
// service-account assertion, then OAuth2 client credentials. A config
// with none of them is rejected at construction.
//
// # Helpers
//
// The package also provides convenience constructors NewWithToken,
// NewWithClientCredentials, NewWithServiceAccount and NewWithTokenGetter
// that wrap New with the appropriate configuration.
package nexumclient
