package client_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexum-io/nexum-client/internal/client"
	"github.com/nexum-io/nexum-client/pkg/nexum"
)

// apiServer is an in-memory API cell: a discovery document plus the
// operation handlers behind it.
type apiServer struct {
	*httptest.Server

	discoveryFetches atomic.Int64
	listRequests     atomic.Int64
	teamRequests     atomic.Int64
}

func newAPIServer(t *testing.T) *apiServer {
	t.Helper()

	api := &apiServer{}
	mux := http.NewServeMux()

	mux.HandleFunc("/discovery/v1/apis/nexum/v1/rest", func(w http.ResponseWriter, r *http.Request) {
		api.discoveryFetches.Add(1)

		base := "http://" + r.Host

		doc := fmt.Sprintf(`{
			"baseUrl": "%s/nexum/v1/",
			"rootUrl": "%s/",
			"resources": {
				"user": {
					"methods": {
						"get": {
							"httpMethod": "GET",
							"path": "user/get",
							"parameters": {
								"uid": {"type": "string", "required": true, "location": "query"}
							}
						},
						"list": {"httpMethod": "GET", "path": "user/list"},
						"export": {"httpMethod": "GET", "path": "user/export"}
					}
				},
				"group": {"methods": {"list": {"httpMethod": "GET", "path": "group/list"}}},
				"team": {"methods": {"list": {"httpMethod": "GET", "path": "team/list"}}},
				"auth": {"methods": {"whoami": {"httpMethod": "GET", "path": "whoami"}}},
				"org": {"methods": {"page": {"httpMethod": "GET", "path": "org/page"}}},
				"feed": {
					"methods": {
						"subscribers": {"httpMethod": "POST", "path": "feed/subscribers"}
					}
				},
				"file": {
					"methods": {
						"upload": {
							"httpMethod": "POST",
							"path": "file/upload",
							"mediaUpload": {
								"protocols": {"simple": {"multipart": true, "path": "upload/file"}}
							}
						}
					}
				}
			}
		}`, base, base)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(doc))
	})

	mux.HandleFunc("/nexum/v1/user/get", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"id": r.URL.Query().Get("uid"), "kind": "user"})
	})

	mux.HandleFunc("/nexum/v1/user/list", func(w http.ResponseWriter, r *http.Request) {
		api.listRequests.Add(1)

		switch r.URL.Query().Get("cursor") {
		case "":
			writeJSON(w, map[string]interface{}{
				"more": true, "cursor": "c1",
				"items": []interface{}{map[string]interface{}{"id": "1"}, map[string]interface{}{"id": "2"}},
			})
		case "c1":
			writeJSON(w, map[string]interface{}{
				"more": true, "cursor": "c2",
				"items": []interface{}{map[string]interface{}{"id": "3"}},
			})
		default:
			writeJSON(w, map[string]interface{}{
				"more":  false,
				"items": []interface{}{map[string]interface{}{"id": "4"}},
			})
		}
	})

	mux.HandleFunc("/nexum/v1/group/list", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"more": false})
	})

	mux.HandleFunc("/nexum/v1/team/list", func(w http.ResponseWriter, r *http.Request) {
		api.teamRequests.Add(1)

		// Claims more and delivers items, but never a cursor.
		writeJSON(w, map[string]interface{}{
			"more":  true,
			"items": []interface{}{map[string]interface{}{"id": "t1"}},
		})
	})

	mux.HandleFunc("/nexum/v1/org/page", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			writeJSON(w, map[string]interface{}{
				"more": true, "cursor": "c1",
				"items": []interface{}{map[string]interface{}{"id": "only"}},
			})

			return
		}

		// Claims more but delivers nothing.
		writeJSON(w, map[string]interface{}{"more": true})
	})

	mux.HandleFunc("/nexum/v1/feed/subscribers", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		if body["feed"] != "42" {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		if body["cursor"] == nil {
			writeJSON(w, map[string]interface{}{
				"more": true, "cursor": "b1",
				"items": []interface{}{"a"},
			})

			return
		}

		if body["cursor"] != "b1" {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		writeJSON(w, map[string]interface{}{"more": false, "items": []interface{}{"b"}})
	})

	mux.HandleFunc("/nexum/v1/user/export", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("id,email\n1,someone@example.com\n"))
	})

	mux.HandleFunc("/upload/file", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		writeJSON(w, map[string]interface{}{"id": "file-1", "status": "stored"})
	})

	mux.HandleFunc("/v2/organizations/42/application-token", func(w http.ResponseWriter, r *http.Request) {
		clientID, clientSecret, ok := r.BasicAuth()
		if !ok || clientID != "app-id" || clientSecret != "app-secret" {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		if err := r.ParseForm(); err != nil || r.PostFormValue("user_email") == "" {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		writeJSON(w, map[string]interface{}{
			"access_token": "impersonated-token",
			"expires_in":   3600,
		})
	})

	mux.HandleFunc("/nexum/v1/whoami", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"token": r.Header.Get("Authorization")})
	})

	api.Server = httptest.NewServer(mux)
	t.Cleanup(api.Server.Close)

	return api
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, api *apiServer, mutate ...func(*nexum.Config)) *client.Client {
	t.Helper()

	config := &nexum.Config{
		BaseURL: api.URL,
		Token:   "test-token",
	}

	for _, fn := range mutate {
		fn(config)
	}

	cli, err := client.New(config)
	require.NoError(t, err)

	return cli
}

func TestNew(t *testing.T) {
	t.Parallel()
	t.Run("requires a base URL", func(t *testing.T) {
		t.Parallel()

		_, err := client.New(&nexum.Config{Token: "t"})
		require.Error(t, err)

		configErr := &nexum.ConfigError{}
		assert.ErrorAs(t, err, &configErr)
	})

	t.Run("rejects malformed base URLs", func(t *testing.T) {
		t.Parallel()

		_, err := client.New(&nexum.Config{BaseURL: "not a url", Token: "t"})
		require.Error(t, err)
	})

	t.Run("requires an authentication strategy", func(t *testing.T) {
		t.Parallel()

		_, err := client.New(&nexum.Config{BaseURL: "https://api.example.com"})
		require.Error(t, err)

		configErr := &nexum.ConfigError{}
		require.ErrorAs(t, err, &configErr)
		assert.Contains(t, err.Error(), "no authentication provided")
	})
}

func TestDiscovery(t *testing.T) {
	t.Parallel()
	t.Run("fetches once per client", func(t *testing.T) {
		t.Parallel()

		api := newAPIServer(t)
		cli := newTestClient(t, api)
		ctx := context.Background()

		doc, err := cli.Discovery(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, doc.BaseURL)

		_, err = cli.Discovery(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), api.discoveryFetches.Load())
	})

	t.Run("shared cache spans clients", func(t *testing.T) {
		t.Parallel()

		api := newAPIServer(t)
		cache := nexum.NewMemoryCache(10)

		first := newTestClient(t, api, func(c *nexum.Config) { c.Cache = cache })
		second := newTestClient(t, api, func(c *nexum.Config) { c.Cache = cache })

		ctx := context.Background()

		_, err := first.Discovery(ctx)
		require.NoError(t, err)

		_, err = second.Discovery(ctx)
		require.NoError(t, err)

		assert.Equal(t, int64(1), api.discoveryFetches.Load())
	})
}

func TestCall(t *testing.T) {
	t.Parallel()
	t.Run("single object comes back as-is", func(t *testing.T) {
		t.Parallel()

		api := newAPIServer(t)
		cli := newTestClient(t, api)

		result, err := cli.Call(context.Background(), "user/get", nexum.Params{"uid": "user-1"})
		require.NoError(t, err)

		obj, ok := result.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "user-1", obj["id"])
	})

	t.Run("follows pagination to completion", func(t *testing.T) {
		t.Parallel()

		api := newAPIServer(t)
		cli := newTestClient(t, api)

		result, err := cli.Call(context.Background(), "user/list", nexum.Params{})
		require.NoError(t, err)

		items, ok := result.([]interface{})
		require.True(t, ok)
		require.Len(t, items, 4)

		ids := make([]string, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.(map[string]interface{})["id"].(string))
		}

		assert.Equal(t, []string{"1", "2", "3", "4"}, ids)
		assert.Equal(t, int64(3), api.listRequests.Load())
		assert.Empty(t, cli.Cursor())
	})

	t.Run("cursor goes into the body when one is present", func(t *testing.T) {
		t.Parallel()

		api := newAPIServer(t)
		cli := newTestClient(t, api)

		result, err := cli.Call(context.Background(), "feed/subscribers", nexum.Params{
			"body": map[string]interface{}{"feed": "42"},
		})
		require.NoError(t, err)

		items, ok := result.([]interface{})
		require.True(t, ok)
		assert.Equal(t, []interface{}{"a", "b"}, items)
	})

	t.Run("a more claim without items stops with what accumulated", func(t *testing.T) {
		t.Parallel()

		api := newAPIServer(t)
		cli := newTestClient(t, api)

		result, err := cli.Call(context.Background(), "org/page", nexum.Params{})
		require.NoError(t, err)

		items, ok := result.([]interface{})
		require.True(t, ok)
		require.Len(t, items, 1)
		assert.Empty(t, cli.Cursor())
	})

	t.Run("a non-terminal page without a cursor stops with what accumulated", func(t *testing.T) {
		t.Parallel()

		api := newAPIServer(t)
		cli := newTestClient(t, api)

		result, err := cli.Call(context.Background(), "team/list", nexum.Params{})
		require.NoError(t, err)

		items, ok := result.([]interface{})
		require.True(t, ok)
		require.Len(t, items, 1)
		assert.Equal(t, "t1", items[0].(map[string]interface{})["id"])

		// Without a cursor the same request cannot be re-issued.
		assert.Equal(t, int64(1), api.teamRequests.Load())
		assert.Empty(t, cli.Cursor())
	})

	t.Run("explicit more false without items is an empty list", func(t *testing.T) {
		t.Parallel()

		api := newAPIServer(t)
		cli := newTestClient(t, api)

		result, err := cli.Call(context.Background(), "group/list", nexum.Params{})
		require.NoError(t, err)
		assert.Equal(t, []interface{}{}, result)
	})

	t.Run("body accepts a JSON string", func(t *testing.T) {
		t.Parallel()

		api := newAPIServer(t)
		cli := newTestClient(t, api)

		result, err := cli.Call(context.Background(), "feed/subscribers", nexum.Params{
			"body": `{"feed": "42"}`,
		})
		require.NoError(t, err)
		assert.Len(t, result, 2)
	})

	t.Run("malformed body string is a bad call", func(t *testing.T) {
		t.Parallel()

		api := newAPIServer(t)
		cli := newTestClient(t, api)

		_, err := cli.Call(context.Background(), "feed/subscribers", nexum.Params{
			"body": `{not json`,
		})
		require.Error(t, err)

		badCall := &nexum.BadCallError{}
		assert.ErrorAs(t, err, &badCall)
	})

	t.Run("missing required parameter is a bad call", func(t *testing.T) {
		t.Parallel()

		api := newAPIServer(t)
		cli := newTestClient(t, api)

		_, err := cli.Call(context.Background(), "user/get", nexum.Params{})
		require.Error(t, err)

		badCall := &nexum.BadCallError{}
		require.ErrorAs(t, err, &badCall)
		assert.Contains(t, err.Error(), "missing required parameter uid")
	})

	t.Run("unknown operation suggests near matches", func(t *testing.T) {
		t.Parallel()

		api := newAPIServer(t)
		cli := newTestClient(t, api)

		_, err := cli.Call(context.Background(), "user/li", nexum.Params{})
		require.Error(t, err)

		notFound := &nexum.EndpointNotFoundError{}
		require.ErrorAs(t, err, &notFound)
		assert.Contains(t, notFound.Suggestions, "user/list")
	})

	t.Run("upload operations are rejected", func(t *testing.T) {
		t.Parallel()

		api := newAPIServer(t)
		cli := newTestClient(t, api)

		_, err := cli.Call(context.Background(), "file/upload", nexum.Params{})
		require.Error(t, err)

		badCall := &nexum.BadCallError{}
		require.ErrorAs(t, err, &badCall)
		assert.Contains(t, err.Error(), "use Upload instead")
	})
}

func TestIterCall(t *testing.T) {
	t.Parallel()
	t.Run("yields items across pages lazily", func(t *testing.T) {
		t.Parallel()

		api := newAPIServer(t)
		cli := newTestClient(t, api)

		iter, err := cli.IterCall(context.Background(), "user/list", nexum.Params{})
		require.NoError(t, err)

		// Consuming only the first page triggers a single fetch.
		first, err := iter.Next()
		require.NoError(t, err)
		assert.Equal(t, "1", first.(map[string]interface{})["id"])

		_, err = iter.Next()
		require.NoError(t, err)
		assert.Equal(t, int64(1), api.listRequests.Load())
		assert.Equal(t, "c1", cli.Cursor())

		ids := []string{}

		for iter.HasNext() {
			item, err := iter.Next()
			require.NoError(t, err)

			ids = append(ids, item.(map[string]interface{})["id"].(string))
		}

		assert.Equal(t, []string{"3", "4"}, ids)
		assert.Equal(t, int64(3), api.listRequests.Load())
		assert.Empty(t, cli.Cursor())

		_, err = iter.Next()
		require.ErrorIs(t, err, nexum.ErrNoMoreItems)
	})

	t.Run("single object yields once", func(t *testing.T) {
		t.Parallel()

		api := newAPIServer(t)
		cli := newTestClient(t, api)

		iter, err := cli.IterCall(context.Background(), "user/get", nexum.Params{"uid": "user-9"})
		require.NoError(t, err)

		require.True(t, iter.HasNext())

		item, err := iter.Next()
		require.NoError(t, err)
		assert.Equal(t, "user-9", item.(map[string]interface{})["id"])

		assert.False(t, iter.HasNext())
	})

	t.Run("a non-terminal page without a cursor ends the iteration", func(t *testing.T) {
		t.Parallel()

		api := newAPIServer(t)
		cli := newTestClient(t, api)

		iter, err := cli.IterCall(context.Background(), "team/list", nexum.Params{})
		require.NoError(t, err)

		ids := []string{}

		for iter.HasNext() {
			item, err := iter.Next()
			require.NoError(t, err)

			ids = append(ids, item.(map[string]interface{})["id"].(string))
		}

		assert.Equal(t, []string{"t1"}, ids)
		assert.Equal(t, int64(1), api.teamRequests.Load())
		assert.Empty(t, cli.Cursor())
		require.NoError(t, iter.Err())
	})

	t.Run("a more claim without items ends the iteration", func(t *testing.T) {
		t.Parallel()

		api := newAPIServer(t)
		cli := newTestClient(t, api)

		iter, err := cli.IterCall(context.Background(), "org/page", nexum.Params{})
		require.NoError(t, err)

		count := 0

		for iter.HasNext() {
			_, err := iter.Next()
			require.NoError(t, err)

			count++
		}

		assert.Equal(t, 1, count)
		require.NoError(t, iter.Err())
	})
}

func TestCallPrune(t *testing.T) {
	t.Parallel()

	api := newAPIServer(t)
	cli := newTestClient(t, api, func(c *nexum.Config) {
		c.Prune = true
		c.PruneFilters = nexum.Filters{"user/*": {"kind"}}
	})

	result, err := cli.Call(context.Background(), "user/get", nexum.Params{"uid": "user-1"})
	require.NoError(t, err)

	obj, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.NotContains(t, obj, "kind")
	assert.Equal(t, "user-1", obj["id"])
}
