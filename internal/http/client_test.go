package http_test

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	stdhttp "net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nexhttp "github.com/nexum-io/nexum-client/internal/http"
	"github.com/nexum-io/nexum-client/pkg/nexum"
)

// fakeTokenManager counts refreshes and can rotate the token it serves.
type fakeTokenManager struct {
	tokens    []string
	getCalls  int
	refreshes int
}

func (m *fakeTokenManager) GetToken(ctx context.Context) (string, error) {
	m.getCalls++

	idx := m.refreshes
	if idx >= len(m.tokens) {
		idx = len(m.tokens) - 1
	}

	return m.tokens[idx], nil
}

func (m *fakeTokenManager) RefreshToken(ctx context.Context) error {
	m.refreshes++

	return nil
}

func (m *fakeTokenManager) SetToken(token string, expiresAt time.Time) {}

func TestClientDo(t *testing.T) {
	t.Parallel()
	t.Run("attaches bearer token and user agent", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			assert.Equal(t, "nexum-client/1.0", r.Header.Get("User-Agent"))
			assert.Equal(t, "application/json", r.Header.Get("Accept"))

			_, _ = w.Write([]byte(`{"ok": true}`))
		}))
		defer server.Close()

		client := nexhttp.NewClient(server.URL, &fakeTokenManager{tokens: []string{"test-token"}})

		resp, err := client.Get(context.Background(), "/ping", nil)
		require.NoError(t, err)
		assert.Equal(t, stdhttp.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"ok": true}`, string(resp.Body))
	})

	t.Run("merges query parameters", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			assert.Equal(t, "42", r.URL.Query().Get("page"))
			assert.Equal(t, "kept", r.URL.Query().Get("fixed"))

			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := nexhttp.NewClient(server.URL, nil)

		query := url.Values{}
		query.Set("page", "42")

		_, err := client.Get(context.Background(), "/list?fixed=kept", query)
		require.NoError(t, err)
	})

	t.Run("JSON-encodes bodies", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "value", body["key"])

			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := nexhttp.NewClient(server.URL, nil)

		_, err := client.Post(context.Background(), "/save", map[string]interface{}{"key": "value"})
		require.NoError(t, err)
	})

	t.Run("non-2xx returns APIError with body", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			w.WriteHeader(stdhttp.StatusConflict)
			_, _ = w.Write([]byte(`{"error": "NOT_UP_TO_DATE"}`))
		}))
		defer server.Close()

		client := nexhttp.NewClient(server.URL, nil)

		resp, err := client.Post(context.Background(), "/save", map[string]interface{}{})
		require.Error(t, err)
		require.NotNil(t, resp)

		apiErr := &nexum.APIError{}
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, stdhttp.StatusConflict, apiErr.Status)
		assert.Contains(t, string(apiErr.Body), "NOT_UP_TO_DATE")
	})

	t.Run("absolute URLs bypass the base URL", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			assert.Equal(t, "/absolute", r.URL.Path)

			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := nexhttp.NewClient("https://elsewhere.example.com", nil)

		_, err := client.Get(context.Background(), server.URL+"/absolute", nil)
		require.NoError(t, err)
	})

	t.Run("sends extra headers", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			assert.Equal(t, "cell-001", r.Header.Get("X-Nexum-Cell"))

			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := nexhttp.NewClient(server.URL, nil,
			nexhttp.WithExtraHeaders(map[string]string{"X-Nexum-Cell": "cell-001"}))

		_, err := client.Get(context.Background(), "/ping", nil)
		require.NoError(t, err)
	})
}

func TestClientRefreshOn401(t *testing.T) {
	t.Parallel()
	t.Run("refreshes once and retries", func(t *testing.T) {
		t.Parallel()

		requests := 0
		server := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			requests++

			if r.Header.Get("Authorization") != "Bearer fresh" {
				w.WriteHeader(stdhttp.StatusUnauthorized)

				return
			}

			_, _ = w.Write([]byte(`{"ok": true}`))
		}))
		defer server.Close()

		manager := &fakeTokenManager{tokens: []string{"stale", "fresh"}}
		client := nexhttp.NewClient(server.URL, manager)

		resp, err := client.Get(context.Background(), "/secure", nil)
		require.NoError(t, err)
		assert.Equal(t, stdhttp.StatusOK, resp.StatusCode)
		assert.Equal(t, 1, manager.refreshes)
		assert.Equal(t, 2, requests)
	})

	t.Run("second 401 propagates", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			w.WriteHeader(stdhttp.StatusUnauthorized)
		}))
		defer server.Close()

		manager := &fakeTokenManager{tokens: []string{"always-stale"}}
		client := nexhttp.NewClient(server.URL, manager)

		_, err := client.Get(context.Background(), "/secure", nil)
		require.Error(t, err)
		assert.True(t, nexum.IsUnauthorized(err))
		assert.Equal(t, 1, manager.refreshes)
	})
}

func TestClientUpload(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		require.Equal(t, "multipart/form-data", mediaType)

		reader := multipart.NewReader(r.Body, params["boundary"])

		parts := map[string]string{}

		for {
			part, err := reader.NextPart()
			if err == io.EOF {
				break
			}

			require.NoError(t, err)

			data, err := io.ReadAll(part)
			require.NoError(t, err)

			parts[part.FormName()] = string(data)
		}

		assert.JSONEq(t, `{"name": "report.pdf"}`, parts["data"])
		assert.Equal(t, "file content", parts["file"])

		_, _ = w.Write([]byte(`{"id": "file-1"}`))
	}))
	defer server.Close()

	client := nexhttp.NewClient(server.URL, nil)

	resp, err := client.Upload(context.Background(), stdhttp.MethodPost, "/upload", nil,
		[]byte(`{"name": "report.pdf"}`), strings.NewReader("file content"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": "file-1"}`, string(resp.Body))
}

func TestClientPutRaw(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		assert.Equal(t, stdhttp.MethodPut, r.Method)
		assert.Equal(t, "bytes 0-4/10", r.Header.Get("Content-Range"))
		// No auth on pre-signed chunk URLs.
		assert.Empty(t, r.Header.Get("Authorization"))

		w.WriteHeader(308)
	}))
	defer server.Close()

	client := nexhttp.NewClient(server.URL, &fakeTokenManager{tokens: []string{"t"}})

	resp, err := client.PutRaw(context.Background(), server.URL+"/chunk",
		map[string]string{"Content-Range": "bytes 0-4/10"}, []byte("01234"))
	require.NoError(t, err)
	assert.Equal(t, 308, resp.StatusCode)
}

func TestClientStream(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		_, _ = w.Write([]byte("raw file bytes"))
	}))
	defer server.Close()

	client := nexhttp.NewClient(server.URL, nil)

	body, err := client.Stream(context.Background(), stdhttp.MethodGet, "/download", nil)
	require.NoError(t, err)

	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "raw file bytes", string(data))
}
