package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexum-io/nexum-client/pkg/nexum"
)

func TestUploadResumable(t *testing.T) {
	t.Parallel()
	t.Run("single chunk completes the upload", func(t *testing.T) {
		t.Parallel()

		api := newAPIServer(t)
		cli := newTestClient(t, api)

		var gotRange string

		target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotRange = r.Header.Get("Content-Range")

			body, err := json.Marshal(map[string]interface{}{"id": "file-9", "status": "stored"})
			require.NoError(t, err)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(body)
		}))
		defer target.Close()

		content := strings.NewReader("0123456789")

		result, err := cli.UploadResumable(context.Background(), target.URL+"/session",
			content, 10, nil)
		require.NoError(t, err)
		assert.Equal(t, "bytes 0-9/10", gotRange)

		obj, ok := result.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "file-9", obj["id"])
	})

	t.Run("unexpected status aborts and runs cleanup", func(t *testing.T) {
		t.Parallel()

		api := newAPIServer(t)
		cli := newTestClient(t, api)

		target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": "session expired"}`))
		}))
		defer target.Close()

		cleaned := false
		cleanup := func(ctx context.Context) { cleaned = true }

		_, err := cli.UploadResumable(context.Background(), target.URL+"/session",
			strings.NewReader("0123456789"), 10, cleanup)
		require.Error(t, err)
		assert.True(t, cleaned)

		apiErr := &nexum.APIError{}
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	})

	t.Run("zero size is rejected before any request", func(t *testing.T) {
		t.Parallel()

		api := newAPIServer(t)
		cli := newTestClient(t, api)

		cleaned := false

		_, err := cli.UploadResumable(context.Background(), "http://127.0.0.1:1/session",
			strings.NewReader(""), 0, func(ctx context.Context) { cleaned = true })
		require.Error(t, err)

		badCall := &nexum.BadCallError{}
		require.ErrorAs(t, err, &badCall)
		assert.Contains(t, err.Error(), "must be positive")

		// Nothing was sent, so there is nothing to clean up.
		assert.False(t, cleaned)
	})

	t.Run("short content aborts", func(t *testing.T) {
		t.Parallel()

		api := newAPIServer(t)
		cli := newTestClient(t, api)

		cleaned := false

		_, err := cli.UploadResumable(context.Background(), "http://127.0.0.1:1/session",
			strings.NewReader(""), 10, func(ctx context.Context) { cleaned = true })
		require.Error(t, err)
		assert.True(t, cleaned)

		badCall := &nexum.BadCallError{}
		assert.ErrorAs(t, err, &badCall)
	})
}

func TestDownload(t *testing.T) {
	t.Parallel()

	api := newAPIServer(t)
	cli := newTestClient(t, api)

	var buf bytes.Buffer

	n, err := cli.Download(context.Background(), &buf, "user/export", nexum.Params{})
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Contains(t, buf.String(), "someone@example.com")
}
