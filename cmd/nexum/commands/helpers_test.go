//nolint:testpackage // Need access to internal helpers
package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	t.Parallel()
	t.Run("typed values", func(t *testing.T) {
		t.Parallel()

		params, err := parseParams([]string{
			"uid=user@example.com",
			"max=50",
			"active=true",
			`body={"feed": "42"}`,
		})
		require.NoError(t, err)

		assert.Equal(t, "user@example.com", params["uid"])
		assert.Equal(t, int64(50), params["max"])
		assert.Equal(t, true, params["active"])
		assert.Equal(t, map[string]interface{}{"feed": "42"}, params["body"])
	})

	t.Run("rejects bare words", func(t *testing.T) {
		t.Parallel()

		_, err := parseParams([]string{"justakey"})
		require.ErrorIs(t, err, ErrMalformedParam)
	})

	t.Run("empty key is malformed", func(t *testing.T) {
		t.Parallel()

		_, err := parseParams([]string{"=value"})
		require.ErrorIs(t, err, ErrMalformedParam)
	})
}

func TestParseValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, false, parseValue("false"))
	assert.Equal(t, int64(7), parseValue("7"))
	assert.Equal(t, "7.5.1", parseValue("7.5.1"))
	assert.Equal(t, []interface{}{"a", "b"}, parseValue(`["a", "b"]`))
	assert.Equal(t, "{broken", parseValue("{broken"))
}

func TestProfileKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "api.example.com", profileKey("https://api.example.com"))
	assert.Equal(t, "api.example.com", profileKey("https://api.example.com/nexum/v1"))
	assert.Equal(t, "localhost:8080", profileKey("http://localhost:8080"))
}

func TestNewCallCommand(t *testing.T) {
	t.Parallel()

	cmd := NewCallCommand()
	assert.Equal(t, "call <operation> [key=value ...]", cmd.Use)
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("prune"))
	assert.NotNil(t, cmd.Flags().Lookup("iterate"))
	assert.NotNil(t, cmd.Flags().Lookup("max-items"))
}

func TestNewEndpointsCommand(t *testing.T) {
	t.Parallel()

	cmd := NewEndpointsCommand()
	assert.Equal(t, "endpoints", cmd.Use)

	names := []string{}
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	assert.Contains(t, names, "list")
	assert.Contains(t, names, "help")
}
