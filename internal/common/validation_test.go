package common

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURLLength(t *testing.T) {
	t.Run("within limit", func(t *testing.T) {
		assert.NoError(t, ValidateURLLength("textwell:///add?text=a", 64))
	})

	t.Run("exactly at limit", func(t *testing.T) {
		assert.NoError(t, ValidateURLLength(strings.Repeat("a", 10), 10))
	})

	t.Run("over limit", func(t *testing.T) {
		err := ValidateURLLength(strings.Repeat("a", 11), 10)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTooLarge))
	})

	t.Run("zero limit disables the check", func(t *testing.T) {
		assert.NoError(t, ValidateURLLength(strings.Repeat("a", 1000), 0))
	})
}

func TestValidateBridgeURL(t *testing.T) {
	t.Run("valid https url", func(t *testing.T) {
		u, err := ValidateBridgeURL("https://worldnine.github.io/textwell-mcp/")
		require.NoError(t, err)
		assert.Equal(t, "https://worldnine.github.io/textwell-mcp/", u)
	})

	t.Run("internationalized host", func(t *testing.T) {
		u, err := ValidateBridgeURL("https://bücher.example/bridge")
		require.NoError(t, err)
		assert.Equal(t, "https://xn--bcher-kva.example/bridge", u)
	})

	t.Run("port is kept", func(t *testing.T) {
		u, err := ValidateBridgeURL("http://localhost:8080/")
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080/", u)
	})

	t.Run("invalid inputs", func(t *testing.T) {
		for _, raw := range []string{"", "   ", "ftp://example.com", "/relative/path", "https://", "textwell:///replace"} {
			_, err := ValidateBridgeURL(raw)
			assert.Error(t, err, "Expected %q to be invalid", raw)
			assert.True(t, errors.Is(err, ErrInvalidInput), "Expected %q to wrap ErrInvalidInput", raw)
		}
	})
}

func TestValidateOpener(t *testing.T) {
	t.Run("valid names", func(t *testing.T) {
		for _, name := range []string{"open", "xdg-open", "/usr/bin/open", `C:\Windows\explorer.exe`} {
			assert.NoError(t, ValidateOpener(name), "Expected %s to be valid", name)
		}
	})

	t.Run("invalid names", func(t *testing.T) {
		for _, name := range []string{"", "open; rm -rf /", "open $(id)", "a b", "open|cat"} {
			assert.Error(t, ValidateOpener(name), "Expected %s to be invalid", name)
		}
	})
}
