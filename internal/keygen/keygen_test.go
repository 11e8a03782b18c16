package keygen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKeyLengthAndCharset(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)
	assert.Len(t, key, KeyLength)

	for _, r := range key {
		assert.Truef(t, strings.ContainsRune(alphabet, r), "unexpected character %q in key", r)
	}
}

func TestNewKeyUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		key, err := NewKey()
		require.NoError(t, err)
		require.Falsef(t, seen[key], "duplicate key generated: %s", key)
		seen[key] = true
	}
}
