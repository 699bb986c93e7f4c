package rooms

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenRegistryIssueResolveRevoke(t *testing.T) {
	reg := newTokenRegistry(12)

	token := reg.issue("room-1")
	require.Len(t, token, 12)

	roomID, ok := reg.resolve(token)
	require.True(t, ok)
	require.Equal(t, "room-1", roomID)

	reg.revoke(token)
	_, ok = reg.resolve(token)
	require.False(t, ok)

	// revoking again is a no-op
	reg.revoke(token)
}

func TestTokenRegistryIssuesDistinctTokens(t *testing.T) {
	reg := newTokenRegistry(12)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		token := reg.issue("room-1")
		require.False(t, seen[token], "token %q issued twice", token)
		seen[token] = true
	}
}

func TestTokenRegistryDefaultsLength(t *testing.T) {
	reg := newTokenRegistry(0)
	require.Len(t, reg.issue("room-1"), defaultTokenLength)
}

func TestRandomTokenUsesAlphabet(t *testing.T) {
	token := randomToken(64)
	require.Len(t, token, 64)
	for _, ch := range token {
		require.True(t, strings.ContainsRune(tokenAlphabet, ch), "unexpected character %q", ch)
	}
}
