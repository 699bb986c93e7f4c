package rooms

import (
	"crypto/rand"
	"math/big"
)

// Access tokens are short URL-safe capability strings. Room ids live in a
// separate UUID namespace, so the two never collide.
const (
	tokenAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	defaultTokenLength = 12
)

// tokenRegistry is the bidirectional token -> room association. A token
// maps to exactly one room; each room owns exactly two tokens. Callers
// hold the App mutex, the registry does no locking of its own.
type tokenRegistry struct {
	length  int
	byToken map[string]string // token -> room id
}

func newTokenRegistry(length int) *tokenRegistry {
	if length <= 0 {
		length = defaultTokenLength
	}
	return &tokenRegistry{
		length:  length,
		byToken: make(map[string]string),
	}
}

// issue generates a fresh token absent from the registry and records its
// room. The retry loop terminates with overwhelming probability on the
// first attempt for any realistic registry size.
func (r *tokenRegistry) issue(roomID string) string {
	for {
		token := randomToken(r.length)
		if _, taken := r.byToken[token]; taken {
			continue
		}
		r.byToken[token] = roomID
		return token
	}
}

// resolve returns the room id a token grants access to.
func (r *tokenRegistry) resolve(token string) (string, bool) {
	roomID, ok := r.byToken[token]
	return roomID, ok
}

// revoke removes a token. Revoking an unknown token is a no-op.
func (r *tokenRegistry) revoke(token string) {
	delete(r.byToken, token)
}

func randomToken(length int) string {
	max := big.NewInt(int64(len(tokenAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing means the process has no entropy
			// source at all; nothing sensible can continue.
			panic(err)
		}
		buf[i] = tokenAlphabet[n.Int64()]
	}
	return string(buf)
}
