// PKCE (RFC 7636) primitives for the authorization code flow.
package shared

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const (
	// StateLength is the length of the OAuth state parameter.
	StateLength = 16
	// VerifierLength is the length of the PKCE code verifier.
	VerifierLength = 64
)

// RandomString returns a cryptographically random string of the given
// length drawn from the 62-character alphanumeric alphabet.
func RandomString(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	out := make([]byte, length)
	for i, b := range buf {
		out[i] = alphanumeric[int(b)%len(alphanumeric)]
	}
	return string(out), nil
}

// PKCEChallenge derives the S256 code challenge from a verifier: the
// SHA-256 digest, base64url-encoded with padding stripped.
func PKCEChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
