package shared

import (
	"strings"
	"testing"
)

func TestRandomString(t *testing.T) {
	t.Run("Length", func(t *testing.T) {
		for _, length := range []int{StateLength, VerifierLength, 1, 100} {
			s, err := RandomString(length)
			if err != nil {
				t.Fatalf("failed to generate random string: %v", err)
			}
			if len(s) != length {
				t.Errorf("expected length %d, got %d", length, len(s))
			}
		}
	})

	t.Run("Alphabet", func(t *testing.T) {
		s, err := RandomString(256)
		if err != nil {
			t.Fatalf("failed to generate random string: %v", err)
		}
		for _, c := range s {
			if !strings.ContainsRune(alphanumeric, c) {
				t.Errorf("character %q outside the alphanumeric alphabet", c)
			}
		}
	})

	t.Run("Unique", func(t *testing.T) {
		a, _ := RandomString(VerifierLength)
		b, _ := RandomString(VerifierLength)
		if a == b {
			t.Error("two generated verifiers should not collide")
		}
	})
}

func TestPKCEChallenge(t *testing.T) {
	// Verifier and challenge from RFC 7636 appendix B.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	want := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cc"

	if got := PKCEChallenge(verifier); got != want {
		t.Errorf("expected challenge %s, got %s", want, got)
	}

	if strings.ContainsAny(PKCEChallenge("another verifier"), "=+/") {
		t.Error("challenge must be base64url encoded without padding")
	}
}
