package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/mtx/internal/auth"
	"github.com/desertthunder/mtx/internal/shared"
	"github.com/desertthunder/mtx/internal/store"
)

// pendingAuthorizer starts a login against a stub token endpoint so the
// callback has a real exchange to complete.
func pendingAuthorizer(t *testing.T) (*auth.Authorizer, store.Store, string) {
	t.Helper()

	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok","token_type":"Bearer","expires_in":3600}`)
	}))
	t.Cleanup(tokens.Close)

	st := store.NewMemoryStore()
	pending := store.NewPendingSlot(st)
	cred := auth.Credential{
		ClientID:              "test_client",
		AuthorizationEndpoint: "https://provider.example/authorize",
		ExchangeEndpoint:      tokens.URL,
		Scope:                 "library-read",
	}
	a := auth.NewAuthorizer("spotify", cred, "http://localhost:3000/callback", st, pending, nil)

	authURL, err := a.Login(context.Background())
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("invalid auth URL: %v", err)
	}
	return a, st, u.Query().Get("state")
}

func awaitResult(t *testing.T, h *CallbackHandler) error {
	t.Helper()
	select {
	case err := <-h.Result():
		return err
	case <-time.After(time.Second):
		t.Fatal("no result delivered")
		return nil
	}
}

func TestCallbackHandler(t *testing.T) {
	t.Run("CompletesExchange", func(t *testing.T) {
		a, st, state := pendingAuthorizer(t)
		h := NewCallbackHandler(func() (*auth.Authorizer, bool) { return a, true })

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/callback?code=abc123&state="+state, nil)
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Authorization Successful") {
			t.Error("success page must confirm the authorization")
		}
		if err := awaitResult(t, h); err != nil {
			t.Errorf("unexpected result %v", err)
		}
		if tok, ok := st.Get(store.ProviderKey(store.KeyToken, "spotify")); !ok || tok == "" {
			t.Error("exchange must persist the token")
		}
	})

	t.Run("StateMismatchRendersFailure", func(t *testing.T) {
		a, st, _ := pendingAuthorizer(t)
		h := NewCallbackHandler(func() (*auth.Authorizer, bool) { return a, true })

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/callback?code=abc123&state=forged", nil)
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Authorization Failed") {
			t.Error("failure page must report the error")
		}
		if err := awaitResult(t, h); !errors.Is(err, shared.ErrStateMismatch) {
			t.Errorf("expected ErrStateMismatch, got %v", err)
		}
		if _, ok := st.Get(store.ProviderKey(store.KeyToken, "spotify")); ok {
			t.Error("no token must be stored on a forged state")
		}
	})

	t.Run("DeniedAuthorization", func(t *testing.T) {
		a, _, _ := pendingAuthorizer(t)
		h := NewCallbackHandler(func() (*auth.Authorizer, bool) { return a, true })

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/callback?error=access_denied&error_description=User+denied", nil)
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		err := awaitResult(t, h)
		if !errors.Is(err, shared.ErrExchangeFailed) {
			t.Fatalf("expected ErrExchangeFailed, got %v", err)
		}
		if !strings.Contains(err.Error(), "access_denied") {
			t.Errorf("result must carry the provider error, got %v", err)
		}
	})

	t.Run("NoLoginPending", func(t *testing.T) {
		h := NewCallbackHandler(func() (*auth.Authorizer, bool) { return nil, false })

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/callback?code=abc123", nil)
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if err := awaitResult(t, h); !errors.Is(err, shared.ErrNoLoginPending) {
			t.Errorf("expected ErrNoLoginPending, got %v", err)
		}
	})

	t.Run("ReplayRejected", func(t *testing.T) {
		a, _, state := pendingAuthorizer(t)
		h := NewCallbackHandler(func() (*auth.Authorizer, bool) { return a, true })

		first := httptest.NewRecorder()
		h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/callback?code=abc123&state="+state, nil))
		if first.Code != http.StatusOK {
			t.Fatalf("first callback must succeed, got %d", first.Code)
		}

		replay := httptest.NewRecorder()
		h.ServeHTTP(replay, httptest.NewRequest(http.MethodGet, "/callback?code=abc123&state="+state, nil))
		if replay.Code != http.StatusBadRequest {
			t.Errorf("replayed callback must be rejected, got %d", replay.Code)
		}
		if !strings.Contains(replay.Body.String(), "already processed") {
			t.Errorf("unexpected replay body %q", replay.Body.String())
		}
	})
}
