// package auth drives the OAuth PKCE authorization code flow for
// streaming providers.
//
// The flow is a four-state machine: unauthenticated, awaiting the
// redirect back from the provider, exchanging the code, authenticated.
// Any failure falls back to unauthenticated. The ephemeral state and
// verifier of a pending login live in the credential store next to the
// token so the exchange can resume after the user agent round-trip.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mtx/internal/shared"
	"github.com/desertthunder/mtx/internal/store"
	"golang.org/x/oauth2"
)

// Credential holds the static OAuth client settings for one provider.
// Providers that need no authorization (local files) carry none.
type Credential struct {
	ClientID              string
	AuthorizationEndpoint string
	ExchangeEndpoint      string
	Scope                 string
}

// Authorizer performs login and code exchange for a single provider.
type Authorizer struct {
	provider    string
	cred        Credential
	redirectURI string
	store       store.Store
	pending     *store.PendingSlot
	logger      *log.Logger
}

// NewAuthorizer creates an Authorizer for the named provider. The
// pending slot is shared across all authorizers so only one login
// round-trip can be in flight system-wide.
func NewAuthorizer(provider string, cred Credential, redirectURI string, st store.Store, pending *store.PendingSlot, logger *log.Logger) *Authorizer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Authorizer{
		provider:    provider,
		cred:        cred,
		redirectURI: redirectURI,
		store:       st,
		pending:     pending,
		logger:      shared.WithLogger(logger, "provider", provider),
	}
}

// Provider returns the provider name this authorizer serves.
func (a *Authorizer) Provider() string { return a.provider }

// Credential returns the static client settings.
func (a *Authorizer) Credential() Credential { return a.cred }

func (a *Authorizer) config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    a.cred.ClientID,
		RedirectURL: a.redirectURI,
		Scopes:      strings.Fields(a.cred.Scope),
		Endpoint: oauth2.Endpoint{
			AuthURL:  a.cred.AuthorizationEndpoint,
			TokenURL: a.cred.ExchangeEndpoint,
			// PKCE public client: credentials travel in the form body.
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Login starts the PKCE handshake and returns the authorization URL the
// user agent must visit. When a token already exists the provider is
// already authenticated and the returned URL is empty.
//
// Login claims the pending slot before persisting the session; a login
// for a different provider already in flight fails with
// [shared.ErrLoginPending] without touching its session.
func (a *Authorizer) Login(ctx context.Context) (string, error) {
	if a.Authenticated() {
		a.logger.Debug("token present, login is a no-op")
		return "", nil
	}

	verifier, err := shared.RandomString(shared.VerifierLength)
	if err != nil {
		return "", fmt.Errorf("failed to build code verifier: %w", err)
	}
	state, err := shared.RandomString(shared.StateLength)
	if err != nil {
		return "", fmt.Errorf("failed to build state: %w", err)
	}

	// A slot left over from this provider's own abandoned login is
	// replaced, but never silently: the old session is discarded first.
	if current, ok := a.pending.Current(); ok && current == a.provider {
		a.logger.Warn("discarding stale login session")
		a.clearSession()
	}
	if err := a.pending.Claim(a.provider); err != nil {
		return "", err
	}

	if err := a.store.Set(store.ProviderKey(store.KeyVerifier, a.provider), verifier); err != nil {
		a.pending.Clear()
		return "", fmt.Errorf("failed to persist verifier: %w", err)
	}
	if err := a.store.Set(store.ProviderKey(store.KeyState, a.provider), state); err != nil {
		a.clearSession()
		return "", fmt.Errorf("failed to persist state: %w", err)
	}

	authURL := a.config().AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("code_challenge", shared.PKCEChallenge(verifier)),
	)

	a.logger.Info("login started, awaiting redirect")
	return authURL, nil
}

// Exchange trades the redirect-back code for an access token. It is
// only valid while this provider holds the pending slot. The session
// and the pending slot are cleared on every exit path; the token is
// stored only on success.
//
// A returned state differing from the stored one fails with
// [shared.ErrStateMismatch] and is never retried. An HTTP failure
// fails with [shared.ErrExchangeFailed] wrapping the provider's error
// payload.
func (a *Authorizer) Exchange(ctx context.Context, code, returnedState string) error {
	pending, ok := a.pending.Current()
	if !ok || pending != a.provider {
		return fmt.Errorf("%w: provider %s", shared.ErrNoLoginPending, a.provider)
	}
	defer a.clearSession()

	storedState, ok := a.store.Get(store.ProviderKey(store.KeyState, a.provider))
	if !ok || returnedState != storedState {
		a.logger.Error("state mismatch on exchange")
		return fmt.Errorf("%w: provider %s", shared.ErrStateMismatch, a.provider)
	}

	verifier, ok := a.store.Get(store.ProviderKey(store.KeyVerifier, a.provider))
	if !ok {
		return fmt.Errorf("%w: verifier not found", shared.ErrExchangeFailed)
	}

	token, err := a.config().Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", verifier),
	)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return fmt.Errorf("%w: %s: %s", shared.ErrExchangeFailed, retrieveErr.Response.Status, string(retrieveErr.Body))
		}
		return fmt.Errorf("%w: %v", shared.ErrExchangeFailed, err)
	}

	if err := a.store.Set(store.ProviderKey(store.KeyToken, a.provider), token.AccessToken); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}

	a.logger.Info("authenticated")
	return nil
}

// Token returns the stored access token, if any.
func (a *Authorizer) Token() (string, bool) {
	token, ok := a.store.Get(store.ProviderKey(store.KeyToken, a.provider))
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// Authenticated reports whether a token is stored for this provider.
func (a *Authorizer) Authenticated() bool {
	_, ok := a.Token()
	return ok
}

// Logout clears the stored token.
func (a *Authorizer) Logout() error {
	return a.store.Remove(store.ProviderKey(store.KeyToken, a.provider))
}

// Cancel abandons a pending login: it discards the stored state and
// verifier and releases the pending slot so another login can start.
// Canceling with no login in flight is a no-op.
func (a *Authorizer) Cancel() {
	a.logger.Info("login abandoned, discarding session")
	a.clearSession()
}

// Invalidate drops the token after an unauthorized response so the next
// operation forces a fresh login.
func (a *Authorizer) Invalidate() {
	a.logger.Warn("token rejected, clearing it")
	a.store.Remove(store.ProviderKey(store.KeyToken, a.provider))
}

func (a *Authorizer) clearSession() {
	a.store.Remove(store.ProviderKey(store.KeyState, a.provider))
	a.store.Remove(store.ProviderKey(store.KeyVerifier, a.provider))
	a.pending.Clear()
}
