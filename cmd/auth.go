package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/desertthunder/mtx/internal/auth"
	"github.com/desertthunder/mtx/internal/server"
	"github.com/desertthunder/mtx/internal/shared"
	"github.com/urfave/cli/v3"
)

const loginTimeout = 3 * time.Minute

// AuthLogin runs the full authorization code flow for one provider: it
// starts the localhost callback server, opens the consent page, then
// waits for the redirect to complete the exchange.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	provider := cmd.StringArg("provider")
	if provider == "" {
		return fmt.Errorf("%w: provider", shared.ErrMissingArgument)
	}

	authorizer, err := r.authorizer(provider)
	if err != nil {
		return err
	}
	if authorizer.Authenticated() {
		return r.writePlain("✓ Already authenticated with %s\n", provider)
	}

	authURL, err := authorizer.Login(ctx)
	if err != nil {
		return err
	}

	handler := server.NewCallbackHandler(func() (*auth.Authorizer, bool) {
		pending, ok := r.pending.Current()
		if !ok {
			return nil, false
		}
		a, ok := r.authorizers[pending]
		return a, ok
	})

	router := server.NewBasicRouter()
	router.Use(server.LogRequests(r.logger))
	router.Handler(handler)

	srv := server.NewServer(r.config.Server.Addr(), router, r.logger)
	serveErrs := srv.Start()
	defer srv.Shutdown(context.Background())

	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL to authorize:\n\n%s\n\n", authURL)
	} else {
		r.logger.Info("opening browser", "provider", provider)
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
			r.writePlain("Open this URL to authorize:\n\n%s\n\n", authURL)
		}
	}

	// Every failure exit must release the pending session, or the slot
	// stays claimed in the store and blocks all further logins.
	select {
	case err := <-handler.Result():
		if err != nil {
			authorizer.Cancel()
			return err
		}
	case err := <-serveErrs:
		authorizer.Cancel()
		return fmt.Errorf("callback server failed: %w", err)
	case <-time.After(loginTimeout):
		authorizer.Cancel()
		return fmt.Errorf("%w: timed out waiting for callback", shared.ErrExchangeFailed)
	case <-ctx.Done():
		authorizer.Cancel()
		return ctx.Err()
	}

	r.logger.Info("authentication successful", "provider", provider)
	return r.writePlain("✓ Authenticated with %s\n", provider)
}

// AuthStatus prints the authentication state of every configured provider.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	names := make([]string, 0, len(r.authorizers))
	for name := range r.authorizers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if r.authorizers[name].Authenticated() {
			r.writePlain("%s: ✓ Authenticated\n", name)
		} else {
			r.writePlain("%s: ✗ Not authenticated\n", name)
		}
	}
	return nil
}

// AuthLogout discards a provider's stored token and any pending login.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	provider := cmd.StringArg("provider")
	if provider == "" {
		return fmt.Errorf("%w: provider", shared.ErrMissingArgument)
	}

	authorizer, err := r.authorizer(provider)
	if err != nil {
		return err
	}
	if current, ok := r.pending.Current(); ok && current == provider {
		authorizer.Cancel()
	}
	if err := authorizer.Logout(); err != nil {
		return err
	}
	return r.writePlain("✓ Logged out of %s\n", provider)
}
