package main

import (
	"context"
	"os"

	"github.com/desertthunder/mtx/internal/auth"
	"github.com/desertthunder/mtx/internal/fetch"
	"github.com/desertthunder/mtx/internal/providers"
	"github.com/desertthunder/mtx/internal/shared"
	"github.com/desertthunder/mtx/internal/store"
	"github.com/desertthunder/mtx/internal/transfer"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	var credStore store.Store = store.NewMemoryStore()
	if db, err := shared.NewDatabase(config.Database.Path); err == nil {
		shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
		if s, err := store.NewSQLiteStore(db); err == nil {
			credStore = s
		} else {
			logger.Warn("credential store unavailable, tokens will not persist", "error", err)
		}
	} else {
		logger.Warn("database unavailable, tokens will not persist", "error", err)
	}

	pending := store.NewPendingSlot(credStore)

	redirect := "http://" + config.Server.Addr() + "/callback"
	spotifyRedirect := config.Credentials.Spotify.RedirectURI
	if spotifyRedirect == "" {
		spotifyRedirect = redirect
	}
	tidalRedirect := config.Credentials.Tidal.RedirectURI
	if tidalRedirect == "" {
		tidalRedirect = redirect
	}

	spotifyAuth := auth.NewAuthorizer(providers.SpotifyName,
		providers.SpotifyCredential(config.Credentials.Spotify.ClientID),
		spotifyRedirect, credStore, pending, logger)
	tidalAuth := auth.NewAuthorizer(providers.TidalName,
		providers.TidalCredential(config.Credentials.Tidal.ClientID),
		tidalRedirect, credStore, pending, logger)

	limit := config.Transfer.RateLimit
	if limit <= 0 {
		limit = 5
	}
	limiter := rate.NewLimiter(rate.Limit(limit), 1)

	spotify := providers.NewSpotify(providers.SpotifyOpts{
		Authorizer: spotifyAuth,
		Fetcher:    fetch.New(fetch.Options{Limiter: limiter, Logger: logger}),
		Logger:     logger,
	})
	tidal := providers.NewTidal(providers.TidalOpts{
		Authorizer: tidalAuth,
		Logger:     logger,
	})
	file := providers.NewFile("", ".", logger)

	session := transfer.NewSession(spotify, tidal, file)

	runner := NewRunner(RunnerOpts{
		Config:  config,
		Store:   credStore,
		Pending: pending,
		Authorizers: map[string]*auth.Authorizer{
			providers.SpotifyName: spotifyAuth,
			providers.TidalName:   tidalAuth,
		},
		Session: session,
		Logger:  logger,
	})

	app := &cli.Command{
		Name:     "mtx",
		Usage:    "Transfer music libraries between Spotify & Tidal",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
