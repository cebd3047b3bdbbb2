// Command web runs the Camelot-Organizer-Go HTTP server. Configuration is
// read from environment variables, optionally preloaded from a .env file; see
// package config for the full list. The server serves the HTML pages, the
// JSON API and Prometheus metrics, and shuts down gracefully on SIGINT or
// SIGTERM.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"Camelot-Organizer-Go/pkg/analysis"
	"Camelot-Organizer-Go/pkg/config"
	"Camelot-Organizer-Go/pkg/db"
	"Camelot-Organizer-Go/pkg/handlers"
	"Camelot-Organizer-Go/pkg/logging"
	"Camelot-Organizer-Go/pkg/music"
	"Camelot-Organizer-Go/pkg/spotify"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatal(err)
	}

	// Open the SQLite database which stores the analysis cache and export
	// history.
	database, err := db.New(cfg.DatabasePath)
	if err != nil {
		log.WithError(err).Fatal("db init")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApplication(ctx, cfg, database)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Routes(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	if err := serve(ctx, srv); err != nil {
		log.WithError(err).Fatal("http server error")
	}
}

// newApplication wires the handler dependencies from cfg.
func newApplication(ctx context.Context, cfg config.Config, database *db.DB) *handlers.Application {
	retry := spotify.Retry{MaxAttempts: cfg.MaxRetries, Backoff: cfg.RetryBackoff}
	auth := spotify.NewAuthenticator(cfg.RedirectURL, cfg.ClientID, cfg.ClientSecret)
	// Audio features are catalog data, so they are fetched with the app's own
	// credentials rather than the user's token.
	features := spotify.NewAppClient(ctx, cfg.ClientID, cfg.ClientSecret, retry)
	return &handlers.Application{
		Auth: &spotify.Auth{Authenticator: auth},
		Library: func(token *oauth2.Token) music.Library {
			return spotify.NewUserClient(auth, token, retry)
		},
		Analyzer: newAnalyzer(cfg.Analyzer, features, database),
		DB:       database,
		SignKey:  []byte(cfg.SigningKey),
	}
}

// newAnalyzer returns the analyzer named by kind. Provider results are cached
// in store; simulated values are cheap and deterministic so they are not.
func newAnalyzer(kind string, source analysis.FeatureSource, store analysis.Store) analysis.Analyzer {
	cached := analysis.Cached{Store: store, Source: config.AnalyzerSpotify, Next: analysis.Features{Source: source}}
	switch kind {
	case config.AnalyzerSimulated:
		log.Warn("using simulated track analysis")
		return analysis.Simulated{}
	case config.AnalyzerChain:
		return analysis.Chain{cached, analysis.Simulated{}}
	default:
		return cached
	}
}

// serve runs srv until it fails or ctx is cancelled, then shuts it down.
func serve(ctx context.Context, srv *http.Server) error {
	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}
