package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sorare-proxy/config"
	"sorare-proxy/lookup"
	"sorare-proxy/player"
	"sorare-proxy/queues"
	qpubsub "sorare-proxy/queues/pubsub"
	"sorare-proxy/server"
	"sorare-proxy/upstream"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var version = "source"

const shutdownTimeout = 10 * time.Second

func setLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if os.Getenv("DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg(".env file not loaded")
	}
	cfg := config.Load()
	setLogger(cfg.LogLevel)
	log.Info().Msgf("Starting sorare-proxy version: %s", version)
	log.Info().Interface("config", cfg.Redacted()).Msg("config loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	executor := upstream.NewExecutor(cfg.APIKey,
		upstream.WithEndpoint(cfg.UpstreamURL),
		upstream.WithAuthHeader(cfg.AuthHeader),
		upstream.WithUserAgent(cfg.UserAgent),
		upstream.WithTimeout(cfg.UpstreamTimeout),
	)
	orchestrator := player.NewOrchestrator(executor)

	credentialCheck := func() error {
		if cfg.APIKey == "" {
			return errors.New("SORARE_API_KEY not set")
		}
		return nil
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           server.NewHandler(orchestrator, credentialCheck),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr()).Msgf("Server running on port %d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	var stoppers []stopper
	if cfg.QueueEnabled() {
		if cfg.GoogleProjectID == "" {
			log.Fatal().Msg("lookup queue configured but Google project id missing; set GOOGLE_PROJECT_ID or GOOGLE_APPLICATION_CREDENTIALS")
		}
		publisher := qpubsub.NewPublisher(cfg.GoogleProjectID, cfg.LookupResultTopic, cfg.CredentialsFile)
		stoppers = append(stoppers, publisher)
		controller := lookup.NewController(orchestrator, publisher)
		subscriber := qpubsub.NewSubscriber(cfg.GoogleProjectID, cfg.LookupSubscription, cfg.CredentialsFile)

		go func() {
			log.Info().Str("subscription", cfg.LookupSubscription).Msg("starting lookup subscriber loop")
			if err := subscriber.Start(ctx, func(ctx context.Context, req *queues.LookupRequest) error {
				return controller.Handle(ctx, req)
			}); err != nil {
				log.Fatal().Err(err).Msg("subscriber exited with fatal error; shutting down")
			}
		}()
	}

	if err := waitAndShutdown(ctx, srv, shutdownTimeout, stoppers...); err != nil {
		log.Error().Err(err).Msg("shutdown finished with errors")
		return
	}
	log.Info().Msg("shutdown complete")
}

// stopper is anything that must be flushed and closed on shutdown.
type stopper interface {
	Stop() error
}

// waitAndShutdown blocks until ctx is done, then drains the HTTP server within
// timeout and stops every stopper, even if the drain failed.
func waitAndShutdown(ctx context.Context, srv *http.Server, timeout time.Duration, stoppers ...stopper) error {
	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server graceful shutdown failed")
		errs = append(errs, err)
	}
	for _, s := range stoppers {
		if err := s.Stop(); err != nil {
			log.Error().Err(err).Msg("component stop failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
