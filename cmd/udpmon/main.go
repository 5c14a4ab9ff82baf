package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/eldtechnologies/udpmon/internal/api"
	"github.com/eldtechnologies/udpmon/internal/config"
	"github.com/eldtechnologies/udpmon/internal/listener"
	"github.com/eldtechnologies/udpmon/internal/retention"
	"github.com/eldtechnologies/udpmon/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize the message store: DATABASE_URL selects PostgreSQL,
	// otherwise SQLite at DB_PATH.
	var st store.MessageStore
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		logger.Info().Msg("connected to PostgreSQL")
		st = pgStore
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.DBPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		logger.Info().Str("path", cfg.DBPath).Msg("opened SQLite database")
		st = sqliteStore
	}
	defer st.Close()

	// Create router
	router := api.NewRouter(logger, st, cfg.RetentionDays)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	udp := listener.New(net.JoinHostPort(cfg.UDPHost, cfg.UDPPort), st, logger)
	sched := retention.New(st, cfg.RetentionDays, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return udp.Run(gctx)
	})

	g.Go(func() error {
		return sched.Run(gctx)
	})

	g.Go(func() error {
		logger.Info().
			Str("port", cfg.APIPort).
			Str("env", cfg.Env).
			Msg("starting udpmon API server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down...")

		// Graceful shutdown with 30 second timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("udpmon failed")
	}

	logger.Info().Msg("udpmon stopped")
}
