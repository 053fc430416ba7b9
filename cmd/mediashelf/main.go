package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mediashelf/mediashelf/internal/api"
	"github.com/mediashelf/mediashelf/internal/config"
	"github.com/mediashelf/mediashelf/internal/library"
	"github.com/mediashelf/mediashelf/internal/library/seed"
	"github.com/mediashelf/mediashelf/internal/logger"
	"github.com/mediashelf/mediashelf/internal/websocket"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	seedPath := flag.String("seed", "", "Path to a YAML seed library (overrides library.seedPath)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *seedPath != "" {
		cfg.Library.SeedPath = *seedPath
	}

	log := logger.New(logger.Config{
		Level:           cfg.Logging.Level,
		Format:          cfg.Logging.Format,
		Path:            cfg.Logging.Path,
		MaxSizeMB:       cfg.Logging.MaxSizeMB,
		MaxBackups:      cfg.Logging.MaxBackups,
		MaxAgeDays:      cfg.Logging.MaxAgeDays,
		Compress:        cfg.Logging.Compress,
		EnableStreaming: true,
		BufferSize:      1000,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("logLevel", cfg.Logging.Level).
		Msg("starting MediaShelf")

	entries, err := loadLibrary(cfg.Library.SeedPath)
	if err != nil {
		log.Fatal().Err(err).Str("seedPath", cfg.Library.SeedPath).Msg("failed to load library seed")
	}
	log.Info().
		Int("entries", len(entries)).
		Str("source", seedSource(cfg.Library.SeedPath)).
		Msg("library seeded")

	hub := websocket.NewHub(log.Logger)
	go hub.Run()

	// Enable log streaming via WebSocket now that hub is available
	log.SetBroadcastHub(hub)

	server, err := api.NewServer(cfg, entries, hub, log, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create API server")
	}

	go func() {
		addr := cfg.Server.Address()
		log.Info().Str("address", addr).Msg("HTTP server listening")
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}

// loadLibrary reads the configured seed file, or builds the sample library when none is set.
func loadLibrary(path string) ([]library.Entry, error) {
	if path == "" {
		return seed.Sample(seed.Options{})
	}
	return seed.LoadFile(path, seed.Options{})
}

func seedSource(path string) string {
	if path == "" {
		return "sample"
	}
	return path
}
