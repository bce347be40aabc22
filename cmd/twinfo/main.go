// main is the entry point of the twinfo application.
// It reads the server list, queries every server for its status and writes the results as JSON.
package main

import (
	"context"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/twinfo/internal/batch"
	"github.com/woozymasta/twinfo/internal/config"
	"github.com/woozymasta/twinfo/internal/fake"
	"github.com/woozymasta/twinfo/internal/geoip"
	"github.com/woozymasta/twinfo/internal/logger"
	"github.com/woozymasta/twinfo/internal/maintenance"
	"github.com/woozymasta/twinfo/internal/models"
	"github.com/woozymasta/twinfo/internal/output"
	"github.com/woozymasta/twinfo/internal/storage"
)

func main() {
	os.Exit(run(config.Parse()))
}

func run(cfg *config.Config) int {
	closeLog := logger.Setup(cfg.Logger)
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// development responder
	if cfg.FakeServer != "" {
		return serveFake(ctx, cfg.FakeServer)
	}

	// Registry
	var store *storage.Repository
	if cfg.Storage.Path != "" {
		var err error
		store, err = storage.New(cfg.Storage.Path)
		if err != nil {
			log.Error().Err(err).Str("path", cfg.Storage.Path).Msg("Failed to open server registry")
			return 1
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("Error closing server registry")
			}
		}()

		done, err := maintenance.Run(ctx, cfg, store, os.Stdout)
		if err != nil {
			log.Error().Err(err).Msg("Registry task failed")
			return 1
		}
		if done {
			return 0
		}
	}

	entries, err := maintenance.Collect(cfg, store)
	if err != nil {
		log.Error().Err(err).Msg("Failed to collect servers")
		return 1
	}
	if len(entries) == 0 {
		log.Error().Msg("No servers to query, use --server NAME=ADDRESS or --db-path")
		return 1
	}

	// GeoIP
	var countries batch.CountryLookup
	if cfg.GeoIP.Path != "" {
		if provider := openGeoIP(ctx, cfg.GeoIP); provider != nil {
			defer func() { _ = provider.Close() }()
			countries = provider
		}
	}

	log.Info().Int("servers", len(entries)).Int("workers", cfg.Query.Workers).Msg("Querying servers...")
	start := time.Now()

	result := batch.New(cfg.Query, countries).Run(ctx, entries)

	written, err := output.Save(models.FromResult(result), cfg.Output, os.Stdout)
	if err != nil {
		log.Error().Err(err).Msg("Failed to write servers info")
		return 1
	}

	log.Info().
		Int("servers", len(result)).
		Int("failed", result.Failed()).
		Bool("written", written).
		Dur("took", time.Since(start)).
		Msg("Servers info collected")

	return 0
}

func openGeoIP(ctx context.Context, cfg config.GeoIP) *geoip.Provider {
	if err := geoip.EnsureDB(ctx, cfg.Path, cfg.URL, cfg.Interval); err != nil {
		log.Warn().Err(err).Msg("Failed to prepare GeoIP database, country detection disabled")
		return nil
	}

	provider, err := geoip.Open(cfg.Path)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		return nil
	}

	return provider
}

func serveFake(ctx context.Context, addr string) int {
	srv, err := fake.Listen(addr, fake.GenerateInfo(rand.IntN(40)))
	if err != nil {
		log.Error().Err(err).Str("address", addr).Msg("Failed to start fake server")
		return 1
	}

	log.Info().Str("address", srv.Addr().String()).Msg("Fake server listening")
	<-ctx.Done()

	if err := srv.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing fake server")
	}
	log.Info().Int64("requests", srv.Requests()).Msg("Fake server exited")

	return 0
}
