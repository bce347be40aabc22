// Package maintenance provides the server registry tasks: listing, removal, pruning and merging
// registry entries into a query run.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/woozymasta/twinfo/internal/address"
	"github.com/woozymasta/twinfo/internal/batch"
	"github.com/woozymasta/twinfo/internal/config"
	"github.com/woozymasta/twinfo/internal/game"
	"github.com/woozymasta/twinfo/internal/models"
	"github.com/woozymasta/twinfo/internal/output"
	"github.com/woozymasta/twinfo/internal/storage"
)

// Run checks if any registry task flag is set and executes it, writing listings to w.
// Returns true if a task was executed (indicating the program should exit).
func Run(ctx context.Context, cfg *config.Config, store *storage.Repository, w io.Writer) (bool, error) {
	switch {
	case cfg.Storage.Delete != "":
		name := cfg.Storage.Delete
		if err := store.DeleteServer(name); err != nil {
			return true, fmt.Errorf("failed to delete server %q: %w", name, err)
		}
		log.Info().Str("server", name).Msg("Server removed from registry")

		return true, nil

	case cfg.Storage.List:
		servers, err := store.ListServers()
		if err != nil {
			return true, fmt.Errorf("failed to list servers: %w", err)
		}
		if servers == nil {
			servers = []models.Server{}
		}

		data, err := output.Encode(servers, cfg.Output.Indent)
		if err != nil {
			return true, err
		}
		_, err = w.Write(data)

		return true, err

	case cfg.Storage.Prune:
		return true, prune(ctx, store, cfg.Query)
	}

	return false, nil
}

// prune queries every registry server and removes the ones whose query fails.
func prune(ctx context.Context, store *storage.Repository, options config.Query) error {
	servers, err := store.ListServers()
	if err != nil {
		return fmt.Errorf("failed to list servers: %w", err)
	}

	if len(servers) == 0 {
		log.Info().Msg("No servers found for pruning")
		return nil
	}

	log.Info().Int("count", len(servers)).Msgf("Starting prune task with %d workers...", options.Workers)
	result := batch.New(options, nil).Run(ctx, Entries(servers))

	var removed int
	for name, outcome := range result {
		if outcome.OK() || game.KindOf(outcome.Err) == game.KindCanceled {
			continue
		}

		logCtx := log.With().Str("server", name).Logger()
		logCtx.Debug().Err(outcome.Err).Msg("Server unreachable, removing")

		if err := store.DeleteServer(name); err != nil && !errors.Is(err, storage.ErrNotFound) {
			logCtx.Error().Err(err).Msg("Failed to remove server")
			continue
		}
		removed++
	}

	log.Info().Int("removed", removed).Msg("Prune task completed")

	return ctx.Err()
}

// Entries converts registry rows into batch entries.
func Entries(servers []models.Server) []batch.Entry {
	return lo.Map(servers, func(s models.Server, _ int) batch.Entry {
		return batch.Entry{
			Name:    s.Name,
			Address: address.Address{Host: s.Host, Port: s.Port},
		}
	})
}

// Collect returns the entries of a query run: registry servers first, then the --server entries.
// A registry server sharing its name with a --server entry is left out, so every name is queried
// once. With --db-save the command line entries are stored first. store may be nil.
func Collect(cfg *config.Config, store *storage.Repository) ([]batch.Entry, error) {
	var entries []batch.Entry

	if store != nil {
		if cfg.Storage.Save {
			for _, s := range cfg.Output.Servers {
				if err := store.UpsertServer(models.Server{
					Name: s.Name,
					Host: s.Address.Host,
					Port: s.Address.Port,
				}); err != nil {
					return nil, fmt.Errorf("failed to save server %q: %w", s.Name, err)
				}
			}
			log.Info().Int("count", len(cfg.Output.Servers)).Msg("Servers saved to registry")
		}

		servers, err := store.ListServers()
		if err != nil {
			return nil, fmt.Errorf("failed to list servers: %w", err)
		}
		cli := lo.Associate(cfg.Output.Servers, func(s config.ServerEntry) (string, struct{}) {
			return s.Name, struct{}{}
		})
		entries = Entries(lo.Reject(servers, func(s models.Server, _ int) bool {
			_, ok := cli[s.Name]
			return ok
		}))
	}

	entries = append(entries, lo.Map(cfg.Output.Servers, func(s config.ServerEntry, _ int) batch.Entry {
		return batch.Entry{Name: s.Name, Address: s.Address}
	})...)

	return entries, nil
}
