// Command refresher writes current provider data for every stored café back to
// the store, so the list endpoint's fallback serves recent values.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"caffio/internal/adapters/observability"
	"caffio/internal/app"
	"caffio/internal/shared"
	"caffio/internal/wire"
)

func main() {
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	if failed := run(cfg); failed > 0 {
		os.Exit(1)
	}
}

func run(cfg shared.Config) int64 {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.RefreshTimeout)
	defer cancel()

	log.Info().
		Str("store", cfg.StoreDriver).
		Int("workers", cfg.RefreshWorkers).
		Msg("refresher starting")

	store, err := wire.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open store failed")
	}
	defer store.Close()

	geo, err := wire.OpenGeocoder(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Mapbox client")
	}
	svc := app.NewCommandService(store.Repo, geo, store.Images, wire.OpenCache(ctx, cfg))

	ids, err := svc.StoredIDs(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("list cafes failed")
	}

	failed := refreshAll(ctx, svc, ids, cfg.RefreshWorkers)
	log.Info().Int("cafes", len(ids)).Int64("failed", failed).Msg("refresh completed")
	return failed
}

// refreshAll runs at most workers refreshes at a time and returns the failure count.
func refreshAll(ctx context.Context, svc *app.CommandService, ids []string, workers int) int64 {
	if workers <= 0 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)
	for _, id := range ids {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("refresh interrupted")
			break
		}
		wg.Add(1)
		go func(mapboxID string) {
			defer wg.Done()
			defer sem.Release(1)

			if err := svc.RefreshCafe(ctx, mapboxID); err != nil {
				failed.Add(1)
				log.Warn().Str("mapbox_id", mapboxID).Err(err).Msg("refresh failed")
				return
			}
			log.Debug().Str("mapbox_id", mapboxID).Msg("refresh ok")
		}(id)
	}
	wg.Wait()
	return failed.Load()
}
