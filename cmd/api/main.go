package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "caffio/internal/adapters/http_server"
	"caffio/internal/adapters/observability"
	"caffio/internal/app"
	"caffio/internal/shared"
	"caffio/internal/wire"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// deps
	store, err := wire.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("open store failed")
	}
	defer store.Close()

	geo, err := wire.OpenGeocoder(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Mapbox client")
	}
	cache := wire.OpenCache(ctx, cfg)
	gate := app.NewGate(cfg.SessionTTL)

	q := app.NewQueryService(store.Repo, geo, cache, gate, app.QueryOptions{
		CacheTTL: cfg.CacheTTL,
		Policy:   app.ParseEnrichPolicy(cfg.EnrichPolicy),
		Debounce: cfg.SearchDebounce,
		Map: app.MapConfig{
			Center: [2]float64{cfg.MapCenterLng, cfg.MapCenterLat},
			Zoom:   cfg.MapZoom,
			Style:  cfg.MapStyle,
		},
	})
	c := app.NewCommandService(store.Repo, geo, store.Images, cache)

	// http
	srv := server.New(server.Options{CORSOrigins: cfg.CORSOrigins, Timeout: 30 * time.Second})
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, C: c, MaxUploadBytes: int64(cfg.MaxUploadMB) << 20})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(sctx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.StoreDriver).Str("policy", cfg.EnrichPolicy).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
