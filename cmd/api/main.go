package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"mediagen/internal/domain"
	"mediagen/internal/history"
	"mediagen/internal/http/handlers"
	httpapi "mediagen/internal/http/httpapi"
	"mediagen/internal/infra"
	"mediagen/internal/infra/geoip"
	"mediagen/internal/jobs"
	"mediagen/internal/middleware"
	"mediagen/internal/providers"
	"mediagen/internal/providers/kling"
	"mediagen/internal/providers/runway"
	"mediagen/internal/providers/veo"
	"mediagen/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	runner := infra.NewSQLRunner(dbpool, logger)

	blobStore, err := storage.NewFromConfig(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}
	mirror := storage.NewMirror(blobStore, nil)
	recorder := history.NewRecorder(runner, logger)

	registry := buildRegistry(cfg, logger)
	orchestrator := jobs.NewOrchestrator(jobs.Config{
		InitialDelay:           cfg.PollInitialDelay,
		BaseInterval:           cfg.PollBaseInterval,
		MaxInterval:            cfg.PollMaxInterval,
		Deadline:               cfg.PollDeadline,
		MaxConsecutiveFailures: cfg.PollMaxFailures,
		MaxInFlight:            cfg.PollMaxInFlight,
		RecentLimit:            cfg.RecentJobsLimit,
		DispatchTimeout:        cfg.DispatchTimeout,
		SweepEvery:             cfg.SweepEvery,
		SweepRetention:         cfg.SweepRetention,
	}, registry, recorder, mirror, logger)
	defer orchestrator.Close()

	var countryLookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip unavailable, locale detection degraded")
	} else if resolver != nil {
		countryLookup = resolver.CountryCode
	}

	app := handlers.NewApp(orchestrator, recorder, logger)
	router := httpapi.NewRouter(app, cfg, logger, countryLookup)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// buildRegistry wires a status adapter for every provider with credentials
// configured. Panels submitting to an unwired provider get a clear
// registration error instead of a job that can never be polled.
func buildRegistry(cfg *infra.Config, logger infra.Logger) *providers.Registry {
	registry := providers.NewRegistry()

	if cfg.KlingAPIKey != "" {
		client, err := kling.NewClient(kling.Options{
			APIKey:  cfg.KlingAPIKey,
			BaseURL: cfg.KlingBaseURL,
			Logger:  &logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure kling client")
		}
		registry.Register(domain.ProviderKling, client)
	}
	if cfg.VeoAPIKey != "" {
		client, err := veo.NewClient(veo.Options{
			APIKey:  cfg.VeoAPIKey,
			BaseURL: cfg.VeoBaseURL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure veo client")
		}
		registry.Register(domain.ProviderVeo, client)
	}
	if cfg.RunwayAPIKey != "" {
		client, err := runway.NewClient(runway.Options{
			APIKey:  cfg.RunwayAPIKey,
			BaseURL: cfg.RunwayBaseURL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure runway client")
		}
		registry.Register(domain.ProviderRunway, client)
	}

	if _, ok := registry.Adapter(domain.ProviderKling); !ok {
		logger.Warn().Msg("kling api key missing, provider disabled")
	}
	if _, ok := registry.Adapter(domain.ProviderVeo); !ok {
		logger.Warn().Msg("veo api key missing, provider disabled")
	}
	if _, ok := registry.Adapter(domain.ProviderRunway); !ok {
		logger.Warn().Msg("runway api key missing, provider disabled")
	}

	return registry
}
