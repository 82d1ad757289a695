package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/adapter/repo"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/backends"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/billing"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/failover"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/generation"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/guard"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/http/handlers"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/http/httpapi"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra/credentials"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra/geoip"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/middleware"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/providers/image"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/storage"
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
	sqlRunner := infra.NewSQLRunner(dbpool, logger)

	guardRules := repo.NewGuardRuleRepository(sqlRunner, infra.Component(&logger, "guard_rules"))
	backendRepo := repo.NewBackendRepository(sqlRunner, sqlRunner)
	records := repo.NewGenerationRepository(sqlRunner)

	scope := backends.Options{Scope: cfg.BackendScope, Logger: infra.Component(&logger, "backends")}
	registry := backends.NewRegistry(backendRepo, scope)
	router := backends.NewRouter(backendRepo, credentials.NewStore(sqlRunner), scope)

	fetcher := image.NewReferenceFetcher(image.FetcherOptions{
		CacheTTL:     cfg.ReferenceCacheTTL,
		AllowedHosts: cfg.ImageSourceAllowlist,
	})
	adapters := image.NewSet(image.Options{
		Timeout: cfg.ProviderTimeout,
		Fetcher: fetcher,
		Poller:  image.Poller{Interval: cfg.PollInterval, MaxAttempts: cfg.PollMaxAttempts},
		Logger:  infra.Component(&logger, "providers"),
	})

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare storage")
	}
	assets, err := storage.NewAssetStore(files, image.NewResultFetcher(nil), storage.AssetOptions{BaseURL: cfg.StorageBaseURL, Logger: infra.Component(&logger, "storage")})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare asset store")
	}

	guardEngine := guard.NewEngine(guardRules, guard.Options{CacheTTL: cfg.GuardRuleCacheTTL, Logger: infra.Component(&logger, "guard")})
	service, err := generation.NewService(generation.Deps{
		Router:    router,
		Guard:     guardEngine,
		Templates: repo.NewTemplateRepository(sqlRunner),
		Adapters:  adapters,
		Failover: failover.NewCoordinator(backendRepo, adapters, failover.Options{
			Scope:    cfg.BackendScope,
			Recorder: registry,
			Logger:   infra.Component(&logger, "failover"),
		}),
		Billing: billing.NewEngine(
			repo.NewAccountRepository(sqlRunner),
			records,
			repo.NewLedgerRepository(sqlRunner),
			billing.Options{EarningRate: cfg.CreatorEarningRate, Logger: infra.Component(&logger, "billing")},
		),
		Assets:   assets,
		Records:  records,
		Recorder: registry,
		Logger:   infra.Component(&logger, "generation"),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build generation service")
	}

	var countryLookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath, geoip.Options{})
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		countryLookup = resolver.CountryCode
		defer resolver.Close()
	}

	app := &handlers.App{
		Config:               cfg,
		Logger:               infra.Component(&logger, "http"),
		Generator:            service,
		Records:              records,
		Backends:             registry,
		GuardRules:           guardRules,
		InvalidateGuardRules: guardEngine.Invalidate,
		DB:                   dbpool,
	}
	handler := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:      cfg.JWTSecret,
		JWTIssuer:      cfg.JWTIssuer,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		DefaultLocale:  "en",
		CountryLookup:  countryLookup,
		StorageDir:     files.BasePath(),
	})

	server := infra.NewHTTPServer(cfg, handler, &logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("scope", cfg.BackendScope).Str("addr", server.Addr()).Msg("image orchestrator starting")
	if err := server.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("http server failed")
		return
	}
	logger.Info().Msg("server stopped")
}
