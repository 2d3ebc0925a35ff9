package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/pulseurl/pulseurl/config"
	appcache "github.com/pulseurl/pulseurl/internal/app/cache"
	appmodel "github.com/pulseurl/pulseurl/internal/app/model"
	apprepository "github.com/pulseurl/pulseurl/internal/app/repository"
	appserver "github.com/pulseurl/pulseurl/internal/app/server"
	appservice "github.com/pulseurl/pulseurl/internal/app/service"
	"github.com/pulseurl/pulseurl/internal/infra/logger"
	infraNATS "github.com/pulseurl/pulseurl/internal/infra/nats"
	infraPostgres "github.com/pulseurl/pulseurl/internal/infra/postgres"
	infraPrometheus "github.com/pulseurl/pulseurl/internal/infra/prometheus"
	infraRedis "github.com/pulseurl/pulseurl/internal/infra/redis"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("postgres_user", cfg.Postgres.User),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Int("redis_port", cfg.Redis.Port),
		zap.String("nats_host", cfg.NATS.Host),
		zap.Int("nats_port", cfg.NATS.Port),
		zap.String("base_url", cfg.Server.BaseURL),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB, &appmodel.Link{}, &appmodel.ClickEvent{}); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()

	log.Info("Connected to Postgres successfully")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	natsConn, js, err := infraNATS.Connect(cfg.NATS)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Drain()
	log.Info("Connected to NATS successfully", zap.Bool("jetstream_ready", js != nil))

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	linkRepo := apprepository.NewLinkRepository(gormDB)
	clickRepo := apprepository.NewClickEventRepository(gormDB)
	statsRepo := apprepository.NewStatsRepository(pool)
	linkCache := appcache.NewRedisLinkCache(redisClient)

	publisher := appservice.NewClickPublisher(js)

	resolver := appservice.NewResolver(appservice.ResolverDeps{
		Logger:    log,
		Links:     linkRepo,
		Cache:     linkCache,
		Publisher: publisher,
		QueueSize: cfg.Clicks.QueueSize,
	})
	codes, err := linkRepo.Codes(ctx)
	if err != nil {
		log.Fatal("Failed to load codes for the bloom filter", zap.Error(err))
	}
	resolver.SeedFilter(codes)
	resolver.Start(cfg.Clicks.Workers)
	defer resolver.Stop()
	log.Info("Resolver ready", zap.Int("known_codes", len(codes)))

	var preview *appservice.PreviewFetcher
	if cfg.Preview.Enabled {
		preview = appservice.NewPreviewFetcher(log, cfg.Preview.TimeoutDuration())
	}

	linkService := appservice.NewLinkService(appservice.LinkServiceDeps{
		Logger:   log,
		Repo:     linkRepo,
		Cache:    linkCache,
		Preview:  preview,
		OnCreate: resolver.AddCode,
	})

	statsService := appservice.NewStatsService(linkRepo, statsRepo)

	consumer := appservice.NewClickConsumer(js, log, clickRepo)
	if err := consumer.Start(); err != nil {
		log.Fatal("Failed to start click consumer", zap.Error(err))
	}
	log.Info("Click consumer started")

	server := appserver.New(appserver.Dependencies{
		Logger:      log,
		Redis:       redisClient,
		Resolver:    resolver,
		LinkService: linkService,
		Stats:       statsService,
		Secret:      []byte(cfg.Server.Secret),
		BaseURL:     cfg.Server.BaseURL,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	if err := server.Listen(addr); err != nil {
		log.Fatal("Fiber server exited", zap.Error(err))
	}
}
