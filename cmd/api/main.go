package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"pakettikauppa/internal/carrier"
	"pakettikauppa/internal/config"
	"pakettikauppa/internal/db"
	"pakettikauppa/internal/method"
	"pakettikauppa/internal/obs"
	"pakettikauppa/internal/server"
	"pakettikauppa/internal/settings"
	"pakettikauppa/internal/shipment"
	"pakettikauppa/internal/tracking"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:         int32(cfg.DBMaxConns),
		MaxConnLifetime:  cfg.DBMaxConnLifetime,
		MaxConnIdleTime:  cfg.DBMaxConnIdleTime,
		StatementTimeout: cfg.DBStatementTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer pool.Close()
	// Verify connectivity proactively
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("database ping failed")
	}
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("database migration failed")
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		cache = redis.NewClient(opts)
		defer cache.Close()
		if err := cache.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, service list will not be cached until it recovers")
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := obs.NewMetrics("pakettikauppa", reg)

	client := carrier.NewByName(cfg.CarrierProvider, carrier.Options{
		Mode:    cfg.Mode,
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Secret:  cfg.APISecret,
		RPS:     cfg.CarrierRPS,
		Metrics: metrics,
	})
	trackingStore := tracking.NewPGStore(pool)
	svc := method.New(method.Config{
		MethodID:           cfg.MethodID,
		SearchLimit:        cfg.SearchLimit,
		DimensionUnit:      shipment.ParseDimensionUnit(cfg.DimensionUnit),
		AddTrackingToEmail: cfg.AddTrackingToEmail,
		Sender: method.Sender{
			Name:       cfg.SenderName,
			Address:    cfg.SenderAddress,
			PostalCode: cfg.SenderPostalCode,
			City:       cfg.SenderCity,
		},
		COD: method.COD{IBAN: cfg.CODIBAN, BIC: cfg.CODBIC},
	}, method.Deps{
		Settings: settings.NewPGStore(pool),
		Catalog:  carrier.NewCatalog(client, cache, cfg.ServicesTTL, cfg.Mode, logger),
		Carrier:  client,
		Tracking: trackingStore,
		Metrics:  metrics,
		Logger:   logger,
	})

	r := server.New(server.Options{
		Method:         svc,
		Tracking:       trackingStore,
		WebhookSecrets: map[string]string{"pakettikauppa": cfg.WebhookSecret},
		Gatherer:       reg,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("carrier", cfg.CarrierProvider).
			Str("mode", cfg.Mode).
			Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
}
