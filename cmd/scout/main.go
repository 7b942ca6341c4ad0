package main

import (
	"context"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/adapter/cache"
	"github.com/evteam/tesla-charge-orchestrator/internal/adapter/storage/mongo"
	"github.com/evteam/tesla-charge-orchestrator/internal/adapter/vault"
	"github.com/evteam/tesla-charge-orchestrator/internal/service/auth"
	"github.com/evteam/tesla-charge-orchestrator/internal/service/scout"
	"github.com/evteam/tesla-charge-orchestrator/pkg/config"
)

// Scout runs as a single short-lived invocation (§4.3): no HTTP server, no
// background goroutines, exits as soon as Run returns.
func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := mongo.NewConnection(ctx, cfg.Database.URI, cfg.Database.Name, logger)
	if err != nil {
		logger.Fatal("failed to connect to mongo", zap.Error(err))
	}

	tokenCache, err := cache.NewRedisCache(cfg.Redis.URL, logger)
	if err != nil {
		logger.Warn("redis not available, falling back to in-process cache", zap.Error(err))
		tokenCache = cache.NewLocalCache(5*time.Minute, logger)
	}

	tokenStore, err := vault.NewSecretManager(cfg.Vault.Address, cfg.Vault.Token)
	if err != nil {
		logger.Fatal("failed to build vault token store", zap.Error(err))
	}

	statesRepo := mongo.NewScoutStateRepo(db)
	sessionsRepo := mongo.NewSessionRepo(db)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Duration, logger)

	s := scout.New(scout.Config{
		VIN:          cfg.Vehicle.VIN,
		HomeLat:      cfg.Vehicle.HomeLatitude,
		HomeLon:      cfg.Vehicle.HomeLongitude,
		HomeRadius:   cfg.Vehicle.HomeRadius,
		WorkerURL:    cfg.Worker.WorkerURL,
		CloudBaseURL: cfg.Vehicle.CloudBaseURL,
		HTTPTimeout:  cfg.Vehicle.RequestTimeout,
	}, tokenStore, tokenCache, statesRepo, sessionsRepo, jwtService, logger)

	result, err := s.Run(ctx)
	if err != nil {
		logger.Error("scout run failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("scout run complete",
		zap.Bool("triggered", result.Triggered),
		zap.String("reason", result.Reason),
		zap.Bool("at_home", result.AtHome),
		zap.Bool("online", result.Online),
		zap.Int("battery", result.Battery),
	)
}
