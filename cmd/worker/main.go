package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/evteam/tesla-charge-orchestrator/internal/adapter/cache"
	"github.com/evteam/tesla-charge-orchestrator/internal/adapter/events"
	"github.com/evteam/tesla-charge-orchestrator/internal/adapter/http/fiber/handlers"
	"github.com/evteam/tesla-charge-orchestrator/internal/adapter/http/fiber/middleware"
	"github.com/evteam/tesla-charge-orchestrator/internal/adapter/pricing"
	"github.com/evteam/tesla-charge-orchestrator/internal/adapter/scheduler"
	"github.com/evteam/tesla-charge-orchestrator/internal/adapter/sheet"
	"github.com/evteam/tesla-charge-orchestrator/internal/adapter/storage/mongo"
	"github.com/evteam/tesla-charge-orchestrator/internal/adapter/vault"
	"github.com/evteam/tesla-charge-orchestrator/internal/adapter/vehicle"
	"github.com/evteam/tesla-charge-orchestrator/internal/infrastructure/circuitbreaker"
	"github.com/evteam/tesla-charge-orchestrator/internal/observability/telemetry"
	"github.com/evteam/tesla-charge-orchestrator/internal/ports"
	"github.com/evteam/tesla-charge-orchestrator/internal/service/auth"
	"github.com/evteam/tesla-charge-orchestrator/internal/service/broker"
	"github.com/evteam/tesla-charge-orchestrator/internal/service/planner"
	"github.com/evteam/tesla-charge-orchestrator/internal/service/reconcile"
	"github.com/evteam/tesla-charge-orchestrator/internal/service/worker"
	"github.com/evteam/tesla-charge-orchestrator/pkg/config"
)

const serviceName = "tesla-charge-worker"

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer logger.Sync()

	logger.Info("starting worker", zap.String("service", serviceName))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	tracerProvider, err := telemetry.InitTracer(serviceName)
	if err != nil {
		logger.Fatal("failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error("error shutting down tracer provider", zap.Error(err))
		}
	}()

	loc, err := time.LoadLocation(cfg.Region.Timezone)
	if err != nil {
		logger.Warn("unknown timezone, defaulting to UTC", zap.String("timezone", cfg.Region.Timezone), zap.Error(err))
		loc = time.UTC
	}

	ctx, cancelDB := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := mongo.NewConnection(ctx, cfg.Database.URI, cfg.Database.Name, logger)
	cancelDB()
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

	var eventPublisher ports.SessionEventPublisher
	if publisher, err := events.NewNATSPublisher(cfg.NATS.URL, logger); err != nil {
		logger.Warn("nats not available, running without session event publishing", zap.Error(err))
	} else {
		eventPublisher = publisher
	}

	breakers := circuitbreaker.NewManager(logger)

	tokenBroker := broker.New(broker.Config{
		ClientID:     cfg.Vehicle.ClientID,
		ClientSecret: cfg.Vehicle.ClientSecret,
		Domain:       cfg.Vehicle.Domain,
		Timeout:      cfg.Vehicle.RequestTimeout,
	}, tokenStore, tokenCache, logger)

	gateway := vehicle.New(vehicle.Config{
		CloudBaseURL: cfg.Vehicle.CloudBaseURL,
		ProxyHost:    cfg.Vehicle.ProxyHost,
		ProxyPort:    cfg.Vehicle.ProxyPort,
		WakeTimeout:  cfg.Vehicle.WakeTimeout,
		WakePoll:     cfg.Vehicle.WakePoll,
		Timeout:      cfg.Vehicle.RequestTimeout,
	}, tokenBroker, breakers, logger)

	fingerprintRepo := mongo.NewFingerprintRepo(db)
	casesRepo := mongo.NewCaseRepo(db)
	sessionsRepo := mongo.NewSessionRepo(db)

	engine := reconcile.New(gateway, fingerprintRepo, cfg.Vehicle.HomeLatitude, cfg.Vehicle.HomeLongitude, cfg.Vehicle.HomeRadius, loc, logger)

	peaks := planner.DefaultPeakIntervals()
	if len(cfg.Planner.PeakIntervals) > 0 {
		parsed := make([]planner.PeakInterval, 0, len(cfg.Planner.PeakIntervals))
		ok := true
		for _, raw := range cfg.Planner.PeakIntervals {
			interval, err := planner.ParsePeakInterval(raw)
			if err != nil {
				logger.Warn("failed to parse configured peak interval, using defaults", zap.String("interval", raw), zap.Error(err))
				ok = false
				break
			}
			parsed = append(parsed, interval)
		}
		if ok {
			peaks = parsed
		}
	}
	chargePlanner := planner.New(peaks, logger)

	pricingClient := pricing.NewClient(pricing.Config{
		BaseURL: cfg.Pricing.APIURL,
		APIKey:  cfg.Pricing.APIKey,
		Timeout: cfg.Pricing.Timeout,
	}, breakers, logger)

	sheetKey, err := os.ReadFile(cfg.Sheet.ServiceAccountKeyPath)
	if err != nil {
		logger.Fatal("failed to read sheet service-account key", zap.Error(err))
	}
	sheetClient, err := sheet.NewClient(sheet.Config{
		SheetURL:              cfg.Sheet.URL,
		ServiceAccountKeyJSON: sheetKey,
		Timeout:               cfg.Sheet.Timeout,
	}, logger)
	if err != nil {
		logger.Fatal("failed to build sheet client", zap.Error(err))
	}

	schedulerKey, err := os.ReadFile(cfg.Scheduler.ServiceAccountKeyPath)
	if err != nil {
		logger.Fatal("failed to read scheduler service-account key", zap.Error(err))
	}
	schedulerClient, err := scheduler.NewClient(scheduler.Config{
		APIURL:                cfg.Scheduler.APIURL,
		ServiceAccountKeyJSON: schedulerKey,
		Timeout:               cfg.Scheduler.Timeout,
	}, logger)
	if err != nil {
		logger.Fatal("failed to build scheduler client", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Duration, logger)

	w := worker.New(worker.Config{
		VIN:                cfg.Vehicle.VIN,
		HomeLat:            cfg.Vehicle.HomeLatitude,
		HomeLon:            cfg.Vehicle.HomeLongitude,
		HomeRadius:         cfg.Vehicle.HomeRadius,
		BatteryCapacityKWh: cfg.Pricing.BatteryCapacityKWh,
		ChargingRateKW:     cfg.Pricing.ChargingRateKW,
		Consumption:        cfg.Pricing.Consumption,
		DailyMileage:       cfg.Pricing.DailyMileage,
		ChargeLimits: ports.ChargeLimits{
			OptimalUpper: cfg.Pricing.OptimalUpper,
			OptimalLower: cfg.Pricing.OptimalLower,
			Emergency:    cfg.Pricing.Emergency,
			ChargingRate: cfg.Pricing.ChargingRateKW,
		},
		WorkerURL:         cfg.Worker.WorkerURL,
		SchedulerIdentity: cfg.Worker.SchedulerIdentity,
		Location:          loc,
	}, worker.Deps{
		Gateway:     gateway,
		Broker:      tokenBroker,
		TokenStore:  tokenStore,
		Engine:      engine,
		Planner:     chargePlanner,
		Fingerprint: fingerprintRepo,
		Pricing:     pricingClient,
		Sheet:       sheetClient,
		Scheduler:   schedulerClient,
		Cases:       casesRepo,
		Sessions:    sessionsRepo,
		Events:      eventPublisher,
	}, logger)

	h := handlers.New(w, logger)

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		ServerHeader:          serviceName,
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	if cfg.CORS.Enabled {
		app.Use(middleware.NewCORS(cfg.CORS))
	} else {
		app.Use(middleware.DefaultCORS())
	}

	app.Get("/metrics", func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())(c.Context())
		return nil
	})

	handlers.RegisterRoutes(app, h, jwtService)

	go func() {
		logger.Info("starting http server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("worker exited gracefully")
}
