package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sakashimaa/banobox-orders/internal/repository"
	"github.com/sakashimaa/banobox-orders/internal/service"
	transport "github.com/sakashimaa/banobox-orders/internal/transport/http"
	"github.com/sakashimaa/banobox-orders/internal/transport/http/handler"
	"github.com/sakashimaa/banobox-orders/internal/transport/http/middleware"
	"github.com/sakashimaa/banobox-orders/pkg/config"
	"github.com/sakashimaa/banobox-orders/pkg/db"
	"github.com/sakashimaa/banobox-orders/pkg/kafka"
	"github.com/sakashimaa/banobox-orders/pkg/metrics"
	"github.com/sakashimaa/banobox-orders/pkg/mylogger"
	outboxRepository "github.com/sakashimaa/banobox-orders/pkg/outbox/repository"
	"github.com/sakashimaa/banobox-orders/pkg/outbox/worker"
	"github.com/sakashimaa/banobox-orders/pkg/utils"
	"go.uber.org/zap"
)

const serviceName = "orders-service"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(config.LoggerConfig{
		Level:   cfg.Logger.Level,
		Env:     cfg.Env,
		Service: serviceName,
	})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if cfg.Auth.AccessSecret == "" {
		mylogger.Warn(ctx, logger, "ACCESS_SECRET is empty, every authenticated request will be rejected")
	}

	var shutdownTracer func(context.Context) error
	if cfg.Tracing.Enabled {
		shutdownTracer, err = utils.InitTracer(ctx, utils.TracerConfig{
			ServiceName: serviceName,
			Env:         cfg.Env,
			Endpoint:    cfg.Tracing.Endpoint,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			logger.Fatal("failed to init tracer", zap.Error(err))
		}
	}

	pool, err := db.NewPostgresDB(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal("failed to create pool", zap.Error(err))
	}
	defer pool.Close()

	m := metrics.New()

	probe := repository.NewSchemaProbe(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	catalogRepo := repository.NewCatalogRepository()
	outboxRepo := outboxRepository.NewOutboxRepository()

	items := service.NewItemAssembler(repository.ItemStrategies(pool, logger), m, logger)

	var (
		redisClient *redis.Client
		invalidator service.ItemsInvalidator
	)
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			mylogger.Warn(ctx, logger, "Redis unavailable, item cache disabled", zap.Error(err))
			_ = redisClient.Close()
			redisClient = nil
		} else {
			cached := service.NewCachedItemAssembler(items, redisClient, cfg.Redis.TTL, logger)
			items = cached
			invalidator = cached
		}
	}

	checkoutService := service.NewCheckoutService(
		pool,
		orderRepo,
		catalogRepo,
		service.NewAttributeResolver(catalogRepo, logger),
		outboxRepo,
		m,
		logger,
		service.CheckoutOptions{
			Atomic:        cfg.Checkout.Atomic,
			PublishEvents: cfg.Kafka.Enabled,
			Topic:         cfg.Kafka.Topic,
			Invalidator:   invalidator,
		},
	)
	historyService := service.NewHistoryService(probe, orderRepo, items, cfg.History.Concurrency, logger)

	var producer kafka.Producer
	if cfg.Kafka.Enabled {
		producer, err = kafka.NewProducer(cfg.Kafka.Brokers, logger)
		if err != nil {
			logger.Fatal("failed to create kafka producer", zap.Error(err))
		}

		outboxProcessor := worker.NewOutboxProcessor(pool, outboxRepo, producer, logger, worker.Options{})
		go outboxProcessor.Start(ctx)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout: cfg.HTTP.ReadTimeout,
	})

	app.Use(middleware.NewRequestID())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.NewRequestMetrics(m, logger))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Limiter.Max,
		Expiration: cfg.Limiter.Expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Try again later.",
			})
		},
	}))
	app.Use(middleware.NewRequestTimeout(cfg.HTTP.Timeout))

	handlers := &transport.Handlers{
		Order: handler.NewOrderHandler(checkoutService, historyService, logger),
	}
	transport.RegisterRoutes(app, handlers, middleware.NewAuthMiddleware(cfg.Auth.AccessSecret, logger), m)

	go func() {
		mylogger.Info(ctx, logger, "HTTP service listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			logger.Fatal("error listening on HTTP port", zap.String("port", cfg.HTTP.Port), zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mylogger.Info(shutdownCtx, logger, "Shutting down orders service")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Error shutting down HTTP app", zap.Error(err))
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			mylogger.Warn(shutdownCtx, logger, "Error closing kafka producer", zap.Error(err))
		}
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			mylogger.Warn(shutdownCtx, logger, "Error closing redis client", zap.Error(err))
		}
	}

	if shutdownTracer != nil {
		if err := shutdownTracer(shutdownCtx); err != nil {
			mylogger.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
		}
	}
}
