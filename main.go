package main

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"

	"chaser/config"
	"chaser/middleware"
	"chaser/routes"
	"chaser/worker"
)

func main() {
	logger := config.GetLogger()

	if err := config.LoadConfig(); err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}
	config.ConfigureLogger()

	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.WithError(err).Fatal("failed to initialize sentry")
		}
		defer sentry.Flush(2 * time.Second)
	}

	if err := config.ConnectDB(); err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}

	// Redis is optional; without it the sweep runs unlocked, which is fine
	// for single-instance deployments.
	var rdb *redis.Client
	if config.AppConfig.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     config.AppConfig.Redis.Address,
			Password: config.AppConfig.Redis.Password,
			DB:       config.AppConfig.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.WithError(err).Fatal("failed to connect to redis")
		}
	}

	app := fiber.New()
	app.Use(middleware.CORS())

	routes.SetupRoutes(app, config.DB)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chaseWorker := worker.NewChaseWorker(
		config.DB, rdb, logger,
		config.AppConfig.SweepInterval,
		config.AppConfig.SweepPageSize,
		config.AppConfig.SweepConcurrency,
	)
	go chaseWorker.Start(ctx)

	dispatchWorker := worker.NewDispatchWorker(
		config.DB, logger,
		config.AppConfig.DispatchInterval,
		config.AppConfig.DispatchBatch,
	)
	go dispatchWorker.Start(ctx)

	cronManager := worker.NewCronManager(config.DB, rdb, logger)
	if err := cronManager.SetupJobs(); err != nil {
		logger.WithError(err).Fatal("failed to set up cron jobs")
	}
	cronManager.Start()
	defer cronManager.Stop()

	logger.WithField("port", config.AppConfig.ServerPort).Info("server starting")
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}
