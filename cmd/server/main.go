package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	swagger "github.com/gofiber/swagger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/localnerve/nodues/internal/certificates"
	"github.com/localnerve/nodues/internal/config"
	"github.com/localnerve/nodues/internal/database"
	"github.com/localnerve/nodues/internal/handlers"
	"github.com/localnerve/nodues/internal/logging"
	"github.com/localnerve/nodues/internal/middleware"
	"github.com/localnerve/nodues/internal/notify"
	"github.com/localnerve/nodues/internal/registry"
	"github.com/localnerve/nodues/internal/workflow"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	_ "github.com/localnerve/nodues/docs/api" // Swagger docs
)

// @title No Dues API
// @version 1.0.0
// @description Multi-department clearance workflow service
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/localnerve/nodues
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

const serviceName = "nodues"

func main() {
	// A missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New(logging.Config{ServiceName: serviceName})
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		ServiceName: serviceName,
		Version:     "1.0.0",
	})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Engine pool
	db, err := database.Connect(cfg, log)
	if err != nil {
		return err
	}
	defer database.Close(db)

	// Reporting pool
	reportDB, err := database.ConnectReporting(cfg, log)
	if err != nil {
		return err
	}
	defer database.Close(reportDB)

	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	departments, err := registry.Load(cfg)
	if err != nil {
		return err
	}
	log.Info().Strs("departments", departments.ActiveNames()).Msg("department registry loaded")

	hub := notify.NewHub(cfg.NotifyBuffer, log)
	publishers := notify.Multi{hub}
	if cfg.NATSURL != "" {
		nc, err := notify.ConnectNATS(cfg.NATSURL, cfg.NATSSubjectPrefix, log)
		if err != nil {
			return err
		}
		defer nc.Close()
		publishers = append(publishers, nc)
	}

	opts := []workflow.Option{
		workflow.WithReader(reportDB),
		workflow.WithPublisher(publishers),
		workflow.WithLogger(log),
	}

	if cfg.RedisAddr != "" {
		redisOpt := certificates.RedisOpt(cfg)
		client := asynq.NewClient(redisOpt)
		defer client.Close()
		inspector := asynq.NewInspector(redisOpt)
		defer inspector.Close()
		opts = append(opts, workflow.WithCertificateTrigger(
			certificates.NewEnqueuer(client, inspector, cfg.CertQueue, log)))
	} else {
		log.Warn().Msg("REDIS_ADDR not set, certificates stay pending until retried")
	}

	var store certificates.ObjectStore
	if cfg.S3Endpoint != "" {
		s, err := certificates.NewStorage(cfg)
		if err != nil {
			return err
		}
		store = s
	}

	engine := workflow.New(db, departments, opts...)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
		// Values from the request outlive the handler in published events
		Immutable: true,
		// Server-sent event streams stay open
		IdleTimeout: 2 * time.Minute,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(compress.New(compress.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/api/v1/events"
		},
	}))
	app.Use(middleware.RequestLogger(log))

	// Prometheus metrics
	prometheus := fiberprometheus.New(serviceName)
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	api := app.Group("/api/v1")
	api.Use(middleware.VersionMiddleware())

	handlers.Register(api, handlers.Dependencies{
		Config:       cfg,
		DB:           db,
		Engine:       engine,
		Registry:     departments,
		Hub:          hub,
		Certificates: store,
		CertURLTTL:   cfg.CertURLTTL,
		Resolver:     middleware.NewResolver(cfg),
		Log:          log,
	})

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
			"type":      "not_found",
		})
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("starting server")
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("gracefully shutting down")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
