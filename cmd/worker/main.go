package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/localnerve/nodues/internal/certificates"
	"github.com/localnerve/nodues/internal/config"
	"github.com/localnerve/nodues/internal/database"
	"github.com/localnerve/nodues/internal/logging"
	"github.com/localnerve/nodues/internal/notify"
	"github.com/localnerve/nodues/internal/registry"
	"github.com/localnerve/nodues/internal/workflow"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New(logging.Config{ServiceName: "nodues-worker"})
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		ServiceName: "nodues-worker",
	})

	if cfg.RedisAddr == "" || cfg.S3Endpoint == "" {
		log.Fatal().Msg("REDIS_ADDR and S3_ENDPOINT are required for the certificate worker")
	}

	db, err := database.Connect(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer database.Close(db)

	departments, err := registry.Load(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load departments")
	}

	store, err := certificates.NewStorage(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init storage")
	}
	if err := store.EnsureBucket(ctx); err != nil {
		log.Fatal().Err(err).Msg("ensure bucket")
	}

	opts := []workflow.Option{workflow.WithLogger(log)}
	if cfg.NATSURL != "" {
		nc, err := notify.ConnectNATS(cfg.NATSURL, cfg.NATSSubjectPrefix, log)
		if err != nil {
			log.Fatal().Err(err).Msg("connect nats")
		}
		defer nc.Close()
		opts = append(opts, workflow.WithPublisher(nc))
	}
	engine := workflow.New(db, departments, opts...)

	server := asynq.NewServer(certificates.RedisOpt(cfg), asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{cfg.CertQueue: 1},
		Logger:      asynqLogger{log: log},
	})
	processor := certificates.NewProcessor(engine, store, certificates.NewRenderer(departments), log)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	log.Info().Str("queue", cfg.CertQueue).Int("concurrency", cfg.WorkerConcurrency).Msg("certificate worker starting")
	if err := server.Run(mux); err != nil {
		log.Error().Err(err).Msg("worker stopped")
		os.Exit(1)
	}
}
