package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/thumbnailer/internal/config"
	"github.com/cuongbtq/thumbnailer/internal/queue"
	"github.com/cuongbtq/thumbnailer/internal/worker"
	"github.com/cuongbtq/thumbnailer/internal/worker/renderer"
	"github.com/cuongbtq/thumbnailer/internal/worker/storage"
	"github.com/cuongbtq/thumbnailer/migrations"
	"github.com/cuongbtq/thumbnailer/shared/logger"
	"github.com/cuongbtq/thumbnailer/shared/objectstore"
	"github.com/cuongbtq/thumbnailer/shared/postgresql"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// objectStore moves originals and renditions between scratch and storage
type objectStore interface {
	worker.Downloader
	worker.Uploader
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	jobPath := flag.String("job", "", "Run a single job from a JSON file and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()
	appLogger = appLogger.WithAttrs(slog.String("app", cfg.App.Name))

	workerID := uuid.NewString()

	appLogger.Info("Starting worker service",
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("worker_id", workerID),
	)

	if err := initSentry(cfg); err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}
	defer sentry.Flush(2 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if dir := cfg.Worker.ScratchDir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create scratch dir: %w", err)
		}
	}

	store, err := initObjectStore(ctx, cfg, appLogger.WithComponent("objectstore"))
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	pipeline := worker.NewPipeline(
		store,
		store,
		renderer.New(renderer.Config{
			ScratchDir: cfg.Worker.ScratchDir,
			Quality:    cfg.Worker.JPEGQuality,
		}, appLogger.WithComponent("renderer")),
		appLogger.WithComponent("pipeline"),
	)

	var recorder worker.RenditionRecorder
	var dbClient *postgresql.Client
	if cfg.Database.Enabled {
		dbClient, err = initPostgreSQL(ctx, &cfg.Database, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer dbClient.Close()

		recorder = storage.NewStorage(dbClient.GetDB(), workerID, appLogger.WithComponent("ledger"))
	}

	workerCfg := &worker.Config{
		Logger:              appLogger.Logger,
		Pipeline:            pipeline,
		Recorder:            recorder,
		WorkerID:            workerID,
		ReceiveErrorBackoff: cfg.Worker.ReceiveErrorBackoff,
		DecodeFailurePolicy: cfg.Worker.DecodeFailurePolicy,
	}

	if *jobPath != "" {
		return runOnce(ctx, worker.NewWorker(workerCfg), *jobPath, appLogger.Logger)
	}

	queueClient, err := queue.New(ctx, &cfg.Queue, workerID, appLogger.WithComponent("queue"))
	if err != nil {
		return fmt.Errorf("failed to initialize queue: %w", err)
	}
	defer queueClient.Close()

	workerCfg.Queue = queueClient
	workerInstance := worker.NewWorker(workerCfg)

	errChan := make(chan error, 1)
	go func() {
		errChan <- workerInstance.Start(ctx)
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		if err != nil {
			appLogger.Error("Worker error",
				slog.Any("error", err),
			)
			return err
		}
		return nil
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// runOnce processes the job stored in path without a queue
func runOnce(ctx context.Context, w *worker.Worker, path string, logger *slog.Logger) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read job file: %w", err)
	}

	logger.Info("Running single job",
		slog.String("path", path),
	)

	if err := w.RunOnce(ctx, body); err != nil {
		return fmt.Errorf("job failed: %w", err)
	}

	logger.Info("Job completed")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initSentry enables error reporting when a DSN is configured
func initSentry(cfg *config.Config) error {
	if cfg.Sentry.DSN == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.App.Name + "@" + cfg.App.Version,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
	})
}

// initObjectStore builds the storage backend selected by configuration
func initObjectStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (objectStore, error) {
	scratch := cfg.Worker.ScratchDir

	switch cfg.Storage.Backend {
	case config.StorageBackendS3:
		s3 := cfg.Storage.S3
		return objectstore.NewS3Store(ctx, objectstore.S3Config{
			AWS:          s3.AWS.SDKConfig(),
			Bucket:       s3.Bucket,
			ACL:          s3.ACL,
			StorageClass: s3.StorageClass,
			UsePathStyle: s3.UsePathStyle,
			ScratchDir:   scratch,
		}, logger)

	case config.StorageBackendMinio:
		m := cfg.Storage.Minio
		return objectstore.NewMinioStore(ctx, objectstore.MinioConfig{
			Endpoint:   m.Endpoint,
			AccessKey:  m.AccessKey,
			SecretKey:  m.SecretKey,
			Bucket:     m.Bucket,
			Region:     m.Region,
			UseSSL:     m.UseSSL,
			ScratchDir: scratch,
		}, logger)

	case config.StorageBackendLocal:
		return objectstore.NewLocalStore(cfg.Storage.Local.Root, scratch, logger)

	default:
		return nil, errors.New("unknown storage backend: " + cfg.Storage.Backend)
	}
}

// initPostgreSQL connects to the rendition ledger and applies migrations
func initPostgreSQL(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	client, err := postgresql.NewClient(dbConfig, logger)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := client.Migrate(ctx, migrations.FS); err != nil {
			client.Close()
			return nil, err
		}
	}

	return client, nil
}
