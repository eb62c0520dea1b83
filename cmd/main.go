package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"pricing-service/internal/config"
	"pricing-service/internal/database/minio"
	"pricing-service/internal/database/postgres"
	"pricing-service/internal/database/redis"
	"pricing-service/internal/database/sqlite"
	"pricing-service/internal/event"
	"pricing-service/internal/handlers"
	"pricing-service/internal/repository"
	"pricing-service/internal/services"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/jmoiron/sqlx"
)

func setupLogging(logDir, level string) (*os.File, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFileName := fmt.Sprintf("log_%s.log", time.Now().Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(io.MultiWriter(os.Stdout, file), &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))

	if absPath, err := filepath.Abs(logFile); err == nil {
		slog.Info("logging to file", "path", absPath, "level", lvl.String())
	}
	return file, nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		slog.Info("opening SQLite database", "path", cfg.SQLitePath)
		return sqlite.Open(ctx, cfg.SQLitePath)
	case config.DriverPostgres:
		db, err := postgres.ConnectAndCreateDB(cfg.PostgresCfg)
		if err != nil {
			slog.Error("error connecting to database, retrying", "error", err)
			postgres.RetryConnectOnFailed(30*time.Second, &db, cfg.PostgresCfg)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

func main() {
	cfg := config.New()

	logFile, err := setupLogging(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()

	ctx := context.Background()

	db, err := openDatabase(ctx, cfg.DatabaseCfg)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	reportService := services.NewReportService(cfg.ReportCfg)
	submissionService := services.NewSubmissionService(repository.NewSubmissionRepository(db), reportService)
	healthHandler := handlers.NewHealthHandler(db)

	if cfg.RedisCfg.Enabled {
		redisClient, err := redis.NewRedisClient(cfg.RedisCfg)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		submissionService.WithIdempotency(repository.NewIdempotencyRepository(redisClient.GetClient(), cfg.RedisCfg.IdempotencyTTL))
		healthHandler.WithCache(redisClient)
		slog.Info("idempotency keys enabled", "ttl", cfg.RedisCfg.IdempotencyTTL)
	}

	if cfg.MinioCfg.Enabled {
		minioClient, err := minio.NewMinioClient(cfg.MinioCfg)
		if err != nil {
			slog.Error("failed to connect to minio", "error", err)
			os.Exit(1)
		}
		submissionService.WithArchive(minioClient)
		slog.Info("report archive enabled", "bucket", minioClient.Bucket())
	}

	if cfg.RabbitMQCfg.Enabled {
		conn, err := event.ConnectRabbitMQ(cfg.RabbitMQCfg)
		if err != nil {
			slog.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		publisher := event.NewSubmissionEventPublisher(conn)
		submissionService.WithEvents(publisher)
		healthHandler.WithPublisher(publisher)
		slog.Info("submission events enabled", "queue", cfg.RabbitMQCfg.Queue)
	}

	app := fiber.New()
	app.Use(recoverer.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Disposition", "X-Report-Pages", "X-Report-Object",
		},
	}))
	app.Use(handlers.RequestLogger())

	healthHandler.Register(app)

	if cfg.JWTSecret != "" {
		app.Use("/submissions", handlers.JWTAuth(cfg.JWTSecret))
		slog.Info("bearer token authentication enabled")
	}
	handlers.NewSubmissionHandler(submissionService).Register(app)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "port", cfg.Port, "db_driver", cfg.DatabaseCfg.Driver,
			"cors_origins", strings.Join(cfg.CORSAllowedOrigins, ","))
		if err := app.Listen(fmt.Sprintf("0.0.0.0:%s", cfg.Port)); err != nil {
			slog.Error("error starting server", "error", err)
			shutdownChan <- syscall.SIGTERM
		}
	}()

	<-shutdownChan
	slog.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
}
