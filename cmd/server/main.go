package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/epub-counter/api/internal/client"
	"github.com/epub-counter/api/internal/config"
	"github.com/epub-counter/api/internal/discovery"
	"github.com/epub-counter/api/internal/handler"
	"github.com/epub-counter/api/internal/middleware"
	"github.com/epub-counter/api/internal/pipeline"
	"github.com/epub-counter/api/internal/queue"
	"github.com/epub-counter/api/internal/service"
	"github.com/epub-counter/api/internal/stream"
	"github.com/epub-counter/api/internal/tokenizer"
	"github.com/epub-counter/api/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("EPUBCOUNTER_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := config.NewLogger(cfg.Server.LogLevel, cfg.Server.Env == "development")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	if cfg.Tiktoken.CacheDir != "" {
		os.Setenv("TIKTOKEN_CACHE_DIR", cfg.Tiktoken.CacheDir)
	}

	// Optional Redis for rate limiting
	var redisClient *redis.Client
	if cfg.RateLimit.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			zlog.Warn("Redis not available, rate limiting fails open", zap.Error(err))
		}
	}

	// External clients
	anthropicClient := client.NewAnthropicClient(&cfg.Anthropic)
	hubClient := client.NewHubClient(&cfg.HuggingFace)

	queueCfg := queue.Config{OutputDir: cfg.Processing.OutputDir}
	if cfg.Storage.Enabled {
		s3Client, err := client.NewS3Client(context.Background(), &cfg.Storage)
		if err != nil {
			zlog.Warn("Results storage disabled", zap.Error(err))
		} else {
			queueCfg.Publisher = s3Client
		}
	}

	// Processing
	var errLog *pipeline.ErrorLog
	if cfg.Processing.OutputDir != "" {
		errLog = pipeline.NewErrorLog(cfg.Processing.OutputDir)
	}
	processor := pipeline.NewProcessor(tokenizer.NewOrchestrator(zlog), errLog, cfg.Processing.ErrorPause, zlog)
	factory := tokenizer.NewFactory(anthropicClient, hubClient)
	jobQueue := queue.New(queueCfg, processor, factory, discovery.NewScanner(zlog), zlog)
	gateway := stream.NewGateway(jobQueue, cfg.Stream.Buffer, zlog)

	// Services and handlers
	validate := validator.New()
	processService := service.NewProcessService(jobQueue, cfg.Server.ProjectRoot, zlog)

	processHandler := handler.NewProcessHandler(processService, validate)
	streamHandler := handler.NewStreamHandler(gateway, processService, cfg.Stream.Heartbeat, zlog)
	uploadHandler := handler.NewUploadHandler(cfg.Server.BodyLimitMB)

	rateLimiter := middleware.NewRateLimiter(redisClient, zlog)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    uploadHandler.BodyLimit(),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	api := app.Group("/api")
	api.Get("/health", handler.Health)
	api.Get("/list-models", handler.ListModels)
	api.Post("/process", rateLimiter.ProcessLimit(cfg.RateLimit.ProcessPerMin), processHandler.Process)
	api.Get("/jobs/:jobId", processHandler.Status)
	api.Post("/jobs/:jobId/cancel", processHandler.Cancel)
	api.Get("/sse/:jobId", streamHandler.SSE)
	api.Post("/upload-results", uploadHandler.Results)

	// WebSocket mirror of the SSE stream
	app.Get("/ws/jobs/:jobId", streamHandler.RequireJob, websocket.New(streamHandler.WebSocket))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		zlog.Info("Shutting down server...")

		gateway.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := jobQueue.Stop(ctx); err != nil {
			zlog.Warn("Job queue did not drain", zap.Error(err))
		}
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zlog.Error("Server shutdown error", zap.Error(err))
		}
	}()

	addr := ":" + cfg.Server.Port
	zlog.Info("Server starting", zap.String("addr", addr), zap.String("project_root", cfg.Server.ProjectRoot))
	if err := app.Listen(addr); err != nil {
		zlog.Fatal("Server error", zap.Error(err))
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}
