// Package main runs the lecture transcript engine HTTP server with SSE,
// WebSocket input and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/studymate/backend/config"
	"github.com/studymate/backend/internal/auth"
	"github.com/studymate/backend/internal/classify"
	"github.com/studymate/backend/internal/embed"
	"github.com/studymate/backend/internal/lecture"
	"github.com/studymate/backend/internal/middleware"
	"github.com/studymate/backend/internal/rag"
	"github.com/studymate/backend/internal/realtime"
	"github.com/studymate/backend/internal/transcribe"
	"github.com/studymate/backend/internal/vectorstore"
	"github.com/studymate/backend/internal/worker"
	"github.com/studymate/backend/pkg/database"
	"github.com/studymate/backend/pkg/queue"
	"github.com/studymate/backend/pkg/redis"
	"github.com/studymate/backend/pkg/response"
	"github.com/studymate/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	// Postgres is optional; without it sessions and highlights live in
	// memory only.
	var lectureRepo *lecture.Repository
	if cfg.Database.URL != "" {
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		lectureRepo = lecture.NewRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not set, session persistence disabled")
	}

	// Redis is optional; without it event fan-out is in-process only and
	// transcript archival is disabled.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
	} else {
		logger.Warn("REDIS_ADDR not set, running single-node fan-out")
	}

	var hub *realtime.Hub
	if rdb != nil {
		pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, pubsub, pubsub)
	} else {
		hub = realtime.NewHub(logger, nil, nil)
	}

	store, err := vectorstore.New(ctx, vectorstore.Config{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		APIKey:     cfg.Qdrant.APIKey,
		UseTLS:     cfg.Qdrant.UseTLS,
		Collection: cfg.Qdrant.Collection,
		VectorSize: cfg.Qdrant.VectorSize,
	}, logger)
	if err != nil {
		logger.Fatal("vector store", zap.Error(err))
	}

	var embedder rag.Embedder
	if cfg.Embedding.Provider == "openai" && cfg.OpenAI.APIKey != "" {
		embedder = embed.NewOpenAI(cfg.OpenAI.APIKey, cfg.Embedding.Model)
	} else {
		embedder = embed.NewHuggingFace(cfg.Embedding.HFToken, cfg.Embedding.Model, cfg.Embedding.BaseURL, logger)
	}

	ingestor := rag.NewIngestor(embedder, store, logger)
	retriever := rag.NewRetriever(embedder, store, logger)
	ragHandler := rag.NewHandler(ingestor, retriever, logger)

	var classifier classify.Classifier
	if cfg.OpenAI.APIKey != "" {
		classifier = classify.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.ChatModel, logger)
	} else {
		logger.Warn("OPENAI_API_KEY not set, using keyword highlight rules")
		classifier = classify.NewKeyword()
	}

	var transcriber transcribe.Transcriber
	if cfg.OpenAI.APIKey != "" {
		transcriber = transcribe.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.WhisperModel)
	}

	// Transcript archive: S3 alone enables download links; archival through
	// the queue additionally needs Redis.
	var s3Client *storage.S3
	var jobQueue *queue.Queue
	var archiveProcessor *worker.ArchiveProcessor
	if cfg.AWS.ArchiveBucket != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ArchiveBucket:        cfg.AWS.ArchiveBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("transcript archive disabled", zap.Error(err))
			s3Client = nil
		}
	}
	if s3Client != nil && rdb != nil {
		jobQueue = queue.NewQueue(rdb.Client, logger)
		archiveProcessor = worker.NewArchiveProcessor(s3Client, jobQueue, logger)
	}

	registry := lecture.NewRegistry(lecture.Tuning{
		FastWindow:     cfg.Lecture.FastWindow,
		FastWordLimit:  cfg.Lecture.FastWordLimit,
		SlowFlushCount: cfg.Lecture.SlowFlushCount,
		Retention:      cfg.Lecture.Retention,
	}, hub, lectureRepo, jobQueue, logger)
	orchestrator := lecture.NewOrchestrator(registry, ingestor, classifier, hub, logger)
	lectureHandler := lecture.NewHandler(registry, orchestrator, transcriber, s3Client, logger)

	// JWT is optional; without a secret the API runs unauthenticated.
	var validateToken func(token string) error
	var authMiddleware gin.HandlerFunc
	if cfg.JWT.Secret != "" {
		jwtService := auth.NewJWTService(cfg.JWT.Secret)
		authMiddleware = middleware.JWT(jwtService)
		validateToken = func(token string) error {
			_, err := jwtService.Validate(token)
			return err
		}
	} else {
		logger.Warn("JWT_SECRET not set, API is unauthenticated")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Live event streams (token in query for WS; SSE is read-only)
	router.GET("/lectures/:id/stream", realtime.StreamHandler(hub, registry, cfg.Lecture.SSEPing, logger))
	router.GET("/ws", realtime.ServeWS(hub, registry, orchestrator, logger, validateToken))

	api := router.Group("")
	if authMiddleware != nil {
		api.Use(authMiddleware)
	}
	{
		api.POST("/lectures/start", lectureHandler.Start)
		api.POST("/lectures/stop", lectureHandler.Stop)
		api.GET("/lectures/:id", lectureHandler.Get)
		api.POST("/lectures/:id/transcript", lectureHandler.Fragment)
		api.POST("/lectures/:id/audio", lectureHandler.Audio)
		api.GET("/lectures/:id/highlights", lectureHandler.Highlights)
		api.GET("/lectures/:id/transcript-url", lectureHandler.TranscriptURL)

		api.POST("/rag/ingest", ragHandler.Ingest)
		api.POST("/rag/query", ragHandler.Query)
	}

	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     router,
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		// No WriteTimeout: SSE connections stay open for the whole lecture.
		ReadHeaderTimeout: 10 * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if archiveProcessor != nil {
		go archiveProcessor.Run(workerCtx)
		logger.Info("transcript archive worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
