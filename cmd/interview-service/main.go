package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"interviewroom-backend/internal/database"
	interviewHandler "interviewroom-backend/internal/handler/http/interview"
	wsHandler "interviewroom-backend/internal/handler/ws"
	"interviewroom-backend/internal/middleware"
	"interviewroom-backend/internal/provider/tavus"
	"interviewroom-backend/internal/repository/cockroach"
	redisRepo "interviewroom-backend/internal/repository/redis"
	"interviewroom-backend/internal/service/clock"
	"interviewroom-backend/internal/service/conversation"
	"interviewroom-backend/internal/service/evaluation"
	"interviewroom-backend/internal/service/export"
	"interviewroom-backend/internal/service/navigator"
	"interviewroom-backend/internal/service/session"
	"interviewroom-backend/internal/service/storage"
	wsTransport "interviewroom-backend/internal/transport/ws"
	"interviewroom-backend/pkg/config"
	"interviewroom-backend/pkg/constants"
	"interviewroom-backend/pkg/logger"
	"interviewroom-backend/pkg/metrics"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(&logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   cfg.Log.Output,
		FilePath: cfg.Log.FilePath,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 2. Metrics
	appMetrics := metrics.NewMetrics(cfg.Server.ServiceName)

	// 3. Session clock store: Redis when available, process memory otherwise
	var (
		clockStore clock.Store = clock.NewMemoryStore()
		redisDB    *database.RedisClient
	)
	if cfg.Redis.Enabled {
		redisDB = database.NewRedisDB(&database.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Timeout:  cfg.Redis.Timeout,
		}, appMetrics)
		defer redisDB.Close()

		redisDB.StartHealthCheck(ctx, 10*time.Second)
		clockStore = redisRepo.NewClockRepository(redisDB)
		logger.Info("Redis clock store enabled",
			zap.String("host", cfg.Redis.Host),
			zap.Int("port", cfg.Redis.Port))
	}

	var handlers []session.CompletionHandler

	// 4. CockroachDB session archive
	var archive interviewHandler.Archive
	if cfg.Database.Enabled {
		db, err := database.NewDB(ctx, &database.CockroachConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			logger.Fatal("Failed to connect to CockroachDB", zap.Error(err))
		}
		defer db.Close()

		interviewRepo := cockroach.NewInterviewRepository(db.Pool)
		if err := interviewRepo.EnsureSchema(ctx); err != nil {
			logger.Fatal("Failed to prepare interview schema", zap.Error(err))
		}
		handlers = append(handlers, interviewRepo)
		archive = interviewRepo
		logger.Info("Session archive enabled", zap.String("database", cfg.Database.Database))
	}

	// 5. MinIO export uploads
	var uploader export.Uploader
	if cfg.MinIO.Enabled {
		minioClient, err := storage.NewMinioClient(ctx, storage.Config{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			UseSSL:    cfg.MinIO.UseSSL,
			Bucket:    cfg.MinIO.Bucket,
		}, appMetrics)
		if err != nil {
			logger.Fatal("Failed to initialize MinIO", zap.Error(err))
		}
		uploader = minioClient
		logger.Info("Export uploads enabled", zap.String("bucket", cfg.MinIO.Bucket))
	}
	exportSvc := export.NewService(uploader, appMetrics)
	if uploader != nil {
		handlers = append(handlers, exportSvc)
	}

	// 6. Conversation service and transport
	conversationSvc := conversation.NewService(
		tavus.NewClient(cfg.Conversation.BaseURL, cfg.Conversation.APIKey),
		conversation.Config{
			PersonaID:              cfg.Conversation.PersonaID,
			ReplicaID:              cfg.Conversation.ReplicaID,
			MaxCallDuration:        cfg.Conversation.MaxCallDuration,
			ParticipantLeftTimeout: cfg.Conversation.ParticipantLeftTimeout,
			EnableRecording:        cfg.Conversation.EnableRecording,
		},
		nil,
		appMetrics,
	)

	healthMonitor := navigator.NewHealthMonitor(conversationSvc, 5*time.Second, appMetrics)
	healthMonitor.Start(ctx, cfg.Conversation.HealthCheckInterval)

	// 7. Session manager
	sessions := session.NewManager(session.Config{
		Budget:           cfg.Session.Budget,
		AudioGraceDelay:  cfg.Session.AudioGraceDelay,
		ClockTick:        cfg.Session.ClockTick,
		OperationTimeout: cfg.Session.OperationTimeout,
	}, session.Deps{
		Conversations: conversationSvc,
		Transports:    wsTransport.NewFactory(cfg.Transport.EventsURL),
		Evaluator:     evaluation.NewEngine(),
		ClockStore:    clockStore,
		Handlers:      handlers,
		Metrics:       appMetrics,
	})

	// 8. Handlers
	interviewHdlr := interviewHandler.NewHandler(sessions, conversationSvc, healthMonitor,
		exportSvc, archive, cfg.Session.OperationTimeout)
	stream := wsHandler.NewSessionStream(sessions, healthMonitor, cfg.Server.AllowedOrigins,
		constants.MaxStreamConnections, appMetrics)
	startLimiter := middleware.NewRateLimiter(redisDB, "start", constants.StartRateLimit, constants.StartRateWindow)

	// 9. Router
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))
	router.Use(middleware.NewPrometheusMiddleware(appMetrics).Handler())
	router.Use(middleware.HealthCheck(cfg.Server.ServiceName))

	router.GET(middleware.GetMetricsPath(), middleware.MetricsHandler(appMetrics))

	v1 := router.Group("/v1")
	interviewHdlr.RegisterRoutes(v1, startLimiter.Middleware())
	v1.GET("/ws/interviews/:id", stream.ServeWS)

	// 10. Start server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Interview service starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("env", cfg.Server.Environment))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 11. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}
	sessions.EndAll(shutdownCtx)
	stop()

	logger.Info("Server exited")
}
