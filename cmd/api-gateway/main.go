package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/schedule-quality-api/api/swagger"
	"github.com/noah-isme/schedule-quality-api/internal/handler"
	internalmiddleware "github.com/noah-isme/schedule-quality-api/internal/middleware"
	"github.com/noah-isme/schedule-quality-api/internal/repository"
	"github.com/noah-isme/schedule-quality-api/internal/scoring"
	"github.com/noah-isme/schedule-quality-api/internal/service"
	"github.com/noah-isme/schedule-quality-api/pkg/cache"
	"github.com/noah-isme/schedule-quality-api/pkg/config"
	"github.com/noah-isme/schedule-quality-api/pkg/database"
	"github.com/noah-isme/schedule-quality-api/pkg/jobs"
	"github.com/noah-isme/schedule-quality-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/schedule-quality-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/schedule-quality-api/pkg/middleware/requestid"
	"github.com/noah-isme/schedule-quality-api/pkg/storage"
)

// @title Schedule Quality API
// @version 1.0.0
// @description Scores timetable assignments, ranks placements and diagnoses existing schedules.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()
	checks := map[string]handler.ReadinessCheck{}

	var redisClient *redis.Client
	if cfg.Quality.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, recommendation cache disabled", zap.Error(err))
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, "schedule-quality", logr)
	defer cacheRepo.Close() //nolint:errcheck
	if redisClient != nil {
		checks["redis"] = cacheRepo.Ping
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, logr, service.CacheConfig{Enabled: redisClient != nil, TTL: cfg.Quality.CacheTTL})

	var db *sqlx.DB
	if cfg.Database.Enabled {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Warn("postgres unavailable, database training source disabled", zap.Error(err))
		} else {
			defer db.Close()
			checks["postgres"] = db.PingContext
		}
	}

	modelStore, err := storage.NewLocalStorage(cfg.Quality.ModelDir)
	if err != nil {
		logr.Fatal("failed to prepare model directory", zap.Error(err))
	}

	engine := scoring.NewEngine(logr)
	recommendationSvc := service.NewRecommendationService(engine, cacheSvc, metricsSvc, validate, logr, service.RecommendationConfig{
		TopK:     cfg.Quality.TopK,
		CacheTTL: cfg.Quality.CacheTTL,
	})
	engine.OnSwap(func(backend scoring.Backend) {
		metricsSvc.SetActiveBackend(string(backend), string(scoring.BackendTrained), string(scoring.BackendHeuristic))
		if err := recommendationSvc.InvalidateCache(context.Background()); err != nil {
			logr.Warn("invalidate recommendations after swap", zap.Error(err))
		}
	})
	metricsSvc.SetActiveBackend(string(scoring.BackendHeuristic), string(scoring.BackendTrained), string(scoring.BackendHeuristic))
	engine.LoadAsync(modelStore.Path(cfg.Quality.ModelFile))

	scoringSvc := service.NewScoringService(engine, metricsSvc, validate, logr)
	diagnosticsSvc := service.NewDiagnosticsService(engine, metricsSvc, validate, logr)

	var samples service.TrainingSampleReader
	if db != nil {
		samples = repository.NewTrainingSampleRepository(db)
	}
	trainingSvc := service.NewTrainingService(
		samples,
		modelStore,
		engine,
		nil,
		metricsSvc,
		validate,
		logr,
		service.TrainingServiceConfig{
			Enabled:          cfg.Training.Enabled,
			ModelFile:        cfg.Quality.ModelFile,
			SyntheticSamples: cfg.Training.SyntheticSamples,
			DatasetLimit:     cfg.Training.DatasetLimit,
			MaxRetries:       cfg.Training.Retries,
			Trainer: scoring.TrainerConfig{
				Epochs:       cfg.Training.Epochs,
				BatchSize:    cfg.Training.BatchSize,
				LearningRate: cfg.Training.LearningRate,
				L2:           cfg.Training.L2,
				Dropout:      cfg.Training.Dropout,
				Patience:     cfg.Training.Patience,
				Seed:         cfg.Training.Seed,
			},
		},
	)

	if cfg.Training.Enabled {
		queue := jobs.NewQueue("quality-training", trainingSvc.Handle, jobs.QueueConfig{
			Workers:     cfg.Training.Workers,
			BufferSize:  8,
			MaxRetries:  cfg.Training.Retries,
			RetryDelay:  10 * time.Second,
			Logger:      logr,
			OnExhausted: trainingSvc.Abandon,
		})
		queue.Start(ctx)
		defer queue.Stop()
		metricsSvc.TrackQueue("quality-training", queue.Stats)
		trainingSvc.AttachQueue(queue)
	}

	qualityHandler := handler.NewQualityHandler(scoringSvc, recommendationSvc, diagnosticsSvc, trainingSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))
	r.Use(internalmiddleware.ResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	qualityHandler.Register(r.Group(cfg.APIPrefix))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
}
