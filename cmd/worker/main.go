package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/moodlog/backend/internal/config"
	"github.com/moodlog/backend/internal/infrastructure/buffer"
	"github.com/moodlog/backend/internal/infrastructure/monitor"
	pgInfra "github.com/moodlog/backend/internal/infrastructure/postgres"
	redisInfra "github.com/moodlog/backend/internal/infrastructure/redis"
	"github.com/moodlog/backend/internal/services"
	"github.com/moodlog/backend/internal/services/lifecycle"
	"github.com/moodlog/backend/pkg/logger"
	"github.com/moodlog/backend/repository/postgres"
	redisRepo "github.com/moodlog/backend/repository/redis"
	"github.com/moodlog/backend/usecase/diarylink"
	"github.com/moodlog/backend/usecase/progress"
	"github.com/moodlog/backend/usecase/sweep"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pgInfra.Close(pool, zapLogger)
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	eventQueue, err := buffer.Open(cfg.Buffer.Path)
	if err != nil {
		zapLogger.Fatal("failed to open event buffer", zap.Error(err))
	}
	manager.Register("buffer", func(ctx context.Context) error {
		return eventQueue.Close()
	})

	mon := monitor.New(pool, redisClient, eventQueue, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	participationRepo := postgres.NewParticipationRepository(pool)
	diaryRepo := postgres.NewDiaryCollaborator(pool)
	templateCatalog := redisRepo.NewTemplateCache(
		redisClient,
		postgres.NewTemplateCatalog(pool),
		cfg.Redis.TemplateTTL,
	)

	tracker := progress.New(participationRepo, diaryRepo, templateCatalog, zapLogger)

	location, err := time.LoadLocation(cfg.Sweep.Timezone)
	if err != nil {
		zapLogger.Warn("invalid sweep timezone, falling back to local",
			zap.String("timezone", cfg.Sweep.Timezone), zap.Error(err))
		location = time.Local
	}

	sweepLock := redisRepo.NewSweepLock(redisClient, cfg.Sweep.LockTTL)
	sweeper := sweep.New(participationRepo, templateCatalog, sweepLock, cfg.Sweep.Workers, zapLogger).
		WithClock(func() time.Time { return time.Now().In(location) })

	eventProcessor := services.NewEventProcessor(
		eventQueue,
		mon,
		tracker,
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  cfg.Buffer.BatchSize,
			MaxRetries: cfg.Buffer.MaxRetry,
			Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
		},
	)
	eventProcessor.Start()
	manager.Register("event_processor", func(ctx context.Context) error {
		eventProcessor.Stop(ctx)
		return nil
	})

	bufferBridge := services.NewBufferBridge(eventProcessor, zapLogger)
	linkHandler := diarylink.NewHandler(tracker, bufferBridge, zapLogger)

	consumer := services.NewEventConsumer(redisClient, linkHandler, cfg.AppName, zapLogger)
	consumer.Start(appCtx)
	manager.Register("event_consumer", func(ctx context.Context) error {
		consumer.Stop(ctx)
		return nil
	})

	if cfg.Sweep.Enabled {
		scheduler, err := services.NewSweepScheduler(
			sweeper,
			location,
			cfg.Sweep.Schedule,
			cfg.Context.SweepTimeout,
			zapLogger,
		)
		if err != nil {
			zapLogger.Fatal("invalid sweep schedule", zap.Error(err))
		}
		scheduler.Start()
		manager.Register("sweep_scheduler", func(ctx context.Context) error {
			scheduler.Stop(ctx)
			return nil
		})
	}

	if cfg.Metrics.Enabled {
		metricsServer := &http.Server{
			Addr:    cfg.Metrics.Addr,
			Handler: promhttp.Handler(),
		}
		go func() {
			zapLogger.Info("metrics listener started", zap.String("address", cfg.Metrics.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				zapLogger.Error("metrics listener crashed", zap.Error(err))
			}
		}()
		manager.Register("metrics", func(ctx context.Context) error {
			return metricsServer.Shutdown(ctx)
		})
	}

	zapLogger.Info("worker started", zap.String("app", cfg.AppName))

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
