package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/flowboard/backend/api/handler"
	"github.com/flowboard/backend/internal/config"
	"github.com/flowboard/backend/internal/infrastructure/monitor"
	"github.com/flowboard/backend/internal/infrastructure/outbox"
	pgInfra "github.com/flowboard/backend/internal/infrastructure/postgres"
	redisInfra "github.com/flowboard/backend/internal/infrastructure/redis"
	"github.com/flowboard/backend/internal/middleware"
	"github.com/flowboard/backend/internal/realtime"
	"github.com/flowboard/backend/internal/router"
	"github.com/flowboard/backend/internal/services"
	"github.com/flowboard/backend/internal/services/lifecycle"
	"github.com/flowboard/backend/pkg/httpcontext"
	"github.com/flowboard/backend/pkg/logger"
	"github.com/flowboard/backend/repository/postgres"
	redisRepo "github.com/flowboard/backend/repository/redis"
	activityUC "github.com/flowboard/backend/usecase/activity"
	assignUC "github.com/flowboard/backend/usecase/assign"
	authUC "github.com/flowboard/backend/usecase/auth"
	conflictUC "github.com/flowboard/backend/usecase/conflict"
	taskUC "github.com/flowboard/backend/usecase/task"
	userUC "github.com/flowboard/backend/usecase/user"
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
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	outboxStore, err := outbox.Open(cfg.Outbox.Path, "activity")
	if err != nil {
		zapLogger.Fatal("failed to open outbox store", zap.Error(err))
	}
	manager.Register("outbox", func(ctx context.Context) error {
		return outboxStore.Close()
	})

	mon := monitor.New(pool, redisClient, outboxStore, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	userRepo := postgres.NewUserRepository(pool)
	taskRepo := postgres.NewTaskRepository(pool)
	activityRepo := postgres.NewActivityRepository(pool)
	sessionRepo := redisRepo.NewSessionRepository(redisClient, cfg.JWT.TokenTTL)

	hub := realtime.NewHub(zapLogger)

	var recorder *activityUC.Recorder
	processor := services.NewActivityProcessor(
		outboxStore,
		mon,
		activityRepo,
		func(ctx context.Context, olderThan time.Time) (int64, error) {
			return recorder.Prune(ctx, olderThan)
		},
		zapLogger,
		services.ProcessorConfig{
			Interval:      cfg.Outbox.SyncInterval,
			BatchSize:     50,
			MaxRetries:    cfg.Outbox.MaxRetry,
			PruneSchedule: cfg.Activity.PruneSchedule,
			RetentionDays: cfg.Activity.RetentionDays,
		},
	)
	recorder = activityUC.NewRecorder(activityRepo, processor, hub, cfg.Activity.RingSize, zapLogger)

	conflictCtrl := conflictUC.NewController(zapLogger)
	assignEngine := assignUC.New(userRepo, taskRepo, zapLogger)

	taskUseCase := taskUC.New(
		taskRepo,
		assignEngine,
		conflictCtrl,
		recorder,
		hub,
		taskUC.Limits{
			MaxTitleLen:    cfg.Board.MaxTitleLen,
			MaxDescLen:     cfg.Board.MaxDescLen,
			MaxTags:        cfg.Board.MaxTags,
			MaxTagLen:      cfg.Board.MaxTagLen,
			MaxCommentLen:  cfg.Board.MaxCommentLen,
			ReservedTitles: cfg.Board.ReservedTitles,
		},
		zapLogger,
	)
	authUseCase := authUC.New(userRepo, sessionRepo, recorder, authUC.Config{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		TokenTTL: cfg.JWT.TokenTTL,
	}, zapLogger)
	userUseCase := userUC.New(userRepo, zapLogger)

	gateway := realtime.NewGateway(hub, authUseCase, taskUseCase, conflictCtrl, recorder, realtime.Config{
		OutboundQueueDepth: cfg.Board.OutboundQueueDepth,
		RequestTimeout:     cfg.Context.RequestTimeout,
	}, zapLogger)

	processor.SetSweeper(conflictCtrl)
	processor.Start()
	manager.Register("activity_processor", func(ctx context.Context) error {
		processor.Stop(ctx)
		return nil
	})

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:     apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger),
		Task:     apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		User:     apiHandler.NewUserHandler(userUseCase, ctxAdapter, zapLogger),
		Activity: apiHandler.NewActivityHandler(recorder, ctxAdapter, zapLogger),
		Health:   apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
		WS:       gateway.Handle,
	}

	authMiddleware := middleware.Auth(authUseCase, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
