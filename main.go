package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/thinkocapo/board/api"
	"github.com/thinkocapo/board/board"
	"github.com/thinkocapo/board/config"
	"github.com/thinkocapo/board/domain"
	"github.com/thinkocapo/board/observability"
	"github.com/thinkocapo/board/planning"
	"github.com/thinkocapo/board/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp := sdktrace.NewTracerProvider()
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("tracer shutdown")
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	tracer := observability.NewTracer(logger, cfg.Workspace.Scope(),
		observability.WithTracerProvider(tp),
		observability.WithMetrics(observability.NewMetrics(reg)),
		observability.WithMaxBreadcrumbs(cfg.Engine.MaxBreadcrumbs),
	)

	svc := board.NewService(board.NewStore(domain.SeedBoard()), tracer, board.Options{
		ValidateLatency:   cfg.Engine.ValidateLatency,
		CommitLatency:     cfg.Engine.CommitLatency,
		MetricsIterations: cfg.Engine.MetricsIterations,
		Logger:            logger,
	})
	planner := planning.NewPlanner(tracer, logger, domain.SeedSprints(), domain.SeedEpics())

	deps := api.Deps{
		Service:   svc,
		Planner:   planner,
		Hook:      tracer,
		Workspace: cfg.Workspace.ID,
		Keepalive: cfg.Server.SSEKeepalive,
		Queue: api.QueueConfig{
			Workers: cfg.Engine.AsyncWorkers,
			Buffer:  cfg.Engine.AsyncBuffer,
			Handoff: cfg.Engine.AsyncHandoff,
		},
		Logger: logger,
	}
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Fatalf("invalid redis url: %v", err)
		}
		rc := redis.NewClient(opts)
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis not reachable yet")
		}
		deps.Redis = rc
		deps.Cache = storage.NewMetricsCache(rc, cfg.Workspace.ID, cfg.Redis.MetricsTTL)
		deps.Publisher = storage.NewPublisher(rc, cfg.Workspace.ID)
		deps.Deduper = api.NewMoveDeduper(rc, cfg.Workspace.ID, cfg.Redis.IdempotencyTTL)
	}

	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = api.SonicSerializer{}
	e.Use(api.RecoverMiddleware(tracer, logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderContentEncoding, api.HeaderIdempotencyKey},
	}))
	api.RegisterMetrics(e, reg)
	api.Register(ctx, e, deps)

	go func() {
		if err := e.Start(cfg.Server.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()
	logger.WithFields(log.Fields{
		"addr":      cfg.Server.ListenAddr,
		"workspace": cfg.Workspace.ID,
		"redis":     deps.Redis != nil,
	}).Info("board service started")

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown")
	}
}

func newLogger(cfg config.LogConfig) *log.Logger {
	logger := log.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: log.FieldMap{
				log.FieldKeyTime: "ts",
				log.FieldKeyMsg:  "message",
			},
		})
	}
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}
