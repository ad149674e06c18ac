package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"tradingbot/internal/app"
	"tradingbot/internal/config"
	cronrunner "tradingbot/internal/cron"
	"tradingbot/internal/exception"
	"tradingbot/internal/handler"
	"tradingbot/internal/logger"
	"tradingbot/internal/service"
	"tradingbot/internal/worker"

	_ "tradingbot/docs"
)

func main() {
	cfgPath := os.Getenv("TB_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("TB_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log, zap.String("mode", cfg.Trading.Mode))
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("app init failed", zap.Error(err))
	}
	defer a.Close()

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(a.Metrics.Middleware())
	engine.Use(handler.AccessLog(logger.Named("http")))
	engine.Use(handler.RequireInternalToken(cfg.Server.InternalToken))

	healthHandler := &handler.HealthHandler{DB: a.DB.Gorm, Redis: a.Redis, BuildSHA: cfg.App.BuildSHA}
	healthHandler.Register(engine)
	handler.RegisterDocs(engine)
	webhookHandler := &handler.WebhookHandler{
		Alerts:  a.Store,
		Queue:   a.Queue,
		Metrics: a.Metrics,
		Secret:  cfg.Webhook.Secret,
		Logger:  logger.Named("webhook"),
	}
	webhookHandler.Register(engine)
	reportHandler := &handler.ReportHandler{Reports: a.Reporting}
	reportHandler.Register(engine)
	tradingHandler := &handler.TradingHandler{Repo: a.Store}
	tradingHandler.Register(engine)
	switchHandler := &handler.SwitchHandler{Repo: a.Store, Settings: a.Settings}
	switchHandler.Register(engine)

	engine.GET("/metrics", gin.WrapH(a.Metrics.Handler()))
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	cronRunner := cronrunner.New(logger.Named("cron"), ctx)
	if cfg.Cron.Enabled {
		_, err = cronRunner.Add("pnl_snapshot", cfg.Report.SnapshotCron, func(ctx context.Context) error {
			n, err := a.Reporting.SnapshotDaily(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			logger.Info("cron pnl snapshot ok", zap.Int("rows", n))
			return nil
		})
		if err != nil {
			logger.Warn("cron register pnl snapshot failed", zap.Error(err))
		}

		_, err = cronRunner.Add("dead_letters", "@every 1m", func(ctx context.Context) error {
			if !a.Settings.IsEnabled(ctx, service.FeatureDeadLetters, true) {
				return nil
			}
			n, err := a.Queue.DeadLetterLen(ctx)
			if err != nil {
				return err
			}
			a.Metrics.SetDeadLetters(n)
			if n > 0 {
				logger.Warn("dead-lettered trade tasks waiting", zap.Int64("count", n))
			}
			return nil
		})
		if err != nil {
			logger.Warn("cron register dead letter gauge failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	if stream := a.TickerStream(); stream != nil {
		go func() {
			if err := stream.Run(ctx, a.Cache.Update); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("ticker stream stopped", zap.Error(err))
			}
		}()
	}

	pool := &worker.Pool{
		Queue:       a.Queue,
		Handle:      a.Execution.Execute,
		Workers:     cfg.Queue.Workers,
		MaxAttempts: cfg.Queue.MaxAttempts,
		PollWait:    cfg.Queue.PollWait,
		Backoff: exception.Backoff{
			Min:    cfg.Queue.RetryMin,
			Max:    cfg.Queue.RetryMax,
			Factor: 2,
			Jitter: 0.2,
		},
		Logger: logger.Named("worker"),
	}

	errCh := make(chan error, 2)

	go func() {
		if err := pool.Run(ctx); err != nil {
			errCh <- err
		}
	}()

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
