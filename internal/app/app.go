// Package app assembles the trading pipeline from a loaded config. Both the
// server and the operator CLI build on it so they share one wiring.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradingbot/internal/client/coinbase"
	"tradingbot/internal/config"
	"tradingbot/internal/db"
	"tradingbot/internal/marketdata"
	"tradingbot/internal/metrics"
	"tradingbot/internal/queue"
	gormrepository "tradingbot/internal/repository/gorm"
	"tradingbot/internal/risk"
	"tradingbot/internal/service"
	"tradingbot/internal/throttle"
)

type App struct {
	Config    config.Config
	Logger    *zap.Logger
	DB        *db.DB
	Store     *gormrepository.Store
	Redis     redis.UniversalClient
	Settings  *service.SystemSettingsService
	Metrics   *metrics.Prometheus
	Cache     *marketdata.TickerCache
	Coinbase  *coinbase.Client
	Risk      *risk.Manager
	Execution *service.ExecutionService
	Reporting *service.ReportingService
	Queue     queue.Queue
}

// New opens the database (migrating it), connects Redis when an address is
// configured and builds the services. Without Redis the throttle and the
// queue live in process memory. An unreachable Redis does not stop startup.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		_ = db.Close(dbConn)
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		DB:      dbConn,
		Store:   gormrepository.New(dbConn.Gorm),
		Metrics: metrics.NewPrometheus(),
		Cache:   marketdata.NewTickerCache(),
	}
	a.Settings = &service.SystemSettingsService{Repo: a.Store, Logger: logger.Named("settings")}
	if err := a.Settings.EnsureDefaultSwitches(ctx); err != nil {
		logger.Warn("init default system switches failed", zap.Error(err))
	}

	var throttleStore throttle.Store = throttle.NewMemoryStore()
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		a.Redis = client
		throttleStore = throttle.NewRedisStore(client)
		if err != nil {
			// The throttle keeps trying Redis per call and falls back to a
			// local window; queued tasks stay in process until restart.
			logger.Warn("redis unreachable; throttle degraded and queue in memory",
				zap.String("addr", addr), zap.Error(err))
			a.Queue = queue.NewMemoryQueue(1024)
		} else {
			a.Queue = queue.NewRedisQueue(client, cfg.Queue.Name)
		}
	} else {
		logger.Info("redis not configured; using in-memory throttle and queue")
		a.Queue = queue.NewMemoryQueue(1024)
	}

	a.Coinbase = coinbase.NewClient(cfg.Coinbase, logger.Named("coinbase"))
	market := &marketdata.Service{
		Client:  a.Coinbase,
		Cache:   a.Cache,
		Offline: !cfg.Trading.IsLive() && !cfg.Coinbase.HasCredentials(),
		MaxAge:  cfg.MarketData.TickerMaxAge,
		Logger:  logger,
	}

	a.Risk = &risk.Manager{
		Limits: risk.LimitsFromConfig(cfg.Trading),
		Equity: risk.StaticEquity(decimal.NewFromFloat(cfg.Trading.PaperCashUSD)),
		Repo:   a.Store,
		Logger: logger,
	}
	a.Execution = &service.ExecutionService{
		Repo:     a.Store,
		Risk:     a.Risk,
		Throttle: throttle.New(throttleStore, logger),
		Market:   market,
		Metrics:  a.Metrics,
		Flags:    a.Settings,
		Logger:   logger.Named("execution"),
		Config:   cfg.Trading,
	}
	if cfg.Trading.IsLive() {
		a.Execution.Broker = a.Coinbase
	}
	a.Reporting = &service.ReportingService{Repo: a.Store, Logger: logger, Flags: a.Settings}
	return a, nil
}

// TickerStream returns the websocket feed that keeps Cache warm, or nil when
// streaming is disabled.
func (a *App) TickerStream() *coinbase.TickerStream {
	if a == nil || !a.Config.MarketData.StreamEnabled {
		return nil
	}
	return coinbase.NewTickerStream(coinbase.TickerStreamOptions{
		URL:        a.Config.MarketData.StreamURL,
		ProductIDs: a.Config.Trading.BaseAssets,
		Logger:     a.Logger.Named("ticker"),
	})
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = db.Close(a.DB)
	}
}
