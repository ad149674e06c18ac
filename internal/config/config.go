package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ModePaper = "paper"
	ModeLive  = "live"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Cron       CronConfig       `mapstructure:"cron"`
	Trading    TradingConfig    `mapstructure:"trading"`
	Coinbase   CoinbaseConfig   `mapstructure:"coinbase"`
	MarketData MarketDataConfig `mapstructure:"market_data"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Report     ReportConfig     `mapstructure:"report"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	BuildSHA string `mapstructure:"build_sha"`
}

type ServerConfig struct {
	HTTPAddr      string `mapstructure:"http_addr"`
	InternalToken string `mapstructure:"internal_token"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

// RedisConfig backs the throttle store and the trade queue. An empty Addr
// selects the in-process implementations.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type QueueConfig struct {
	Name        string        `mapstructure:"name"`
	Workers     int           `mapstructure:"workers"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	PollWait    time.Duration `mapstructure:"poll_wait"`
	RetryMin    time.Duration `mapstructure:"retry_min"`
	RetryMax    time.Duration `mapstructure:"retry_max"`
}

type CronConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type TradingConfig struct {
	Mode             string        `mapstructure:"mode"`
	BaseAssets       []string      `mapstructure:"base_assets"`
	MaxPosPct        float64       `mapstructure:"max_pos_pct"`
	MaxDailyRiskPct  float64       `mapstructure:"max_daily_risk_pct"`
	OrderSlippagePct float64       `mapstructure:"order_slippage_pct"`
	ThrottleWindow   time.Duration `mapstructure:"throttle_window"`
	PaperCashUSD     float64       `mapstructure:"paper_cash_usd"`
}

type CoinbaseConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	APISecret    string        `mapstructure:"api_secret"`
	Passphrase   string        `mapstructure:"passphrase"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RetryMax     int           `mapstructure:"retry_max"`
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
}

type MarketDataConfig struct {
	StreamEnabled bool          `mapstructure:"stream_enabled"`
	StreamURL     string        `mapstructure:"stream_url"`
	TickerMaxAge  time.Duration `mapstructure:"ticker_max_age"`
}

type WebhookConfig struct {
	Secret string `mapstructure:"secret"`
}

type ReportConfig struct {
	SnapshotCron string `mapstructure:"snapshot_cron"`
}

// HasCredentials reports whether a brokerage key is configured.
func (c CoinbaseConfig) HasCredentials() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

func (c TradingConfig) IsLive() bool {
	return strings.EqualFold(strings.TrimSpace(c.Mode), ModeLive)
}

func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Trading.Mode)) {
	case ModePaper, ModeLive:
	default:
		return fmt.Errorf("trading.mode must be paper or live, got %q", c.Trading.Mode)
	}
	if c.Trading.PaperCashUSD <= 0 {
		return fmt.Errorf("trading.paper_cash_usd must be positive")
	}
	if c.Trading.MaxPosPct <= 0 || c.Trading.MaxDailyRiskPct <= 0 {
		return fmt.Errorf("trading risk percentages must be positive")
	}
	if strings.TrimSpace(c.Webhook.Secret) == "" {
		return fmt.Errorf("webhook.secret is required")
	}
	if c.Trading.IsLive() && !c.Coinbase.HasCredentials() {
		return fmt.Errorf("live mode requires coinbase.api_key")
	}
	return nil
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.build_sha", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.internal_token", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("queue.name", "tradingbot:trades")
	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.max_attempts", 5)
	v.SetDefault("queue.poll_wait", "5s")
	v.SetDefault("queue.retry_min", "1s")
	v.SetDefault("queue.retry_max", "30s")
	v.SetDefault("cron.enabled", true)

	v.SetDefault("trading.mode", ModePaper)
	v.SetDefault("trading.base_assets", []string{"BTC-USD"})
	v.SetDefault("trading.max_pos_pct", 0.25)
	v.SetDefault("trading.max_daily_risk_pct", 0.5)
	v.SetDefault("trading.order_slippage_pct", 0.1)
	v.SetDefault("trading.throttle_window", "30s")
	v.SetDefault("trading.paper_cash_usd", 100000)

	v.SetDefault("coinbase.base_url", "https://api.coinbase.com/api/v3")
	v.SetDefault("coinbase.api_key", "")
	v.SetDefault("coinbase.api_secret", "")
	v.SetDefault("coinbase.passphrase", "")
	v.SetDefault("coinbase.timeout", "10s")
	v.SetDefault("coinbase.retry_max", 3)
	v.SetDefault("coinbase.retry_wait_min", "1s")
	v.SetDefault("coinbase.retry_wait_max", "4s")

	v.SetDefault("market_data.stream_enabled", false)
	v.SetDefault("market_data.stream_url", "wss://ws-feed.exchange.coinbase.com")
	v.SetDefault("market_data.ticker_max_age", "10s")

	v.SetDefault("webhook.secret", "")
	v.SetDefault("report.snapshot_cron", "0 55 23 * * *")

	// CI images export the commit as GIT_SHA.
	_ = v.BindEnv("app.build_sha", "TB_APP_BUILD_SHA", "GIT_SHA")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Trading.Mode = strings.ToLower(strings.TrimSpace(cfg.Trading.Mode))

	return cfg, nil
}
