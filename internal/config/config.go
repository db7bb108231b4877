package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Dart    DartConfig    `yaml:"dart" mapstructure:"dart"`
	SEC     SECConfig     `yaml:"sec" mapstructure:"sec"`
	Gateway GatewayConfig `yaml:"gateway" mapstructure:"gateway"`
	Monitor MonitorConfig `yaml:"monitor" mapstructure:"monitor"`
}

// StoreConfig configures the Postgres connection pool.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`

	ConnectAttempts  int `yaml:"connect_attempts" mapstructure:"connect_attempts"`
	ConnectBackoffMs int `yaml:"connect_backoff_ms" mapstructure:"connect_backoff_ms"`
}

// ServerConfig configures the trigger/gateway HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FetchConfig tunes the shared upstream HTTP fetcher.
type FetchConfig struct {
	// Wait for response headers and longest pause inside a body. Large
	// archive downloads are not capped as a whole.
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int `yaml:"max_retries" mapstructure:"max_retries"`

	// Consecutive failed requests to one host before it is skipped for
	// BreakerCooldownSecs.
	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// Timeout returns the fetch timeout as a duration.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// DartConfig configures the OpenDART (domestic) pipeline.
type DartConfig struct {
	APIKey       string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	ViewerURL    string `yaml:"viewer_url" mapstructure:"viewer_url"`
	PageSize     int    `yaml:"page_size" mapstructure:"page_size"`
	LookbackDays int    `yaml:"lookback_days" mapstructure:"lookback_days"`
}

// SECConfig configures the SEC Form 13F bulk dataset pipeline.
type SECConfig struct {
	ListingURL      string `yaml:"listing_url" mapstructure:"listing_url"`
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent       string `yaml:"user_agent" mapstructure:"user_agent"`
	Download        bool   `yaml:"download" mapstructure:"download"`
	ArchiveDir      string `yaml:"archive_dir" mapstructure:"archive_dir"`
	ValueCutoffYear int    `yaml:"value_cutoff_year" mapstructure:"value_cutoff_year"`
	BatchSize       int    `yaml:"batch_size" mapstructure:"batch_size"`
	MaxArchiveMB    int64  `yaml:"max_archive_mb" mapstructure:"max_archive_mb"`
}

// GatewayConfig configures the read-only SQL query gateway.
type GatewayConfig struct {
	AdminToken     string   `yaml:"admin_token" mapstructure:"admin_token"`
	MaxRows        int      `yaml:"max_rows" mapstructure:"max_rows"`
	MaxSQLLength   int      `yaml:"max_sql_length" mapstructure:"max_sql_length"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitorConfig configures run-history reporting and webhook alerts.
type MonitorConfig struct {
	StaleAfter           time.Duration `yaml:"stale_after" mapstructure:"stale_after"`
	WebhookURL           string        `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64       `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	LookbackHours        int           `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	CheckIntervalSecs    int           `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	MaxSuccessAge        time.Duration `yaml:"max_success_age" mapstructure:"max_success_age"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HOLDINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Env overrides only apply to keys with a default, even an empty one.
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("store.connect_attempts", 5)
	v.SetDefault("store.connect_backoff_ms", 500)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.breaker_threshold", 5)
	v.SetDefault("fetch.breaker_cooldown_secs", 30)
	v.SetDefault("dart.api_key", "")
	v.SetDefault("dart.base_url", "https://opendart.fss.or.kr/api")
	v.SetDefault("dart.viewer_url", "https://dart.fss.or.kr/dsaf001/main.do")
	v.SetDefault("dart.page_size", 100)
	v.SetDefault("dart.lookback_days", 3)
	v.SetDefault("sec.listing_url", "https://www.sec.gov/data-research/sec-markets-data/form-13f-data-sets")
	v.SetDefault("sec.base_url", "https://www.sec.gov")
	v.SetDefault("sec.user_agent", "InstitutionalPortfolio/0.1 (contact: admin@example.com)")
	v.SetDefault("sec.download", true)
	v.SetDefault("sec.archive_dir", "")
	v.SetDefault("sec.value_cutoff_year", 2022)
	v.SetDefault("sec.batch_size", 500)
	v.SetDefault("sec.max_archive_mb", 1024)
	v.SetDefault("gateway.admin_token", "")
	v.SetDefault("gateway.max_rows", 200)
	v.SetDefault("gateway.max_sql_length", 5000)
	v.SetDefault("gateway.allowed_origins", []string{"*"})
	v.SetDefault("monitor.stale_after", 2*time.Hour)
	v.SetDefault("monitor.webhook_url", "")
	v.SetDefault("monitor.failure_rate_threshold", 0.5)
	v.SetDefault("monitor.lookback_hours", 72)
	v.SetDefault("monitor.check_interval_secs", 900)
	v.SetDefault("monitor.max_success_age", 48*time.Hour)
}

// Validate checks the keys required by the given command mode before any
// work begins. Modes: "db" (store only), "upstream" (API credentials only),
// "refresh" (db + upstreams), "serve" (refresh + listener).
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "db", "upstream", "refresh", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode != "upstream" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	if mode != "db" {
		if c.Dart.APIKey == "" {
			errs = append(errs, "dart.api_key is required")
		}
		if c.SEC.UserAgent == "" {
			errs = append(errs, "sec.user_agent is required")
		}
		if c.Dart.PageSize < 1 {
			errs = append(errs, "dart.page_size must be > 0")
		}
		if c.SEC.BatchSize < 1 {
			errs = append(errs, "sec.batch_size must be > 0")
		}
	}

	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
