package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"SwingScanner/internal/cache"
	"SwingScanner/internal/collector"
	"SwingScanner/internal/detector"
	"SwingScanner/internal/evaluator"
	"SwingScanner/internal/indicator"
	"SwingScanner/internal/model"
	"SwingScanner/internal/risk"
	"SwingScanner/internal/universe"
)

// DefaultPath is read when CONFIG_PATH is unset.
const DefaultPath = "configs/config.yaml"

// Config holds all application configuration.
type Config struct {
	LogLevel string `yaml:"log_level" validate:"oneof=trace debug info warn error"`
	Proxy    string `yaml:"proxy"`

	Universe   universe.Options  `yaml:"universe"`
	Indicators indicator.Params  `yaml:"indicators"`
	Rules      detector.Rules    `yaml:"setup_rules"`
	Risk       risk.Params       `yaml:"risk"`
	Data       collector.Options `yaml:"data"`
	Cache      cache.Options     `yaml:"cache"`
	Evaluator  evaluator.Options `yaml:"evaluator"`

	Sources struct {
		NSE     Source        `yaml:"nse"`
		Yahoo   Source        `yaml:"yahoo"`
		Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
	} `yaml:"sources"`

	Account      model.Account `yaml:"account"`
	AccountsFile string        `yaml:"accounts_file" validate:"required"`

	Alerts struct {
		Telegram struct {
			BotToken string `yaml:"bot_token"`
			ChatID   string `yaml:"chat_id" validate:"required_with=BotToken"`
		} `yaml:"telegram"`
		Webhook struct {
			URL string `yaml:"url" validate:"omitempty,url"`
		} `yaml:"webhook"`
		Kafka struct {
			Brokers  []string `yaml:"brokers" validate:"dive,hostname_port"`
			Topic    string   `yaml:"topic" validate:"required_with=Brokers"`
			ClientID string   `yaml:"client_id"`
		} `yaml:"kafka"`
		Email struct {
			Host     string   `yaml:"smtp_host"`
			Port     int      `yaml:"smtp_port" validate:"gte=0,lte=65535"`
			Username string   `yaml:"smtp_user"`
			Password string   `yaml:"smtp_password"`
			From     string   `yaml:"from" validate:"omitempty,email"`
			To       []string `yaml:"to" validate:"dive,email"`
		} `yaml:"email"`
	} `yaml:"alerts"`

	Schedule struct {
		ScanCron string `yaml:"scan_cron" validate:"required"`
	} `yaml:"schedule"`

	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Source configures one market data adapter.
type Source struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url" validate:"required_if=Enabled true"`
}

// Default returns the configuration used for anything the file leaves out.
func Default() *Config {
	cfg := &Config{
		LogLevel:     "info",
		Universe:     universe.Options{Name: "NIFTY50"},
		Indicators:   indicator.DefaultParams(),
		Rules:        detector.DefaultRules(),
		Risk:         risk.DefaultParams(),
		Data:         collector.DefaultOptions(),
		Cache:        cache.Options{Backend: "sqlite", Path: "data/cache.db", Retention: 30 * 24 * time.Hour},
		Evaluator:    evaluator.DefaultOptions(),
		AccountsFile: "data/accounts.json",
		Account: model.Account{
			Name:                "default",
			Size:                1_000_000,
			RiskPerTradePercent: 2,
			MaxPositionPercent:  20,
			AlertThreshold:      80,
		},
	}
	cfg.Sources.NSE = Source{Enabled: true, BaseURL: "https://www.nseindia.com"}
	cfg.Sources.Yahoo = Source{Enabled: true, BaseURL: "https://query1.finance.yahoo.com"}
	cfg.Sources.Timeout = 30 * time.Second
	cfg.Alerts.Kafka.ClientID = "swingscanner"
	cfg.Alerts.Email.Host = "smtp.gmail.com"
	cfg.Alerts.Email.Port = 587
	cfg.Schedule.ScanCron = "0 */30 9-15 * * 1-5"
	cfg.Database.SQLitePath = "data/swing_scanner.db"
	cfg.Metrics.Addr = ":9090"
	return cfg
}

// Path returns CONFIG_PATH or DefaultPath.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads config from a YAML file over the defaults, then applies
// environment variable overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Alerts.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Alerts.Telegram.ChatID = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Alerts.Webhook.URL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Alerts.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Alerts.Email.Password = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.Evaluator.BaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Backend = "redis"
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	return cfg, nil
}

var validate = validator.New()

// Validate checks the struct tags and the cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !c.Sources.NSE.Enabled && !c.Sources.Yahoo.Enabled {
		return fmt.Errorf("invalid config: at least one market data source must be enabled")
	}
	if em := c.Alerts.Email; len(em.To) > 0 && (em.Host == "" || em.From == "") {
		return fmt.Errorf("invalid config: alerts.email needs smtp_host and from when recipients are set")
	}
	if c.Cache.Backend == "sqlite" && c.Cache.Path == "" {
		return fmt.Errorf("invalid config: cache.path is required for the sqlite backend")
	}
	return nil
}
