package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	OCR       OCRConfig       `mapstructure:"ocr"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Lark      LarkConfig      `mapstructure:"lark"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadMB     int64         `mapstructure:"max_upload_mb"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	RunMigrations   bool          `mapstructure:"run_migrations"`
}

// WebhookConfig holds the approval and OCR webhook endpoints
type WebhookConfig struct {
	ApprovalURL    string        `mapstructure:"approval_url"`
	OCRURL         string        `mapstructure:"ocr_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	OCRTimeout     time.Duration `mapstructure:"ocr_timeout"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	CallbackSecret string        `mapstructure:"callback_secret"`
}

// OCRConfig holds image preprocessing settings applied before OCR
type OCRConfig struct {
	MaxDimension int     `mapstructure:"max_dimension"`
	JPEGQuality  int     `mapstructure:"jpeg_quality"`
	Grayscale    bool    `mapstructure:"grayscale"`
	Contrast     float64 `mapstructure:"contrast"`
	Sharpen      float64 `mapstructure:"sharpen"`
}

// StorageConfig holds image storage configuration
type StorageConfig struct {
	Dir string `mapstructure:"dir"`
}

// LarkConfig holds Lark notification configuration
type LarkConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	AppID         string `mapstructure:"app_id"`
	AppSecret     string `mapstructure:"app_secret"`
	BaseURL       string `mapstructure:"base_url"`
	ReceiveIDType string `mapstructure:"receive_id_type"`
}

// WorkerConfig holds OCR worker configuration
type WorkerConfig struct {
	OCREnabled     bool          `mapstructure:"ocr_enabled"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	BatchSize      int           `mapstructure:"batch_size"`
	Concurrency    int           `mapstructure:"concurrency"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// RateLimitConfig holds API rate limit configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// Load reads an optional .env file, then the YAML config, then environment
// overrides such as INVOICE_WEBHOOK_APPROVAL_URL.
func Load(configPath, envFile string) (*Config, error) {
	if envFile != "" {
		if err := gotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("INVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_upload_mb", 10)

	v.SetDefault("database.path", "data/invoices.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("database.run_migrations", true)

	v.SetDefault("webhook.timeout", 10*time.Second)
	v.SetDefault("webhook.ocr_timeout", 30*time.Second)
	v.SetDefault("webhook.retry_delay", 500*time.Millisecond)

	v.SetDefault("ocr.max_dimension", 2000)
	v.SetDefault("ocr.jpeg_quality", 85)
	v.SetDefault("ocr.grayscale", true)
	v.SetDefault("ocr.contrast", 20)
	v.SetDefault("ocr.sharpen", 1.0)

	v.SetDefault("storage.dir", "data/images")

	v.SetDefault("lark.enabled", false)
	v.SetDefault("lark.receive_id_type", "email")

	v.SetDefault("worker.ocr_enabled", true)
	v.SetDefault("worker.poll_interval", 10*time.Second)
	v.SetDefault("worker.batch_size", 10)
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.process_timeout", 60*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)
}

// bindEnvVars maps the conventional secret variable names
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("webhook.approval_url", "INVOICE_WEBHOOK_APPROVAL_URL", "APPROVAL_WEBHOOK_URL")
	_ = v.BindEnv("webhook.ocr_url", "INVOICE_WEBHOOK_OCR_URL", "OCR_WEBHOOK_URL")
	_ = v.BindEnv("webhook.callback_secret", "INVOICE_WEBHOOK_CALLBACK_SECRET", "WEBHOOK_CALLBACK_SECRET")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required")
	}
	if c.Webhook.ApprovalURL == "" {
		return fmt.Errorf("webhook.approval_url is required")
	}
	if c.Worker.OCREnabled && c.Webhook.OCRURL == "" {
		return fmt.Errorf("webhook.ocr_url is required when worker.ocr_enabled is set")
	}
	if c.Webhook.Timeout <= 0 {
		return fmt.Errorf("webhook.timeout must be positive")
	}
	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required when lark is enabled")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required when lark is enabled")
		}
		switch c.Lark.ReceiveIDType {
		case "email", "open_id":
		default:
			return fmt.Errorf("lark.receive_id_type must be email or open_id")
		}
	}
	return nil
}
