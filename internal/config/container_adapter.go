package config

import (
	"github.com/garyjia/invoice-approval/internal/container"
	"github.com/garyjia/invoice-approval/internal/infrastructure/external/webhook"
	"github.com/garyjia/invoice-approval/internal/infrastructure/imaging"
	"github.com/garyjia/invoice-approval/internal/infrastructure/worker"
	httpapi "github.com/garyjia/invoice-approval/internal/interfaces/http"
	"github.com/garyjia/invoice-approval/pkg/database"
)

// ToContainerConfig converts the file based configuration into the
// container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Config: database.Config{
				Path:            c.Database.Path,
				MaxOpenConns:    c.Database.MaxOpenConns,
				MaxIdleConns:    c.Database.MaxIdleConns,
				ConnMaxLifetime: c.Database.ConnMaxLifetime,
				BusyTimeout:     c.Database.BusyTimeout,
			},
			RunMigrations: c.Database.RunMigrations,
		},
		Server: httpapi.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
			MaxUploadBytes:  c.Server.MaxUploadMB << 20,
			CallbackSecret:  c.Webhook.CallbackSecret,
			RateLimit: httpapi.RateLimitConfig{
				RequestsPerSecond: c.RateLimit.RequestsPerSecond,
				Burst:             c.RateLimit.Burst,
			},
		},
		ApprovalWebhook: webhook.Config{
			URL:        c.Webhook.ApprovalURL,
			Timeout:    c.Webhook.Timeout,
			RetryDelay: c.Webhook.RetryDelay,
		},
		OCRWebhook: webhook.Config{
			URL:        c.Webhook.OCRURL,
			Timeout:    c.Webhook.OCRTimeout,
			RetryDelay: c.Webhook.RetryDelay,
		},
		Imaging: imaging.Config{
			MaxDimension: c.OCR.MaxDimension,
			JPEGQuality:  c.OCR.JPEGQuality,
			Grayscale:    c.OCR.Grayscale,
			Contrast:     c.OCR.Contrast,
			Sharpen:      c.OCR.Sharpen,
		},
		StorageDir: c.Storage.Dir,
		Lark: container.LarkConfig{
			Enabled:       c.Lark.Enabled,
			AppID:         c.Lark.AppID,
			AppSecret:     c.Lark.AppSecret,
			BaseURL:       c.Lark.BaseURL,
			ReceiveIDType: c.Lark.ReceiveIDType,
		},
		Worker: container.WorkerConfig{
			OCREnabled: c.Worker.OCREnabled,
			OCR: worker.OCRWorkerConfig{
				PollInterval:   c.Worker.PollInterval,
				BatchSize:      c.Worker.BatchSize,
				Concurrency:    c.Worker.Concurrency,
				ProcessTimeout: c.Worker.ProcessTimeout,
			},
		},
	}
}
