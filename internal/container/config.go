// Package container wires the invoice approval system together and owns
// its lifecycle.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/invoice-approval/internal/infrastructure/external/webhook"
	"github.com/garyjia/invoice-approval/internal/infrastructure/imaging"
	"github.com/garyjia/invoice-approval/internal/infrastructure/worker"
	httpapi "github.com/garyjia/invoice-approval/internal/interfaces/http"
	"github.com/garyjia/invoice-approval/pkg/database"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	Server   httpapi.ServerConfig

	// Webhooks
	ApprovalWebhook webhook.Config
	OCRWebhook      webhook.Config

	Imaging    imaging.Config
	StorageDir string
	Lark       LarkConfig
	Worker     WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	database.Config

	// RunMigrations applies the embedded schema on start
	RunMigrations bool
}

// LarkConfig holds Lark notification settings.
type LarkConfig struct {
	Enabled       bool
	AppID         string
	AppSecret     string
	BaseURL       string
	ReceiveIDType string
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	OCREnabled bool
	OCR        worker.OCRWorkerConfig
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Config: database.Config{
				Path:            "data/invoices.db",
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
				BusyTimeout:     5 * time.Second,
			},
			RunMigrations: true,
		},
		Server:          httpapi.DefaultServerConfig(),
		ApprovalWebhook: webhook.Config{Timeout: 10 * time.Second, RetryDelay: 500 * time.Millisecond},
		OCRWebhook:      webhook.Config{Timeout: 30 * time.Second, RetryDelay: time.Second},
		Imaging:         imaging.DefaultConfig(),
		StorageDir:      "data/images",
		Lark:            LarkConfig{ReceiveIDType: "email"},
		Worker: WorkerConfig{
			OCREnabled: true,
			OCR:        worker.DefaultOCRWorkerConfig(),
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.StorageDir == "" {
		return fmt.Errorf("storage.dir is required")
	}
	if c.ApprovalWebhook.URL == "" {
		return fmt.Errorf("webhook.approval_url is required")
	}
	if c.Worker.OCREnabled && c.OCRWebhook.URL == "" {
		return fmt.Errorf("webhook.ocr_url is required when the OCR worker is enabled")
	}
	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required")
		}
	}
	return nil
}
