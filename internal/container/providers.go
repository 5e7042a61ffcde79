package container

import (
	"fmt"
	"net/http"

	"github.com/garyjia/invoice-approval/internal/application/dispatcher"
	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/application/service"
	infraLark "github.com/garyjia/invoice-approval/internal/infrastructure/external/lark"
	"github.com/garyjia/invoice-approval/internal/infrastructure/external/webhook"
	"github.com/garyjia/invoice-approval/internal/infrastructure/imaging"
	"github.com/garyjia/invoice-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/invoice-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/invoice-approval/internal/infrastructure/storage"
	"github.com/garyjia/invoice-approval/internal/infrastructure/worker"
	"github.com/garyjia/invoice-approval/migrations"
	"github.com/garyjia/invoice-approval/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// ExternalBundle holds clients for systems outside the process.
type ExternalBundle struct {
	ApprovalWebhook port.ApprovalWebhook
	OCR             port.OCRClient
	// Messenger is nil when Lark notifications are disabled
	Messenger port.LarkMessageSender
}

// ProvideDatabase opens the database and applies the embedded migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	db, err := database.New(cfg.Config, logger)
	if err != nil {
		return nil, err
	}

	if cfg.RunMigrations {
		if err := database.NewMigrator(db, logger).RunMigrations(migrations.FS); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repository implementations.
func ProvideRepositories(db *DatabaseBundle, logger *zap.Logger) *RepositoryBundle {
	sqlDB := db.DB.DB
	return &RepositoryBundle{
		Invoice:   repository.NewInvoiceRepository(sqlDB, logger),
		AuditLog:  repository.NewAuditLogRepository(sqlDB, logger),
		Duplicate: repository.NewDuplicateLogRepository(sqlDB, logger),
		Vendor:    repository.NewVendorRepository(sqlDB, logger),
		User:      repository.NewUserRepository(sqlDB, logger),
	}
}

// ProvideExternalClients creates the webhook clients and, when enabled, the Lark messenger.
func ProvideExternalClients(cfg *Config, logger *zap.Logger) *ExternalBundle {
	httpClient := &http.Client{}
	bundle := &ExternalBundle{
		ApprovalWebhook: webhook.NewApprovalClient(cfg.ApprovalWebhook, httpClient, logger.Named("approval-webhook")),
		OCR:             webhook.NewOCRClient(cfg.OCRWebhook, httpClient, logger.Named("ocr-webhook")),
	}

	if cfg.Lark.Enabled {
		client := infraLark.NewSDKClient(infraLark.Config{
			AppID:     cfg.Lark.AppID,
			AppSecret: cfg.Lark.AppSecret,
			BaseURL:   cfg.Lark.BaseURL,
		})
		bundle.Messenger = infraLark.NewMessenger(client, cfg.Lark.ReceiveIDType, logger.Named("lark"))
	}
	return bundle
}

// ProvideStorage creates the image store and preprocessor.
func ProvideStorage(cfg *Config, logger *zap.Logger) (port.FileStorage, port.ImagePreprocessor, error) {
	fileStorage, err := storage.NewLocalFileStorage(cfg.StorageDir, logger)
	if err != nil {
		return nil, nil, err
	}
	return fileStorage, imaging.NewPreprocessor(cfg.Imaging, logger), nil
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Repos        *RepositoryBundle
	TxManager    port.TransactionManager
	External     *ExternalBundle
	Storage      port.FileStorage
	Preprocessor port.ImagePreprocessor
	Dispatcher   dispatcher.Dispatcher
	Logger       *zap.Logger
}

// ProvideServices creates the application services and subscribes the
// notification service when a messenger is configured.
func ProvideServices(deps *ServiceDeps) *ServiceBundle {
	logger := &zapLoggerAdapter{logger: deps.Logger}

	bundle := &ServiceBundle{
		Invoice: service.NewInvoiceService(service.InvoiceServiceDeps{
			InvoiceRepo:   deps.Repos.Invoice,
			AuditRepo:     deps.Repos.AuditLog,
			DuplicateRepo: deps.Repos.Duplicate,
			TxManager:     deps.TxManager,
			Storage:       deps.Storage,
			Preprocessor:  deps.Preprocessor,
			OCR:           deps.External.OCR,
			Publisher:     deps.Dispatcher,
			Logger:        logger,
		}),
		Approval: service.NewApprovalService(
			deps.Repos.Invoice,
			deps.Repos.AuditLog,
			deps.Repos.Duplicate,
			deps.External.ApprovalWebhook,
			deps.Dispatcher,
			logger,
		),
		Vendor: service.NewVendorService(deps.Repos.Vendor, deps.Repos.Invoice, logger),
		Export: service.NewExportService(deps.Repos.Invoice, deps.Repos.AuditLog, logger),
	}

	if deps.External.Messenger != nil {
		bundle.Notification = service.NewNotificationService(deps.Repos.Invoice, deps.Repos.User, deps.External.Messenger, logger)
		bundle.Notification.Register(deps.Dispatcher)
	}
	return bundle
}

// ProvideWorkers creates the worker manager with the OCR worker registered.
func ProvideWorkers(cfg *WorkerConfig, repos *RepositoryBundle, invoices service.InvoiceService, logger *zap.Logger) *worker.Manager {
	manager := worker.NewManager(logger)
	if cfg.OCREnabled {
		manager.Register(worker.NewOCRWorker(cfg.OCR, repos.Invoice, invoices, logger.Named("ocr-worker")))
	}
	return manager
}
