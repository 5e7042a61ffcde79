package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/invoice-approval/internal/application/dispatcher"
	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/application/service"
	"github.com/garyjia/invoice-approval/internal/infrastructure/worker"
	httpapi "github.com/garyjia/invoice-approval/internal/interfaces/http"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Container manages all application dependencies and lifecycle.
// Components are built in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	database     *DatabaseBundle
	repositories *RepositoryBundle
	external     *ExternalBundle
	fileStorage  port.FileStorage
	preprocessor port.ImagePreprocessor
	dispatcher   dispatcher.Dispatcher
	services     *ServiceBundle
	workers      *worker.Manager
	server       *httpapi.Server

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Invoice   port.InvoiceRepository
	AuditLog  port.AuditLogRepository
	Duplicate port.DuplicateLogRepository
	Vendor    port.VendorRepository
	User      port.UserRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Invoice  service.InvoiceService
	Approval service.ApprovalService
	Vendor   service.VendorService
	Export   service.ExportService
	// Notification is nil when Lark is disabled
	Notification service.NotificationService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// Call Start to build the components.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Container{config: cfg, logger: logger}, nil
}

// Start builds every component: database, external clients, storage,
// dispatcher, services, workers and the HTTP server. Nothing runs until Run.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	db, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.database = db
	c.repositories = ProvideRepositories(db, c.logger)
	c.logger.Info("Database initialized")

	c.external = ProvideExternalClients(c.config, c.logger)
	c.logger.Info("External clients initialized", zap.Bool("lark_enabled", c.external.Messenger != nil))

	c.fileStorage, c.preprocessor, err = ProvideStorage(c.config, c.logger)
	if err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	c.dispatcher = dispatcher.NewDispatcher(c.logger.Named("dispatcher"))
	c.services = ProvideServices(&ServiceDeps{
		Repos:        c.repositories,
		TxManager:    db.TransactionMgr,
		External:     c.external,
		Storage:      c.fileStorage,
		Preprocessor: c.preprocessor,
		Dispatcher:   c.dispatcher,
		Logger:       c.logger,
	})
	c.logger.Info("Application services initialized")

	c.workers = ProvideWorkers(&c.config.Worker, c.repositories, c.services.Invoice, c.logger)

	c.server = httpapi.NewServer(c.config.Server, httpapi.Services{
		Invoices:  c.services.Invoice,
		Approvals: c.services.Approval,
		Vendors:   c.services.Vendor,
		Export:    c.services.Export,
		Users:     c.repositories.User,
	}, &zapLoggerAdapter{logger: c.logger.Named("http")})

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Run serves HTTP and runs the workers until ctx is cancelled or one of
// them fails, which stops the other.
func (c *Container) Run(ctx context.Context) error {
	if !c.ready.Load() {
		return fmt.Errorf("container not started")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.workers.Run(gctx) })
	g.Go(func() error { return c.server.Start(gctx) })
	return g.Wait()
}

// Close shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("container already closed")
	}
	c.ready.Store(false)

	c.logger.Info("Closing container")

	var errs []error
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}
	if c.server != nil {
		if err := c.server.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop http server: %w", err))
		}
	}
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}
	if err := c.closeDatabase(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	if len(errs) > 0 {
		for _, err := range errs {
			c.logger.Error("Shutdown step failed", zap.Error(err))
		}
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) closeDatabase() error {
	if c.database == nil {
		return nil
	}
	err := c.database.DB.Close()
	c.database = nil
	return err
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.database == nil {
		set("database", false, "not initialized")
	} else if err := c.database.DB.PingContext(ctx); err != nil {
		set("database", false, fmt.Sprintf("ping failed: %v", err))
	} else {
		set("database", true, "")
	}

	if c.workers == nil {
		set("workers", false, "not initialized")
	} else {
		set("workers", c.workers.IsRunning(), fmt.Sprintf("worker count: %d", c.workers.Count()))
	}

	set("dispatcher", c.dispatcher != nil, "")
	if c.external != nil && c.external.Messenger != nil {
		set("lark", true, "enabled")
	} else {
		set("lark", true, "disabled")
	}
	return status
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Server returns the HTTP server.
func (c *Container) Server() *httpapi.Server {
	return c.server
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the key/value Logger interfaces of
// the service and http packages.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, ok := keysAndValues[i+1].(error); ok && key == "error" {
			fields = append(fields, zap.Error(err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
