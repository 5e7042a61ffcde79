// Package http exposes the invoice workflow over a gin REST API.
// Handlers translate requests into application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	// CallbackSecret, when set, must be sent as X-Webhook-Secret on OCR callbacks
	CallbackSecret string
	RateLimit      RateLimitConfig
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxUploadBytes:  10 << 20,
		RateLimit:       RateLimitConfig{RequestsPerSecond: 20, Burst: 40},
	}
}

// Services groups the application services served over HTTP
type Services struct {
	Invoices  service.InvoiceService
	Approvals service.ApprovalService
	Vendors   service.VendorService
	Export    service.ExportService
	Users     port.UserRepository
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	def := DefaultServerConfig()
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = def.MaxUploadBytes
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}

	s := &Server{
		config:   config,
		router:   gin.New(),
		services: services,
		logger:   logger,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	if s.config.RateLimit.RequestsPerSecond > 0 {
		s.router.Use(RateLimiter(s.config.RateLimit))
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.config.MaxUploadBytes, s.logger)

	s.router.GET("/health", h.HealthCheck)

	v1 := s.router.Group("/api/v1")

	// OCR callbacks come from the webhook, not a signed-in user
	v1.POST("/invoices/:id/ocr-result", callbackAuth(s.config.CallbackSecret), h.AttachOCRResult)

	api := v1.Group("", SessionMiddleware(s.services.Users, s.logger))
	{
		invoices := api.Group("/invoices")
		invoices.POST("", RequireRoles(uploaderRoles...), h.UploadInvoice)
		invoices.GET("", h.ListMyInvoices)
		invoices.GET("/:id", h.GetInvoice)
		invoices.GET("/:id/audit-log", h.GetAuditLog)
		invoices.GET("/:id/duplicates", h.GetDuplicateLogs)
		invoices.GET("/:id/vendor-match", h.MatchVendor)

		approvals := api.Group("/approvals", RequireRoles(deciderRoles...))
		approvals.GET("/pending", h.ListPendingApprovals)
		approvals.PUT("/:id/fields", h.EditFields)
		approvals.POST("/:id/approve", h.Approve)
		approvals.POST("/:id/reject", h.Reject)

		history := api.Group("/history", RequireRoles(historyRoles...))
		history.GET("", h.ListHistory)
		history.GET("/export.xlsx", h.ExportHistory)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
