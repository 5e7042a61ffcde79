package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/event"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
)

// InvoiceService manages the invoice lifecycle from capture to OCR result
// and exposes the read queries used by each role.
type InvoiceService interface {
	CreateInvoice(ctx context.Context, session entity.Session, imageURL string) (*entity.Invoice, error)
	Upload(ctx context.Context, session entity.Session, filename string, content []byte) (*entity.Invoice, error)
	ProcessOCR(ctx context.Context, invoiceID string) error
	AttachOCRResult(ctx context.Context, invoiceID string, result *entity.OCRResult) error

	GetByID(ctx context.Context, invoiceID string) (*entity.Invoice, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.Invoice, error)
	ListPendingApproval(ctx context.Context) ([]*entity.Invoice, error)
	ListHistory(ctx context.Context, limit int) ([]*entity.Invoice, error)
	GetAuditLog(ctx context.Context, invoiceID string) ([]*entity.AuditLogEntry, error)
	GetDuplicateLogs(ctx context.Context, invoiceID string) ([]*entity.DuplicateDetectionLog, error)
}

type invoiceServiceImpl struct {
	invoiceRepo   port.InvoiceRepository
	auditRepo     port.AuditLogRepository
	duplicateRepo port.DuplicateLogRepository
	txManager     port.TransactionManager
	storage       port.FileStorage
	preprocessor  port.ImagePreprocessor
	ocr           port.OCRClient
	publisher     EventPublisher
	logger        Logger
	now           func() time.Time
}

// InvoiceServiceDeps groups the collaborators of the invoice service
type InvoiceServiceDeps struct {
	InvoiceRepo   port.InvoiceRepository
	AuditRepo     port.AuditLogRepository
	DuplicateRepo port.DuplicateLogRepository
	TxManager     port.TransactionManager
	Storage       port.FileStorage
	Preprocessor  port.ImagePreprocessor
	OCR           port.OCRClient
	Publisher     EventPublisher
	Logger        Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(deps InvoiceServiceDeps) InvoiceService {
	s := &invoiceServiceImpl{
		invoiceRepo:   deps.InvoiceRepo,
		auditRepo:     deps.AuditRepo,
		duplicateRepo: deps.DuplicateRepo,
		txManager:     deps.TxManager,
		storage:       deps.Storage,
		preprocessor:  deps.Preprocessor,
		ocr:           deps.OCR,
		publisher:     deps.Publisher,
		logger:        deps.Logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
	if s.publisher == nil {
		s.publisher = nopPublisher{}
	}
	if s.logger == nil {
		s.logger = nopLogger{}
	}
	return s
}

// CreateInvoice records a freshly captured invoice awaiting OCR
func (s *invoiceServiceImpl) CreateInvoice(ctx context.Context, session entity.Session, imageURL string) (*entity.Invoice, error) {
	return s.create(ctx, session, entity.NewID(), imageURL)
}

func (s *invoiceServiceImpl) create(ctx context.Context, session entity.Session, id, imageURL string) (*entity.Invoice, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, workflow.NewValidationError("image_url", "an image is required")
	}

	now := s.now()
	invoice := &entity.Invoice{
		ID:             id,
		UserID:         session.ActorID,
		ImageURL:       imageURL,
		Status:         entity.StatusProcessing,
		ApprovalStatus: entity.ApprovalPending,
		UploadedAt:     now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.invoiceRepo.Create(txCtx, invoice); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		return s.auditRepo.Append(txCtx, &entity.AuditLogEntry{
			InvoiceID: invoice.ID,
			UserID:    session.ActorID,
			UserName:  session.ActorName,
			Action:    entity.ActionCreated,
			CreatedAt: now,
		})
	})
	if err != nil {
		s.logger.Error("Failed to create invoice", "error", err, "user_id", session.ActorID)
		return nil, workflow.Persistence("create invoice", err)
	}

	s.publisher.Publish(ctx, event.NewEvent(event.TypeInvoiceCreated, invoice.ID, nil).WithActor(session.ActorID, session.ActorName))
	s.logger.Info("Invoice created", "invoice_id", invoice.ID, "user_id", session.ActorID)
	return invoice, nil
}

// Upload normalises and stores the image, then creates the invoice. The OCR
// worker picks it up from the processing queue.
func (s *invoiceServiceImpl) Upload(ctx context.Context, session entity.Session, filename string, content []byte) (*entity.Invoice, error) {
	if len(content) == 0 {
		return nil, workflow.NewValidationError("image", "uploaded file is empty")
	}

	prepared, err := s.preprocessor.Prepare(ctx, filename, content)
	if err != nil {
		return nil, workflow.NewValidationError("image", err.Error())
	}

	id := entity.NewID()
	imagePath := path.Join("invoices", session.ActorID, id+".jpg")
	if err := s.storage.Save(ctx, imagePath, prepared); err != nil {
		s.logger.Error("Failed to store invoice image", "error", err, "path", imagePath)
		return nil, fmt.Errorf("store image: %w", err)
	}

	invoice, err := s.create(ctx, session, id, imagePath)
	if err != nil {
		if delErr := s.storage.Delete(ctx, imagePath); delErr != nil {
			s.logger.Error("Failed to remove orphaned image", "error", delErr, "path", imagePath)
		}
		return nil, err
	}
	return invoice, nil
}

// ProcessOCR sends the stored image to the OCR webhook and attaches the result.
// Transport failures are recorded as a failed OCR result.
func (s *invoiceServiceImpl) ProcessOCR(ctx context.Context, invoiceID string) error {
	invoice, err := s.GetByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if invoice.Status != entity.StatusProcessing {
		return nil
	}

	image, err := s.storage.Read(ctx, invoice.ImageURL)
	if err != nil {
		return s.AttachOCRResult(ctx, invoiceID, &entity.OCRResult{Error: fmt.Sprintf("read image: %v", err)})
	}

	result, err := s.ocr.Extract(ctx, path.Base(invoice.ImageURL), image)
	if err != nil {
		s.logger.Error("OCR webhook failed", "error", err, "invoice_id", invoiceID)
		result = &entity.OCRResult{Error: err.Error()}
	}
	return s.AttachOCRResult(ctx, invoiceID, result)
}

// AttachOCRResult stores the OCR webhook response and completes processing
func (s *invoiceServiceImpl) AttachOCRResult(ctx context.Context, invoiceID string, result *entity.OCRResult) error {
	if result == nil {
		return workflow.NewValidationError("result", "OCR result is required")
	}
	invoice, err := s.GetByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if invoice.ApprovalStatus != entity.ApprovalPending {
		return ocrAfterDecision(invoice)
	}

	changed, err := s.invoiceRepo.AttachOCRResult(ctx, invoiceID, result, s.now())
	if err != nil {
		s.logger.Error("Failed to attach OCR result", "error", err, "invoice_id", invoiceID)
		return workflow.Persistence("attach ocr result", err)
	}
	if !changed {
		latest, err := s.GetByID(ctx, invoiceID)
		if err != nil {
			return err
		}
		return ocrAfterDecision(latest)
	}

	s.publisher.Publish(ctx, event.NewEvent(event.TypeInvoiceProcessed, invoiceID, map[string]interface{}{
		"success": result.Success,
	}))
	s.logger.Info("OCR result attached", "invoice_id", invoiceID, "success", result.Success)
	return nil
}

// GetByID returns the invoice or a NotFoundError
func (s *invoiceServiceImpl) GetByID(ctx context.Context, invoiceID string) (*entity.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, workflow.Persistence("load invoice", err)
	}
	if invoice == nil {
		return nil, &workflow.NotFoundError{InvoiceID: invoiceID}
	}
	return invoice, nil
}

func (s *invoiceServiceImpl) ListByUser(ctx context.Context, userID string) ([]*entity.Invoice, error) {
	invoices, err := s.invoiceRepo.ListByUser(ctx, userID)
	return invoices, workflow.Persistence("list invoices", err)
}

// ListPendingApproval returns OCR-completed invoices awaiting a decision, newest first
func (s *invoiceServiceImpl) ListPendingApproval(ctx context.Context) ([]*entity.Invoice, error) {
	invoices, err := s.invoiceRepo.ListPendingApproval(ctx)
	return invoices, workflow.Persistence("list pending invoices", err)
}

func (s *invoiceServiceImpl) ListHistory(ctx context.Context, limit int) ([]*entity.Invoice, error) {
	invoices, err := s.invoiceRepo.ListDecided(ctx, limit)
	return invoices, workflow.Persistence("list decided invoices", err)
}

// GetAuditLog returns the invoice's audit trail, newest first
func (s *invoiceServiceImpl) GetAuditLog(ctx context.Context, invoiceID string) ([]*entity.AuditLogEntry, error) {
	entries, err := s.auditRepo.ListByInvoice(ctx, invoiceID)
	return entries, workflow.Persistence("list audit log", err)
}

func (s *invoiceServiceImpl) GetDuplicateLogs(ctx context.Context, invoiceID string) ([]*entity.DuplicateDetectionLog, error) {
	logs, err := s.duplicateRepo.ListByInvoice(ctx, invoiceID)
	return logs, workflow.Persistence("list duplicate logs", err)
}

func ocrAfterDecision(invoice *entity.Invoice) error {
	return &workflow.InvalidTransitionError{
		InvoiceID: invoice.ID,
		Current:   workflow.State(invoice.ApprovalStatus),
		Trigger:   workflow.TriggerAttachOCR,
	}
}
