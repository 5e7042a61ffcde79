package port

import (
	"context"
	"time"

	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

// InvoiceRepository defines persistence operations for invoices.
// Reads return (nil, nil) when no row matches.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	GetOCRData(ctx context.Context, id string) (entity.OCRData, bool, error)
	UpdateOCRData(ctx context.Context, id string, data entity.OCRData) error

	// ApplyDecision moves approval_status from d.FromStatus to d.ToStatus only
	// if the row is still in d.FromStatus. It reports whether the row changed.
	ApplyDecision(ctx context.Context, d *entity.Decision) (bool, error)

	// AttachOCRResult writes the OCR outcome only while approval is pending.
	// It reports whether the row changed.
	AttachOCRResult(ctx context.Context, id string, result *entity.OCRResult, processedAt time.Time) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.Invoice, error)
	ListPendingApproval(ctx context.Context) ([]*entity.Invoice, error)
	ListDecided(ctx context.Context, limit int) ([]*entity.Invoice, error)
	ListProcessing(ctx context.Context, limit int) ([]*entity.Invoice, error)
}

// AuditLogRepository is append-only: it exposes no update or delete
type AuditLogRepository interface {
	Append(ctx context.Context, entry *entity.AuditLogEntry) error
	ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.AuditLogEntry, error)
}

// DuplicateLogRepository defines persistence operations for duplicate detection logs
type DuplicateLogRepository interface {
	Create(ctx context.Context, log *entity.DuplicateDetectionLog) error
	// LatestOpen returns the most recently detected non-overridden row, or nil
	LatestOpen(ctx context.Context, invoiceID string) (*entity.DuplicateDetectionLog, error)
	// MarkOverridden closes an open row. It reports false if the row was already overridden.
	MarkOverridden(ctx context.Context, id, actorID, reason string, at time.Time) (bool, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.DuplicateDetectionLog, error)
}

// VendorRepository reads the known-vendor directory
type VendorRepository interface {
	List(ctx context.Context) ([]entity.Vendor, error)
}

// UserRepository reads application users
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.AppUser, error)
	ListByRole(ctx context.Context, roles ...string) ([]*entity.AppUser, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
