package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"go.uber.org/zap"
)

const invoiceColumns = `
	i.id, i.user_id, i.image_url, i.status, i.approval_status,
	i.ocr_data, i.webhook_response, i.uploaded_at, i.processed_at,
	i.approved_by, i.approved_at, i.rejection_comment,
	i.created_at, i.updated_at, u.full_name, u.email`

const invoiceFrom = `
	FROM invoices i
	LEFT JOIN users u ON u.id = i.user_id`

// InvoiceRepository implements port.InvoiceRepository
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) port.InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new invoice, assigning an ID when empty
func (r *InvoiceRepository) Create(ctx context.Context, invoice *entity.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = entity.NewID()
	}
	ocrData, err := marshalJSON(mapOrNil(invoice.OCRData))
	if err != nil {
		return err
	}
	webhookResponse, err := marshalJSON(mapOrNil(invoice.WebhookResponse))
	if err != nil {
		return err
	}

	query := `
		INSERT INTO invoices (
			id, user_id, image_url, status, approval_status,
			ocr_data, webhook_response, uploaded_at, processed_at,
			approved_by, approved_at, rejection_comment, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = executor(ctx, r.db).ExecContext(ctx, query,
		invoice.ID,
		invoice.UserID,
		invoice.ImageURL,
		invoice.Status,
		invoice.ApprovalStatus,
		ocrData,
		webhookResponse,
		invoice.UploadedAt.UTC(),
		nullTime(invoice.ProcessedAt),
		nullString(invoice.ApprovedBy),
		nullTime(invoice.ApprovedAt),
		nullString(invoice.RejectionComment),
		invoice.CreatedAt.UTC(),
		invoice.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create invoice",
			zap.String("invoice_id", invoice.ID),
			zap.String("user_id", invoice.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

// GetByID retrieves an invoice with its uploader, or nil when absent
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + invoiceFrom + ` WHERE i.id = ?`

	invoice, err := scanInvoice(executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice", zap.String("invoice_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

// GetOCRData returns the invoice's OCR map and whether the invoice exists
func (r *InvoiceRepository) GetOCRData(ctx context.Context, id string) (entity.OCRData, bool, error) {
	var raw sql.NullString
	err := executor(ctx, r.db).QueryRowContext(ctx, `SELECT ocr_data FROM invoices WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get ocr data: %w", err)
	}
	m, err := unmarshalMap(raw)
	if err != nil {
		return nil, true, err
	}
	return entity.OCRData(m), true, nil
}

// UpdateOCRData replaces the OCR payload
func (r *InvoiceRepository) UpdateOCRData(ctx context.Context, id string, data entity.OCRData) error {
	raw, err := marshalJSON(mapOrNil(data))
	if err != nil {
		return err
	}
	result, err := executor(ctx, r.db).ExecContext(ctx,
		`UPDATE invoices SET ocr_data = ?, updated_at = ? WHERE id = ?`,
		raw, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update ocr data", zap.String("invoice_id", id), zap.Error(err))
		return fmt.Errorf("failed to update ocr data: %w", err)
	}
	return requireOneRow(result, "invoice", id)
}

// ApplyDecision updates the approval columns only while approval_status still
// equals d.FromStatus, making the transition a compare-and-swap.
func (r *InvoiceRepository) ApplyDecision(ctx context.Context, d *entity.Decision) (bool, error) {
	args := []interface{}{
		d.ToStatus,
		d.ActorID,
		d.DecidedAt.UTC(),
		nullString(d.RejectionComment),
		time.Now().UTC(),
	}
	set := `approval_status = ?, approved_by = ?, approved_at = ?, rejection_comment = ?, updated_at = ?`
	if d.Fields != nil {
		raw, err := marshalJSON(map[string]interface{}(d.Fields))
		if err != nil {
			return false, err
		}
		set += `, ocr_data = ?`
		args = append(args, raw)
	}
	args = append(args, d.InvoiceID, d.FromStatus)

	result, err := executor(ctx, r.db).ExecContext(ctx,
		`UPDATE invoices SET `+set+` WHERE id = ? AND approval_status = ?`, args...)
	if err != nil {
		r.logger.Error("Failed to apply decision",
			zap.String("invoice_id", d.InvoiceID),
			zap.String("to", d.ToStatus),
			zap.Error(err))
		return false, fmt.Errorf("failed to apply decision: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// AttachOCRResult stores the OCR webhook response and finishes processing.
// Only invoices still awaiting a decision are touched; it reports whether the
// row changed.
func (r *InvoiceRepository) AttachOCRResult(ctx context.Context, id string, result *entity.OCRResult, processedAt time.Time) (bool, error) {
	response, err := marshalJSON(result)
	if err != nil {
		return false, err
	}
	status := entity.StatusFailed
	if result.Success {
		status = entity.StatusCompleted
	}

	args := []interface{}{status, response, processedAt.UTC(), time.Now().UTC()}
	set := `status = ?, webhook_response = ?, processed_at = ?, updated_at = ?`
	if result.Data != nil {
		data, err := marshalJSON(result.Data)
		if err != nil {
			return false, err
		}
		set += `, ocr_data = ?`
		args = append(args, data)
	}
	args = append(args, id, entity.ApprovalPending)

	res, err := executor(ctx, r.db).ExecContext(ctx,
		`UPDATE invoices SET `+set+` WHERE id = ? AND approval_status = ?`, args...)
	if err != nil {
		r.logger.Error("Failed to attach ocr result", zap.String("invoice_id", id), zap.Error(err))
		return false, fmt.Errorf("failed to attach ocr result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// ListByUser returns the user's invoices, newest upload first
func (r *InvoiceRepository) ListByUser(ctx context.Context, userID string) ([]*entity.Invoice, error) {
	return r.list(ctx, ` WHERE i.user_id = ? ORDER BY i.uploaded_at DESC`, userID)
}

// ListPendingApproval returns OCR-completed invoices awaiting a decision, newest first
func (r *InvoiceRepository) ListPendingApproval(ctx context.Context) ([]*entity.Invoice, error) {
	return r.list(ctx, ` WHERE i.approval_status = ? AND i.status = ? ORDER BY i.uploaded_at DESC`,
		entity.ApprovalPending, entity.StatusCompleted)
}

// ListDecided returns approved and rejected invoices, newest upload first
func (r *InvoiceRepository) ListDecided(ctx context.Context, limit int) ([]*entity.Invoice, error) {
	return r.list(ctx, ` WHERE i.approval_status <> ? ORDER BY i.uploaded_at DESC LIMIT ?`,
		entity.ApprovalPending, limitOrAll(limit))
}

// ListProcessing returns invoices still waiting for OCR, oldest first
func (r *InvoiceRepository) ListProcessing(ctx context.Context, limit int) ([]*entity.Invoice, error) {
	return r.list(ctx, ` WHERE i.status = ? ORDER BY i.uploaded_at ASC LIMIT ?`,
		entity.StatusProcessing, limitOrAll(limit))
}

func (r *InvoiceRepository) list(ctx context.Context, where string, args ...interface{}) ([]*entity.Invoice, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx, `SELECT `+invoiceColumns+invoiceFrom+where, args...)
	if err != nil {
		r.logger.Error("Failed to list invoices", zap.Error(err))
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*entity.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

func scanInvoice(row scanner) (*entity.Invoice, error) {
	var (
		invoice                      entity.Invoice
		ocrData, webhookResponse     sql.NullString
		approvedBy, rejectionComment sql.NullString
		uploaderName, uploaderEmail  sql.NullString
		processedAt, approvedAt      sql.NullTime
	)
	err := row.Scan(
		&invoice.ID,
		&invoice.UserID,
		&invoice.ImageURL,
		&invoice.Status,
		&invoice.ApprovalStatus,
		&ocrData,
		&webhookResponse,
		&invoice.UploadedAt,
		&processedAt,
		&approvedBy,
		&approvedAt,
		&rejectionComment,
		&invoice.CreatedAt,
		&invoice.UpdatedAt,
		&uploaderName,
		&uploaderEmail,
	)
	if err != nil {
		return nil, err
	}

	data, err := unmarshalMap(ocrData)
	if err != nil {
		return nil, err
	}
	if data != nil {
		invoice.OCRData = entity.OCRData(data)
	}
	if invoice.WebhookResponse, err = unmarshalMap(webhookResponse); err != nil {
		return nil, err
	}

	invoice.ProcessedAt = timePtr(processedAt)
	invoice.ApprovedAt = timePtr(approvedAt)
	invoice.ApprovedBy = approvedBy.String
	invoice.RejectionComment = rejectionComment.String
	if uploaderName.Valid || uploaderEmail.Valid {
		invoice.Uploader = &entity.Uploader{FullName: uploaderName.String, Email: uploaderEmail.String}
	}
	return &invoice, nil
}

func mapOrNil(m map[string]interface{}) interface{} {
	if m == nil {
		return nil
	}
	return m
}

func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func requireOneRow(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, sql.ErrNoRows)
	}
	return nil
}

var _ port.InvoiceRepository = (*InvoiceRepository)(nil)
