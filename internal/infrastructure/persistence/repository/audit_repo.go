package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"go.uber.org/zap"
)

// AuditLogRepository implements port.AuditLogRepository.
// The table rejects UPDATE and DELETE through triggers.
type AuditLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *sql.DB, logger *zap.Logger) port.AuditLogRepository {
	return &AuditLogRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts one audit entry
func (r *AuditLogRepository) Append(ctx context.Context, entry *entity.AuditLogEntry) error {
	if entry.ID == "" {
		entry.ID = entity.NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var changes interface{}
	if entry.Changes != nil {
		changes = entry.Changes
	}
	raw, err := marshalJSON(changes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO invoice_audit_log (id, invoice_id, user_id, user_name, action, changes, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = executor(ctx, r.db).ExecContext(ctx, query,
		entry.ID,
		entry.InvoiceID,
		entry.UserID,
		entry.UserName,
		entry.Action,
		raw,
		nullString(entry.Comment),
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to append audit entry",
			zap.String("invoice_id", entry.InvoiceID),
			zap.String("action", entry.Action),
			zap.Error(err))
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListByInvoice returns the invoice's entries, newest first
func (r *AuditLogRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.AuditLogEntry, error) {
	query := `
		SELECT id, invoice_id, user_id, user_name, action, changes, comment, created_at
		FROM invoice_audit_log
		WHERE invoice_id = ?
		ORDER BY created_at DESC, id DESC
	`
	rows, err := executor(ctx, r.db).QueryContext(ctx, query, invoiceID)
	if err != nil {
		r.logger.Error("Failed to list audit log", zap.String("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	defer rows.Close()

	var entries []*entity.AuditLogEntry
	for rows.Next() {
		var (
			entry   entity.AuditLogEntry
			changes sql.NullString
			comment sql.NullString
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.InvoiceID,
			&entry.UserID,
			&entry.UserName,
			&entry.Action,
			&changes,
			&comment,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		if changes.Valid {
			entry.Changes = &entity.FieldChanges{}
			if err := unmarshalInto(changes.String, entry.Changes); err != nil {
				return nil, err
			}
		}
		entry.Comment = comment.String
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

var _ port.AuditLogRepository = (*AuditLogRepository)(nil)
