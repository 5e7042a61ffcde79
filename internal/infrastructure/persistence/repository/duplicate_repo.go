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

const duplicateColumns = `
	id, invoice_id, detected_at, detected_by, webhook_payload,
	overridden, overridden_by, overridden_at, override_reason`

// DuplicateLogRepository implements port.DuplicateLogRepository
type DuplicateLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDuplicateLogRepository creates a new duplicate detection log repository
func NewDuplicateLogRepository(db *sql.DB, logger *zap.Logger) port.DuplicateLogRepository {
	return &DuplicateLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a duplicate detection row
func (r *DuplicateLogRepository) Create(ctx context.Context, log *entity.DuplicateDetectionLog) error {
	if log.ID == "" {
		log.ID = entity.NewID()
	}
	payload, err := marshalJSON(mapOrNil(log.WebhookPayload))
	if err != nil {
		return err
	}

	query := `INSERT INTO duplicate_detection_log (` + duplicateColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = executor(ctx, r.db).ExecContext(ctx, query,
		log.ID,
		log.InvoiceID,
		log.DetectedAt.UTC(),
		log.DetectedBy,
		payload,
		log.Overridden,
		nullString(log.OverriddenBy),
		nullTime(log.OverriddenAt),
		nullString(log.OverrideReason),
	)
	if err != nil {
		r.logger.Error("Failed to create duplicate log", zap.String("invoice_id", log.InvoiceID), zap.Error(err))
		return fmt.Errorf("failed to create duplicate log: %w", err)
	}
	return nil
}

// LatestOpen returns the most recent non-overridden row for the invoice, or nil
func (r *DuplicateLogRepository) LatestOpen(ctx context.Context, invoiceID string) (*entity.DuplicateDetectionLog, error) {
	query := `SELECT ` + duplicateColumns + `
		FROM duplicate_detection_log
		WHERE invoice_id = ? AND overridden = 0
		ORDER BY detected_at DESC, id DESC
		LIMIT 1`

	log, err := scanDuplicate(executor(ctx, r.db).QueryRowContext(ctx, query, invoiceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open duplicate log: %w", err)
	}
	return log, nil
}

// MarkOverridden closes an open row; it reports false when the row was not open
func (r *DuplicateLogRepository) MarkOverridden(ctx context.Context, id, actorID, reason string, at time.Time) (bool, error) {
	result, err := executor(ctx, r.db).ExecContext(ctx, `
		UPDATE duplicate_detection_log
		SET overridden = 1, overridden_by = ?, overridden_at = ?, override_reason = ?
		WHERE id = ? AND overridden = 0`,
		actorID, at.UTC(), reason, id)
	if err != nil {
		r.logger.Error("Failed to override duplicate log", zap.String("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to override duplicate log: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// ListByInvoice returns every duplicate row for the invoice, newest first
func (r *DuplicateLogRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.DuplicateDetectionLog, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx, `SELECT `+duplicateColumns+`
		FROM duplicate_detection_log
		WHERE invoice_id = ?
		ORDER BY detected_at DESC, id DESC`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list duplicate logs: %w", err)
	}
	defer rows.Close()

	var logs []*entity.DuplicateDetectionLog
	for rows.Next() {
		log, err := scanDuplicate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan duplicate log: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func scanDuplicate(row scanner) (*entity.DuplicateDetectionLog, error) {
	var (
		log                          entity.DuplicateDetectionLog
		payload                      sql.NullString
		overriddenBy, overrideReason sql.NullString
		overriddenAt                 sql.NullTime
	)
	if err := row.Scan(
		&log.ID,
		&log.InvoiceID,
		&log.DetectedAt,
		&log.DetectedBy,
		&payload,
		&log.Overridden,
		&overriddenBy,
		&overriddenAt,
		&overrideReason,
	); err != nil {
		return nil, err
	}

	var err error
	if log.WebhookPayload, err = unmarshalMap(payload); err != nil {
		return nil, err
	}
	log.OverriddenBy = overriddenBy.String
	log.OverriddenAt = timePtr(overriddenAt)
	log.OverrideReason = overrideReason.String
	return &log, nil
}

var _ port.DuplicateLogRepository = (*DuplicateLogRepository)(nil)
