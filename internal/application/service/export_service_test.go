package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportService_ExportHistory(t *testing.T) {
	decidedAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	approved := pendingInvoice("inv-approved")
	approved.ApprovalStatus = entity.ApprovalApproved
	approved.ApprovedBy = "mgr-1"
	approved.ApprovedAt = &decidedAt
	approved.Uploader = &entity.Uploader{FullName: "Sam Staff", Email: "sam@example.com"}
	approved.OCRData = entity.OCRData{"vendor_name": "Acme Supplies", "invoice_number": "INV-42", "total": 1200.5}

	rejected := pendingInvoice("inv-rejected")
	rejected.UploadedAt = approved.UploadedAt.Add(-time.Hour)
	rejected.ApprovalStatus = entity.ApprovalRejected
	rejected.RejectionComment = "wrong PO"

	invoices := newMemInvoiceRepo(approved, rejected, pendingInvoice("inv-pending"))
	audit := &memAuditRepo{}
	ctx := context.Background()
	require.NoError(t, audit.Append(ctx, &entity.AuditLogEntry{InvoiceID: "inv-approved", Action: entity.ActionApproved, UserName: "Meera Manager", CreatedAt: decidedAt}))
	require.NoError(t, audit.Append(ctx, &entity.AuditLogEntry{InvoiceID: "inv-rejected", Action: entity.ActionRejected, UserName: "Meera Manager", Comment: "wrong PO", CreatedAt: decidedAt}))

	svc := NewExportService(invoices, audit, &mockLogger{})
	var buf bytes.Buffer

	n, err := svc.ExportHistory(ctx, &buf, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(historySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, historyHeader, rows[0])
	assert.Equal(t, "inv-approved", rows[1][0])
	assert.Equal(t, "Sam Staff", rows[1][1])
	assert.Equal(t, "Acme Supplies", rows[1][2])
	assert.Equal(t, "INV-42", rows[1][3])
	assert.Equal(t, "1200.5", rows[1][4])
	assert.Equal(t, "approved", rows[1][6])
	assert.Equal(t, "inv-rejected", rows[2][0])
	assert.Equal(t, "wrong PO", rows[2][9])

	auditRows, err := f.GetRows(auditSheet)
	require.NoError(t, err)
	require.Len(t, auditRows, 3)
	assert.Equal(t, "approved", auditRows[1][1])
	assert.Equal(t, "rejected", auditRows[2][1])
}

func TestExportService_ListFailure(t *testing.T) {
	invoices := newMemInvoiceRepo()
	svc := NewExportService(&failingDecidedRepo{memInvoiceRepo: invoices}, &memAuditRepo{}, nil)

	_, err := svc.ExportHistory(context.Background(), &bytes.Buffer{}, 10)

	assert.Error(t, err)
}

type failingDecidedRepo struct {
	*memInvoiceRepo
}

func (r *failingDecidedRepo) ListDecided(ctx context.Context, limit int) ([]*entity.Invoice, error) {
	return nil, errors.New("database is locked")
}
