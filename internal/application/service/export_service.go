package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
	"github.com/xuri/excelize/v2"
)

const (
	historySheet = "History"
	auditSheet   = "Audit Log"
)

var historyHeader = []string{
	"Invoice ID", "Uploaded By", "Vendor", "Invoice Number", "Total",
	"Uploaded At", "Decision", "Decided By", "Decided At", "Rejection Comment",
}

var auditHeader = []string{"Invoice ID", "Action", "User", "Comment", "At"}

// ExportService renders decided invoices into an accountant workbook
type ExportService interface {
	ExportHistory(ctx context.Context, w io.Writer, limit int) (int, error)
}

type exportServiceImpl struct {
	invoiceRepo port.InvoiceRepository
	auditRepo   port.AuditLogRepository
	logger      Logger
}

// NewExportService creates a new ExportService
func NewExportService(invoiceRepo port.InvoiceRepository, auditRepo port.AuditLogRepository, logger Logger) ExportService {
	if logger == nil {
		logger = nopLogger{}
	}
	return &exportServiceImpl{invoiceRepo: invoiceRepo, auditRepo: auditRepo, logger: logger}
}

// ExportHistory writes an xlsx workbook with one row per decided invoice and
// a second sheet holding their audit trails. It returns the invoice count.
func (s *exportServiceImpl) ExportHistory(ctx context.Context, w io.Writer, limit int) (int, error) {
	invoices, err := s.invoiceRepo.ListDecided(ctx, limit)
	if err != nil {
		return 0, workflow.Persistence("list decided invoices", err)
	}

	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", historySheet); err != nil {
		return 0, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := file.NewSheet(auditSheet); err != nil {
		return 0, fmt.Errorf("create audit sheet: %w", err)
	}

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return 0, fmt.Errorf("create header style: %w", err)
	}
	if err := writeRow(file, historySheet, 1, toCells(historyHeader)); err != nil {
		return 0, err
	}
	if err := writeRow(file, auditSheet, 1, toCells(auditHeader)); err != nil {
		return 0, err
	}
	_ = file.SetCellStyle(historySheet, "A1", "J1", headerStyle)
	_ = file.SetCellStyle(auditSheet, "A1", "E1", headerStyle)
	_ = file.SetColWidth(historySheet, "A", "A", 38)
	_ = file.SetColWidth(historySheet, "B", "J", 20)

	auditRow := 2
	for i, inv := range invoices {
		if err := writeRow(file, historySheet, i+2, historyCells(inv)); err != nil {
			return 0, err
		}

		entries, err := s.auditRepo.ListByInvoice(ctx, inv.ID)
		if err != nil {
			return 0, workflow.Persistence("list audit log", err)
		}
		for _, e := range entries {
			cells := []interface{}{e.InvoiceID, e.Action, e.UserName, e.Comment, e.CreatedAt.Format(time.RFC3339)}
			if err := writeRow(file, auditSheet, auditRow, cells); err != nil {
				return 0, err
			}
			auditRow++
		}
	}

	if _, err := file.WriteTo(w); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("History exported", "invoices", len(invoices), "audit_entries", auditRow-2)
	return len(invoices), nil
}

func historyCells(inv *entity.Invoice) []interface{} {
	uploader := inv.UserID
	if inv.Uploader != nil && inv.Uploader.FullName != "" {
		uploader = inv.Uploader.FullName
	}
	decidedAt := ""
	if inv.ApprovedAt != nil {
		decidedAt = inv.ApprovedAt.Format(time.RFC3339)
	}

	var total interface{} = inv.OCRData.FirstString("total", "total_amount", "amount")
	if v, ok := inv.OCRData["total"].(float64); ok {
		total = v
	}

	return []interface{}{
		inv.ID,
		uploader,
		inv.OCRData.FirstString("vendor_name", "vendor"),
		inv.OCRData.FirstString("invoice_number", "invoice_no"),
		total,
		inv.UploadedAt.Format(time.RFC3339),
		inv.ApprovalStatus,
		inv.ApprovedBy,
		decidedAt,
		inv.RejectionComment,
	}
}

func writeRow(file *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := file.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
