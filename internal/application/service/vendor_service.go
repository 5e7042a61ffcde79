package service

import (
	"context"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/vendor"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
)

// VendorService matches invoices against the known-vendor directory
type VendorService interface {
	MatchInvoice(ctx context.Context, invoiceID string) (*entity.VendorMatch, error)
	MatchFields(ctx context.Context, fields entity.OCRData) (*entity.VendorMatch, error)
}

type vendorServiceImpl struct {
	vendorRepo  port.VendorRepository
	invoiceRepo port.InvoiceRepository
	logger      Logger
}

// NewVendorService creates a new VendorService
func NewVendorService(vendorRepo port.VendorRepository, invoiceRepo port.InvoiceRepository, logger Logger) VendorService {
	if logger == nil {
		logger = nopLogger{}
	}
	return &vendorServiceImpl{
		vendorRepo:  vendorRepo,
		invoiceRepo: invoiceRepo,
		logger:      logger,
	}
}

// MatchInvoice scores the invoice's current OCR fields. A nil match with a
// nil error means no vendor cleared any tier.
func (s *vendorServiceImpl) MatchInvoice(ctx context.Context, invoiceID string) (*entity.VendorMatch, error) {
	data, found, err := s.invoiceRepo.GetOCRData(ctx, invoiceID)
	if err != nil {
		return nil, workflow.Persistence("load invoice", err)
	}
	if !found {
		return nil, &workflow.NotFoundError{InvoiceID: invoiceID}
	}

	match, err := s.MatchFields(ctx, data)
	if err != nil {
		return nil, err
	}
	if match != nil {
		s.logger.Info("Vendor matched", "invoice_id", invoiceID, "vendor_id", match.Vendor.ID,
			"confidence", match.Confidence, "reason", match.Reason)
	}
	return match, nil
}

func (s *vendorServiceImpl) MatchFields(ctx context.Context, fields entity.OCRData) (*entity.VendorMatch, error) {
	directory, err := s.vendorRepo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to load vendor directory", "error", err)
		return nil, workflow.Persistence("list vendors", err)
	}
	return vendor.Match(directory, vendor.FieldsFromOCR(fields)), nil
}
