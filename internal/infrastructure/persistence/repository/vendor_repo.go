package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"go.uber.org/zap"
)

// VendorRepository implements port.VendorRepository
type VendorRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVendorRepository creates a new vendor repository
func NewVendorRepository(db *sql.DB, logger *zap.Logger) port.VendorRepository {
	return &VendorRepository{
		db:     db,
		logger: logger,
	}
}

// List returns the directory in its stable scan order
func (r *VendorRepository) List(ctx context.Context) ([]entity.Vendor, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx, `
		SELECT id, name, tax_id, phone, email, bank_code
		FROM vendors
		ORDER BY sort_order, id`)
	if err != nil {
		r.logger.Error("Failed to list vendors", zap.Error(err))
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	defer rows.Close()

	var vendors []entity.Vendor
	for rows.Next() {
		var v entity.Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.TaxID, &v.Phone, &v.Email, &v.BankCode); err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

var _ port.VendorRepository = (*VendorRepository)(nil)
