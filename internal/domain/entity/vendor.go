package entity

// Vendor is an entry of the known-vendor directory
type Vendor struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	TaxID    string `json:"tax_id"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	BankCode string `json:"bank_code"`
}

// VendorMatch is the outcome of matching OCR fields against the directory
type VendorMatch struct {
	Vendor     *Vendor `json:"vendor"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}
