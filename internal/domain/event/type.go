package event

// Type identifies the type of domain event
type Type string

const (
	TypeInvoiceCreated      Type = "invoice.created"
	TypeInvoiceProcessed    Type = "invoice.processed"
	TypeInvoiceEdited       Type = "invoice.edited"
	TypeInvoiceApproved     Type = "invoice.approved"
	TypeInvoiceRejected     Type = "invoice.rejected"
	TypeDuplicateFlagged    Type = "invoice.duplicate_flagged"
	TypeDuplicateOverridden Type = "invoice.duplicate_overridden"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeInvoiceCreated,
		TypeInvoiceProcessed,
		TypeInvoiceEdited,
		TypeInvoiceApproved,
		TypeInvoiceRejected,
		TypeDuplicateFlagged,
		TypeDuplicateOverridden:
		return true
	default:
		return false
	}
}
