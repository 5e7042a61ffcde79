package entity

// Processing status constants for Invoice.Status
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Approval status constants for Invoice.ApprovalStatus
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Audit action constants
const (
	ActionCreated  = "created"
	ActionEdited   = "edited"
	ActionApproved = "approved"
	ActionRejected = "rejected"
)

// User roles
const (
	RoleStaff      = "staff"      // captures invoices
	RoleManager    = "manager"    // reviews and decides
	RoleOwner      = "owner"      // reviews and decides
	RoleAccountant = "accountant" // read-only history
)

// Webhook decision actions sent to the approval webhook
const (
	DecisionApproved = ActionApproved
	DecisionRejected = ActionRejected
)
