package entity

import "time"

// FieldChanges is the before/after diff stored on edited entries
type FieldChanges struct {
	Old OCRData `json:"old"`
	New OCRData `json:"new"`
}

// AuditLogEntry is an append-only record of one action taken on an invoice
type AuditLogEntry struct {
	ID        string        `json:"id"`
	InvoiceID string        `json:"invoice_id"`
	UserID    string        `json:"user_id"`
	UserName  string        `json:"user_name"`
	Action    string        `json:"action"`
	Changes   *FieldChanges `json:"changes,omitempty"`
	Comment   string        `json:"comment,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// DuplicateDetectionLog records one duplicate flag raised by the approval webhook
type DuplicateDetectionLog struct {
	ID             string                 `json:"id"`
	InvoiceID      string                 `json:"invoice_id"`
	DetectedAt     time.Time              `json:"detected_at"`
	DetectedBy     string                 `json:"detected_by"`
	WebhookPayload map[string]interface{} `json:"webhook_payload,omitempty"`
	Overridden     bool                   `json:"overridden"`
	OverriddenBy   string                 `json:"overridden_by,omitempty"`
	OverriddenAt   *time.Time             `json:"overridden_at,omitempty"`
	OverrideReason string                 `json:"override_reason,omitempty"`
}
