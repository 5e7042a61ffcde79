package entity

import (
	"strconv"
	"time"
)

// OCRData is the free-form field map extracted from an invoice image.
type OCRData map[string]interface{}

// String returns the value of key as a string, or "" when absent or not a scalar.
func (d OCRData) String(key string) string {
	v, ok := d[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// FirstString returns the first non-empty value among keys.
func (d OCRData) FirstString(keys ...string) string {
	for _, k := range keys {
		if s := d.String(k); s != "" {
			return s
		}
	}
	return ""
}

// Clone returns a shallow copy of the map.
func (d OCRData) Clone() OCRData {
	if d == nil {
		return nil
	}
	out := make(OCRData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Invoice represents a captured vendor invoice and its approval lifecycle
type Invoice struct {
	ID               string                 `json:"id"`
	UserID           string                 `json:"user_id"`
	ImageURL         string                 `json:"image_url"`
	Status           string                 `json:"status"`
	ApprovalStatus   string                 `json:"approval_status"`
	OCRData          OCRData                `json:"ocr_data,omitempty"`
	WebhookResponse  map[string]interface{} `json:"webhook_response,omitempty"`
	UploadedAt       time.Time              `json:"uploaded_at"`
	ProcessedAt      *time.Time             `json:"processed_at,omitempty"`
	ApprovedBy       string                 `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time             `json:"approved_at,omitempty"`
	RejectionComment string                 `json:"rejection_comment,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`

	// Uploader is populated on reads that join the users relation
	Uploader *Uploader `json:"uploader,omitempty"`
}

// Uploader is the subset of AppUser joined onto invoice reads
type Uploader struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// IsPending reports whether the invoice still awaits a decision
func (i *Invoice) IsPending() bool {
	return i.ApprovalStatus == ApprovalPending
}

// Decision describes a guarded approval status change.
// Fields is nil when the OCR payload should be left untouched.
type Decision struct {
	InvoiceID        string
	FromStatus       string
	ToStatus         string
	ActorID          string
	DecidedAt        time.Time
	RejectionComment string
	Fields           OCRData
}

// OCRResult is the response shape of the OCR webhook
type OCRResult struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}
