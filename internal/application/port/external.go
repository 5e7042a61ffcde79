package port

import (
	"context"
	"time"

	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

// WebhookDecision is the body posted to the approval webhook
type WebhookDecision struct {
	InvoiceID string                 `json:"invoice_id"`
	Action    string                 `json:"action"`
	OCRData   map[string]interface{} `json:"ocr_data"`
	Comment   string                 `json:"comment,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// WebhookResult is the outcome of notifying the approval webhook.
// OK is false when the webhook was unreachable, answered non-2xx, or sent a
// body that could not be decoded; Duplicate is meaningful only when OK.
type WebhookResult struct {
	OK        bool
	Duplicate bool
	Payload   map[string]interface{}
	Err       error
}

// ApprovalWebhook notifies the external approval endpoint of a decision.
// It never returns an error; failures are reported through WebhookResult.
type ApprovalWebhook interface {
	Notify(ctx context.Context, decision *WebhookDecision) WebhookResult
}

// OCRClient submits an invoice image to the OCR webhook
type OCRClient interface {
	Extract(ctx context.Context, filename string, image []byte) (*entity.OCRResult, error)
}

// LarkMessageSender defines message sending operations
type LarkMessageSender interface {
	SendMessage(ctx context.Context, receiveID string, content string) error
	SendCardMessage(ctx context.Context, receiveID string, card interface{}) error
}
