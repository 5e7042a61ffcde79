package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"go.uber.org/zap"
)

// ApprovalClient implements port.ApprovalWebhook
type ApprovalClient struct {
	doer
}

// NewApprovalClient creates an approval webhook client
func NewApprovalClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *ApprovalClient {
	return &ApprovalClient{doer: newDoer(cfg, httpClient, logger)}
}

// Notify posts the decision. Unreachable, non-2xx and undecodable responses
// come back as OK=false rather than an error.
func (c *ApprovalClient) Notify(ctx context.Context, decision *port.WebhookDecision) port.WebhookResult {
	if c.cfg.URL == "" {
		return port.WebhookResult{Err: fmt.Errorf("approval webhook url not configured")}
	}

	respBody, err := c.post(ctx, func() ([]byte, string, error) {
		body, err := json.Marshal(decision)
		return body, "application/json", err
	})
	if err != nil {
		return port.WebhookResult{Err: err}
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return port.WebhookResult{Err: fmt.Errorf("decode response: %w", err)}
	}

	duplicate, _ := payload["duplicate"].(bool)
	c.logger.Debug("Approval webhook answered",
		zap.String("invoice_id", decision.InvoiceID),
		zap.String("action", decision.Action),
		zap.Bool("duplicate", duplicate))
	return port.WebhookResult{OK: true, Duplicate: duplicate, Payload: payload}
}

var _ port.ApprovalWebhook = (*ApprovalClient)(nil)
