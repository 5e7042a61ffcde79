package service

import (
	"context"
	"strings"
	"time"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/event"
	"github.com/garyjia/invoice-approval/internal/domain/workflow"
)

// ApproveOptions carries the optional inputs of an approval
type ApproveOptions struct {
	// Fields replaces the OCR payload when non-nil
	Fields entity.OCRData
	// OverrideDuplicate approves despite a duplicate flag and requires OverrideReason
	OverrideDuplicate bool
	OverrideReason    string
}

// ApprovalService enforces the pending → approved | rejected lifecycle and
// records every action in the audit log.
type ApprovalService interface {
	EditFields(ctx context.Context, invoiceID string, fields entity.OCRData, session entity.Session) error
	Approve(ctx context.Context, invoiceID string, session entity.Session, opts ApproveOptions) error
	Reject(ctx context.Context, invoiceID string, session entity.Session, comment string, fields entity.OCRData) error
}

type approvalServiceImpl struct {
	invoiceRepo   port.InvoiceRepository
	auditRepo     port.AuditLogRepository
	duplicateRepo port.DuplicateLogRepository
	webhook       port.ApprovalWebhook
	publisher     EventPublisher
	logger        Logger
	now           func() time.Time
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	invoiceRepo port.InvoiceRepository,
	auditRepo port.AuditLogRepository,
	duplicateRepo port.DuplicateLogRepository,
	webhook port.ApprovalWebhook,
	publisher EventPublisher,
	logger Logger,
) ApprovalService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &approvalServiceImpl{
		invoiceRepo:   invoiceRepo,
		auditRepo:     auditRepo,
		duplicateRepo: duplicateRepo,
		webhook:       webhook,
		publisher:     publisher,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// EditFields replaces the OCR payload and records the before/after diff
func (s *approvalServiceImpl) EditFields(ctx context.Context, invoiceID string, fields entity.OCRData, session entity.Session) error {
	old, found, err := s.invoiceRepo.GetOCRData(ctx, invoiceID)
	if err != nil {
		return workflow.Persistence("load invoice", err)
	}
	if !found {
		return &workflow.NotFoundError{InvoiceID: invoiceID}
	}

	if err := s.invoiceRepo.UpdateOCRData(ctx, invoiceID, fields); err != nil {
		s.logger.Error("Failed to update OCR data", "error", err, "invoice_id", invoiceID)
		return workflow.Persistence("update ocr data", err)
	}

	entry := s.newEntry(invoiceID, session, entity.ActionEdited)
	entry.Changes = &entity.FieldChanges{Old: old, New: fields}
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		s.logger.Error("Failed to append audit entry", "error", err, "invoice_id", invoiceID, "action", entry.Action)
		return workflow.Persistence("append audit entry", err)
	}

	s.publish(ctx, event.TypeInvoiceEdited, invoiceID, session, nil)
	s.logger.Info("Invoice fields edited", "invoice_id", invoiceID, "actor_id", session.ActorID)
	return nil
}

// Approve persists the approval, then asks the approval webhook whether the
// invoice is a duplicate. A duplicate flag without an override returns
// *workflow.DuplicateInvoiceError while the approval stays persisted.
// An approved invoice accepts only an override of its open duplicate flag.
func (s *approvalServiceImpl) Approve(ctx context.Context, invoiceID string, session entity.Session, opts ApproveOptions) error {
	reason := strings.TrimSpace(opts.OverrideReason)
	if opts.OverrideDuplicate && reason == "" {
		return workflow.NewValidationError("override_reason", "a reason is required to override a duplicate")
	}

	invoice, err := s.load(ctx, invoiceID)
	if err != nil {
		return err
	}
	if opts.OverrideDuplicate && invoice.ApprovalStatus == entity.ApprovalApproved {
		return s.overrideFlagged(ctx, invoice, session, reason, opts.Fields)
	}

	now := s.now()
	if err := s.decide(ctx, invoice, workflow.TriggerApprove, &entity.Decision{
		InvoiceID: invoiceID,
		ActorID:   session.ActorID,
		DecidedAt: now,
		Fields:    opts.Fields,
	}); err != nil {
		return err
	}

	entry := s.newEntry(invoiceID, session, entity.ActionApproved)
	if opts.OverrideDuplicate {
		entry.Comment = overrideComment(reason)
	}
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		s.logger.Error("Failed to append audit entry", "error", err, "invoice_id", invoiceID, "action", entry.Action)
		return workflow.Persistence("append audit entry", err)
	}
	s.publish(ctx, event.TypeInvoiceApproved, invoiceID, session, nil)

	result := s.notify(ctx, invoiceID, decisionFields(opts.Fields, invoice.OCRData), now)
	duplicate := result.OK && result.Duplicate

	if duplicate && opts.OverrideDuplicate {
		return s.recordOverridden(ctx, invoiceID, session, reason, result.Payload, now)
	}
	if duplicate {
		log := &entity.DuplicateDetectionLog{
			InvoiceID:      invoiceID,
			DetectedAt:     now,
			DetectedBy:     session.ActorID,
			WebhookPayload: result.Payload,
		}
		if err := s.duplicateRepo.Create(ctx, log); err != nil {
			s.logger.Error("Failed to record duplicate", "error", err, "invoice_id", invoiceID)
			return workflow.Persistence("record duplicate", err)
		}
		s.publish(ctx, event.TypeDuplicateFlagged, invoiceID, session, map[string]interface{}{
			"duplicate_log_id": log.ID,
		})
		s.logger.Info("Invoice flagged as duplicate", "invoice_id", invoiceID, "duplicate_log_id", log.ID)
		return &workflow.DuplicateInvoiceError{InvoiceID: invoiceID, Payload: result.Payload}
	}

	s.logger.Info("Invoice approved", "invoice_id", invoiceID, "actor_id", session.ActorID)
	return nil
}

// overrideFlagged closes the open duplicate flag of an approved invoice and
// re-sends the approval. Without an open flag the approval is final.
func (s *approvalServiceImpl) overrideFlagged(ctx context.Context, invoice *entity.Invoice, session entity.Session, reason string, fields entity.OCRData) error {
	open, err := s.duplicateRepo.LatestOpen(ctx, invoice.ID)
	if err != nil {
		return workflow.Persistence("load duplicate log", err)
	}
	if open == nil {
		return approvalIsFinal(invoice.ID)
	}

	now := s.now()
	closed, err := s.duplicateRepo.MarkOverridden(ctx, open.ID, session.ActorID, reason, now)
	if err != nil {
		s.logger.Error("Failed to override duplicate", "error", err, "invoice_id", invoice.ID, "duplicate_log_id", open.ID)
		return workflow.Persistence("override duplicate", err)
	}
	if !closed {
		s.logger.Info("Duplicate flag already overridden", "invoice_id", invoice.ID, "duplicate_log_id", open.ID)
		return approvalIsFinal(invoice.ID)
	}

	if fields != nil {
		if err := s.invoiceRepo.UpdateOCRData(ctx, invoice.ID, fields); err != nil {
			return workflow.Persistence("update ocr data", err)
		}
		edited := s.newEntry(invoice.ID, session, entity.ActionEdited)
		edited.Changes = &entity.FieldChanges{Old: invoice.OCRData, New: fields}
		if err := s.auditRepo.Append(ctx, edited); err != nil {
			return workflow.Persistence("append audit entry", err)
		}
		s.publish(ctx, event.TypeInvoiceEdited, invoice.ID, session, nil)
	}

	entry := s.newEntry(invoice.ID, session, entity.ActionApproved)
	entry.Comment = overrideComment(reason)
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		s.logger.Error("Failed to append audit entry", "error", err, "invoice_id", invoice.ID, "action", entry.Action)
		return workflow.Persistence("append audit entry", err)
	}

	s.notify(ctx, invoice.ID, decisionFields(fields, invoice.OCRData), now)
	s.overridden(ctx, invoice.ID, session, open.ID, reason)
	return nil
}

// recordOverridden stores a duplicate flag that was overridden in the same
// call that raised it.
func (s *approvalServiceImpl) recordOverridden(ctx context.Context, invoiceID string, session entity.Session, reason string, payload map[string]interface{}, now time.Time) error {
	log := &entity.DuplicateDetectionLog{
		InvoiceID:      invoiceID,
		DetectedAt:     now,
		DetectedBy:     session.ActorID,
		WebhookPayload: payload,
		Overridden:     true,
		OverriddenBy:   session.ActorID,
		OverriddenAt:   &now,
		OverrideReason: reason,
	}
	if err := s.duplicateRepo.Create(ctx, log); err != nil {
		s.logger.Error("Failed to record duplicate", "error", err, "invoice_id", invoiceID)
		return workflow.Persistence("record duplicate", err)
	}
	s.overridden(ctx, invoiceID, session, log.ID, reason)
	return nil
}

func (s *approvalServiceImpl) overridden(ctx context.Context, invoiceID string, session entity.Session, logID, reason string) {
	s.publish(ctx, event.TypeDuplicateOverridden, invoiceID, session, map[string]interface{}{
		"duplicate_log_id": logID,
		"reason":           reason,
	})
	s.logger.Info("Duplicate overridden", "invoice_id", invoiceID, "duplicate_log_id", logID, "actor_id", session.ActorID)
}

func approvalIsFinal(invoiceID string) error {
	return &workflow.InvalidTransitionError{
		InvoiceID: invoiceID,
		Current:   workflow.StateApproved,
		Trigger:   workflow.TriggerApprove,
	}
}

// notify sends the approval to the webhook. Failures are treated as "not a
// duplicate".
func (s *approvalServiceImpl) notify(ctx context.Context, invoiceID string, fields map[string]interface{}, at time.Time) port.WebhookResult {
	result := s.webhook.Notify(ctx, &port.WebhookDecision{
		InvoiceID: invoiceID,
		Action:    entity.DecisionApproved,
		OCRData:   fields,
		Timestamp: at,
	})
	if !result.OK {
		s.logger.Error("Approval webhook failed, assuming no duplicate", "error", result.Err, "invoice_id", invoiceID)
	}
	return result
}

// Reject persists a rejection with its mandatory comment. Webhook failures
// are logged only since the rejection is final once stored.
func (s *approvalServiceImpl) Reject(ctx context.Context, invoiceID string, session entity.Session, comment string, fields entity.OCRData) error {
	if strings.TrimSpace(comment) == "" {
		return workflow.NewValidationError("comment", "a comment is required when rejecting an invoice")
	}

	invoice, err := s.load(ctx, invoiceID)
	if err != nil {
		return err
	}

	now := s.now()
	if err := s.decide(ctx, invoice, workflow.TriggerReject, &entity.Decision{
		InvoiceID:        invoiceID,
		ActorID:          session.ActorID,
		DecidedAt:        now,
		RejectionComment: comment,
		Fields:           fields,
	}); err != nil {
		return err
	}

	entry := s.newEntry(invoiceID, session, entity.ActionRejected)
	entry.Comment = comment
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		s.logger.Error("Failed to append audit entry", "error", err, "invoice_id", invoiceID, "action", entry.Action)
		return workflow.Persistence("append audit entry", err)
	}
	s.publish(ctx, event.TypeInvoiceRejected, invoiceID, session, map[string]interface{}{"comment": comment})

	result := s.webhook.Notify(ctx, &port.WebhookDecision{
		InvoiceID: invoiceID,
		Action:    entity.DecisionRejected,
		OCRData:   decisionFields(fields, invoice.OCRData),
		Comment:   comment,
		Timestamp: now,
	})
	if !result.OK {
		s.logger.Error("Rejection webhook failed", "error", result.Err, "invoice_id", invoiceID)
	}

	s.logger.Info("Invoice rejected", "invoice_id", invoiceID, "actor_id", session.ActorID)
	return nil
}

func (s *approvalServiceImpl) load(ctx context.Context, invoiceID string) (*entity.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, workflow.Persistence("load invoice", err)
	}
	if invoice == nil {
		return nil, &workflow.NotFoundError{InvoiceID: invoiceID}
	}
	return invoice, nil
}

// decide fires trigger on the invoice's approval machine and persists the
// resulting state only if the stored state has not moved in the meantime.
func (s *approvalServiceImpl) decide(ctx context.Context, invoice *entity.Invoice, trigger workflow.Trigger, d *entity.Decision) error {
	current := workflow.State(invoice.ApprovalStatus)
	machine, err := workflow.NewApprovalMachine(current)
	if err != nil {
		return &workflow.InvalidTransitionError{InvoiceID: invoice.ID, Current: current, Trigger: trigger}
	}
	if err := machine.Fire(trigger); err != nil {
		return &workflow.InvalidTransitionError{InvoiceID: invoice.ID, Current: current, Trigger: trigger}
	}
	d.FromStatus = current.String()
	d.ToStatus = machine.State().String()

	changed, err := s.invoiceRepo.ApplyDecision(ctx, d)
	if err != nil {
		s.logger.Error("Failed to apply decision", "error", err, "invoice_id", d.InvoiceID, "to", d.ToStatus)
		return workflow.Persistence("apply decision", err)
	}
	if changed {
		return nil
	}

	// Another decision won the race; report the state it left behind.
	latest, err := s.load(ctx, d.InvoiceID)
	if err != nil {
		return err
	}
	return &workflow.InvalidTransitionError{
		InvoiceID: d.InvoiceID,
		Current:   workflow.State(latest.ApprovalStatus),
		Trigger:   trigger,
	}
}

func (s *approvalServiceImpl) newEntry(invoiceID string, session entity.Session, action string) *entity.AuditLogEntry {
	return &entity.AuditLogEntry{
		InvoiceID: invoiceID,
		UserID:    session.ActorID,
		UserName:  session.ActorName,
		Action:    action,
		CreatedAt: s.now(),
	}
}

func (s *approvalServiceImpl) publish(ctx context.Context, t event.Type, invoiceID string, session entity.Session, payload map[string]interface{}) {
	s.publisher.Publish(ctx, event.NewEvent(t, invoiceID, payload).WithActor(session.ActorID, session.ActorName))
}

func overrideComment(reason string) string {
	return "Duplicate override: " + reason
}

func decisionFields(fields, current entity.OCRData) map[string]interface{} {
	if fields != nil {
		return fields
	}
	return current
}
