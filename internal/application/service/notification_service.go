package service

import (
	"context"
	"fmt"

	"github.com/garyjia/invoice-approval/internal/application/dispatcher"
	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/event"
)

// Subscriber registers event handlers
type Subscriber interface {
	Subscribe(eventType event.Type, name string, handler dispatcher.Handler)
}

// NotificationService tells reviewers and uploaders about invoice events over Lark
type NotificationService interface {
	// Register subscribes the service to the events it reacts to
	Register(sub Subscriber)
	HandleEvent(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	invoiceRepo   port.InvoiceRepository
	userRepo      port.UserRepository
	messageSender port.LarkMessageSender
	logger        Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	invoiceRepo port.InvoiceRepository,
	userRepo port.UserRepository,
	messageSender port.LarkMessageSender,
	logger Logger,
) NotificationService {
	if logger == nil {
		logger = nopLogger{}
	}
	return &notificationServiceImpl{
		invoiceRepo:   invoiceRepo,
		userRepo:      userRepo,
		messageSender: messageSender,
		logger:        logger,
	}
}

func (s *notificationServiceImpl) Register(sub Subscriber) {
	for _, t := range []event.Type{
		event.TypeInvoiceProcessed,
		event.TypeInvoiceApproved,
		event.TypeInvoiceRejected,
		event.TypeDuplicateFlagged,
		event.TypeDuplicateOverridden,
	} {
		sub.Subscribe(t, "lark-notification", s.HandleEvent)
	}
}

// HandleEvent routes an event to the users who should hear about it.
// Delivery failures for one recipient do not stop the others.
func (s *notificationServiceImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	invoice, err := s.invoiceRepo.GetByID(ctx, evt.InvoiceID)
	if err != nil {
		return fmt.Errorf("get invoice: %w", err)
	}
	if invoice == nil {
		return fmt.Errorf("invoice %s not found", evt.InvoiceID)
	}

	var (
		recipients []*entity.AppUser
		message    string
		card       map[string]interface{}
	)

	switch evt.Type {
	case event.TypeInvoiceProcessed:
		if !evt.GetPayloadBool("success") {
			return nil
		}
		recipients, err = s.userRepo.ListByRole(ctx, entity.RoleManager, entity.RoleOwner)
		message = fmt.Sprintf("Invoice %s from %s is ready for approval.", invoice.ID, uploaderName(invoice))

	case event.TypeInvoiceApproved:
		recipients, err = s.uploader(ctx, invoice)
		message = fmt.Sprintf("Your invoice %s was approved by %s.", invoice.ID, evt.ActorName)

	case event.TypeInvoiceRejected:
		recipients, err = s.uploader(ctx, invoice)
		message = fmt.Sprintf("Your invoice %s was rejected by %s: %s", invoice.ID, evt.ActorName, evt.GetPayloadString("comment"))

	case event.TypeDuplicateFlagged:
		recipients, err = s.userRepo.ListByRole(ctx, entity.RoleManager, entity.RoleOwner)
		card = duplicateCard(invoice, evt)

	case event.TypeDuplicateOverridden:
		recipients, err = s.userRepo.ListByRole(ctx, entity.RoleOwner)
		message = fmt.Sprintf("%s overrode the duplicate flag on invoice %s. Reason: %s",
			evt.ActorName, invoice.ID, evt.GetPayloadString("reason"))

	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve recipients: %w", err)
	}

	sent := 0
	for _, u := range recipients {
		if u.Email == "" {
			continue
		}
		var sendErr error
		if card != nil {
			sendErr = s.messageSender.SendCardMessage(ctx, u.Email, card)
		} else {
			sendErr = s.messageSender.SendMessage(ctx, u.Email, message)
		}
		if sendErr != nil {
			s.logger.Error("Failed to send notification", "error", sendErr, "invoice_id", invoice.ID,
				"event_type", evt.Type.String(), "user_id", u.ID)
			continue
		}
		sent++
	}

	s.logger.Info("Notifications sent", "invoice_id", invoice.ID, "event_type", evt.Type.String(),
		"recipients", len(recipients), "sent", sent)
	return nil
}

func (s *notificationServiceImpl) uploader(ctx context.Context, invoice *entity.Invoice) ([]*entity.AppUser, error) {
	u, err := s.userRepo.GetByID(ctx, invoice.UserID)
	if err != nil || u == nil {
		return nil, err
	}
	return []*entity.AppUser{u}, nil
}

func uploaderName(invoice *entity.Invoice) string {
	if invoice.Uploader != nil && invoice.Uploader.FullName != "" {
		return invoice.Uploader.FullName
	}
	return invoice.UserID
}

func duplicateCard(invoice *entity.Invoice, evt *event.Event) map[string]interface{} {
	vendorName := invoice.OCRData.FirstString("vendor_name", "vendor")
	if vendorName == "" {
		vendorName = "unknown vendor"
	}
	return map[string]interface{}{
		"config": map[string]interface{}{"wide_screen_mode": true},
		"header": map[string]interface{}{
			"template": "orange",
			"title":    map[string]interface{}{"tag": "plain_text", "content": "Possible duplicate invoice"},
		},
		"elements": []interface{}{
			map[string]interface{}{
				"tag": "div",
				"text": map[string]interface{}{
					"tag": "lark_md",
					"content": fmt.Sprintf("**Invoice:** %s\n**Vendor:** %s\n**Approved by:** %s\nOverride with a reason or follow up with the uploader.",
						invoice.ID, vendorName, evt.ActorName),
				},
			},
		},
	}
}
