package lark

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/garyjia/invoice-approval/internal/application/port"
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

// Receive ID types accepted by the messages API
const (
	ReceiveIDEmail  = "email"
	ReceiveIDOpenID = "open_id"
)

// Messenger implements port.LarkMessageSender
type Messenger struct {
	messages      messageCreator
	receiveIDType string
	logger        *zap.Logger
}

// NewMessenger creates a messenger addressing users by receiveIDType
func NewMessenger(client *lark.Client, receiveIDType string, logger *zap.Logger) *Messenger {
	return newMessenger(client.Im.Message, receiveIDType, logger)
}

func newMessenger(messages messageCreator, receiveIDType string, logger *zap.Logger) *Messenger {
	if receiveIDType == "" {
		receiveIDType = ReceiveIDEmail
	}
	return &Messenger{
		messages:      messages,
		receiveIDType: receiveIDType,
		logger:        logger,
	}
}

// SendMessage sends a plain text message
func (m *Messenger) SendMessage(ctx context.Context, receiveID string, content string) error {
	if content == "" {
		return fmt.Errorf("content cannot be empty")
	}
	body, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return fmt.Errorf("failed to marshal text content: %w", err)
	}
	return m.send(ctx, receiveID, "text", string(body))
}

// SendCardMessage sends an interactive card
func (m *Messenger) SendCardMessage(ctx context.Context, receiveID string, card interface{}) error {
	if card == nil {
		return fmt.Errorf("card cannot be nil")
	}
	body, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("failed to marshal card content: %w", err)
	}
	return m.send(ctx, receiveID, "interactive", string(body))
}

func (m *Messenger) send(ctx context.Context, receiveID, msgType, content string) error {
	if receiveID == "" {
		return fmt.Errorf("receiveID cannot be empty")
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(m.receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := m.messages.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id", receiveID),
			zap.String("msg_type", msgType),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", receiveID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	m.logger.Debug("Message sent",
		zap.String("message_id", messageID),
		zap.String("receive_id", receiveID),
		zap.String("msg_type", msgType))
	return nil
}

var _ port.LarkMessageSender = (*Messenger)(nil)
