package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is a fact about an invoice published after it was persisted
type Event struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	InvoiceID string                 `json:"invoice_id"`
	ActorID   string                 `json:"actor_id,omitempty"`
	ActorName string                 `json:"actor_name,omitempty"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent creates a domain event with a generated ID and the current time
func NewEvent(eventType Type, invoiceID string, payload map[string]interface{}) *Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		InvoiceID: invoiceID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// WithActor returns a copy of the event attributed to the given actor
func (e *Event) WithActor(actorID, actorName string) *Event {
	cp := *e
	cp.ActorID = actorID
	cp.ActorName = actorName
	return &cp
}

// WithPayload returns a copy of the event with an added payload entry
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	cp := *e
	cp.Payload = newPayload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadBool retrieves a bool value from the payload
func (e *Event) GetPayloadBool(key string) bool {
	if val, ok := e.Payload[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}
