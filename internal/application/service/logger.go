package service

import (
	"context"

	"github.com/garyjia/invoice-approval/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// EventPublisher hands committed domain events to subscribers
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, *event.Event) {}
