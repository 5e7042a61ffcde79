package dispatcher

import (
	"context"

	"github.com/garyjia/invoice-approval/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

type namedHandler struct {
	name    string
	handler Handler
}
