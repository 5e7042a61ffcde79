package dispatcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/garyjia/invoice-approval/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatcher_Dispatch(t *testing.T) {
	t.Run("runs handlers in order", func(t *testing.T) {
		d := NewDispatcher(zap.NewNop())
		var order []string
		d.Subscribe(event.TypeInvoiceApproved, "first", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "first")
			return nil
		})
		d.Subscribe(event.TypeInvoiceApproved, "second", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "second")
			return nil
		})

		err := d.Dispatch(context.Background(), event.NewEvent(event.TypeInvoiceApproved, "inv-1", nil))

		require.NoError(t, err)
		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("stops at first error", func(t *testing.T) {
		d := NewDispatcher(zap.NewNop())
		called := false
		d.Subscribe(event.TypeInvoiceRejected, "failing", func(ctx context.Context, evt *event.Event) error {
			return errors.New("boom")
		})
		d.Subscribe(event.TypeInvoiceRejected, "never", func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		})

		err := d.Dispatch(context.Background(), event.NewEvent(event.TypeInvoiceRejected, "inv-1", nil))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failing")
		assert.False(t, called)
	})

	t.Run("recovers handler panic", func(t *testing.T) {
		d := NewDispatcher(nil)
		d.Subscribe(event.TypeInvoiceEdited, "panicky", func(ctx context.Context, evt *event.Event) error {
			panic("nil map")
		})

		err := d.Dispatch(context.Background(), event.NewEvent(event.TypeInvoiceEdited, "inv-1", nil))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "handler panic")
	})

	t.Run("no handlers is not an error", func(t *testing.T) {
		d := NewDispatcher(zap.NewNop())
		assert.NoError(t, d.Dispatch(context.Background(), event.NewEvent(event.TypeInvoiceCreated, "inv-1", nil)))
	})
}

func TestDispatcher_Publish(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	var calls atomic.Int32
	for _, name := range []string{"a", "b", "c"} {
		d.Subscribe(event.TypeDuplicateFlagged, name, func(ctx context.Context, evt *event.Event) error {
			calls.Add(1)
			return errors.New("ignored")
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.Publish(ctx, event.NewEvent(event.TypeDuplicateFlagged, "inv-1", nil))
	cancel()

	require.NoError(t, d.Close())
	assert.Equal(t, int32(3), calls.Load())
}

func TestDispatcher_Closed(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	var calls atomic.Int32
	d.Subscribe(event.TypeInvoiceApproved, "h", func(ctx context.Context, evt *event.Event) error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, d.Close())
	assert.Error(t, d.Close(), "second close should fail")

	evt := event.NewEvent(event.TypeInvoiceApproved, "inv-1", nil)
	assert.Error(t, d.Dispatch(context.Background(), evt))
	d.Publish(context.Background(), evt)
	assert.Equal(t, int32(0), calls.Load())
}

func TestDispatcher_HandlerCount(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	assert.Equal(t, 0, d.HandlerCount(event.TypeInvoiceCreated))
	d.Subscribe(event.TypeInvoiceCreated, "x", func(ctx context.Context, evt *event.Event) error { return nil })
	assert.Equal(t, 1, d.HandlerCount(event.TypeInvoiceCreated))
}
