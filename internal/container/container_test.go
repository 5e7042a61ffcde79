package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/garyjia/invoice-approval/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "invoices.db")
	cfg.StorageDir = filepath.Join(dir, "images")
	cfg.ApprovalWebhook.URL = "http://127.0.0.1:1/approval"
	cfg.OCRWebhook.URL = "http://127.0.0.1:1/ocr"
	return cfg
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.ApprovalWebhook.URL = ""
	_, err = NewContainer(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "webhook.approval_url")
}

func TestContainer_StartAndClose(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx))

	services := c.Services()
	require.NotNil(t, services)
	assert.NotNil(t, services.Invoice)
	assert.NotNil(t, services.Approval)
	assert.NotNil(t, services.Vendor)
	assert.NotNil(t, services.Export)
	assert.Nil(t, services.Notification, "lark disabled by default")
	assert.Equal(t, 1, c.Workers().Count())
	assert.NotNil(t, c.Server())

	// seeded reference data is reachable through the wired repositories
	vendors, err := c.Repositories().Vendor.List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, vendors)

	health := c.Health(ctx)
	assert.True(t, health.Components["database"].Healthy)
	assert.False(t, health.Components["workers"].Healthy, "workers only run inside Run")
	assert.Equal(t, "disabled", health.Components["lark"].Message)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(ctx))
}

func TestContainer_LarkNotificationsWired(t *testing.T) {
	cfg := testConfig(t)
	cfg.Lark = LarkConfig{Enabled: true, AppID: "cli_test", AppSecret: "secret", ReceiveIDType: "email"}

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	assert.NotNil(t, c.Services().Notification)
	assert.Positive(t, c.Dispatcher().HandlerCount(event.TypeInvoiceApproved))
}

func TestContainer_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Port = 0
	cfg.Server.Host = "127.0.0.1"

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, c.Run(ctx))
}

func TestConvertToZapFields(t *testing.T) {
	fields := convertToZapFields("invoice_id", "inv-1", 42, "skipped", "error", assert.AnError, "dangling")
	require.Len(t, fields, 2)
	assert.Equal(t, "invoice_id", fields[0].Key)
	assert.Equal(t, "error", fields[1].Key)
}
