package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/domain/event"
)

// memInvoiceRepo is an in-memory InvoiceRepository with a real
// compare-and-swap on approval status.
type memInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[string]*entity.Invoice

	createErr        error
	updateOCRDataErr error
	applyDecisionErr error
	getErr           error
}

func newMemInvoiceRepo(invoices ...*entity.Invoice) *memInvoiceRepo {
	r := &memInvoiceRepo{invoices: make(map[string]*entity.Invoice)}
	for _, inv := range invoices {
		r.invoices[inv.ID] = inv
	}
	return r
}

func (r *memInvoiceRepo) get(id string) *entity.Invoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv, ok := r.invoices[id]; ok {
		cp := *inv
		return &cp
	}
	return nil
}

func (r *memInvoiceRepo) Create(ctx context.Context, invoice *entity.Invoice) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if invoice.ID == "" {
		invoice.ID = entity.NewID()
	}
	cp := *invoice
	r.invoices[invoice.ID] = &cp
	return nil
}

func (r *memInvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.get(id), nil
}

func (r *memInvoiceRepo) GetOCRData(ctx context.Context, id string) (entity.OCRData, bool, error) {
	if r.getErr != nil {
		return nil, false, r.getErr
	}
	inv := r.get(id)
	if inv == nil {
		return nil, false, nil
	}
	return inv.OCRData.Clone(), true, nil
}

func (r *memInvoiceRepo) UpdateOCRData(ctx context.Context, id string, data entity.OCRData) error {
	if r.updateOCRDataErr != nil {
		return r.updateOCRDataErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return fmt.Errorf("invoice %s missing", id)
	}
	inv.OCRData = data.Clone()
	return nil
}

func (r *memInvoiceRepo) ApplyDecision(ctx context.Context, d *entity.Decision) (bool, error) {
	if r.applyDecisionErr != nil {
		return false, r.applyDecisionErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[d.InvoiceID]
	if !ok || inv.ApprovalStatus != d.FromStatus {
		return false, nil
	}
	at := d.DecidedAt
	inv.ApprovalStatus = d.ToStatus
	inv.ApprovedBy = d.ActorID
	inv.ApprovedAt = &at
	inv.RejectionComment = d.RejectionComment
	if d.Fields != nil {
		inv.OCRData = d.Fields.Clone()
	}
	return true, nil
}

func (r *memInvoiceRepo) AttachOCRResult(ctx context.Context, id string, result *entity.OCRResult, processedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok || inv.ApprovalStatus != entity.ApprovalPending {
		return false, nil
	}
	inv.Status = entity.StatusFailed
	if result.Success {
		inv.Status = entity.StatusCompleted
	}
	if result.Data != nil {
		inv.OCRData = entity.OCRData(result.Data)
	}
	inv.WebhookResponse = map[string]interface{}{"success": result.Success, "data": result.Data, "error": result.Error}
	inv.ProcessedAt = &processedAt
	return true, nil
}

func (r *memInvoiceRepo) list(keep func(*entity.Invoice) bool) []*entity.Invoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range r.invoices {
		if keep(inv) {
			cp := *inv
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out
}

func (r *memInvoiceRepo) ListByUser(ctx context.Context, userID string) ([]*entity.Invoice, error) {
	return r.list(func(inv *entity.Invoice) bool { return inv.UserID == userID }), nil
}

func (r *memInvoiceRepo) ListPendingApproval(ctx context.Context) ([]*entity.Invoice, error) {
	return r.list(func(inv *entity.Invoice) bool {
		return inv.ApprovalStatus == entity.ApprovalPending && inv.Status == entity.StatusCompleted
	}), nil
}

func (r *memInvoiceRepo) ListDecided(ctx context.Context, limit int) ([]*entity.Invoice, error) {
	out := r.list(func(inv *entity.Invoice) bool { return inv.ApprovalStatus != entity.ApprovalPending })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memInvoiceRepo) ListProcessing(ctx context.Context, limit int) ([]*entity.Invoice, error) {
	out := r.list(func(inv *entity.Invoice) bool { return inv.Status == entity.StatusProcessing })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memAuditRepo struct {
	mu        sync.Mutex
	entries   []*entity.AuditLogEntry
	appendErr error
}

func (r *memAuditRepo) Append(ctx context.Context, entry *entity.AuditLogEntry) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = entity.NewID()
	cp := *entry
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *memAuditRepo) ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.AuditLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.AuditLogEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].InvoiceID == invoiceID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *memAuditRepo) actions(invoiceID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		if e.InvoiceID == invoiceID {
			out = append(out, e.Action)
		}
	}
	return out
}

type memDuplicateRepo struct {
	mu   sync.Mutex
	logs []*entity.DuplicateDetectionLog

	createErr error
	// beforeMark runs ahead of MarkOverridden, outside the lock
	beforeMark func()
}

func (r *memDuplicateRepo) Create(ctx context.Context, log *entity.DuplicateDetectionLog) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	log.ID = entity.NewID()
	cp := *log
	r.logs = append(r.logs, &cp)
	return nil
}

func (r *memDuplicateRepo) LatestOpen(ctx context.Context, invoiceID string) (*entity.DuplicateDetectionLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.logs) - 1; i >= 0; i-- {
		if l := r.logs[i]; l.InvoiceID == invoiceID && !l.Overridden {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memDuplicateRepo) MarkOverridden(ctx context.Context, id, actorID, reason string, at time.Time) (bool, error) {
	if r.beforeMark != nil {
		r.beforeMark()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.logs {
		if l.ID == id && !l.Overridden {
			l.Overridden = true
			l.OverriddenBy = actorID
			l.OverriddenAt = &at
			l.OverrideReason = reason
			return true, nil
		}
	}
	return false, nil
}

func (r *memDuplicateRepo) ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.DuplicateDetectionLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.DuplicateDetectionLog
	for _, l := range r.logs {
		if l.InvoiceID == invoiceID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockWebhook struct {
	mu        sync.Mutex
	notifyFn  func(ctx context.Context, d *port.WebhookDecision) port.WebhookResult
	decisions []*port.WebhookDecision
}

func (m *mockWebhook) Notify(ctx context.Context, d *port.WebhookDecision) port.WebhookResult {
	m.mu.Lock()
	m.decisions = append(m.decisions, d)
	m.mu.Unlock()
	if m.notifyFn != nil {
		return m.notifyFn(ctx, d)
	}
	return port.WebhookResult{OK: true}
}

func (m *mockWebhook) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.decisions)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, evt *event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

type mockUserRepo struct {
	users map[string]*entity.AppUser
	err   error
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*entity.AppUser, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.users[id], nil
}

func (m *mockUserRepo) ListByRole(ctx context.Context, roles ...string) ([]*entity.AppUser, error) {
	if m.err != nil {
		return nil, m.err
	}
	want := make(map[string]bool)
	for _, r := range roles {
		want[r] = true
	}
	var out []*entity.AppUser
	for _, u := range m.users {
		if want[u.Role] {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func pendingInvoice(id string) *entity.Invoice {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &entity.Invoice{
		ID:             id,
		UserID:         "staff-1",
		ImageURL:       "invoices/" + id + ".jpg",
		Status:         entity.StatusCompleted,
		ApprovalStatus: entity.ApprovalPending,
		OCRData:        entity.OCRData{"vendor_name": "Acme Supplies", "total": 1200.5},
		UploadedAt:     now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

var managerSession = entity.Session{ActorID: "mgr-1", ActorName: "Meera Manager", Role: entity.RoleManager}

type mockTxManager struct {
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type memStorage struct {
	mu      sync.Mutex
	files   map[string][]byte
	saveErr error
}

func newMemStorage() *memStorage {
	return &memStorage{files: make(map[string][]byte)}
}

func (m *memStorage) Save(ctx context.Context, path string, content []byte) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
	return nil
}

func (m *memStorage) Read(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return b, nil
}

func (m *memStorage) Exists(ctx context.Context, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

func (m *memStorage) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

func (m *memStorage) GetFullPath(relativePath string) string {
	return "/data/" + relativePath
}

type mockPreprocessor struct {
	prepareFn func(ctx context.Context, filename string, content []byte) ([]byte, error)
}

func (m *mockPreprocessor) Prepare(ctx context.Context, filename string, content []byte) ([]byte, error) {
	if m.prepareFn != nil {
		return m.prepareFn(ctx, filename, content)
	}
	return append([]byte("jpeg:"), content...), nil
}

type mockOCRClient struct {
	extractFn func(ctx context.Context, filename string, image []byte) (*entity.OCRResult, error)
}

func (m *mockOCRClient) Extract(ctx context.Context, filename string, image []byte) (*entity.OCRResult, error) {
	if m.extractFn != nil {
		return m.extractFn(ctx, filename, image)
	}
	return &entity.OCRResult{Success: true, Data: map[string]interface{}{"vendor_name": "Acme Supplies"}}, nil
}
