package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/invoice-approval/internal/application/service"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
	xlsxContentType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services       Services
	maxUploadBytes int64
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, maxUploadBytes int64, logger Logger) *Handlers {
	return &Handlers{
		services:       services,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// EditFieldsRequest is the body of PUT /approvals/:id/fields
type EditFieldsRequest struct {
	Fields entity.OCRData `json:"fields" binding:"required"`
}

// ApproveRequest is the body of POST /approvals/:id/approve
type ApproveRequest struct {
	Fields            entity.OCRData `json:"fields"`
	OverrideDuplicate bool           `json:"override_duplicate"`
	OverrideReason    string         `json:"override_reason"`
}

// RejectRequest is the body of POST /approvals/:id/reject
type RejectRequest struct {
	Comment string         `json:"comment"`
	Fields  entity.OCRData `json:"fields"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// UploadInvoice handles POST /api/v1/invoices (multipart field "image")
func (h *Handlers) UploadInvoice(c *gin.Context) {
	session, _ := sessionFrom(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, Response{Success: false, Error: "upload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "multipart field \"image\" is required"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, Response{Success: false, Error: "upload too large"})
		return
	}

	invoice, err := h.services.Invoices.Upload(c.Request.Context(), session, header.Filename, content)
	if err != nil {
		h.respondError(c, "upload invoice", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: invoice})
}

// AttachOCRResult handles POST /api/v1/invoices/:id/ocr-result
func (h *Handlers) AttachOCRResult(c *gin.Context) {
	var result entity.OCRResult
	if err := c.ShouldBindJSON(&result); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid OCR result body"})
		return
	}

	id := c.Param("id")
	if err := h.services.Invoices.AttachOCRResult(c.Request.Context(), id, &result); err != nil {
		h.respondError(c, "attach ocr result", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ListMyInvoices handles GET /api/v1/invoices
func (h *Handlers) ListMyInvoices(c *gin.Context) {
	session, _ := sessionFrom(c)

	invoices, err := h.services.Invoices.ListByUser(c.Request.Context(), session.ActorID)
	if err != nil {
		h.respondError(c, "list invoices", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: nonNil(invoices)})
}

// GetInvoice handles GET /api/v1/invoices/:id
func (h *Handlers) GetInvoice(c *gin.Context) {
	invoice, ok := h.visibleInvoice(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: invoice})
}

// GetAuditLog handles GET /api/v1/invoices/:id/audit-log
func (h *Handlers) GetAuditLog(c *gin.Context) {
	invoice, ok := h.visibleInvoice(c)
	if !ok {
		return
	}
	entries, err := h.services.Invoices.GetAuditLog(c.Request.Context(), invoice.ID)
	if err != nil {
		h.respondError(c, "get audit log", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: nonNil(entries)})
}

// GetDuplicateLogs handles GET /api/v1/invoices/:id/duplicates
func (h *Handlers) GetDuplicateLogs(c *gin.Context) {
	invoice, ok := h.visibleInvoice(c)
	if !ok {
		return
	}
	logs, err := h.services.Invoices.GetDuplicateLogs(c.Request.Context(), invoice.ID)
	if err != nil {
		h.respondError(c, "get duplicate logs", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: nonNil(logs)})
}

// MatchVendor handles GET /api/v1/invoices/:id/vendor-match.
// Data is null when no directory entry matches.
func (h *Handlers) MatchVendor(c *gin.Context) {
	invoice, ok := h.visibleInvoice(c)
	if !ok {
		return
	}
	match, err := h.services.Vendors.MatchInvoice(c.Request.Context(), invoice.ID)
	if err != nil {
		h.respondError(c, "match vendor", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: match})
}

// ListPendingApprovals handles GET /api/v1/approvals/pending
func (h *Handlers) ListPendingApprovals(c *gin.Context) {
	invoices, err := h.services.Invoices.ListPendingApproval(c.Request.Context())
	if err != nil {
		h.respondError(c, "list pending approvals", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: nonNil(invoices)})
}

// EditFields handles PUT /api/v1/approvals/:id/fields
func (h *Handlers) EditFields(c *gin.Context) {
	session, _ := sessionFrom(c)

	var req EditFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "fields object is required"})
		return
	}

	if err := h.services.Approvals.EditFields(c.Request.Context(), c.Param("id"), req.Fields, session); err != nil {
		h.respondError(c, "edit fields", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// Approve handles POST /api/v1/approvals/:id/approve.
// A duplicate flag answers 409 with the webhook payload; the approval itself is already stored.
func (h *Handlers) Approve(c *gin.Context) {
	session, _ := sessionFrom(c)

	var req ApproveRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	err := h.services.Approvals.Approve(c.Request.Context(), c.Param("id"), session, service.ApproveOptions{
		Fields:            req.Fields,
		OverrideDuplicate: req.OverrideDuplicate,
		OverrideReason:    req.OverrideReason,
	})
	if err != nil {
		h.respondError(c, "approve invoice", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// Reject handles POST /api/v1/approvals/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	session, _ := sessionFrom(c)

	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	if err := h.services.Approvals.Reject(c.Request.Context(), c.Param("id"), session, req.Comment, req.Fields); err != nil {
		h.respondError(c, "reject invoice", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ListHistory handles GET /api/v1/history?limit=N
func (h *Handlers) ListHistory(c *gin.Context) {
	limit, ok := historyLimit(c)
	if !ok {
		return
	}
	invoices, err := h.services.Invoices.ListHistory(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, "list history", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: nonNil(invoices)})
}

// ExportHistory handles GET /api/v1/history/export.xlsx
func (h *Handlers) ExportHistory(c *gin.Context) {
	limit, ok := historyLimit(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	rows, err := h.services.Export.ExportHistory(c.Request.Context(), &buf, limit)
	if err != nil {
		h.respondError(c, "export history", err)
		return
	}

	filename := fmt.Sprintf("invoice-history-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("X-Row-Count", strconv.Itoa(rows))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// visibleInvoice loads :id and hides other users' invoices from staff
func (h *Handlers) visibleInvoice(c *gin.Context) (*entity.Invoice, bool) {
	session, _ := sessionFrom(c)

	invoice, err := h.services.Invoices.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "get invoice", err)
		return nil, false
	}
	if session.Role == entity.RoleStaff && invoice.UserID != session.ActorID {
		c.JSON(http.StatusForbidden, Response{Success: false, Error: "invoice belongs to another user"})
		return nil, false
	}
	return invoice, true
}

func historyLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultHistoryLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "limit must be a positive integer"})
		return 0, false
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return limit, true
}

// bindOptionalJSON accepts an empty body
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return false
	}
	return true
}

// nonNil keeps empty lists as [] instead of null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
