package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/invoice-approval/internal/domain/workflow"
)

// Error codes returned alongside 409 responses
const (
	CodeDuplicate         = "duplicate_invoice"
	CodeInvalidTransition = "invalid_transition"
)

// respondError maps workflow errors onto status codes. Unknown errors are
// logged and hidden behind a generic 500.
func (h *Handlers) respondError(c *gin.Context, op string, err error) {
	var (
		validationErr *workflow.ValidationError
		notFoundErr   *workflow.NotFoundError
		duplicateErr  *workflow.DuplicateInvoiceError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: validationErr.Error()})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: notFoundErr.Error()})
	case errors.As(err, &duplicateErr):
		c.JSON(http.StatusConflict, Response{
			Success: false,
			Error:   duplicateErr.Error(),
			Code:    CodeDuplicate,
			Data:    duplicateErr.Payload,
		})
	case errors.Is(err, workflow.ErrInvalidTransition):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error(), Code: CodeInvalidTransition})
	default:
		h.logger.Error("Request failed", "op", op, "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: op + " failed"})
	}
}
