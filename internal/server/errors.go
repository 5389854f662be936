package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/smallbiznis/samda/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/samda/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/samda/internal/payment/domain"
	sequencedomain "github.com/smallbiznis/samda/internal/sequence/domain"
	taxdomain "github.com/smallbiznis/samda/internal/tax/domain"
	"github.com/smallbiznis/samda/pkg/db"
	"github.com/smallbiznis/samda/pkg/money"
	"github.com/smallbiznis/samda/pkg/validate"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`

	// set on allocation rejections only
	Reason        string `json:"reason,omitempty"`
	Requested     string `json:"requested,omitempty"`
	Limit         string `json:"limit,omitempty"`
	InvoiceStatus string `json:"invoice_status,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var rejection *paymentdomain.RejectionError
	if errors.As(err, &rejection) {
		payload := errorPayload{
			Type:          "allocation_rejected",
			Message:       "allocation rejected",
			Reason:        rejection.Reason.Error(),
			Requested:     money.String(rejection.Requested),
			InvoiceStatus: rejection.InvoiceStatus,
		}
		if errors.Is(err, paymentdomain.ErrExceedsRemainingPayment) || errors.Is(err, paymentdomain.ErrExceedsBalanceDue) {
			payload.Limit = money.String(rejection.Limit)
		}
		return http.StatusUnprocessableEntity, payload
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if fields := validate.Fields(err); len(fields) > 0 {
		out := make([]ValidationError, 0, len(fields))
		for _, field := range fields {
			out = append(out, ValidationError{
				Field:   field.Field,
				Code:    field.Tag,
				Message: validationTagMessage(field),
			})
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  out,
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, db.ErrConcurrencyConflict),
		errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "concurrent update, retry the request",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, customerdomain.ErrInvalidName),
		errors.Is(err, customerdomain.ErrInvalidID),
		errors.Is(err, taxdomain.ErrInvalidName),
		errors.Is(err, taxdomain.ErrInvalidID),
		errors.Is(err, taxdomain.ErrInvalidRate),
		errors.Is(err, taxdomain.ErrInvalidEffectiveDate),
		errors.Is(err, invoicedomain.ErrInvalidID),
		errors.Is(err, invoicedomain.ErrInvalidCustomer),
		errors.Is(err, invoicedomain.ErrInvalidType),
		errors.Is(err, invoicedomain.ErrInvalidStatus),
		errors.Is(err, invoicedomain.ErrInvalidDate),
		errors.Is(err, invoicedomain.ErrInvalidDueDate),
		errors.Is(err, invoicedomain.ErrInvalidLine),
		errors.Is(err, paymentdomain.ErrInvalidID),
		errors.Is(err, paymentdomain.ErrInvalidCustomer),
		errors.Is(err, paymentdomain.ErrInvalidMethod),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidDate),
		errors.Is(err, sequencedomain.ErrInvalidKey):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, customerdomain.ErrCustomerInUse),
		errors.Is(err, invoicedomain.ErrInvoiceNotDraft),
		errors.Is(err, invoicedomain.ErrInvoiceNotVoidable),
		errors.Is(err, invoicedomain.ErrInvoiceHasAllocations),
		errors.Is(err, gorm.ErrDuplicatedKey):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, customerdomain.ErrCustomerInUse):
		return "customer is referenced by invoices or payments"
	case errors.Is(err, invoicedomain.ErrInvoiceNotDraft):
		return "invoice is no longer a draft"
	case errors.Is(err, invoicedomain.ErrInvoiceNotVoidable):
		return "invoice cannot be voided in its current status"
	case errors.Is(err, invoicedomain.ErrInvoiceHasAllocations):
		return "invoice has payment allocations"
	default:
		return "conflict"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, customerdomain.ErrNotFound),
		errors.Is(err, taxdomain.ErrNotFound),
		errors.Is(err, taxdomain.ErrNoActiveProfile),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrReceiptNotFound),
		errors.Is(err, sequencedomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationTagMessage(field validate.FieldError) string {
	switch field.Tag {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + field.Param
	case "max":
		return "must be at most " + field.Param + " characters"
	case "numeric":
		return "must be a number"
	case "datetime":
		return "must be a date in " + field.Param + " format"
	case "email":
		return "must be an email address"
	default:
		return "invalid value"
	}
}
