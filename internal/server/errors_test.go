package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/samda/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/samda/internal/payment/domain"
	taxdomain "github.com/smallbiznis/samda/internal/tax/domain"
	"github.com/smallbiznis/samda/pkg/db"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid id", invoicedomain.ErrInvalidID, http.StatusBadRequest},
		{"wrapped invalid amount", fmt.Errorf("record: %w", paymentdomain.ErrInvalidAmount), http.StatusBadRequest},
		{"not draft", invoicedomain.ErrInvoiceNotDraft, http.StatusConflict},
		{"has allocations", invoicedomain.ErrInvoiceHasAllocations, http.StatusConflict},
		{"missing payment", paymentdomain.ErrNotFound, http.StatusNotFound},
		{"no active tax profile", taxdomain.ErrNoActiveProfile, http.StatusNotFound},
		{"lock contention", db.ErrConcurrencyConflict, http.StatusServiceUnavailable},
		{"unknown", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := mapError(tt.err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestMapErrorAllocationRejection(t *testing.T) {
	status, payload := mapError(&paymentdomain.RejectionError{
		Reason:    paymentdomain.ErrExceedsBalanceDue,
		Requested: decimal.RequireFromString("50"),
		Limit:     decimal.RequireFromString("40"),
	})

	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "allocation_rejected", payload.Type)
	assert.Equal(t, paymentdomain.ErrExceedsBalanceDue.Error(), payload.Reason)
	assert.Equal(t, "50.00", payload.Requested)
	assert.Equal(t, "40.00", payload.Limit)

	_, payload = mapError(&paymentdomain.RejectionError{
		Reason:        paymentdomain.ErrInvoiceNotAllocatable,
		Requested:     decimal.RequireFromString("5"),
		InvoiceStatus: "PAID",
	})
	assert.Empty(t, payload.Limit)
	assert.Equal(t, "PAID", payload.InvoiceStatus)
}
