package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/samda/pkg/money"
)

var (
	ErrInvalidID       = errors.New("invalid_payment_id")
	ErrInvalidCustomer = errors.New("invalid_customer")
	ErrInvalidMethod   = errors.New("invalid_payment_method")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvalidDate     = errors.New("invalid_date")
	ErrNotFound        = errors.New("payment_not_found")
	ErrReceiptNotFound = errors.New("receipt_not_found")
)

// Allocation rejection reasons, in the order they are checked.
var (
	ErrNonPositiveAmount       = errors.New("allocation_amount_not_positive")
	ErrInvoiceNotAllocatable   = errors.New("invoice_not_allocatable")
	ErrExceedsRemainingPayment = errors.New("allocation_exceeds_remaining_payment")
	ErrExceedsBalanceDue       = errors.New("allocation_exceeds_balance_due")
)

// RejectionError is a refused allocation. Nothing was written. Limit is the
// bound the request broke: zero for a non-positive amount or a closed
// invoice, otherwise the remaining payment or the invoice balance.
type RejectionError struct {
	Reason        error
	Requested     decimal.Decimal
	Limit         decimal.Decimal
	InvoiceStatus string
}

func (e *RejectionError) Error() string {
	if e.InvoiceStatus != "" {
		return fmt.Sprintf("%s: invoice is %s", e.Reason, e.InvoiceStatus)
	}
	return fmt.Sprintf("%s: requested %s, limit %s", e.Reason, money.String(e.Requested), money.String(e.Limit))
}

func (e *RejectionError) Unwrap() error {
	return e.Reason
}

func reject(reason error, requested, limit decimal.Decimal) *RejectionError {
	return &RejectionError{Reason: reason, Requested: requested, Limit: limit}
}

func RejectNonPositive(requested decimal.Decimal) *RejectionError {
	return reject(ErrNonPositiveAmount, requested, money.Zero)
}

func RejectNotAllocatable(requested decimal.Decimal, status string) *RejectionError {
	rejection := reject(ErrInvoiceNotAllocatable, requested, money.Zero)
	rejection.InvoiceStatus = status
	return rejection
}

func RejectExceedsRemaining(requested, remaining decimal.Decimal) *RejectionError {
	return reject(ErrExceedsRemainingPayment, requested, remaining)
}

func RejectExceedsBalance(requested, balance decimal.Decimal) *RejectionError {
	return reject(ErrExceedsBalanceDue, requested, balance)
}
