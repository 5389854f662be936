package domain

import "errors"

var (
	ErrInvalidID             = errors.New("invalid_invoice_id")
	ErrInvalidCustomer       = errors.New("invalid_customer")
	ErrInvalidType           = errors.New("invalid_invoice_type")
	ErrInvalidStatus         = errors.New("invalid_invoice_status")
	ErrInvalidDate           = errors.New("invalid_date")
	ErrInvalidDueDate        = errors.New("due_date_before_issue_date")
	ErrInvalidLine           = errors.New("invalid_invoice_line")
	ErrNotFound              = errors.New("invoice_not_found")
	ErrInvoiceNotDraft       = errors.New("invoice_not_draft")
	ErrInvoiceNotVoidable    = errors.New("invoice_not_voidable")
	ErrInvoiceHasAllocations = errors.New("invoice_has_allocations")
)
