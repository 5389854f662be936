package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/samda/pkg/db/pagination"
	"gorm.io/gorm"
)

// Ledger owns the derived fields of an invoice. Every method runs on the
// caller's transaction and expects the invoice row to be locked by it.
type Ledger interface {
	// Lock loads the invoice with a row lock held until tx ends.
	Lock(ctx context.Context, tx *gorm.DB, id string) (*Invoice, error)
	// Recompute refreshes the cached totals from the lines and the
	// applicable rates. Drafts use the profile active now, issued
	// invoices the frozen one.
	Recompute(ctx context.Context, tx *gorm.DB, invoice *Invoice) (Totals, error)
	// BalanceDue is the cached total minus all allocations.
	BalanceDue(ctx context.Context, tx *gorm.DB, invoice *Invoice) (decimal.Decimal, error)
	// Settle recomputes the invoice and persists the status its
	// allocations imply, even when nothing else changed.
	Settle(ctx context.Context, tx *gorm.DB, invoice *Invoice) error
}

type LineRequest struct {
	Description string `json:"description" validate:"required,max=250"`
	Quantity    string `json:"quantity" validate:"required,numeric"`
	UnitPrice   string `json:"unit_price" validate:"required,numeric"`
}

type CreateInvoiceRequest struct {
	CustomerID string        `json:"customer_id" validate:"required"`
	Type       string        `json:"invoice_type" validate:"required,oneof=VAT NONVAT"`
	IssueDate  string        `json:"issue_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate    string        `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Notes      string        `json:"notes"`
	Lines      []LineRequest `json:"lines" validate:"dive"`
}

type ReplaceLinesRequest struct {
	Lines []LineRequest `json:"lines" validate:"dive"`
}

type UpdateDraftRequest struct {
	IssueDate *string `json:"issue_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate   *string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Notes     *string `json:"notes"`
}

type ListInvoiceRequest struct {
	pagination.Pagination
	Status     string `form:"status"`
	Type       string `form:"invoice_type"`
	CustomerID string `form:"customer_id"`
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []InvoiceView `json:"invoices"`
}

// InvoiceView is the read model handed to presentation. Reading it never
// writes to the invoice.
type InvoiceView struct {
	Invoice
	Lines      []InvoiceLine   `json:"lines,omitempty"`
	Allocated  decimal.Decimal `json:"allocated"`
	BalanceDue decimal.Decimal `json:"balance_due"`
}

type Service interface {
	CreateDraft(ctx context.Context, req CreateInvoiceRequest) (InvoiceView, error)
	UpdateDraft(ctx context.Context, id string, req UpdateDraftRequest) (InvoiceView, error)
	ReplaceLines(ctx context.Context, id string, req ReplaceLinesRequest) (InvoiceView, error)
	GetByID(ctx context.Context, id string) (InvoiceView, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	// Outstanding lists issued and part-paid invoices, oldest first.
	Outstanding(ctx context.Context, limit int) ([]InvoiceView, error)
	Recompute(ctx context.Context, id string) (InvoiceView, error)
	// Issue numbers and freezes a draft. Invoices past DRAFT are returned
	// unchanged.
	Issue(ctx context.Context, id string) (InvoiceView, error)
	Void(ctx context.Context, id string, reason string) (InvoiceView, error)
	Delete(ctx context.Context, id string) error
}
