package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status     Status
	Type       Type
	CustomerID snowflake.ID
}

// AllocationSummary is the allocated amount against one invoice.
type AllocationSummary struct {
	InvoiceID snowflake.ID
	Allocated decimal.Decimal
	Count     int64
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	LockByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, afterID snowflake.ID, limit int) ([]Invoice, error)
	ListOutstanding(ctx context.Context, db *gorm.DB, limit int) ([]Invoice, error)

	UpdateDraft(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	UpdateTotals(ctx context.Context, db *gorm.DB, id snowflake.ID, totals Totals, at time.Time) error
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, at time.Time) error
	MarkIssued(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	MarkVoid(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, at time.Time) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	InsertLines(ctx context.Context, db *gorm.DB, lines []InvoiceLine) error
	ListLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceLine, error)
	DeleteLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) error

	// SumAllocations reads payment_allocations for the given invoices.
	// Invoices without allocations are absent from the result.
	SumAllocations(ctx context.Context, db *gorm.DB, invoiceIDs ...snowflake.ID) (map[snowflake.ID]AllocationSummary, error)
}
