package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindPayment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	LockPayment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	ListRecent(ctx context.Context, db *gorm.DB, limit int) ([]Payment, error)

	InsertAllocation(ctx context.Context, db *gorm.DB, allocation *Allocation) error
	ListAllocations(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) ([]Allocation, error)
	// SumAllocated totals allocations per payment. Payments without
	// allocations are absent from the result.
	SumAllocated(ctx context.Context, db *gorm.DB, paymentIDs ...snowflake.ID) (map[snowflake.ID]decimal.Decimal, error)

	// InsertReceipt reports false when the payment already has a receipt.
	InsertReceipt(ctx context.Context, db *gorm.DB, receipt *Receipt) (bool, error)
	FindReceipt(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Receipt, error)
	FindReceiptByPayment(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (*Receipt, error)
}
