package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodCash   Method = "CASH"
	MethodMoMo   Method = "MOMO"
	MethodBank   Method = "BANK"
	MethodCheque Method = "CHEQUE"
)

func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodMoMo, MethodBank, MethodCheque:
		return true
	}
	return false
}

// Payment is money received. It is never edited after it is recorded, only
// allocated.
type Payment struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	CustomerID   *snowflake.ID   `gorm:"index" json:"customer_id,omitempty"`
	PayerName    string          `gorm:"type:varchar(200);not null" json:"payer_name"`
	Method       Method          `gorm:"type:varchar(10);not null" json:"method"`
	Amount       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	ReceivedDate time.Time       `gorm:"type:date;not null;index" json:"received_date"`
	Reference    string          `gorm:"type:varchar(120)" json:"reference"`
	CreatedAt    time.Time       `gorm:"not null" json:"created_at"`
}

func (Payment) TableName() string { return "payments" }

// Allocation applies part of a payment to one invoice. Rows are append-only.
type Allocation struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	PaymentID snowflake.ID    `gorm:"not null;index" json:"payment_id"`
	InvoiceID snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	Amount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
}

func (Allocation) TableName() string { return "payment_allocations" }

type Receipt struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	ReceiptNo  string       `gorm:"column:receipt_no;type:varchar(60);not null;uniqueIndex" json:"receipt_no"`
	PaymentID  snowflake.ID `gorm:"not null;uniqueIndex" json:"payment_id"`
	IssuedDate time.Time    `gorm:"type:date;not null" json:"issued_date"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
}

func (Receipt) TableName() string { return "receipts" }
