package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

type RecordPaymentRequest struct {
	CustomerID   string `json:"customer_id"`
	PayerName    string `json:"payer_name" validate:"required,max=200"`
	Method       string `json:"method" validate:"required,oneof=CASH MOMO BANK CHEQUE"`
	Amount       string `json:"amount" validate:"required,numeric"`
	ReceivedDate string `json:"received_date" validate:"omitempty,datetime=2006-01-02"`
	Reference    string `json:"reference" validate:"max=120"`
}

type AllocateRequest struct {
	InvoiceID string `json:"invoice_id" validate:"required"`
	Amount    string `json:"amount" validate:"required,numeric"`
}

// PaymentView is a payment with what has been applied from it so far.
type PaymentView struct {
	Payment
	Allocations []Allocation    `json:"allocations,omitempty"`
	Allocated   decimal.Decimal `json:"allocated"`
	Remaining   decimal.Decimal `json:"remaining"`
	Receipt     *Receipt        `json:"receipt,omitempty"`
}

type ReceiptView struct {
	Receipt
	Payment     Payment      `json:"payment"`
	Allocations []Allocation `json:"allocations"`
}

type Service interface {
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (Payment, error)
	GetByID(ctx context.Context, id string) (PaymentView, error)
	ListAllocations(ctx context.Context, paymentID string) ([]Allocation, error)
	RecentPayments(ctx context.Context, limit int) ([]PaymentView, error)
	// Allocate applies amount of a payment to an invoice. Refusals are
	// *RejectionError and leave no trace.
	Allocate(ctx context.Context, paymentID string, req AllocateRequest) (Allocation, error)
	// IssueReceipt returns the payment's receipt, numbering a new one the
	// first time and settling every invoice the payment touched.
	IssueReceipt(ctx context.Context, paymentID string) (Receipt, error)
	GetReceipt(ctx context.Context, id string) (ReceiptView, error)
}
