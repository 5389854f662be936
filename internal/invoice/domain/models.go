// Package domain contains the invoice models and the pure ledger arithmetic.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	sequencedomain "github.com/smallbiznis/samda/internal/sequence/domain"
	taxdomain "github.com/smallbiznis/samda/internal/tax/domain"
	"github.com/smallbiznis/samda/pkg/money"
)

// Type is fixed when the invoice is created.
type Type string

const (
	TypeVAT    Type = "VAT"
	TypeNonVAT Type = "NONVAT"
)

func (t Type) Valid() bool {
	return t == TypeVAT || t == TypeNonVAT
}

// SequenceKey is the numbering category the invoice draws from at issuance.
func (t Type) SequenceKey() string {
	if t == TypeVAT {
		return sequencedomain.KeyInvoiceVAT
	}
	return sequencedomain.KeyInvoiceNonVAT
}

// Status represents the invoice lifecycle. Transitions only move forward:
// DRAFT -> ISSUED -> PART_PAID -> PAID, and VOID from anything but PAID.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusIssued   Status = "ISSUED"
	StatusPartPaid Status = "PART_PAID"
	StatusPaid     Status = "PAID"
	StatusVoid     Status = "VOID"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusIssued, StatusPartPaid, StatusPaid, StatusVoid:
		return true
	}
	return false
}

// Allocatable reports whether payments may be applied to an invoice in s.
func (s Status) Allocatable() bool {
	return s == StatusIssued || s == StatusPartPaid
}

// Voidable reports whether an administrative void is allowed from s.
func (s Status) Voidable() bool {
	return s == StatusDraft || s == StatusIssued || s == StatusPartPaid
}

// Invoice is a customer invoice. Subtotal, VAT, NHIL, GETFund and Total are
// cached results of ComputeTotals and are only written by the ledger.
type Invoice struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	CustomerID   snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	Type         Type            `gorm:"column:invoice_type;type:varchar(10);not null" json:"invoice_type"`
	Status       Status          `gorm:"type:varchar(12);not null;index" json:"status"`
	InvoiceNo    *string         `gorm:"column:invoice_no;type:varchar(60);uniqueIndex" json:"invoice_no,omitempty"`
	IssueDate    time.Time       `gorm:"type:date;not null" json:"issue_date"`
	DueDate      *time.Time      `gorm:"type:date" json:"due_date,omitempty"`
	Notes        string          `gorm:"type:text" json:"notes"`
	TaxProfileID *snowflake.ID   `gorm:"column:tax_profile_id;index" json:"tax_profile_id,omitempty"`
	Subtotal     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	VAT          decimal.Decimal `gorm:"column:vat;type:numeric(12,2);not null" json:"vat"`
	NHIL         decimal.Decimal `gorm:"column:nhil;type:numeric(12,2);not null" json:"nhil"`
	GETFund      decimal.Decimal `gorm:"column:getfund;type:numeric(12,2);not null" json:"getfund"`
	Total        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	IssuedAt     *time.Time      `json:"issued_at,omitempty"`
	VoidedAt     *time.Time      `json:"voided_at,omitempty"`
	VoidReason   string          `gorm:"type:text" json:"void_reason,omitempty"`
	CreatedAt    time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null" json:"updated_at"`
}

func (Invoice) TableName() string { return "invoices" }

func (i Invoice) Totals() Totals {
	return Totals{
		Subtotal: i.Subtotal,
		VAT:      i.VAT,
		NHIL:     i.NHIL,
		GETFund:  i.GETFund,
		Total:    i.Total,
	}
}

func (i *Invoice) ApplyTotals(t Totals) {
	i.Subtotal = t.Subtotal
	i.VAT = t.VAT
	i.NHIL = t.NHIL
	i.GETFund = t.GETFund
	i.Total = t.Total
}

// InvoiceLine belongs to exactly one invoice and is deleted with it.
type InvoiceLine struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	Position    int             `gorm:"not null" json:"position"`
	Description string          `gorm:"type:varchar(250);not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
}

func (InvoiceLine) TableName() string { return "invoice_lines" }

// LineTotal is the rounded line amount shown on documents. Subtotals are
// computed from the exact products, not from these.
func (l InvoiceLine) LineTotal() decimal.Decimal {
	return money.Round(l.Quantity.Mul(l.UnitPrice))
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	VAT      decimal.Decimal `json:"vat"`
	NHIL     decimal.Decimal `json:"nhil"`
	GETFund  decimal.Decimal `json:"getfund"`
	Total    decimal.Decimal `json:"total"`
}

func (t Totals) Equal(other Totals) bool {
	return t.Subtotal.Equal(other.Subtotal) &&
		t.VAT.Equal(other.VAT) &&
		t.NHIL.Equal(other.NHIL) &&
		t.GETFund.Equal(other.GETFund) &&
		t.Total.Equal(other.Total)
}

// ComputeTotals derives the monetary fields of an invoice. The subtotal is
// the exact sum of quantity times unit price rounded once. Each levy is a
// flat fraction of the subtotal. Non-VAT invoices and VAT invoices without
// rates carry no tax.
func ComputeTotals(t Type, lines []InvoiceLine, rates *taxdomain.Rates) Totals {
	gross := decimal.Zero
	for _, line := range lines {
		gross = gross.Add(line.Quantity.Mul(line.UnitPrice))
	}

	totals := Totals{
		Subtotal: money.Round(gross),
		VAT:      money.Zero,
		NHIL:     money.Zero,
		GETFund:  money.Zero,
	}
	if t == TypeVAT && rates != nil {
		totals.VAT = money.Round(totals.Subtotal.Mul(rates.VAT))
		totals.NHIL = money.Round(totals.Subtotal.Mul(rates.NHIL))
		totals.GETFund = money.Round(totals.Subtotal.Mul(rates.GETFund))
	}
	totals.Total = money.Sum(totals.Subtotal, totals.VAT, totals.NHIL, totals.GETFund)
	return totals
}

// BalanceDue is total minus what has been allocated. A negative result means
// an over-allocation slipped through and is never a normal state.
func BalanceDue(total, allocated decimal.Decimal) decimal.Decimal {
	return money.Round(total.Sub(allocated))
}

// DeriveStatus maps an issued invoice's allocation state to its status.
// DRAFT and VOID are never changed by allocations. Once any allocation
// exists the invoice cannot return to ISSUED.
func DeriveStatus(current Status, total, allocated decimal.Decimal, allocations int64) Status {
	switch current {
	case StatusDraft, StatusVoid:
		return current
	}
	if allocations == 0 {
		return StatusIssued
	}
	if BalanceDue(total, allocated).LessThanOrEqual(decimal.Zero) {
		return StatusPaid
	}
	return StatusPartPaid
}
