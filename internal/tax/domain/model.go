package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// TaxProfile is a dated set of levy rates. Rates are fractions
// (0.1500 for 15%). Profiles are never edited once invoices reference them,
// a rate change is a new profile with a later EffectiveFrom.
type TaxProfile struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"type:varchar(100);not null" json:"name"`
	VATRate       decimal.Decimal `gorm:"column:vat_rate;type:numeric(6,4);not null" json:"vat_rate"`
	NHILRate      decimal.Decimal `gorm:"column:nhil_rate;type:numeric(6,4);not null" json:"nhil_rate"`
	GETFundRate   decimal.Decimal `gorm:"column:getfund_rate;type:numeric(6,4);not null" json:"getfund_rate"`
	EffectiveFrom time.Time       `gorm:"column:effective_from;type:date;not null;index" json:"effective_from"`
	IsActive      bool            `gorm:"column:is_active;not null" json:"is_active"`
	CreatedAt     time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null" json:"updated_at"`
}

func (TaxProfile) TableName() string { return "tax_profiles" }

func (p TaxProfile) Rates() Rates {
	return Rates{VAT: p.VATRate, NHIL: p.NHILRate, GETFund: p.GETFundRate}
}

// Rates are the three levies applied to a VAT invoice. Each one is a flat
// fraction of the subtotal.
type Rates struct {
	VAT     decimal.Decimal
	NHIL    decimal.Decimal
	GETFund decimal.Decimal
}

func (r Rates) Validate() error {
	for _, rate := range []decimal.Decimal{r.VAT, r.NHIL, r.GETFund} {
		if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return ErrInvalidRate
		}
		if rate.Exponent() < -4 {
			return ErrInvalidRate
		}
	}
	return nil
}
