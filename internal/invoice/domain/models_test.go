package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/samda/internal/tax/domain"
	"github.com/smallbiznis/samda/pkg/money"
	"github.com/stretchr/testify/assert"
)

func line(qty, price string) InvoiceLine {
	return InvoiceLine{
		Quantity:  decimal.RequireFromString(qty),
		UnitPrice: decimal.RequireFromString(price),
	}
}

func ghanaRates() *taxdomain.Rates {
	return &taxdomain.Rates{
		VAT:     decimal.RequireFromString("0.15"),
		NHIL:    decimal.RequireFromString("0.025"),
		GETFund: decimal.RequireFromString("0.025"),
	}
}

func assertAmount(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.Equal(t, expected, money.String(actual))
}

func TestComputeTotalsVATInvoice(t *testing.T) {
	totals := ComputeTotals(TypeVAT, []InvoiceLine{line("2", "50.00"), line("1", "25.00")}, ghanaRates())

	assertAmount(t, "125.00", totals.Subtotal)
	assertAmount(t, "18.75", totals.VAT)
	// 3.125 rounds half up
	assertAmount(t, "3.13", totals.NHIL)
	assertAmount(t, "3.13", totals.GETFund)
	assertAmount(t, "150.01", totals.Total)
}

func TestComputeTotalsNonVATIgnoresRates(t *testing.T) {
	totals := ComputeTotals(TypeNonVAT, []InvoiceLine{line("3", "10.10")}, ghanaRates())

	assertAmount(t, "30.30", totals.Subtotal)
	assertAmount(t, "0.00", totals.VAT)
	assertAmount(t, "0.00", totals.NHIL)
	assertAmount(t, "0.00", totals.GETFund)
	assertAmount(t, "30.30", totals.Total)
}

func TestComputeTotalsWithoutRatesIsUntaxed(t *testing.T) {
	totals := ComputeTotals(TypeVAT, []InvoiceLine{line("1", "99.99")}, nil)

	assertAmount(t, "99.99", totals.Subtotal)
	assertAmount(t, "0.00", totals.VAT)
	assertAmount(t, "99.99", totals.Total)
}

func TestComputeTotalsSumsExactlyBeforeRounding(t *testing.T) {
	// each line is 0.0165; rounding per line would give 0.06
	lines := []InvoiceLine{line("0.33", "0.05"), line("0.33", "0.05"), line("0.33", "0.05")}
	totals := ComputeTotals(TypeNonVAT, lines, nil)

	assertAmount(t, "0.05", totals.Subtotal)
	assertAmount(t, "0.02", lines[0].LineTotal())
}

func TestComputeTotalsLeviesAreNotCascaded(t *testing.T) {
	totals := ComputeTotals(TypeVAT, []InvoiceLine{line("1", "1000.00")}, ghanaRates())

	assertAmount(t, "150.00", totals.VAT)
	assertAmount(t, "25.00", totals.NHIL)
	assertAmount(t, "25.00", totals.GETFund)
	assertAmount(t, "1200.00", totals.Total)
}

func TestComputeTotalsTotalIsSumOfComponents(t *testing.T) {
	cases := [][]InvoiceLine{
		{line("1", "0.01")},
		{line("7", "13.37"), line("0.5", "19.99")},
		{line("12.25", "3.33"), line("1", "0.07"), line("2", "1.01")},
		{},
	}
	for _, lines := range cases {
		totals := ComputeTotals(TypeVAT, lines, ghanaRates())
		sum := totals.Subtotal.Add(totals.VAT).Add(totals.NHIL).Add(totals.GETFund)
		assert.True(t, sum.Equal(totals.Total), "total %s != %s", totals.Total, sum)
	}
}

func TestComputeTotalsEmptyInvoice(t *testing.T) {
	totals := ComputeTotals(TypeVAT, nil, ghanaRates())
	assert.True(t, totals.Total.IsZero())
}

func TestBalanceDue(t *testing.T) {
	assertAmount(t, "90.01", BalanceDue(decimal.RequireFromString("150.01"), decimal.RequireFromString("60")))
	assertAmount(t, "0.00", BalanceDue(decimal.RequireFromString("150.01"), decimal.RequireFromString("150.01")))
}

func TestDeriveStatus(t *testing.T) {
	total := decimal.RequireFromString("100.00")
	cases := []struct {
		name        string
		current     Status
		allocated   string
		allocations int64
		want        Status
	}{
		{"draft is untouched", StatusDraft, "100", 1, StatusDraft},
		{"void is untouched", StatusVoid, "10", 1, StatusVoid},
		{"no allocations", StatusIssued, "0", 0, StatusIssued},
		{"partial", StatusIssued, "40", 1, StatusPartPaid},
		{"settled", StatusPartPaid, "100", 2, StatusPaid},
		{"part paid never returns to issued", StatusPartPaid, "99.99", 3, StatusPartPaid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveStatus(tc.current, total, decimal.RequireFromString(tc.allocated), tc.allocations)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestStatusRules(t *testing.T) {
	assert.True(t, StatusIssued.Allocatable())
	assert.True(t, StatusPartPaid.Allocatable())
	assert.False(t, StatusDraft.Allocatable())
	assert.False(t, StatusPaid.Allocatable())
	assert.False(t, StatusVoid.Allocatable())

	assert.True(t, StatusDraft.Voidable())
	assert.True(t, StatusPartPaid.Voidable())
	assert.False(t, StatusPaid.Voidable())
	assert.False(t, StatusVoid.Voidable())
}

func TestTypeSequenceKey(t *testing.T) {
	assert.Equal(t, "INV_VAT", TypeVAT.SequenceKey())
	assert.Equal(t, "INV_NONVAT", TypeNonVAT.SequenceKey())
	assert.False(t, Type("OTHER").Valid())
}
