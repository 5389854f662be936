package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/samda/internal/clock"
	invoicedomain "github.com/smallbiznis/samda/internal/invoice/domain"
	taxdomain "github.com/smallbiznis/samda/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type LedgerParams struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Repo     invoicedomain.Repository
	Resolver taxdomain.Resolver
}

type Ledger struct {
	log      *zap.Logger
	clock    clock.Clock
	repo     invoicedomain.Repository
	resolver taxdomain.Resolver
}

func NewLedger(p LedgerParams) invoicedomain.Ledger {
	return &Ledger{
		log:      p.Log.Named("invoice.ledger"),
		clock:    p.Clock,
		repo:     p.Repo,
		resolver: p.Resolver,
	}
}

func (l *Ledger) Lock(ctx context.Context, tx *gorm.DB, id string) (*invoicedomain.Invoice, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	invoice, err := l.repo.LockByID(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrNotFound
	}
	return invoice, nil
}

func (l *Ledger) Recompute(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice) (invoicedomain.Totals, error) {
	rates, err := l.ratesFor(ctx, tx, invoice)
	if err != nil {
		return invoicedomain.Totals{}, err
	}
	lines, err := l.repo.ListLines(ctx, tx, invoice.ID)
	if err != nil {
		return invoicedomain.Totals{}, err
	}

	totals := invoicedomain.ComputeTotals(invoice.Type, lines, rates)
	if totals.Equal(invoice.Totals()) {
		return totals, nil
	}

	now := l.clock.Now()
	if err := l.repo.UpdateTotals(ctx, tx, invoice.ID, totals, now); err != nil {
		return invoicedomain.Totals{}, err
	}
	invoice.ApplyTotals(totals)
	invoice.UpdatedAt = now
	return totals, nil
}

func (l *Ledger) BalanceDue(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice) (decimal.Decimal, error) {
	summary, err := l.allocations(ctx, tx, invoice.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return invoicedomain.BalanceDue(invoice.Total, summary.Allocated), nil
}

func (l *Ledger) Settle(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice) error {
	if _, err := l.Recompute(ctx, tx, invoice); err != nil {
		return err
	}
	summary, err := l.allocations(ctx, tx, invoice.ID)
	if err != nil {
		return err
	}

	status := invoicedomain.DeriveStatus(invoice.Status, invoice.Total, summary.Allocated, summary.Count)
	now := l.clock.Now()
	if err := l.repo.UpdateStatus(ctx, tx, invoice.ID, status, now); err != nil {
		return err
	}
	if status != invoice.Status {
		l.log.Debug("invoice settled",
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("from", string(invoice.Status)),
			zap.String("to", string(status)),
		)
	}
	invoice.Status = status
	invoice.UpdatedAt = now
	return nil
}

// ratesFor returns nil when the invoice carries no tax.
func (l *Ledger) ratesFor(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice) (*taxdomain.Rates, error) {
	if invoice.Type != invoicedomain.TypeVAT {
		return nil, nil
	}

	var (
		profile *taxdomain.TaxProfile
		err     error
	)
	switch {
	case invoice.Status == invoicedomain.StatusDraft:
		profile, err = l.resolver.ActiveProfileAsOf(ctx, tx, l.clock.Now())
	case invoice.TaxProfileID != nil:
		profile, err = l.resolver.ProfileByID(ctx, tx, *invoice.TaxProfileID)
	}
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, nil
	}

	rates := profile.Rates()
	return &rates, nil
}

func (l *Ledger) allocations(ctx context.Context, tx *gorm.DB, id snowflake.ID) (invoicedomain.AllocationSummary, error) {
	summaries, err := l.repo.SumAllocations(ctx, tx, id)
	if err != nil {
		return invoicedomain.AllocationSummary{}, err
	}
	summary, ok := summaries[id]
	if !ok {
		return invoicedomain.AllocationSummary{InvoiceID: id, Allocated: decimal.Zero}, nil
	}
	return summary, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, invoicedomain.ErrInvalidID
	}
	return id, nil
}
