package service

import (
	"context"
	"testing"

	invoicedomain "github.com/smallbiznis/samda/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func (f *fixture) settle(t *testing.T, id string) *invoicedomain.Invoice {
	t.Helper()
	var settled *invoicedomain.Invoice
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		invoice, err := f.ledger.Lock(context.Background(), tx, id)
		if err != nil {
			return err
		}
		if err := f.ledger.Settle(context.Background(), tx, invoice); err != nil {
			return err
		}
		settled = invoice
		return nil
	}))
	return settled
}

func TestSettleFollowsAllocations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addStandardProfile(t)
	draft := f.standardDraft(t)
	_, err := f.svc.Issue(ctx, draft.ID.String())
	require.NoError(t, err)

	settled := f.settle(t, draft.ID.String())
	assert.Equal(t, invoicedomain.StatusIssued, settled.Status)

	f.allocate(t, draft.ID, "50.00")
	settled = f.settle(t, draft.ID.String())
	assert.Equal(t, invoicedomain.StatusPartPaid, settled.Status)

	f.allocate(t, draft.ID, "100.01")
	settled = f.settle(t, draft.ID.String())
	assert.Equal(t, invoicedomain.StatusPaid, settled.Status)

	stored, err := f.svc.GetByID(ctx, draft.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.StatusPaid, stored.Status)
	assertAmount(t, "150.01", stored.Allocated)
	assertAmount(t, "0.00", stored.BalanceDue)
}

func TestSettleLeavesVoidAndDraftAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft := f.createDraft(t, "NONVAT", invoicedomain.LineRequest{Description: "Item", Quantity: "1", UnitPrice: "10"})
	assert.Equal(t, invoicedomain.StatusDraft, f.settle(t, draft.ID.String()).Status)

	issued := f.createDraft(t, "NONVAT", invoicedomain.LineRequest{Description: "Item", Quantity: "1", UnitPrice: "10"})
	_, err := f.svc.Issue(ctx, issued.ID.String())
	require.NoError(t, err)
	f.allocate(t, issued.ID, "4")
	_, err = f.svc.Void(ctx, issued.ID.String(), "written off")
	require.NoError(t, err)

	assert.Equal(t, invoicedomain.StatusVoid, f.settle(t, issued.ID.String()).Status)
}

func TestLedgerBalanceDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issued := f.createDraft(t, "NONVAT", invoicedomain.LineRequest{Description: "Item", Quantity: "3", UnitPrice: "33.33"})
	_, err := f.svc.Issue(ctx, issued.ID.String())
	require.NoError(t, err)
	f.allocate(t, issued.ID, "0.99")

	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		invoice, err := f.ledger.Lock(ctx, tx, issued.ID.String())
		require.NoError(t, err)
		balance, err := f.ledger.BalanceDue(ctx, tx, invoice)
		require.NoError(t, err)
		assertAmount(t, "99.00", balance)
		return nil
	}))

	err = f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.ledger.Lock(ctx, tx, "not-an-id")
		return err
	})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidID)
}
