package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/samda/internal/payment/domain"
	"github.com/smallbiznis/samda/pkg/money"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) FindPayment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var items []domain.Payment
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) LockPayment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var payment domain.Payment
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repo) ListRecent(ctx context.Context, db *gorm.DB, limit int) ([]domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).
		Order("received_date DESC").
		Order("id DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertAllocation(ctx context.Context, db *gorm.DB, allocation *domain.Allocation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_allocations (id, payment_id, invoice_id, amount, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		allocation.ID,
		allocation.PaymentID,
		allocation.InvoiceID,
		allocation.Amount,
		allocation.CreatedAt,
	).Error
}

func (r *repo) ListAllocations(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) ([]domain.Allocation, error) {
	var items []domain.Allocation
	err := db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

type allocatedRow struct {
	PaymentID snowflake.ID
	Allocated decimal.Decimal
}

func (r *repo) SumAllocated(ctx context.Context, db *gorm.DB, paymentIDs ...snowflake.ID) (map[snowflake.ID]decimal.Decimal, error) {
	result := make(map[snowflake.ID]decimal.Decimal, len(paymentIDs))
	if len(paymentIDs) == 0 {
		return result, nil
	}

	var rows []allocatedRow
	err := db.WithContext(ctx).Raw(
		`SELECT payment_id, COALESCE(SUM(amount), 0) AS allocated
		 FROM payment_allocations
		 WHERE payment_id IN ?
		 GROUP BY payment_id`,
		paymentIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.PaymentID] = money.Round(row.Allocated)
	}
	return result, nil
}

func (r *repo) InsertReceipt(ctx context.Context, db *gorm.DB, receipt *domain.Receipt) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_id"}},
			DoNothing: true,
		}).
		Create(receipt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindReceipt(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Receipt, error) {
	var receipt domain.Receipt
	err := db.WithContext(ctx).Raw(
		`SELECT id, receipt_no, payment_id, issued_date, created_at
		 FROM receipts
		 WHERE id = ?`,
		id,
	).Scan(&receipt).Error
	if err != nil {
		return nil, err
	}
	if receipt.ID == 0 {
		return nil, nil
	}
	return &receipt, nil
}

func (r *repo) FindReceiptByPayment(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (*domain.Receipt, error) {
	var receipt domain.Receipt
	err := db.WithContext(ctx).Raw(
		`SELECT id, receipt_no, payment_id, issued_date, created_at
		 FROM receipts
		 WHERE payment_id = ?
		 LIMIT 1`,
		paymentID,
	).Scan(&receipt).Error
	if err != nil {
		return nil, err
	}
	if receipt.ID == 0 {
		return nil, nil
	}
	return &receipt, nil
}
