package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/samda/internal/invoice/domain"
	"github.com/smallbiznis/samda/pkg/money"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() invoicedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var items []invoicedomain.Invoice
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) LockByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter invoicedomain.ListFilter, afterID snowflake.ID, limit int) ([]invoicedomain.Invoice, error) {
	stmt := db.WithContext(ctx).Model(&invoicedomain.Invoice{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		stmt = stmt.Where("invoice_type = ?", filter.Type)
	}
	if filter.CustomerID != 0 {
		stmt = stmt.Where("customer_id = ?", filter.CustomerID)
	}
	if afterID != 0 {
		stmt = stmt.Where("id < ?", afterID)
	}

	var items []invoicedomain.Invoice
	if err := stmt.Order("id DESC").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListOutstanding(ctx context.Context, db *gorm.DB, limit int) ([]invoicedomain.Invoice, error) {
	var items []invoicedomain.Invoice
	err := db.WithContext(ctx).
		Where("status IN ?", []invoicedomain.Status{invoicedomain.StatusIssued, invoicedomain.StatusPartPaid}).
		Order("issue_date ASC").
		Order("id ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateDraft(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) error {
	return db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ? AND status = ?", invoice.ID, invoicedomain.StatusDraft).
		Updates(map[string]any{
			"issue_date": invoice.IssueDate,
			"due_date":   invoice.DueDate,
			"notes":      invoice.Notes,
			"updated_at": invoice.UpdatedAt,
		}).Error
}

func (r *repo) UpdateTotals(ctx context.Context, db *gorm.DB, id snowflake.ID, totals invoicedomain.Totals, at time.Time) error {
	return db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"subtotal":   totals.Subtotal,
			"vat":        totals.VAT,
			"nhil":       totals.NHIL,
			"getfund":    totals.GETFund,
			"total":      totals.Total,
			"updated_at": at,
		}).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status invoicedomain.Status, at time.Time) error {
	return db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": at,
		}).Error
}

// MarkIssued writes everything issuance freezes in one statement.
func (r *repo) MarkIssued(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) error {
	result := db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ? AND status = ?", invoice.ID, invoicedomain.StatusDraft).
		Updates(map[string]any{
			"invoice_no":     invoice.InvoiceNo,
			"tax_profile_id": invoice.TaxProfileID,
			"status":         invoice.Status,
			"subtotal":       invoice.Subtotal,
			"vat":            invoice.VAT,
			"nhil":           invoice.NHIL,
			"getfund":        invoice.GETFund,
			"total":          invoice.Total,
			"issued_at":      invoice.IssuedAt,
			"updated_at":     invoice.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return invoicedomain.ErrInvoiceNotDraft
	}
	return nil
}

func (r *repo) MarkVoid(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      invoicedomain.StatusVoid,
			"void_reason": reason,
			"voided_at":   at,
			"updated_at":  at,
		}).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	if err := r.DeleteLines(ctx, db, id); err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(`DELETE FROM invoices WHERE id = ?`, id).Error
}

func (r *repo) InsertLines(ctx context.Context, db *gorm.DB, lines []invoicedomain.InvoiceLine) error {
	if len(lines) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&lines).Error
}

func (r *repo) ListLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]invoicedomain.InvoiceLine, error) {
	var lines []invoicedomain.InvoiceLine
	err := db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("position ASC").
		Order("id ASC").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repo) DeleteLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM invoice_lines WHERE invoice_id = ?`, invoiceID).Error
}

type allocationRow struct {
	InvoiceID snowflake.ID
	Allocated decimal.Decimal
	Count     int64
}

func (r *repo) SumAllocations(ctx context.Context, db *gorm.DB, invoiceIDs ...snowflake.ID) (map[snowflake.ID]invoicedomain.AllocationSummary, error) {
	result := make(map[snowflake.ID]invoicedomain.AllocationSummary, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return result, nil
	}

	var rows []allocationRow
	err := db.WithContext(ctx).Raw(
		`SELECT invoice_id, COALESCE(SUM(amount), 0) AS allocated, COUNT(*) AS count
		 FROM payment_allocations
		 WHERE invoice_id IN ?
		 GROUP BY invoice_id`,
		invoiceIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		result[row.InvoiceID] = invoicedomain.AllocationSummary{
			InvoiceID: row.InvoiceID,
			Allocated: money.Round(row.Allocated),
			Count:     row.Count,
		}
	}
	return result, nil
}
