package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/samda/internal/audit/domain"
	"github.com/smallbiznis/samda/internal/clock"
	customerdomain "github.com/smallbiznis/samda/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/samda/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/samda/internal/observability/metrics"
	"github.com/smallbiznis/samda/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/samda/internal/payment/domain"
	sequencedomain "github.com/smallbiznis/samda/internal/sequence/domain"
	"github.com/smallbiznis/samda/pkg/db"
	"github.com/smallbiznis/samda/pkg/db/pagination"
	"github.com/smallbiznis/samda/pkg/money"
	"github.com/smallbiznis/samda/pkg/validate"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultRecentLimit = 10

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       paymentdomain.Repository
	Ledger     invoicedomain.Ledger
	Sequences  sequencedomain.Allocator
	Customers  customerdomain.Repository
	AuditSvc   auditdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       paymentdomain.Repository
	ledger     invoicedomain.Ledger
	sequences  sequencedomain.Allocator
	customers  customerdomain.Repository
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		ledger:     p.Ledger,
		sequences:  p.Sequences,
		customers:  p.Customers,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) RecordPayment(ctx context.Context, req paymentdomain.RecordPaymentRequest) (paymentdomain.Payment, error) {
	req.PayerName = strings.TrimSpace(req.PayerName)
	req.Method = strings.ToUpper(strings.TrimSpace(req.Method))
	req.Amount = strings.TrimSpace(req.Amount)
	if err := validate.Struct(req); err != nil {
		return paymentdomain.Payment{}, err
	}

	method := paymentdomain.Method(req.Method)
	if !method.Valid() {
		return paymentdomain.Payment{}, paymentdomain.ErrInvalidMethod
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return paymentdomain.Payment{}, err
	}
	if !amount.IsPositive() {
		return paymentdomain.Payment{}, paymentdomain.ErrInvalidAmount
	}

	receivedDate := clock.Today(s.clock)
	if req.ReceivedDate != "" {
		parsed, err := time.Parse(time.DateOnly, req.ReceivedDate)
		if err != nil {
			return paymentdomain.Payment{}, paymentdomain.ErrInvalidDate
		}
		receivedDate = parsed.UTC()
	}

	payment := paymentdomain.Payment{
		ID:           s.genID.Generate(),
		PayerName:    req.PayerName,
		Method:       method,
		Amount:       amount,
		ReceivedDate: receivedDate,
		Reference:    strings.TrimSpace(req.Reference),
		CreatedAt:    s.clock.Now(),
	}

	if raw := strings.TrimSpace(req.CustomerID); raw != "" {
		customerID, err := snowflake.ParseString(raw)
		if err != nil || customerID == 0 {
			return paymentdomain.Payment{}, paymentdomain.ErrInvalidCustomer
		}
		customer, err := s.customers.FindByID(ctx, s.db, customerID)
		if err != nil {
			return paymentdomain.Payment{}, err
		}
		if customer == nil {
			return paymentdomain.Payment{}, paymentdomain.ErrInvalidCustomer
		}
		payment.CustomerID = &customerID
	}

	if err := s.repo.InsertPayment(ctx, s.db, &payment); err != nil {
		return paymentdomain.Payment{}, err
	}

	s.emitAudit(ctx, auditdomain.ActionPaymentRecorded, "Payment", payment.ID.String(),
		fmt.Sprintf("Recorded %s %s from %s", payment.Method, money.String(payment.Amount), payment.PayerName),
		map[string]any{
			"amount":    money.String(payment.Amount),
			"method":    string(payment.Method),
			"reference": payment.Reference,
		})
	return payment, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (paymentdomain.PaymentView, error) {
	paymentID, err := parseID(id)
	if err != nil {
		return paymentdomain.PaymentView{}, err
	}

	payment, err := s.repo.FindPayment(ctx, s.db, paymentID)
	if err != nil {
		return paymentdomain.PaymentView{}, err
	}
	if payment == nil {
		return paymentdomain.PaymentView{}, paymentdomain.ErrNotFound
	}

	allocations, err := s.repo.ListAllocations(ctx, s.db, paymentID)
	if err != nil {
		return paymentdomain.PaymentView{}, err
	}
	receipt, err := s.repo.FindReceiptByPayment(ctx, s.db, paymentID)
	if err != nil {
		return paymentdomain.PaymentView{}, err
	}

	allocated := sumAllocations(allocations)
	return paymentdomain.PaymentView{
		Payment:     *payment,
		Allocations: allocations,
		Allocated:   allocated,
		Remaining:   money.Round(payment.Amount.Sub(allocated)),
		Receipt:     receipt,
	}, nil
}

func (s *Service) ListAllocations(ctx context.Context, paymentID string) ([]paymentdomain.Allocation, error) {
	id, err := parseID(paymentID)
	if err != nil {
		return nil, err
	}
	payment, err := s.repo.FindPayment(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, paymentdomain.ErrNotFound
	}
	return s.repo.ListAllocations(ctx, s.db, id)
}

func (s *Service) RecentPayments(ctx context.Context, limit int) ([]paymentdomain.PaymentView, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > pagination.MaxPageSize {
		limit = pagination.MaxPageSize
	}

	payments, err := s.repo.ListRecent(ctx, s.db, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(payments))
	for _, payment := range payments {
		ids = append(ids, payment.ID)
	}
	allocated, err := s.repo.SumAllocated(ctx, s.db, ids...)
	if err != nil {
		return nil, err
	}

	views := make([]paymentdomain.PaymentView, 0, len(payments))
	for _, payment := range payments {
		used, ok := allocated[payment.ID]
		if !ok {
			used = money.Zero
		}
		views = append(views, paymentdomain.PaymentView{
			Payment:   payment,
			Allocated: used,
			Remaining: money.Round(payment.Amount.Sub(used)),
		})
	}
	return views, nil
}

func (s *Service) Allocate(ctx context.Context, paymentID string, req paymentdomain.AllocateRequest) (allocation paymentdomain.Allocation, err error) {
	id, err := parseID(paymentID)
	if err != nil {
		return paymentdomain.Allocation{}, err
	}
	req.InvoiceID = strings.TrimSpace(req.InvoiceID)
	req.Amount = strings.TrimSpace(req.Amount)
	if err := validate.Struct(req); err != nil {
		return paymentdomain.Allocation{}, err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return paymentdomain.Allocation{}, err
	}

	ctx, finish := tracing.StartSpan(ctx, "payment", "payment.allocate")
	defer func() {
		finish(err)
		s.obsMetrics.RecordAllocation(allocationOutcome(err))
	}()

	if !amount.IsPositive() {
		return paymentdomain.Allocation{}, paymentdomain.RejectNonPositive(amount)
	}

	var (
		invoiceNo string
		status    invoicedomain.Status
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// payment first, then invoice: the same order receipts use
		payment, err := s.repo.LockPayment(ctx, tx, id)
		if err != nil {
			return err
		}
		if payment == nil {
			return paymentdomain.ErrNotFound
		}

		invoice, err := s.ledger.Lock(ctx, tx, req.InvoiceID)
		if err != nil {
			return err
		}
		if !invoice.Status.Allocatable() {
			return paymentdomain.RejectNotAllocatable(amount, string(invoice.Status))
		}

		allocated, err := s.repo.SumAllocated(ctx, tx, payment.ID)
		if err != nil {
			return err
		}
		used, ok := allocated[payment.ID]
		if !ok {
			used = money.Zero
		}
		remaining := money.Round(payment.Amount.Sub(used))
		if amount.GreaterThan(remaining) {
			return paymentdomain.RejectExceedsRemaining(amount, remaining)
		}

		if _, err := s.ledger.Recompute(ctx, tx, invoice); err != nil {
			return err
		}
		balance, err := s.ledger.BalanceDue(ctx, tx, invoice)
		if err != nil {
			return err
		}
		if amount.GreaterThan(balance) {
			return paymentdomain.RejectExceedsBalance(amount, balance)
		}

		allocation = paymentdomain.Allocation{
			ID:        s.genID.Generate(),
			PaymentID: payment.ID,
			InvoiceID: invoice.ID,
			Amount:    amount,
			CreatedAt: s.clock.Now(),
		}
		if err := s.repo.InsertAllocation(ctx, tx, &allocation); err != nil {
			return err
		}
		if err := s.ledger.Settle(ctx, tx, invoice); err != nil {
			return err
		}

		status = invoice.Status
		if invoice.InvoiceNo != nil {
			invoiceNo = *invoice.InvoiceNo
		}
		return nil
	})
	if err != nil {
		var rejection *paymentdomain.RejectionError
		if errors.As(err, &rejection) {
			s.log.Info("allocation rejected",
				zap.String("payment_id", id.String()),
				zap.String("invoice_id", req.InvoiceID),
				zap.Error(err),
			)
			return paymentdomain.Allocation{}, err
		}
		return paymentdomain.Allocation{}, db.ClassifyTxError(err)
	}

	s.emitAudit(ctx, auditdomain.ActionPaymentAllocated, "Payment", id.String(),
		fmt.Sprintf("Allocated %s to %s", money.String(amount), invoiceNo),
		map[string]any{
			"allocation_id":  allocation.ID.String(),
			"invoice_id":     allocation.InvoiceID.String(),
			"amount":         money.String(amount),
			"invoice_status": string(status),
		})
	return allocation, nil
}

func (s *Service) IssueReceipt(ctx context.Context, paymentID string) (receipt paymentdomain.Receipt, err error) {
	id, err := parseID(paymentID)
	if err != nil {
		return paymentdomain.Receipt{}, err
	}

	ctx, finish := tracing.StartSpan(ctx, "payment", "payment.issue_receipt")
	defer func() { finish(err) }()

	var (
		created bool
		settled []string
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.repo.LockPayment(ctx, tx, id)
		if err != nil {
			return err
		}
		if payment == nil {
			return paymentdomain.ErrNotFound
		}

		existing, err := s.repo.FindReceiptByPayment(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing != nil {
			receipt = *existing
			return nil
		}

		number, err := s.sequences.Next(ctx, tx, sequencedomain.KeyReceipt)
		if err != nil {
			return err
		}
		receipt = paymentdomain.Receipt{
			ID:         s.genID.Generate(),
			ReceiptNo:  number,
			PaymentID:  id,
			IssuedDate: clock.Today(s.clock),
			CreatedAt:  s.clock.Now(),
		}
		inserted, err := s.repo.InsertReceipt(ctx, tx, &receipt)
		if err != nil {
			return err
		}
		if !inserted {
			// lost a race despite the lock; retrying returns the winner
			return db.ErrConcurrencyConflict
		}

		allocations, err := s.repo.ListAllocations(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, invoiceID := range touchedInvoices(allocations) {
			invoice, err := s.ledger.Lock(ctx, tx, invoiceID.String())
			if err != nil {
				return err
			}
			if err := s.ledger.Settle(ctx, tx, invoice); err != nil {
				return err
			}
			settled = append(settled, invoiceID.String())
		}

		created = true
		return nil
	})
	if err != nil {
		return paymentdomain.Receipt{}, db.ClassifyTxError(err)
	}

	if created {
		s.obsMetrics.RecordReceiptIssued()
		s.log.Info("receipt issued",
			zap.String("receipt_no", receipt.ReceiptNo),
			zap.String("payment_id", id.String()),
			zap.Int("settled_invoices", len(settled)),
		)
		s.emitAudit(ctx, auditdomain.ActionReceiptIssued, "Receipt", receipt.ID.String(),
			fmt.Sprintf("Issued %s for payment %s", receipt.ReceiptNo, id.String()),
			map[string]any{
				"payment_id":  id.String(),
				"invoice_ids": settled,
			})
	}
	return receipt, nil
}

func (s *Service) GetReceipt(ctx context.Context, id string) (paymentdomain.ReceiptView, error) {
	receiptID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || receiptID == 0 {
		return paymentdomain.ReceiptView{}, paymentdomain.ErrInvalidID
	}

	receipt, err := s.repo.FindReceipt(ctx, s.db, receiptID)
	if err != nil {
		return paymentdomain.ReceiptView{}, err
	}
	if receipt == nil {
		return paymentdomain.ReceiptView{}, paymentdomain.ErrReceiptNotFound
	}
	payment, err := s.repo.FindPayment(ctx, s.db, receipt.PaymentID)
	if err != nil {
		return paymentdomain.ReceiptView{}, err
	}
	if payment == nil {
		return paymentdomain.ReceiptView{}, paymentdomain.ErrNotFound
	}
	allocations, err := s.repo.ListAllocations(ctx, s.db, receipt.PaymentID)
	if err != nil {
		return paymentdomain.ReceiptView{}, err
	}

	return paymentdomain.ReceiptView{
		Receipt:     *receipt,
		Payment:     *payment,
		Allocations: allocations,
	}, nil
}

func (s *Service) emitAudit(ctx context.Context, action, objectType, objectID, message string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.Record(ctx, "", action, objectType, objectID, message, metadata)
}

// touchedInvoices returns each invoice once, in ascending id order so
// concurrent settlements lock rows in the same sequence.
func touchedInvoices(allocations []paymentdomain.Allocation) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(allocations))
	ids := make([]snowflake.ID, 0, len(allocations))
	for _, allocation := range allocations {
		if _, ok := seen[allocation.InvoiceID]; ok {
			continue
		}
		seen[allocation.InvoiceID] = struct{}{}
		ids = append(ids, allocation.InvoiceID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sumAllocations(allocations []paymentdomain.Allocation) decimal.Decimal {
	amounts := make([]decimal.Decimal, 0, len(allocations))
	for _, allocation := range allocations {
		amounts = append(amounts, allocation.Amount)
	}
	return money.Sum(amounts...)
}

func allocationOutcome(err error) string {
	var rejection *paymentdomain.RejectionError
	switch {
	case err == nil:
		return "accepted"
	case errors.As(err, &rejection):
		return "rejected"
	default:
		return "error"
	}
}

func parseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, paymentdomain.ErrInvalidAmount
	}
	if !d.Equal(money.Round(d)) {
		return decimal.Zero, paymentdomain.ErrInvalidAmount
	}
	return d, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, paymentdomain.ErrInvalidID
	}
	return id, nil
}
