package service

import (
	"context"
	"fmt"
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
	sequencedomain "github.com/smallbiznis/samda/internal/sequence/domain"
	taxdomain "github.com/smallbiznis/samda/internal/tax/domain"
	"github.com/smallbiznis/samda/pkg/db"
	"github.com/smallbiznis/samda/pkg/db/pagination"
	"github.com/smallbiznis/samda/pkg/money"
	"github.com/smallbiznis/samda/pkg/validate"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultOutstandingLimit = 10

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       invoicedomain.Repository
	Ledger     invoicedomain.Ledger
	Sequences  sequencedomain.Allocator
	Resolver   taxdomain.Resolver
	Customers  customerdomain.Repository
	AuditSvc   auditdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID      *snowflake.Node
	clock      clock.Clock
	repo       invoicedomain.Repository
	ledger     invoicedomain.Ledger
	sequences  sequencedomain.Allocator
	resolver   taxdomain.Resolver
	customers  customerdomain.Repository
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("invoice.service"),

		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		ledger:     p.Ledger,
		sequences:  p.Sequences,
		resolver:   p.Resolver,
		customers:  p.Customers,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CreateDraft(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.InvoiceView, error) {
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.Type = strings.ToUpper(strings.TrimSpace(req.Type))
	if err := validate.Struct(req); err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	customerID, err := snowflake.ParseString(req.CustomerID)
	if err != nil || customerID == 0 {
		return invoicedomain.InvoiceView{}, invoicedomain.ErrInvalidCustomer
	}
	invoiceType := invoicedomain.Type(req.Type)
	if !invoiceType.Valid() {
		return invoicedomain.InvoiceView{}, invoicedomain.ErrInvalidType
	}

	issueDate := clock.Today(s.clock)
	if req.IssueDate != "" {
		issueDate, err = parseDate(req.IssueDate)
		if err != nil {
			return invoicedomain.InvoiceView{}, err
		}
	}
	dueDate, err := parseOptionalDate(req.DueDate)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	if dueDate != nil && dueDate.Before(issueDate) {
		return invoicedomain.InvoiceView{}, invoicedomain.ErrInvalidDueDate
	}

	now := s.clock.Now()
	invoice := invoicedomain.Invoice{
		ID:         s.genID.Generate(),
		CustomerID: customerID,
		Type:       invoiceType,
		Status:     invoicedomain.StatusDraft,
		IssueDate:  issueDate,
		DueDate:    dueDate,
		Notes:      strings.TrimSpace(req.Notes),
		Subtotal:   money.Zero,
		VAT:        money.Zero,
		NHIL:       money.Zero,
		GETFund:    money.Zero,
		Total:      money.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	lines, err := s.buildLines(invoice.ID, req.Lines, now)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.customers.FindByID(ctx, tx, customerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return invoicedomain.ErrInvalidCustomer
		}

		if err := s.repo.Insert(ctx, tx, &invoice); err != nil {
			return err
		}
		if err := s.repo.InsertLines(ctx, tx, lines); err != nil {
			return err
		}
		_, err = s.ledger.Recompute(ctx, tx, &invoice)
		return err
	})
	if err != nil {
		return invoicedomain.InvoiceView{}, db.ClassifyTxError(err)
	}

	return invoicedomain.InvoiceView{
		Invoice:    invoice,
		Lines:      lines,
		Allocated:  money.Zero,
		BalanceDue: invoice.Total,
	}, nil
}

func (s *Service) UpdateDraft(ctx context.Context, id string, req invoicedomain.UpdateDraftRequest) (invoicedomain.InvoiceView, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	if err := validate.Struct(req); err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	var view invoicedomain.InvoiceView
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.lockDraft(ctx, tx, invoiceID)
		if err != nil {
			return err
		}

		if req.IssueDate != nil {
			issueDate, err := parseDate(*req.IssueDate)
			if err != nil {
				return err
			}
			invoice.IssueDate = issueDate
		}
		if req.DueDate != nil {
			dueDate, err := parseOptionalDate(*req.DueDate)
			if err != nil {
				return err
			}
			invoice.DueDate = dueDate
		}
		if invoice.DueDate != nil && invoice.DueDate.Before(invoice.IssueDate) {
			return invoicedomain.ErrInvalidDueDate
		}
		if req.Notes != nil {
			invoice.Notes = strings.TrimSpace(*req.Notes)
		}
		invoice.UpdatedAt = s.clock.Now()

		if err := s.repo.UpdateDraft(ctx, tx, invoice); err != nil {
			return err
		}
		view, err = s.buildView(ctx, tx, invoice, true)
		return err
	})
	if err != nil {
		return invoicedomain.InvoiceView{}, db.ClassifyTxError(err)
	}
	return view, nil
}

func (s *Service) ReplaceLines(ctx context.Context, id string, req invoicedomain.ReplaceLinesRequest) (invoicedomain.InvoiceView, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	if err := validate.Struct(req); err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	now := s.clock.Now()
	lines, err := s.buildLines(invoiceID, req.Lines, now)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	var view invoicedomain.InvoiceView
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.lockDraft(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if err := s.repo.DeleteLines(ctx, tx, invoiceID); err != nil {
			return err
		}
		if err := s.repo.InsertLines(ctx, tx, lines); err != nil {
			return err
		}
		if _, err := s.ledger.Recompute(ctx, tx, invoice); err != nil {
			return err
		}
		view = invoicedomain.InvoiceView{
			Invoice:    *invoice,
			Lines:      lines,
			Allocated:  money.Zero,
			BalanceDue: invoice.Total,
		}
		return nil
	})
	if err != nil {
		return invoicedomain.InvoiceView{}, db.ClassifyTxError(err)
	}
	return view, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (invoicedomain.InvoiceView, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	invoice, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	if invoice == nil {
		return invoicedomain.InvoiceView{}, invoicedomain.ErrNotFound
	}
	return s.buildView(ctx, s.db, invoice, true)
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	afterID, err := req.AfterID()
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	filter := invoicedomain.ListFilter{}
	if status := strings.ToUpper(strings.TrimSpace(req.Status)); status != "" {
		filter.Status = invoicedomain.Status(status)
		if !filter.Status.Valid() {
			return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidStatus
		}
	}
	if invoiceType := strings.ToUpper(strings.TrimSpace(req.Type)); invoiceType != "" {
		filter.Type = invoicedomain.Type(invoiceType)
		if !filter.Type.Valid() {
			return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidType
		}
	}
	if customerID := strings.TrimSpace(req.CustomerID); customerID != "" {
		filter.CustomerID, err = snowflake.ParseString(customerID)
		if err != nil || filter.CustomerID == 0 {
			return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidCustomer
		}
	}

	limit := req.Limit()
	items, err := s.repo.List(ctx, s.db, filter, snowflake.ID(afterID), limit+1)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}
	items, pageInfo := pagination.Trim(items, limit, func(i invoicedomain.Invoice) int64 { return i.ID.Int64() })

	views, err := s.summaries(ctx, s.db, items)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}
	return invoicedomain.ListInvoiceResponse{PageInfo: pageInfo, Invoices: views}, nil
}

func (s *Service) Outstanding(ctx context.Context, limit int) ([]invoicedomain.InvoiceView, error) {
	if limit <= 0 {
		limit = defaultOutstandingLimit
	}
	if limit > pagination.MaxPageSize {
		limit = pagination.MaxPageSize
	}

	items, err := s.repo.ListOutstanding(ctx, s.db, limit)
	if err != nil {
		return nil, err
	}
	return s.summaries(ctx, s.db, items)
}

func (s *Service) Recompute(ctx context.Context, id string) (invoicedomain.InvoiceView, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	var view invoicedomain.InvoiceView
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.lockInvoice(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if _, err := s.ledger.Recompute(ctx, tx, invoice); err != nil {
			return err
		}
		view, err = s.buildView(ctx, tx, invoice, true)
		return err
	})
	if err != nil {
		return invoicedomain.InvoiceView{}, db.ClassifyTxError(err)
	}
	return view, nil
}

func (s *Service) Issue(ctx context.Context, id string) (view invoicedomain.InvoiceView, err error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}

	ctx, finish := tracing.StartSpan(ctx, "invoice", "invoice.issue")
	defer func() { finish(err) }()

	var issued bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.lockInvoice(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status != invoicedomain.StatusDraft {
			view, err = s.buildView(ctx, tx, invoice, true)
			return err
		}

		number, err := s.sequences.Next(ctx, tx, invoice.Type.SequenceKey())
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if invoice.Type == invoicedomain.TypeVAT {
			profile, err := s.resolver.ActiveProfileAsOf(ctx, tx, now)
			if err != nil {
				return err
			}
			if profile != nil {
				profileID := profile.ID
				invoice.TaxProfileID = &profileID
			}
		}

		// From here on the ledger reads the frozen profile.
		invoice.Status = invoicedomain.StatusIssued
		if _, err := s.ledger.Recompute(ctx, tx, invoice); err != nil {
			return err
		}

		invoice.InvoiceNo = &number
		invoice.IssuedAt = &now
		invoice.UpdatedAt = now
		if err := s.repo.MarkIssued(ctx, tx, invoice); err != nil {
			return err
		}

		issued = true
		view, err = s.buildView(ctx, tx, invoice, true)
		return err
	})
	if err != nil {
		return invoicedomain.InvoiceView{}, db.ClassifyTxError(err)
	}

	if issued {
		s.obsMetrics.RecordInvoiceIssued(string(view.Type))
		s.log.Info("invoice issued",
			zap.String("invoice_id", view.ID.String()),
			zap.String("invoice_no", *view.InvoiceNo),
			zap.String("total", money.String(view.Total)),
		)
		s.emitAudit(ctx, auditdomain.ActionInvoiceIssued, &view.Invoice, fmt.Sprintf("Issued %s", *view.InvoiceNo), nil)
	}
	return view, nil
}

func (s *Service) Void(ctx context.Context, id string, reason string) (invoicedomain.InvoiceView, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	reason = strings.TrimSpace(reason)

	var (
		view           invoicedomain.InvoiceView
		previousStatus invoicedomain.Status
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.lockInvoice(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if !invoice.Status.Voidable() {
			return invoicedomain.ErrInvoiceNotVoidable
		}

		now := s.clock.Now()
		if err := s.repo.MarkVoid(ctx, tx, invoice.ID, reason, now); err != nil {
			return err
		}
		previousStatus = invoice.Status
		invoice.Status = invoicedomain.StatusVoid
		invoice.VoidReason = reason
		invoice.VoidedAt = &now
		invoice.UpdatedAt = now

		view, err = s.buildView(ctx, tx, invoice, true)
		return err
	})
	if err != nil {
		return invoicedomain.InvoiceView{}, db.ClassifyTxError(err)
	}

	metadata := map[string]any{"previous_status": string(previousStatus)}
	if reason != "" {
		metadata["reason"] = reason
	}
	s.emitAudit(ctx, auditdomain.ActionInvoiceVoided, &view.Invoice, "Voided "+displayName(&view.Invoice), metadata)
	return view, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	invoiceID, err := parseID(id)
	if err != nil {
		return err
	}

	var deleted *invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.lockInvoice(ctx, tx, invoiceID)
		if err != nil {
			return err
		}

		summaries, err := s.repo.SumAllocations(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}
		if summaries[invoice.ID].Count > 0 {
			return invoicedomain.ErrInvoiceHasAllocations
		}

		if err := s.repo.Delete(ctx, tx, invoice.ID); err != nil {
			return err
		}
		deleted = invoice
		return nil
	})
	if err != nil {
		return db.ClassifyTxError(err)
	}

	s.emitAudit(ctx, auditdomain.ActionInvoiceDeleted, deleted, "Deleted "+displayName(deleted), nil)
	return nil
}

func (s *Service) lockInvoice(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	invoice, err := s.repo.LockByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrNotFound
	}
	return invoice, nil
}

func (s *Service) lockDraft(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*invoicedomain.Invoice, error) {
	invoice, err := s.lockInvoice(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status != invoicedomain.StatusDraft {
		return nil, invoicedomain.ErrInvoiceNotDraft
	}
	return invoice, nil
}

func (s *Service) buildView(ctx context.Context, conn *gorm.DB, invoice *invoicedomain.Invoice, withLines bool) (invoicedomain.InvoiceView, error) {
	view := invoicedomain.InvoiceView{Invoice: *invoice, Allocated: money.Zero}
	if withLines {
		lines, err := s.repo.ListLines(ctx, conn, invoice.ID)
		if err != nil {
			return invoicedomain.InvoiceView{}, err
		}
		view.Lines = lines
	}

	summaries, err := s.repo.SumAllocations(ctx, conn, invoice.ID)
	if err != nil {
		return invoicedomain.InvoiceView{}, err
	}
	if summary, ok := summaries[invoice.ID]; ok {
		view.Allocated = summary.Allocated
	}
	view.BalanceDue = invoicedomain.BalanceDue(invoice.Total, view.Allocated)
	return view, nil
}

// summaries builds line-less views with one allocation query for the page.
func (s *Service) summaries(ctx context.Context, conn *gorm.DB, items []invoicedomain.Invoice) ([]invoicedomain.InvoiceView, error) {
	ids := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	allocations, err := s.repo.SumAllocations(ctx, conn, ids...)
	if err != nil {
		return nil, err
	}

	views := make([]invoicedomain.InvoiceView, 0, len(items))
	for _, item := range items {
		allocated := decimal.Zero
		if summary, ok := allocations[item.ID]; ok {
			allocated = summary.Allocated
		}
		views = append(views, invoicedomain.InvoiceView{
			Invoice:    item,
			Allocated:  allocated,
			BalanceDue: invoicedomain.BalanceDue(item.Total, allocated),
		})
	}
	return views, nil
}

func (s *Service) buildLines(invoiceID snowflake.ID, reqs []invoicedomain.LineRequest, now time.Time) ([]invoicedomain.InvoiceLine, error) {
	lines := make([]invoicedomain.InvoiceLine, 0, len(reqs))
	for i, req := range reqs {
		description := strings.TrimSpace(req.Description)
		if description == "" {
			return nil, invoicedomain.ErrInvalidLine
		}
		quantity, err := parseAmount(req.Quantity)
		if err != nil || !quantity.IsPositive() {
			return nil, invoicedomain.ErrInvalidLine
		}
		unitPrice, err := parseAmount(req.UnitPrice)
		if err != nil || unitPrice.IsNegative() {
			return nil, invoicedomain.ErrInvalidLine
		}

		lines = append(lines, invoicedomain.InvoiceLine{
			ID:          s.genID.Generate(),
			InvoiceID:   invoiceID,
			Position:    i + 1,
			Description: description,
			Quantity:    quantity,
			UnitPrice:   unitPrice,
			CreatedAt:   now,
		})
	}
	return lines, nil
}

func (s *Service) emitAudit(ctx context.Context, action string, invoice *invoicedomain.Invoice, message string, extra map[string]any) {
	if s.auditSvc == nil || invoice == nil {
		return
	}
	metadata := map[string]any{
		"customer_id":  invoice.CustomerID.String(),
		"invoice_type": string(invoice.Type),
		"status":       string(invoice.Status),
		"total":        money.String(invoice.Total),
	}
	if invoice.InvoiceNo != nil {
		metadata["invoice_no"] = *invoice.InvoiceNo
	}
	if invoice.TaxProfileID != nil {
		metadata["tax_profile_id"] = invoice.TaxProfileID.String()
	}
	for key, value := range extra {
		if key == "" {
			continue
		}
		metadata[key] = value
	}

	_ = s.auditSvc.Record(ctx, "", action, "Invoice", invoice.ID.String(), message, metadata)
}

func displayName(invoice *invoicedomain.Invoice) string {
	if invoice.InvoiceNo != nil && *invoice.InvoiceNo != "" {
		return *invoice.InvoiceNo
	}
	return fmt.Sprintf("Invoice(%s)", invoice.ID.String())
}

// parseAmount accepts at most two decimal places, matching the stored scale.
func parseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, err
	}
	if !d.Equal(money.Round(d)) {
		return decimal.Zero, invoicedomain.ErrInvalidLine
	}
	return d, nil
}

func parseDate(raw string) (time.Time, error) {
	parsed, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, invoicedomain.ErrInvalidDate
	}
	return parsed.UTC(), nil
}

func parseOptionalDate(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parsed, err := parseDate(raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
