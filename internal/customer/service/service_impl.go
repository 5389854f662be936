package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/samda/internal/audit/domain"
	"github.com/smallbiznis/samda/internal/clock"
	"github.com/smallbiznis/samda/internal/customer/domain"
	"github.com/smallbiznis/samda/pkg/db"
	"github.com/smallbiznis/samda/pkg/db/pagination"
	"github.com/smallbiznis/samda/pkg/validate"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("customer.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if err := validate.Struct(req); err != nil {
		return domain.Customer{}, err
	}

	now := s.clock.Now()
	customer := domain.Customer{
		ID:                    s.genID.Generate(),
		Name:                  req.Name,
		Email:                 req.Email,
		Phone:                 strings.TrimSpace(req.Phone),
		Address:               strings.TrimSpace(req.Address),
		TIN:                   strings.TrimSpace(req.TIN),
		IsVATWithholdingAgent: req.IsVATWithholdingAgent,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.repo.Insert(ctx, s.db, &customer); err != nil {
		return domain.Customer{}, err
	}

	return customer, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (domain.ListCustomerResponse, error) {
	afterID, err := req.AfterID()
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	limit := req.Limit()
	items, err := s.repo.List(ctx, s.db, domain.ListCustomerFilter{
		Name: strings.TrimSpace(req.Name),
	}, snowflake.ID(afterID), limit+1)
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	items, pageInfo := pagination.Trim(items, limit, func(c domain.Customer) int64 { return c.ID.Int64() })
	return domain.ListCustomerResponse{PageInfo: pageInfo, Customers: items}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Customer, error) {
	customerID, err := s.parseID(id)
	if err != nil {
		return domain.Customer{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	if item == nil {
		return domain.Customer{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	customerID, err := s.parseID(id)
	if err != nil {
		return err
	}

	var deleted *domain.Customer
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.repo.LockByID(ctx, tx, customerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return domain.ErrNotFound
		}
		deleted = customer

		refs, err := s.repo.CountReferences(ctx, tx, customerID)
		if err != nil {
			return err
		}
		if refs > 0 {
			return domain.ErrCustomerInUse
		}
		return s.repo.Delete(ctx, tx, customerID)
	})
	if err != nil {
		return db.ClassifyTxError(err)
	}

	s.log.Info("customer deleted", zap.String("customer_id", customerID.String()))
	if s.auditSvc != nil {
		_ = s.auditSvc.Record(ctx, "", auditdomain.ActionCustomerDeleted, "Customer", customerID.String(), "Deleted "+deleted.Name, map[string]any{
			"name":  deleted.Name,
			"tin":   deleted.TIN,
			"phone": deleted.Phone,
		})
	}
	return nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
