package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/samda/internal/clock"
	taxdomain "github.com/smallbiznis/samda/internal/tax/domain"
	"github.com/smallbiznis/samda/pkg/validate"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParams struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     taxdomain.Repository
	Resolver taxdomain.Resolver
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     taxdomain.Repository
	resolver taxdomain.Resolver
}

func NewService(p ServiceParams) taxdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("tax.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		resolver: p.Resolver,
	}
}

func (s *Service) Create(ctx context.Context, req taxdomain.CreateRequest) (*taxdomain.TaxProfile, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	rates, err := parseRates(req.VATRate, req.NHILRate, req.GETFundRate)
	if err != nil {
		return nil, err
	}
	effectiveFrom, err := time.Parse(time.DateOnly, req.EffectiveFrom)
	if err != nil {
		return nil, taxdomain.ErrInvalidEffectiveDate
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	now := s.clock.Now()
	profile := &taxdomain.TaxProfile{
		ID:            s.genID.Generate(),
		Name:          req.Name,
		VATRate:       rates.VAT,
		NHILRate:      rates.NHIL,
		GETFundRate:   rates.GETFund,
		EffectiveFrom: effectiveFrom.UTC(),
		IsActive:      isActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, s.db, profile); err != nil {
		return nil, err
	}

	s.log.Info("tax profile created",
		zap.String("tax_profile_id", profile.ID.String()),
		zap.String("effective_from", req.EffectiveFrom),
	)
	return profile, nil
}

func (s *Service) List(ctx context.Context, req taxdomain.ListRequest) ([]taxdomain.TaxProfile, error) {
	return s.repo.List(ctx, s.db, req)
}

// Deactivate hides a profile from resolution. Invoices that froze it keep
// their totals.
func (s *Service) Deactivate(ctx context.Context, id string) (*taxdomain.TaxProfile, error) {
	profileID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || profileID == 0 {
		return nil, taxdomain.ErrInvalidID
	}

	profile, err := s.repo.FindByID(ctx, s.db, profileID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, taxdomain.ErrNotFound
	}
	if !profile.IsActive {
		return profile, nil
	}

	now := s.clock.Now()
	if err := s.repo.SetActive(ctx, s.db, profileID, false, now); err != nil {
		return nil, err
	}
	profile.IsActive = false
	profile.UpdatedAt = now
	return profile, nil
}

func (s *Service) Active(ctx context.Context, at time.Time) (*taxdomain.TaxProfile, error) {
	if at.IsZero() {
		at = s.clock.Now()
	}
	profile, err := s.resolver.ActiveProfileAsOf(ctx, s.db, at)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, taxdomain.ErrNoActiveProfile
	}
	return profile, nil
}

func parseRates(vat, nhil, getfund string) (taxdomain.Rates, error) {
	var rates taxdomain.Rates
	var err error
	if rates.VAT, err = decimal.NewFromString(strings.TrimSpace(vat)); err != nil {
		return rates, taxdomain.ErrInvalidRate
	}
	if rates.NHIL, err = decimal.NewFromString(strings.TrimSpace(nhil)); err != nil {
		return rates, taxdomain.ErrInvalidRate
	}
	if rates.GETFund, err = decimal.NewFromString(strings.TrimSpace(getfund)); err != nil {
		return rates, taxdomain.ErrInvalidRate
	}
	return rates, rates.Validate()
}
