package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/samda/internal/config"
	sequencedomain "github.com/smallbiznis/samda/internal/sequence/domain"
	taxdomain "github.com/smallbiznis/samda/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("seed",
	fx.Provide(NewSeeder),
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Billing   *config.BillingConfigHolder
	Sequences sequencedomain.Allocator
	TaxRepo   taxdomain.Repository
	TaxSvc    taxdomain.Service
}

// Seeder provisions the rows a fresh database needs before the first
// invoice: one counter per document category and a default tax profile.
type Seeder struct {
	db        *gorm.DB
	log       *zap.Logger
	billing   *config.BillingConfigHolder
	sequences sequencedomain.Allocator
	taxRepo   taxdomain.Repository
	taxSvc    taxdomain.Service
}

func NewSeeder(p Params) *Seeder {
	return &Seeder{
		db:        p.DB,
		log:       p.Log.Named("seed"),
		billing:   p.Billing,
		sequences: p.Sequences,
		taxRepo:   p.TaxRepo,
		taxSvc:    p.TaxSvc,
	}
}

// Run is safe to repeat. A second run only re-applies configured prefixes.
func (s *Seeder) Run(ctx context.Context) error {
	if s.db == nil {
		return errors.New("seed database handle is required")
	}
	if err := s.EnsureSequences(ctx); err != nil {
		return err
	}
	_, err := s.EnsureDefaultTaxProfile(ctx)
	return err
}

func (s *Seeder) EnsureSequences(ctx context.Context) error {
	cfg := s.billing.Get()
	for _, key := range sequencedomain.Keys {
		counter, err := s.sequences.Ensure(ctx, key, cfg.PrefixFor(key))
		if err != nil {
			return fmt.Errorf("ensure sequence %s: %w", key, err)
		}
		s.log.Info("sequence ready",
			zap.String("key", counter.Key),
			zap.String("prefix", counter.Prefix),
			zap.Int64("next_number", counter.NextNumber),
		)
	}
	return nil
}

// EnsureDefaultTaxProfile creates the configured profile unless one with the
// same name and effective date exists.
func (s *Seeder) EnsureDefaultTaxProfile(ctx context.Context) (*taxdomain.TaxProfile, error) {
	def := s.billing.Get().DefaultTaxProfile
	if strings.TrimSpace(def.Name) == "" {
		s.log.Info("no default tax profile configured")
		return nil, nil
	}

	effectiveFrom, err := time.Parse(time.DateOnly, def.EffectiveFrom)
	if err != nil {
		return nil, taxdomain.ErrInvalidEffectiveDate
	}

	existing, err := s.taxRepo.FindByNameAndDate(ctx, s.db, strings.TrimSpace(def.Name), effectiveFrom.UTC())
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	profile, err := s.taxSvc.Create(ctx, taxdomain.CreateRequest{
		Name:          def.Name,
		VATRate:       def.VATRate,
		NHILRate:      def.NHILRate,
		GETFundRate:   def.GETFundRate,
		EffectiveFrom: def.EffectiveFrom,
	})
	if err != nil {
		return nil, fmt.Errorf("create default tax profile: %w", err)
	}
	return profile, nil
}
