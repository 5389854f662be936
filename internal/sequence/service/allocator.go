package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/samda/internal/clock"
	"github.com/smallbiznis/samda/internal/config"
	obsmetrics "github.com/smallbiznis/samda/internal/observability/metrics"
	"github.com/smallbiznis/samda/internal/sequence/domain"
	"github.com/smallbiznis/samda/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Billing    *config.BillingConfigHolder
	Repo       domain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Allocator struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	billing    *config.BillingConfigHolder
	repo       domain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewAllocator(p Params) domain.Allocator {
	return &Allocator{
		db:         p.DB,
		log:        p.Log.Named("sequence.allocator"),
		clock:      p.Clock,
		billing:    p.Billing,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

func (a *Allocator) Next(ctx context.Context, tx *gorm.DB, key string) (string, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return "", err
	}

	now := a.clock.Now()
	if err := a.repo.InsertIfMissing(ctx, tx, &domain.Counter{
		Key:        key,
		Prefix:     a.billing.Get().PrefixFor(key),
		NextNumber: 1,
		UpdatedAt:  now,
	}); err != nil {
		return "", err
	}

	counter, err := a.repo.LockByKey(ctx, tx, key)
	if err != nil {
		return "", err
	}
	if counter == nil {
		return "", domain.ErrNotFound
	}

	number := domain.FormatNumber(counter.Prefix, counter.NextNumber)
	if err := a.repo.UpdateNextNumber(ctx, tx, key, counter.NextNumber+1, now); err != nil {
		return "", err
	}

	a.obsMetrics.RecordSequenceAllocation(key)
	return number, nil
}

func (a *Allocator) Allocate(ctx context.Context, key string) (string, error) {
	var number string
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		number, err = a.Next(ctx, tx, key)
		return err
	})
	if err != nil {
		return "", db.ClassifyTxError(err)
	}

	a.log.Debug("sequence allocated", zap.String("key", key), zap.String("number", number))
	return number, nil
}

func (a *Allocator) Ensure(ctx context.Context, key, prefix string) (*domain.Counter, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(prefix) == "" {
		return nil, domain.ErrInvalidPrefix
	}

	var counter *domain.Counter
	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := a.clock.Now()
		if err := a.repo.InsertIfMissing(ctx, tx, &domain.Counter{
			Key:        key,
			Prefix:     prefix,
			NextNumber: 1,
			UpdatedAt:  now,
		}); err != nil {
			return err
		}

		locked, err := a.repo.LockByKey(ctx, tx, key)
		if err != nil {
			return err
		}
		if locked == nil {
			return domain.ErrNotFound
		}
		if locked.Prefix != prefix {
			if err := a.repo.UpdatePrefix(ctx, tx, key, prefix, now); err != nil {
				return err
			}
			locked.Prefix = prefix
			locked.UpdatedAt = now
		}
		counter = locked
		return nil
	})
	if err != nil {
		return nil, db.ClassifyTxError(err)
	}
	return counter, nil
}

func (a *Allocator) Get(ctx context.Context, key string) (*domain.Counter, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	counter, err := a.repo.FindByKey(ctx, a.db, key)
	if err != nil {
		return nil, err
	}
	if counter == nil {
		return nil, domain.ErrNotFound
	}
	return counter, nil
}

func (a *Allocator) List(ctx context.Context) ([]domain.Counter, error) {
	return a.repo.List(ctx, a.db)
}

func normalizeKey(key string) (string, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if key == "" {
		return "", domain.ErrInvalidKey
	}
	return key, nil
}
