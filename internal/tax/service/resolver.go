package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	taxdomain "github.com/smallbiznis/samda/internal/tax/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type ResolverParams struct {
	fx.In

	Repo taxdomain.Repository
}

type resolver struct {
	repo taxdomain.Repository
}

func NewResolver(p ResolverParams) taxdomain.Resolver {
	return &resolver{repo: p.Repo}
}

func (r *resolver) ActiveProfileAsOf(ctx context.Context, db *gorm.DB, at time.Time) (*taxdomain.TaxProfile, error) {
	return r.repo.FindActiveAsOf(ctx, db, at.UTC())
}

func (r *resolver) ProfileByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*taxdomain.TaxProfile, error) {
	if id == 0 {
		return nil, taxdomain.ErrInvalidID
	}
	return r.repo.FindByID(ctx, db, id)
}
