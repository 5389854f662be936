package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Resolver answers which profile governs a date. A nil profile with a nil
// error means no profile is configured and callers compute zero tax.
type Resolver interface {
	ActiveProfileAsOf(ctx context.Context, db *gorm.DB, at time.Time) (*TaxProfile, error)
	ProfileByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*TaxProfile, error)
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*TaxProfile, error)
	List(ctx context.Context, req ListRequest) ([]TaxProfile, error)
	Deactivate(ctx context.Context, id string) (*TaxProfile, error)
	Active(ctx context.Context, at time.Time) (*TaxProfile, error)
}

type CreateRequest struct {
	Name          string `json:"name" validate:"required,max=100"`
	VATRate       string `json:"vat_rate" validate:"required,numeric"`
	NHILRate      string `json:"nhil_rate" validate:"required,numeric"`
	GETFundRate   string `json:"getfund_rate" validate:"required,numeric"`
	EffectiveFrom string `json:"effective_from" validate:"required,datetime=2006-01-02"`
	IsActive      *bool  `json:"is_active"`
}

type ListRequest struct {
	ActiveOnly bool
}
