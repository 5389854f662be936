package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, profile *TaxProfile) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*TaxProfile, error)
	FindActiveAsOf(ctx context.Context, db *gorm.DB, at time.Time) (*TaxProfile, error)
	FindByNameAndDate(ctx context.Context, db *gorm.DB, name string, effectiveFrom time.Time) (*TaxProfile, error)
	List(ctx context.Context, db *gorm.DB, filter ListRequest) ([]TaxProfile, error)
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, at time.Time) error
}
