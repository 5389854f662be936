package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	taxdomain "github.com/smallbiznis/samda/internal/tax/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() taxdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, profile *taxdomain.TaxProfile) error {
	return db.WithContext(ctx).Create(profile).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*taxdomain.TaxProfile, error) {
	var items []taxdomain.TaxProfile
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// FindActiveAsOf picks the active profile with the latest effective date not
// after at. Equal dates resolve to the most recently created profile.
func (r *repo) FindActiveAsOf(ctx context.Context, db *gorm.DB, at time.Time) (*taxdomain.TaxProfile, error) {
	var items []taxdomain.TaxProfile
	err := db.WithContext(ctx).
		Where("is_active = ? AND effective_from <= ?", true, at).
		Order("effective_from DESC").
		Order("id DESC").
		Limit(1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) FindByNameAndDate(ctx context.Context, db *gorm.DB, name string, effectiveFrom time.Time) (*taxdomain.TaxProfile, error) {
	var items []taxdomain.TaxProfile
	err := db.WithContext(ctx).
		Where("name = ? AND effective_from = ?", name, effectiveFrom).
		Limit(1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter taxdomain.ListRequest) ([]taxdomain.TaxProfile, error) {
	stmt := db.WithContext(ctx).Model(&taxdomain.TaxProfile{})
	if filter.ActiveOnly {
		stmt = stmt.Where("is_active = ?", true)
	}

	var items []taxdomain.TaxProfile
	if err := stmt.Order("effective_from DESC").Order("id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tax_profiles SET is_active = ?, updated_at = ? WHERE id = ?`,
		active,
		at,
		id,
	).Error
}
