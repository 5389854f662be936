package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/samda/internal/sequence/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIfMissing(ctx context.Context, db *gorm.DB, counter *domain.Counter) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "seq_key"}}, DoNothing: true}).
		Create(counter).Error
}

func (r *repo) LockByKey(ctx context.Context, db *gorm.DB, key string) (*domain.Counter, error) {
	var counter domain.Counter
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("seq_key = ?", key).
		Take(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &counter, nil
}

func (r *repo) FindByKey(ctx context.Context, db *gorm.DB, key string) (*domain.Counter, error) {
	var counter domain.Counter
	err := db.WithContext(ctx).Raw(
		`SELECT seq_key, prefix, next_number, updated_at
		 FROM document_sequences
		 WHERE seq_key = ?`,
		key,
	).Scan(&counter).Error
	if err != nil {
		return nil, err
	}
	if counter.Key == "" {
		return nil, nil
	}
	return &counter, nil
}

func (r *repo) UpdateNextNumber(ctx context.Context, db *gorm.DB, key string, next int64, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Counter{}).
		Where("seq_key = ?", key).
		Updates(map[string]any{"next_number": next, "updated_at": at}).Error
}

func (r *repo) UpdatePrefix(ctx context.Context, db *gorm.DB, key, prefix string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE document_sequences SET prefix = ?, updated_at = ? WHERE seq_key = ?`,
		prefix,
		at,
		key,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Counter, error) {
	var items []domain.Counter
	if err := db.WithContext(ctx).Order("seq_key ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
