package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Allocator hands out gap-free, strictly increasing document numbers.
type Allocator interface {
	// Next allocates inside the caller's transaction. The counter row stays
	// locked until tx ends, and a rollback returns the number.
	Next(ctx context.Context, tx *gorm.DB, key string) (string, error)
	// Allocate runs Next in its own transaction. The number is consumed even
	// if the caller fails afterwards.
	Allocate(ctx context.Context, key string) (string, error)
	// Ensure creates the counter when missing and sets its prefix. It never
	// moves next_number.
	Ensure(ctx context.Context, key, prefix string) (*Counter, error)
	Get(ctx context.Context, key string) (*Counter, error)
	List(ctx context.Context) ([]Counter, error)
}

type Repository interface {
	InsertIfMissing(ctx context.Context, db *gorm.DB, counter *Counter) error
	LockByKey(ctx context.Context, db *gorm.DB, key string) (*Counter, error)
	FindByKey(ctx context.Context, db *gorm.DB, key string) (*Counter, error)
	UpdateNextNumber(ctx context.Context, db *gorm.DB, key string, next int64, at time.Time) error
	UpdatePrefix(ctx context.Context, db *gorm.DB, key, prefix string, at time.Time) error
	List(ctx context.Context, db *gorm.DB) ([]Counter, error)
}
