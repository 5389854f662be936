package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/samda/internal/clock"
	"github.com/smallbiznis/samda/internal/config"
	"github.com/smallbiznis/samda/internal/sequence/domain"
	"github.com/smallbiznis/samda/internal/sequence/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(&domain.Counter{}))
	return conn
}

func newTestAllocator(conn *gorm.DB) domain.Allocator {
	return NewAllocator(Params{
		DB:      conn,
		Log:     zap.NewNop(),
		Clock:   clock.NewFakeClock(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)),
		Billing: config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
		Repo:    repository.Provide(),
	})
}

func TestAllocateIsSequentialPerKey(t *testing.T) {
	ctx := context.Background()
	alloc := newTestAllocator(setupTestDB(t))

	for i := 1; i <= 3; i++ {
		number, err := alloc.Allocate(ctx, domain.KeyInvoiceVAT)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("SAMDA/VAT/%06d", i), number)
	}

	receipt, err := alloc.Allocate(ctx, domain.KeyReceipt)
	require.NoError(t, err)
	assert.Equal(t, "SAMDA/RCT/000001", receipt)

	counter, err := alloc.Get(ctx, domain.KeyInvoiceVAT)
	require.NoError(t, err)
	assert.Equal(t, int64(4), counter.NextNumber)
}

func TestAllocateUnknownKeyUsesFallbackPrefix(t *testing.T) {
	alloc := newTestAllocator(setupTestDB(t))

	number, err := alloc.Allocate(context.Background(), "credit_note")
	require.NoError(t, err)
	assert.Equal(t, "SAMDA/000001", number)
}

func TestAllocateRejectsBlankKey(t *testing.T) {
	alloc := newTestAllocator(setupTestDB(t))

	_, err := alloc.Allocate(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidKey)
}

func TestNextRollsBackWithCallerTransaction(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	alloc := newTestAllocator(conn)

	_, err := alloc.Allocate(ctx, domain.KeyInvoiceNonVAT)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = conn.Transaction(func(tx *gorm.DB) error {
		number, err := alloc.Next(ctx, tx, domain.KeyInvoiceNonVAT)
		require.NoError(t, err)
		assert.Equal(t, "SAMDA/INV/000002", number)
		return boom
	})
	require.ErrorIs(t, err, boom)

	number, err := alloc.Allocate(ctx, domain.KeyInvoiceNonVAT)
	require.NoError(t, err)
	assert.Equal(t, "SAMDA/INV/000002", number)
}

func TestConcurrentAllocationsAreUniqueAndGapFree(t *testing.T) {
	ctx := context.Background()
	alloc := newTestAllocator(setupTestDB(t))

	const workers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []string
		errs    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := alloc.Allocate(ctx, domain.KeyInvoiceVAT)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers = append(numbers, number)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	sort.Strings(numbers)
	expected := make([]string, 0, workers)
	for i := 1; i <= workers; i++ {
		expected = append(expected, fmt.Sprintf("SAMDA/VAT/%06d", i))
	}
	assert.Equal(t, expected, numbers)
}

func TestEnsureKeepsNextNumber(t *testing.T) {
	ctx := context.Background()
	alloc := newTestAllocator(setupTestDB(t))

	counter, err := alloc.Ensure(ctx, domain.KeyReceipt, "SAMDA/RCT/")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counter.NextNumber)

	_, err = alloc.Allocate(ctx, domain.KeyReceipt)
	require.NoError(t, err)

	counter, err = alloc.Ensure(ctx, domain.KeyReceipt, "RCPT-")
	require.NoError(t, err)
	assert.Equal(t, "RCPT-", counter.Prefix)
	assert.Equal(t, int64(2), counter.NextNumber)

	number, err := alloc.Allocate(ctx, domain.KeyReceipt)
	require.NoError(t, err)
	assert.Equal(t, "RCPT-000002", number)

	_, err = alloc.Ensure(ctx, domain.KeyReceipt, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidPrefix)
}

func TestGetMissingCounter(t *testing.T) {
	alloc := newTestAllocator(setupTestDB(t))

	_, err := alloc.Get(context.Background(), domain.KeyReceipt)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
