package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/samda/internal/clock"
	"github.com/smallbiznis/samda/internal/customer/domain"
	"github.com/smallbiznis/samda/internal/customer/repository"
	"github.com/smallbiznis/samda/pkg/db/pagination"
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

	require.NoError(t, conn.AutoMigrate(&domain.Customer{}))
	// only the referencing columns matter here
	require.NoError(t, conn.Exec(`CREATE TABLE invoices (id INTEGER PRIMARY KEY, customer_id INTEGER NOT NULL)`).Error)
	require.NoError(t, conn.Exec(`CREATE TABLE payments (id INTEGER PRIMARY KEY, customer_id INTEGER)`).Error)
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, setupTestDB(t))

	created, err := svc.Create(ctx, domain.CreateCustomerRequest{
		Name:                  "  Kofi Traders ",
		Email:                 "accounts@kofi.example",
		TIN:                   "C0001234567",
		IsVATWithholdingAgent: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Kofi Traders", created.Name)

	got, err := svc.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "C0001234567", got.TIN)
	assert.True(t, got.IsVATWithholdingAgent)
}

func TestCreateRejectsInvalidEmail(t *testing.T) {
	svc := newTestService(t, setupTestDB(t))

	_, err := svc.Create(context.Background(), domain.CreateCustomerRequest{Name: "Ama", Email: "not-an-email"})
	assert.Error(t, err)
}

func TestListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, setupTestDB(t))

	for _, name := range []string{"Accra Foods", "Kumasi Foods", "Tema Hardware"} {
		_, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: name})
		require.NoError(t, err)
	}

	resp, err := svc.List(ctx, domain.ListCustomerRequest{Name: "foods"})
	require.NoError(t, err)
	assert.Len(t, resp.Customers, 2)

	first, err := svc.List(ctx, domain.ListCustomerRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.Customers, 2)
	require.True(t, first.HasMore)
	assert.Equal(t, "Tema Hardware", first.Customers[0].Name)

	second, err := svc.List(ctx, domain.ListCustomerRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, second.Customers, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, "Accra Foods", second.Customers[0].Name)
}

func TestDeleteIsGuardedByReferences(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	svc := newTestService(t, conn)

	referenced, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: "Referenced"})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(`INSERT INTO invoices (id, customer_id) VALUES (1, ?)`, referenced.ID).Error)

	err = svc.Delete(ctx, referenced.ID.String())
	assert.ErrorIs(t, err, domain.ErrCustomerInUse)
	_, err = svc.GetByID(ctx, referenced.ID.String())
	require.NoError(t, err)

	payer, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: "Payer"})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(`INSERT INTO payments (id, customer_id) VALUES (1, ?)`, payer.ID).Error)
	assert.ErrorIs(t, svc.Delete(ctx, payer.ID.String()), domain.ErrCustomerInUse)

	free, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: "Free"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, free.ID.String()))
	_, err = svc.GetByID(ctx, free.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, free.ID.String()), domain.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "nope"), domain.ErrInvalidID)
}
