package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/samda/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	conn, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	require.NoError(t, err)
	return conn, mock
}

func TestLockByIDSelectsForUpdate(t *testing.T) {
	conn, mock := setupMockDB(t)
	id := snowflake.ID(2001)
	issued := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "invoice_type", "status", "issue_date", "subtotal", "total", "created_at", "updated_at"}).
			AddRow(int64(id), int64(9), "VAT", "ISSUED", issued, "125.00", "150.01", issued, issued))

	invoice, err := Provide().LockByID(context.Background(), conn, id)
	require.NoError(t, err)
	require.NotNil(t, invoice)
	assert.Equal(t, id, invoice.ID)
	assert.Equal(t, invoicedomain.StatusIssued, invoice.Status)
	assert.Equal(t, "150.01", invoice.Total.StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockByIDMissingRow(t *testing.T) {
	conn, mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	invoice, err := Provide().LockByID(context.Background(), conn, snowflake.ID(7))
	require.NoError(t, err)
	assert.Nil(t, invoice)
	assert.NoError(t, mock.ExpectationsWereMet())
}
