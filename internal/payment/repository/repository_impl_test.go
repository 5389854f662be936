package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/samda/internal/payment/domain"
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

func TestLockPaymentSelectsForUpdate(t *testing.T) {
	conn, mock := setupMockDB(t)
	id := snowflake.ID(1001)

	mock.ExpectQuery(`SELECT \* FROM "payments" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "payer_name", "method", "amount", "received_date", "created_at"}).
			AddRow(int64(id), "Esi", "CASH", "100.00", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), time.Now()))

	payment, err := Provide().LockPayment(context.Background(), conn, id)
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, "100.00", payment.Amount.StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockPaymentMissingRow(t *testing.T) {
	conn, mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "payments" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	payment, err := Provide().LockPayment(context.Background(), conn, snowflake.ID(7))
	require.NoError(t, err)
	assert.Nil(t, payment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReceiptReportsConflict(t *testing.T) {
	conn, mock := setupMockDB(t)

	mock.ExpectQuery(`INSERT INTO "receipts" .* ON CONFLICT \("payment_id"\) DO NOTHING`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	inserted, err := Provide().InsertReceipt(context.Background(), conn, &domain.Receipt{
		ID:         snowflake.ID(2),
		ReceiptNo:  "SAMDA/RCT/000009",
		PaymentID:  snowflake.ID(1),
		IssuedDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		CreatedAt:  time.Now(),
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
