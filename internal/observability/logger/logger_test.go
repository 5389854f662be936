package logger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/samda/internal/auditcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestWithContextAddsRequestFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := auditcontext.WithRequestID(context.Background(), "req-9")
	ctx = auditcontext.WithActor(ctx, "accountant")

	WithContext(ctx, zap.New(core)).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "accountant", fields["actor"])
}

func TestGormLoggerTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), GormLoggerConfig{
		Level:         gormlogger.Warn,
		SlowThreshold: 10 * time.Millisecond,
	})
	sql := func() (string, int64) { return `SELECT * FROM "invoices" WHERE id = 1`, 1 }

	gl.Trace(context.Background(), time.Now(), sql, gormlogger.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len())

	gl.Trace(context.Background(), time.Now(), sql, errors.New("broken"))
	gl.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "SELECT", entries[1].ContextMap()["operation"])
	assert.Equal(t, "invoices", entries[1].ContextMap()["table"])
}

func TestGormLoggerLockWaits(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	lockErr := errors.New("database is locked")
	gl := NewGormLogger(zap.New(core), GormLoggerConfig{
		Level:             gormlogger.Warn,
		SlowThreshold:     10 * time.Millisecond,
		LockWaitThreshold: time.Minute,
		Retriable:         func(err error) bool { return errors.Is(err, lockErr) },
	})
	lock := func() (string, int64) {
		return `SELECT * FROM "document_sequences" WHERE seq_key = 'RECEIPT' LIMIT 1 FOR UPDATE`, 1
	}

	// under the lock-wait threshold
	gl.Trace(context.Background(), time.Now().Add(-time.Second), lock, nil)
	assert.Equal(t, 0, logs.Len())

	gl.Trace(context.Background(), time.Now(), lock, lockErr)
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, true, entries[0].ContextMap()["row_lock"])
	assert.Equal(t, "document_sequences", entries[0].ContextMap()["table"])
}

func TestDescribeSQL(t *testing.T) {
	stmt := describeSQL(`UPDATE "invoices" SET "status"='PAID' WHERE id = 4`)
	assert.Equal(t, "UPDATE", stmt.operation)
	assert.Equal(t, "invoices", stmt.table)
	assert.False(t, stmt.locking)

	stmt = describeSQL(`INSERT INTO "receipts" ("id") VALUES (1) ON CONFLICT ("payment_id") DO NOTHING`)
	assert.Equal(t, "INSERT", stmt.operation)
	assert.Equal(t, "receipts", stmt.table)
}

func TestGinMiddlewareSetsRequestContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)

	var actor, requestID string
	r := gin.New()
	r.Use(GinMiddleware(zap.New(core)))
	r.GET("/ping", func(c *gin.Context) {
		actor = auditcontext.ActorFromContext(c.Request.Context())
		requestID = auditcontext.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(ActorHeader, "clerk")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "clerk", actor)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, w.Header().Get("X-Request-Id"))
	require.Equal(t, 1, logs.FilterMessage("http_request").Len())
}
