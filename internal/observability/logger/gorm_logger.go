package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// GormLoggerConfig configures the zap-backed gorm logger.
type GormLoggerConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration
	// LockWaitThreshold applies to SELECT ... FOR UPDATE statements, which
	// queue behind allocations and number issuance on the same row.
	LockWaitThreshold time.Duration
	// Retriable marks errors the caller will retry; they log at warn.
	Retriable func(error) bool
}

func DefaultGormLoggerConfig() GormLoggerConfig {
	return GormLoggerConfig{
		Level:             gormlogger.Warn,
		SlowThreshold:     200 * time.Millisecond,
		LockWaitThreshold: time.Second,
	}
}

type GormLogger struct {
	base *zap.Logger
	cfg  GormLoggerConfig
}

func NewGormLogger(base *zap.Logger, cfg GormLoggerConfig) *GormLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &GormLogger{base: base.Named("gorm"), cfg: cfg}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.cfg.Level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) message(ctx context.Context, threshold gormlogger.LogLevel, level zapcore.Level, msg string, data []interface{}) {
	if l.cfg.Level < threshold {
		return
	}
	if ce := WithContext(ctx, l.base).Check(level, msg); ce != nil {
		ce.Write(zap.Any("data", data))
	}
}

// Trace never logs missing rows; lookups return nil for those.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.cfg.Level <= gormlogger.Silent {
		return
	}
	if errors.Is(err, gormlogger.ErrRecordNotFound) {
		err = nil
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	stmt := describeSQL(sql)

	level, ok := l.levelFor(stmt, elapsed, err)
	if !ok {
		return
	}

	fields := []zap.Field{
		zap.String("sql", stmt.text),
		zap.String("operation", stmt.operation),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if stmt.table != "" {
		fields = append(fields, zap.String("table", stmt.table))
	}
	if stmt.locking {
		fields = append(fields, zap.Bool("row_lock", true))
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	if ce := WithContext(ctx, l.base).Check(level, "gorm.query"); ce != nil {
		ce.Write(fields...)
	}
}

func (l *GormLogger) levelFor(stmt statement, elapsed time.Duration, err error) (zapcore.Level, bool) {
	switch {
	case err != nil && l.cfg.Retriable != nil && l.cfg.Retriable(err):
		return zapcore.WarnLevel, l.cfg.Level >= gormlogger.Warn
	case err != nil:
		return zapcore.ErrorLevel, l.cfg.Level >= gormlogger.Error
	}

	threshold := l.cfg.SlowThreshold
	if stmt.locking && l.cfg.LockWaitThreshold > 0 {
		threshold = l.cfg.LockWaitThreshold
	}
	if threshold > 0 && elapsed > threshold {
		return zapcore.WarnLevel, l.cfg.Level >= gormlogger.Warn
	}
	return zapcore.DebugLevel, l.cfg.Level >= gormlogger.Info
}

// ParamsFilter drops bound values; amounts and payer details stay out of logs.
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

type statement struct {
	text      string
	operation string
	table     string
	locking   bool
}

func describeSQL(sql string) statement {
	stmt := statement{text: strings.TrimSpace(sql), operation: "UNKNOWN"}
	tokens := strings.Fields(stmt.text)

	for i, token := range tokens {
		upper := strings.ToUpper(strings.Trim(token, "();"))
		switch upper {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			if stmt.operation == "UNKNOWN" {
				stmt.operation = upper
			}
		case "FROM", "INTO":
			if stmt.table == "" && i+1 < len(tokens) {
				stmt.table = tableName(tokens[i+1])
			}
		case "FOR":
			if i+1 < len(tokens) && strings.EqualFold(tokens[i+1], "UPDATE") {
				stmt.locking = true
			}
		}
	}
	if stmt.operation == "UPDATE" && stmt.table == "" && len(tokens) > 1 {
		stmt.table = tableName(tokens[1])
	}
	return stmt
}

func tableName(token string) string {
	return strings.Trim(token, "\"`();")
}

var _ gormlogger.Interface = (*GormLogger)(nil)
