package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func observedGormLogger(level logger.LogLevel) (*GormLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level), logs
}

func TestGormLogger_Trace(t *testing.T) {
	ctx := context.Background()
	query := func() (string, int64) { return "SELECT * FROM companions", 0 }

	l, logs := observedGormLogger(logger.Warn)
	l.Trace(ctx, time.Now(), query, gorm.ErrRecordNotFound)
	l.Trace(ctx, time.Now(), query, nil)
	assert.Zero(t, logs.Len(), "not found and fast queries are quiet at warn level")

	l.Trace(ctx, time.Now(), query, errors.New("relation does not exist"))
	failed := logs.FilterMessage("gorm query failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
	assert.Equal(t, "SELECT * FROM companions", failed[0].ContextMap()["sql"])

	l.Trace(ctx, time.Now().Add(-time.Second), query, nil)
	assert.Equal(t, 1, logs.FilterMessage("gorm slow query").Len())
}

func TestGormLogger_LogMode(t *testing.T) {
	l, logs := observedGormLogger(logger.Warn)
	silent := l.LogMode(logger.Silent)

	silent.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, errors.New("boom"))
	silent.Warn(context.Background(), "ignored %d", 1)
	assert.Zero(t, logs.Len())

	l.Warn(context.Background(), "pool %s", "exhausted")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "pool exhausted", logs.All()[0].Message)
}

func TestGormLogger_WithGorm(t *testing.T) {
	l, logs := observedGormLogger(logger.Error)
	db, err := gorm.Open(sqlite.Open("file:gorm_logger?mode=memory&cache=shared"), &gorm.Config{Logger: l})
	require.NoError(t, err)

	err = db.Exec("SELECT * FROM missing_table").Error
	require.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("gorm query failed").Len())
}
