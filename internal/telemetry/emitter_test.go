package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/beaconhq/beacon/internal/clock"
	"github.com/beaconhq/beacon/internal/config"
	"github.com/beaconhq/beacon/internal/evaluation"
	"github.com/beaconhq/beacon/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestEmitter(t *testing.T, bufferSize int) (*Emitter, *gorm.DB) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&Event{}))

	genID, err := snowflake.NewNode(1)
	require.NoError(t, err)

	holder := &config.EngineConfigHolder{}
	cfg := config.DefaultEngineConfig()
	cfg.TelemetryBufferSize = bufferSize
	holder.Store(cfg)

	emitter := New(Params{
		DB:     conn,
		Log:    zap.NewNop(),
		GenID:  genID,
		Clock:  clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Holder: holder,
	})
	return emitter, conn
}

func drain(emitter *Emitter) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	emitter.run(ctx)
}

func TestEmitterPersistsEvents(t *testing.T) {
	emitter, conn := newTestEmitter(t, 16)

	emitter.Emit(evaluation.TelemetryEvent{
		EnvironmentID: snowflake.ID(100),
		FlagKey:       "checkout-redesign",
		UserKey:       "u-1",
		Reason:        evaluation.ReasonRuleMatch,
		RuleID:        "10",
		EvaluatedAt:   time.Date(2026, 3, 1, 11, 59, 0, 0, time.UTC),
	})
	emitter.Emit(evaluation.TelemetryEvent{
		EnvironmentID: snowflake.ID(100),
		FlagKey:       "new-pricing",
		UserKey:       "u-1",
		Reason:        evaluation.ReasonFlagOff,
		EvaluatedAt:   time.Date(2026, 3, 1, 11, 59, 0, 0, time.UTC),
	})
	drain(emitter)

	var rows []Event
	require.NoError(t, conn.Order("flag_key ASC").Find(&rows).Error)
	require.Len(t, rows, 2)

	assert.Equal(t, "checkout-redesign", rows[0].FlagKey)
	assert.Equal(t, evaluation.ReasonRuleMatch, rows[0].Reason)
	require.NotNil(t, rows[0].RuleID)
	assert.Equal(t, "10", *rows[0].RuleID)
	assert.NotEmpty(t, rows[0].EventID)

	assert.Nil(t, rows[1].RuleID, "fallthrough events carry no rule id")
	assert.NotEqual(t, rows[0].EventID, rows[1].EventID)
}

func TestEmitterDropsWhenFull(t *testing.T) {
	emitter, conn := newTestEmitter(t, 2)

	for i := 0; i < 5; i++ {
		emitter.Emit(evaluation.TelemetryEvent{
			EnvironmentID: snowflake.ID(100),
			FlagKey:       "checkout-redesign",
			UserKey:       "u-1",
			Reason:        evaluation.ReasonFlagOff,
			EvaluatedAt:   time.Now().UTC(),
		})
	}
	drain(emitter)

	var count int64
	require.NoError(t, conn.Model(&Event{}).Count(&count).Error)
	assert.Equal(t, int64(2), count, "overflow is dropped, never blocks")
}
