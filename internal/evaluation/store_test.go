package evaluation

import (
	"context"
	"testing"
	"time"

	"github.com/beaconhq/beacon/internal/clock"
	"github.com/beaconhq/beacon/internal/config"
	environmentdomain "github.com/beaconhq/beacon/internal/environment/domain"
	flagdomain "github.com/beaconhq/beacon/internal/flag/domain"
	"github.com/beaconhq/beacon/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	testClientKey = "c_client-key-for-tests"
	testServerKey = "s_server-key-for-tests"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&environmentdomain.Environment{},
		&flagdomain.Flag{},
		&flagdomain.FlagState{},
		&flagdomain.Rule{},
	))

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	holder := &config.EngineConfigHolder{}
	holder.Store(config.DefaultEngineConfig())

	log := zap.NewNop()
	store := NewStore(NewLoader(conn, log), clk, holder, nil, log)
	return store, conn, clk
}

func seedEnvironment(t *testing.T, conn *gorm.DB, id int64, key string) {
	t.Helper()
	require.NoError(t, conn.Create(&environmentdomain.Environment{
		ID:            snowflake.ID(id),
		OrgID:         1,
		ProjectID:     1,
		Key:           key,
		Name:          key,
		ClientKeyHash: environmentdomain.HashSDKKey(testClientKey),
		ServerKeyHash: environmentdomain.HashSDKKey(testServerKey),
	}).Error)
}

func seedFlag(t *testing.T, conn *gorm.DB, id int64, key string, archived bool) {
	t.Helper()
	require.NoError(t, conn.Create(&flagdomain.Flag{
		ID:               snowflake.ID(id),
		OrgID:            1,
		ProjectID:        1,
		Key:              key,
		Name:             key,
		DefaultVariation: datatypes.JSON(`true`),
		OffVariation:     datatypes.JSON(`false`),
		Archived:         archived,
	}).Error)
}

func seedState(t *testing.T, conn *gorm.DB, id, flagID, envID int64, enabled bool) {
	t.Helper()
	require.NoError(t, conn.Create(&flagdomain.FlagState{
		ID:               snowflake.ID(id),
		FlagID:           flagID,
		EnvironmentID:    envID,
		Enabled:          enabled,
		DefaultRollout:   flagdomain.FullRollout,
		DefaultVariation: datatypes.JSON(`true`),
		OffVariation:     datatypes.JSON(`false`),
	}).Error)
}

func seedRule(t *testing.T, conn *gorm.DB, id, stateID int64, priority int, clauses string) {
	t.Helper()
	require.NoError(t, conn.Create(&flagdomain.Rule{
		ID:          snowflake.ID(id),
		FlagStateID: stateID,
		Priority:    priority,
		Clauses:     datatypes.JSON(clauses),
		Variation:   datatypes.JSON(`"beta"`),
		Rollout:     flagdomain.FullRollout,
	}).Error)
}

func TestStoreColdStart(t *testing.T) {
	store, _, _ := newTestStore(t)

	assert.False(t, store.Ready())
	_, ok := store.ByKeyHash(environmentdomain.HashSDKKey(testServerKey))
	assert.False(t, ok)

	health := store.Health()
	assert.False(t, health.Ready)
	assert.Empty(t, health.LastError)
}

func TestStoreRefreshBuildsSnapshot(t *testing.T) {
	store, conn, clk := newTestStore(t)
	seedEnvironment(t, conn, 100, "production")
	seedFlag(t, conn, 200, "checkout-redesign", false)
	seedFlag(t, conn, 201, "new-pricing", false)
	seedState(t, conn, 300, 200, 100, true)
	seedState(t, conn, 301, 201, 100, false)
	seedRule(t, conn, 400, 300, 0, `[{"attribute": "plan", "op": "equals", "value": "pro"}]`)

	require.NoError(t, store.Refresh(context.Background()))
	require.True(t, store.Ready())

	// Both SDK keys of an environment resolve to the same snapshot.
	byServer, ok := store.ByKeyHash(environmentdomain.HashSDKKey(testServerKey))
	require.True(t, ok)
	byClient, ok := store.ByKeyHash(environmentdomain.HashSDKKey(testClientKey))
	require.True(t, ok)
	assert.Same(t, byServer, byClient)

	assert.Equal(t, "production", byServer.EnvironmentKey)
	assert.Equal(t, []string{"checkout-redesign", "new-pricing"}, byServer.FlagKeys)

	state := byServer.States["checkout-redesign"]
	require.NotNil(t, state)
	assert.True(t, state.Enabled)
	require.Len(t, state.Rules, 1)
	assert.Equal(t, "plan", state.Rules[0].Clauses[0].Field)

	byID, ok := store.ByEnvironmentID(snowflake.ID(100))
	require.True(t, ok)
	assert.Same(t, byServer, byID)

	health := store.Health()
	assert.True(t, health.Ready)
	assert.Equal(t, clk.Now(), health.BuiltAt)
	assert.Empty(t, health.LastError)
}

func TestStoreDropsMalformedRule(t *testing.T) {
	store, conn, _ := newTestStore(t)
	seedEnvironment(t, conn, 100, "production")
	seedFlag(t, conn, 200, "checkout-redesign", false)
	seedState(t, conn, 300, 200, 100, true)
	seedRule(t, conn, 400, 300, 0, `[{"attribute": "plan", "op": "regex", "value": "pro"}]`)
	seedRule(t, conn, 401, 300, 1, `[{"attribute": "plan", "op": "equals", "value": "pro"}]`)

	require.NoError(t, store.Refresh(context.Background()))

	snapshot, ok := store.ByEnvironmentID(snowflake.ID(100))
	require.True(t, ok)
	state := snapshot.States["checkout-redesign"]
	require.NotNil(t, state)
	require.Len(t, state.Rules, 1, "malformed rule is dropped, valid rule survives")
	assert.Equal(t, snowflake.ID(401), state.Rules[0].ID)
}

func TestStoreExcludesArchivedFlags(t *testing.T) {
	store, conn, _ := newTestStore(t)
	seedEnvironment(t, conn, 100, "production")
	seedFlag(t, conn, 200, "live-flag", false)
	seedFlag(t, conn, 201, "retired-flag", true)
	seedState(t, conn, 300, 200, 100, true)
	seedState(t, conn, 301, 201, 100, true)

	require.NoError(t, store.Refresh(context.Background()))

	snapshot, ok := store.ByEnvironmentID(snowflake.ID(100))
	require.True(t, ok)
	assert.Equal(t, []string{"live-flag"}, snapshot.FlagKeys)
	assert.Nil(t, snapshot.States["retired-flag"])
}

func TestStoreServesStaleOnFailure(t *testing.T) {
	store, conn, clk := newTestStore(t)
	seedEnvironment(t, conn, 100, "production")
	seedFlag(t, conn, 200, "checkout-redesign", false)
	seedState(t, conn, 300, 200, 100, true)

	require.NoError(t, store.Refresh(context.Background()))
	firstBuilt := store.Health().BuiltAt

	require.NoError(t, conn.Exec("DROP TABLE rules").Error)
	clk.Advance(time.Minute)

	err := store.Refresh(context.Background())
	require.Error(t, err)

	// The previous snapshot keeps serving.
	assert.True(t, store.Ready())
	snapshot, ok := store.ByKeyHash(environmentdomain.HashSDKKey(testServerKey))
	require.True(t, ok)
	assert.NotNil(t, snapshot.States["checkout-redesign"])

	health := store.Health()
	assert.True(t, health.Ready)
	assert.Equal(t, firstBuilt, health.BuiltAt)
	assert.NotEmpty(t, health.LastError)
	assert.Equal(t, clk.Now(), health.LastRefreshAt)
}

func TestStoreNotifyNeverBlocks(t *testing.T) {
	store, _, _ := newTestStore(t)

	// Repeated kicks coalesce instead of blocking the caller.
	for i := 0; i < 10; i++ {
		store.Notify()
	}
}
