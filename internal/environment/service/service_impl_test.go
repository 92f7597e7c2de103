package service

import (
	"context"
	"strings"
	"testing"

	"github.com/beaconhq/beacon/internal/environment/domain"
	"github.com/beaconhq/beacon/internal/environment/repository"
	flagdomain "github.com/beaconhq/beacon/internal/flag/domain"
	"github.com/beaconhq/beacon/internal/orgcontext"
	projectdomain "github.com/beaconhq/beacon/internal/project/domain"
	"github.com/beaconhq/beacon/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	testOrgID     = int64(1)
	testProjectID = int64(10)
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB, context.Context) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&projectdomain.Project{},
		&domain.Environment{},
		&flagdomain.Flag{},
		&flagdomain.FlagState{},
	))

	require.NoError(t, conn.Create(&projectdomain.Project{
		ID:    snowflake.ID(testProjectID),
		OrgID: testOrgID,
		Key:   "default",
		Name:  "Default",
	}).Error)

	genID, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: genID,
		Repo:  repository.Provide(),
	})
	ctx := orgcontext.WithOrgID(context.Background(), testOrgID)
	return svc, conn, ctx
}

func projectIDString() string { return snowflake.ID(testProjectID).String() }

func TestCreateReturnsKeysOnce(t *testing.T) {
	svc, conn, ctx := newTestService(t)

	resp, err := svc.Create(ctx, domain.CreateRequest{ProjectID: projectIDString(), Name: "Production"})
	require.NoError(t, err)

	assert.Equal(t, "production", resp.Key)
	assert.True(t, strings.HasPrefix(resp.ClientKey, domain.ClientKeyPrefix))
	assert.True(t, strings.HasPrefix(resp.ServerKey, domain.ServerKeyPrefix))

	// Only hashes are persisted; the plain keys are gone after this call.
	var stored domain.Environment
	require.NoError(t, conn.First(&stored, "key = ?", "production").Error)
	assert.Equal(t, domain.HashSDKKey(resp.ClientKey), stored.ClientKeyHash)
	assert.Equal(t, domain.HashSDKKey(resp.ServerKey), stored.ServerKeyHash)
	assert.NotContains(t, stored.ClientKeyHash, resp.ClientKey)
}

func TestCreateProvisionsExistingFlags(t *testing.T) {
	svc, conn, ctx := newTestService(t)

	require.NoError(t, conn.Create(&flagdomain.Flag{
		ID:               snowflake.ID(200),
		OrgID:            testOrgID,
		ProjectID:        testProjectID,
		Key:              "checkout-redesign",
		Name:             "Checkout Redesign",
		DefaultVariation: datatypes.JSON(`true`),
		OffVariation:     datatypes.JSON(`false`),
	}).Error)

	resp, err := svc.Create(ctx, domain.CreateRequest{ProjectID: projectIDString(), Name: "Staging"})
	require.NoError(t, err)

	envID, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)

	var states []flagdomain.FlagState
	require.NoError(t, conn.Where("environment_id = ?", envID.Int64()).Find(&states).Error)
	require.Len(t, states, 1, "existing flags get a state in the new environment")
	assert.False(t, states[0].Enabled)
	assert.Equal(t, flagdomain.FullRollout, states[0].DefaultRollout)
}

func TestCreateValidation(t *testing.T) {
	svc, _, ctx := newTestService(t)

	_, err := svc.Create(ctx, domain.CreateRequest{ProjectID: projectIDString(), Name: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateRequest{ProjectID: "999", Name: "Prod"})
	assert.ErrorIs(t, err, domain.ErrInvalidProject)

	_, err = svc.Create(context.Background(), domain.CreateRequest{ProjectID: projectIDString(), Name: "Prod"})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestCreateDuplicateKey(t *testing.T) {
	svc, _, ctx := newTestService(t)

	_, err := svc.Create(ctx, domain.CreateRequest{ProjectID: projectIDString(), Name: "Production"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, domain.CreateRequest{ProjectID: projectIDString(), Name: "Production"})
	assert.ErrorIs(t, err, domain.ErrKeyTaken)
}

func TestRotateKeys(t *testing.T) {
	svc, conn, ctx := newTestService(t)

	created, err := svc.Create(ctx, domain.CreateRequest{ProjectID: projectIDString(), Name: "Production"})
	require.NoError(t, err)

	rotated, err := svc.RotateKeys(ctx, created.ID)
	require.NoError(t, err)

	assert.NotEqual(t, created.ClientKey, rotated.ClientKey)
	assert.NotEqual(t, created.ServerKey, rotated.ServerKey)

	var stored domain.Environment
	require.NoError(t, conn.First(&stored, "key = ?", "production").Error)
	assert.Equal(t, domain.HashSDKKey(rotated.ServerKey), stored.ServerKeyHash,
		"old keys stop resolving after rotation")

	_, err = svc.RotateKeys(ctx, "999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteRemovesFlagStates(t *testing.T) {
	svc, conn, ctx := newTestService(t)

	created, err := svc.Create(ctx, domain.CreateRequest{ProjectID: projectIDString(), Name: "Production"})
	require.NoError(t, err)
	envID, err := snowflake.ParseString(created.ID)
	require.NoError(t, err)

	require.NoError(t, conn.Create(&flagdomain.FlagState{
		ID:            snowflake.ID(300),
		FlagID:        200,
		EnvironmentID: envID.Int64(),
		Enabled:       true,
	}).Error)

	require.NoError(t, svc.Delete(ctx, created.ID))

	var count int64
	require.NoError(t, conn.Model(&flagdomain.FlagState{}).
		Where("environment_id = ?", envID.Int64()).
		Count(&count).Error)
	assert.Zero(t, count)

	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
