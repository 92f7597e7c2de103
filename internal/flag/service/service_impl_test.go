package service

import (
	"context"
	"encoding/json"
	"testing"

	environmentdomain "github.com/beaconhq/beacon/internal/environment/domain"
	"github.com/beaconhq/beacon/internal/flag/domain"
	"github.com/beaconhq/beacon/internal/flag/repository"
	"github.com/beaconhq/beacon/internal/orgcontext"
	projectdomain "github.com/beaconhq/beacon/internal/project/domain"
	"github.com/beaconhq/beacon/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testOrgID     = int64(1)
	testProjectID = int64(10)
	testEnvProd   = int64(20)
	testEnvStage  = int64(21)
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB, context.Context) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&projectdomain.Project{},
		&environmentdomain.Environment{},
		&domain.Flag{},
		&domain.FlagState{},
		&domain.Rule{},
	))

	require.NoError(t, conn.Create(&projectdomain.Project{
		ID:    snowflake.ID(testProjectID),
		OrgID: testOrgID,
		Key:   "default",
		Name:  "Default",
	}).Error)
	for i, envID := range []int64{testEnvProd, testEnvStage} {
		key := []string{"production", "staging"}[i]
		require.NoError(t, conn.Create(&environmentdomain.Environment{
			ID:            snowflake.ID(envID),
			OrgID:         testOrgID,
			ProjectID:     testProjectID,
			Key:           key,
			Name:          key,
			ClientKeyHash: environmentdomain.HashSDKKey("c_" + key),
			ServerKeyHash: environmentdomain.HashSDKKey("s_" + key),
		}).Error)
	}

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

func TestCreateProvisionsStates(t *testing.T) {
	svc, conn, ctx := newTestService(t)

	resp, err := svc.Create(ctx, domain.CreateRequest{
		ProjectID:        projectIDString(),
		Name:             "Checkout Redesign",
		Tags:             []string{"checkout", "checkout", " ", "web"},
		DefaultVariation: json.RawMessage(`"on"`),
		OffVariation:     json.RawMessage(`"off"`),
	})
	require.NoError(t, err)

	assert.Equal(t, "checkout-redesign", resp.Key, "key is slugged from the name")
	assert.Equal(t, []string{"checkout", "web"}, resp.Tags)

	flagID, err := snowflake.ParseString(resp.ID)
	require.NoError(t, err)

	var states []domain.FlagState
	require.NoError(t, conn.Where("flag_id = ?", flagID.Int64()).Find(&states).Error)
	require.Len(t, states, 2, "one state per environment")
	for _, state := range states {
		assert.False(t, state.Enabled, "new states start disabled")
		assert.Equal(t, domain.FullRollout, state.DefaultRollout)
		assert.JSONEq(t, `"on"`, string(state.DefaultVariation))
		assert.JSONEq(t, `"off"`, string(state.OffVariation))
	}
}

func TestCreateDefaultVariations(t *testing.T) {
	svc, _, ctx := newTestService(t)

	resp, err := svc.Create(ctx, domain.CreateRequest{
		ProjectID: projectIDString(),
		Name:      "New Pricing",
	})
	require.NoError(t, err)

	assert.JSONEq(t, `true`, string(resp.DefaultVariation))
	assert.JSONEq(t, `false`, string(resp.OffVariation))
}

func TestCreateValidation(t *testing.T) {
	svc, _, ctx := newTestService(t)

	_, err := svc.Create(ctx, domain.CreateRequest{ProjectID: projectIDString(), Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateRequest{ProjectID: "999", Name: "Orphan"})
	assert.ErrorIs(t, err, domain.ErrInvalidProject)

	_, err = svc.Create(ctx, domain.CreateRequest{
		ProjectID:        projectIDString(),
		Name:             "Broken",
		DefaultVariation: json.RawMessage(`{not json`),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidVariation)

	_, err = svc.Create(context.Background(), domain.CreateRequest{ProjectID: projectIDString(), Name: "No Org"})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestCreateDuplicateKey(t *testing.T) {
	svc, _, ctx := newTestService(t)

	_, err := svc.Create(ctx, domain.CreateRequest{ProjectID: projectIDString(), Name: "Checkout"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, domain.CreateRequest{ProjectID: projectIDString(), Name: "Checkout"})
	assert.ErrorIs(t, err, domain.ErrKeyTaken)
}

func TestToggleState(t *testing.T) {
	svc, _, ctx := newTestService(t)

	flag, err := svc.Create(ctx, domain.CreateRequest{ProjectID: projectIDString(), Name: "Checkout"})
	require.NoError(t, err)

	envID := snowflake.ID(testEnvProd).String()
	state, err := svc.ToggleState(ctx, domain.ToggleStateRequest{
		FlagID:        flag.ID,
		EnvironmentID: envID,
		Enabled:       true,
	})
	require.NoError(t, err)
	assert.True(t, state.Enabled)

	states, err := svc.ListStates(ctx, flag.ID)
	require.NoError(t, err)
	require.Len(t, states, 2)
	byEnv := map[string]bool{}
	for _, s := range states {
		byEnv[s.EnvironmentID] = s.Enabled
	}
	assert.True(t, byEnv[envID], "toggled environment is enabled")
	assert.False(t, byEnv[snowflake.ID(testEnvStage).String()], "other environment is untouched")
}

func TestUpdateStateValidation(t *testing.T) {
	svc, _, ctx := newTestService(t)

	flag, err := svc.Create(ctx, domain.CreateRequest{ProjectID: projectIDString(), Name: "Checkout"})
	require.NoError(t, err)
	envID := snowflake.ID(testEnvProd).String()

	bad := 150
	_, err = svc.UpdateState(ctx, domain.UpdateStateRequest{
		FlagID:         flag.ID,
		EnvironmentID:  envID,
		DefaultRollout: &bad,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRollout)

	raw := json.RawMessage(`{broken`)
	_, err = svc.UpdateState(ctx, domain.UpdateStateRequest{
		FlagID:           flag.ID,
		EnvironmentID:    envID,
		DefaultVariation: &raw,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidVariation)

	rollout := 40
	enabled := true
	state, err := svc.UpdateState(ctx, domain.UpdateStateRequest{
		FlagID:         flag.ID,
		EnvironmentID:  envID,
		Enabled:        &enabled,
		DefaultRollout: &rollout,
	})
	require.NoError(t, err)
	assert.True(t, state.Enabled)
	assert.Equal(t, 40, state.DefaultRollout)

	_, err = svc.UpdateState(ctx, domain.UpdateStateRequest{FlagID: flag.ID, EnvironmentID: "999"})
	assert.ErrorIs(t, err, domain.ErrStateNotFound)
}

func TestCreateRuleValidation(t *testing.T) {
	svc, _, ctx := newTestService(t)

	flag, err := svc.Create(ctx, domain.CreateRequest{ProjectID: projectIDString(), Name: "Checkout"})
	require.NoError(t, err)
	envID := snowflake.ID(testEnvProd).String()

	_, err = svc.CreateRule(ctx, domain.CreateRuleRequest{
		FlagID:        flag.ID,
		EnvironmentID: envID,
		Clauses:       json.RawMessage(`[{"attribute": "plan", "op": "regex", "value": "x"}]`),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidClauses)

	bad := -1
	_, err = svc.CreateRule(ctx, domain.CreateRuleRequest{
		FlagID:        flag.ID,
		EnvironmentID: envID,
		Clauses:       json.RawMessage(`[{"attribute": "plan", "op": "equals", "value": "pro"}]`),
		Rollout:       &bad,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRollout)

	rule, err := svc.CreateRule(ctx, domain.CreateRuleRequest{
		FlagID:        flag.ID,
		EnvironmentID: envID,
		Clauses:       json.RawMessage(`[{"attribute": "plan", "op": "equals", "value": "pro"}]`),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.FullRollout, rule.Rollout)
	assert.JSONEq(t, `true`, string(rule.Variation), "variation falls back to the state default")
}

func TestRuleLifecycle(t *testing.T) {
	svc, _, ctx := newTestService(t)

	flag, err := svc.Create(ctx, domain.CreateRequest{ProjectID: projectIDString(), Name: "Checkout"})
	require.NoError(t, err)
	envID := snowflake.ID(testEnvProd).String()

	clauses := json.RawMessage(`[{"attribute": "plan", "op": "equals", "value": "pro"}]`)
	second, err := svc.CreateRule(ctx, domain.CreateRuleRequest{
		FlagID: flag.ID, EnvironmentID: envID, Priority: 2, Clauses: clauses,
	})
	require.NoError(t, err)
	first, err := svc.CreateRule(ctx, domain.CreateRuleRequest{
		FlagID: flag.ID, EnvironmentID: envID, Priority: 1, Clauses: clauses,
	})
	require.NoError(t, err)

	rules, err := svc.ListRules(ctx, flag.ID, envID)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, first.ID, rules[0].ID, "rules come back in priority order")
	assert.Equal(t, second.ID, rules[1].ID)

	rollout := 25
	updated, err := svc.UpdateRule(ctx, domain.UpdateRuleRequest{
		FlagID: flag.ID, EnvironmentID: envID, RuleID: first.ID, Rollout: &rollout,
	})
	require.NoError(t, err)
	assert.Equal(t, 25, updated.Rollout)

	require.NoError(t, svc.DeleteRule(ctx, flag.ID, envID, first.ID))
	err = svc.DeleteRule(ctx, flag.ID, envID, first.ID)
	assert.ErrorIs(t, err, domain.ErrRuleNotFound)

	rules, err = svc.ListRules(ctx, flag.ID, envID)
	require.NoError(t, err)
	require.Len(t, rules, 1)
}

func TestArchive(t *testing.T) {
	svc, _, ctx := newTestService(t)

	flag, err := svc.Create(ctx, domain.CreateRequest{ProjectID: projectIDString(), Name: "Checkout"})
	require.NoError(t, err)

	archived, err := svc.Archive(ctx, flag.ID)
	require.NoError(t, err)
	assert.True(t, archived.Archived)

	live := false
	items, err := svc.List(ctx, domain.ListRequest{ProjectID: projectIDString(), Archived: &live})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestGetUnknownFlag(t *testing.T) {
	svc, _, ctx := newTestService(t)

	_, err := svc.Get(ctx, "999")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Get(ctx, "not-a-snowflake")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestUpdateFlagMetadata(t *testing.T) {
	svc, _, ctx := newTestService(t)

	flag, err := svc.Create(ctx, domain.CreateRequest{ProjectID: projectIDString(), Name: "Checkout"})
	require.NoError(t, err)

	name := "Checkout v2"
	tags := []string{"web"}
	updated, err := svc.Update(ctx, domain.UpdateRequest{ID: flag.ID, Name: &name, Tags: tags})
	require.NoError(t, err)
	assert.Equal(t, "Checkout v2", updated.Name)
	assert.Equal(t, []string{"web"}, updated.Tags)
	assert.True(t, !updated.UpdatedAt.Before(flag.UpdatedAt))
}
