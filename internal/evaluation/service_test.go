package evaluation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	events []TelemetryEvent
}

func (r *recordingSink) Emit(event TelemetryEvent) {
	r.events = append(r.events, event)
}

func newTestService(t *testing.T, sink TelemetrySink) (*Service, *Store) {
	t.Helper()

	store, conn, clk := newTestStore(t)
	seedEnvironment(t, conn, 100, "production")
	seedFlag(t, conn, 200, "checkout-redesign", false)
	seedFlag(t, conn, 201, "new-pricing", false)
	seedState(t, conn, 300, 200, 100, true)
	seedState(t, conn, 301, 201, 100, false)
	require.NoError(t, store.Refresh(context.Background()))

	svc := NewService(ServiceParams{
		Store:     store,
		Clock:     clk,
		Log:       zap.NewNop(),
		Telemetry: sink,
	})
	return svc, store
}

func TestEvaluateUnknownSDKKey(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Evaluate(context.Background(), "", EvaluateRequest{UserKey: "u-1"})
	assert.ErrorIs(t, err, ErrUnknownSDKKey)

	_, err = svc.Evaluate(context.Background(), "s_wrong-key", EvaluateRequest{UserKey: "u-1"})
	assert.ErrorIs(t, err, ErrUnknownSDKKey)
}

func TestEvaluateMissingUserKey(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Evaluate(context.Background(), testServerKey, EvaluateRequest{UserKey: "   "})
	assert.ErrorIs(t, err, ErrMissingUserKey)
}

func TestEvaluateNotReady(t *testing.T) {
	store, _, clk := newTestStore(t)
	svc := NewService(ServiceParams{Store: store, Clock: clk, Log: zap.NewNop()})

	_, err := svc.Evaluate(context.Background(), testServerKey, EvaluateRequest{UserKey: "u-1"})
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestEvaluateAllFlags(t *testing.T) {
	svc, _ := newTestService(t, nil)

	resp, err := svc.Evaluate(context.Background(), testServerKey, EvaluateRequest{UserKey: "u-1"})
	require.NoError(t, err)

	assert.Equal(t, "production", resp.Environment)
	require.Len(t, resp.Flags, 2)
	assert.Equal(t, ReasonFallthroughRollout, resp.Flags["checkout-redesign"].Reason)
	assert.Equal(t, json.RawMessage(`true`), resp.Flags["checkout-redesign"].Value)
	assert.Equal(t, ReasonFlagOff, resp.Flags["new-pricing"].Reason)
	assert.Equal(t, json.RawMessage(`false`), resp.Flags["new-pricing"].Value)
}

func TestEvaluateUnknownFlagKey(t *testing.T) {
	svc, _ := newTestService(t, nil)

	resp, err := svc.Evaluate(context.Background(), testServerKey, EvaluateRequest{
		UserKey:  "u-1",
		FlagKeys: []string{"checkout-redesign", "does-not-exist"},
	})
	require.NoError(t, err)

	require.Len(t, resp.Flags, 2)
	missing := resp.Flags["does-not-exist"]
	assert.Equal(t, ReasonNoState, missing.Reason)
	assert.Equal(t, json.RawMessage("null"), missing.Value)
}

func TestEvaluateClientKeyResolvesSameEnvironment(t *testing.T) {
	svc, _ := newTestService(t, nil)

	resp, err := svc.Evaluate(context.Background(), testClientKey, EvaluateRequest{UserKey: "u-1"})
	require.NoError(t, err)
	assert.Equal(t, "production", resp.Environment)
}

func TestEvaluateEmitsTelemetry(t *testing.T) {
	sink := &recordingSink{}
	svc, _ := newTestService(t, sink)

	resp, err := svc.Evaluate(context.Background(), testServerKey, EvaluateRequest{
		UserKey:  "u-1",
		FlagKeys: []string{"checkout-redesign"},
	})
	require.NoError(t, err)

	require.Len(t, sink.events, 1)
	event := sink.events[0]
	assert.Equal(t, snowflake.ID(100), event.EnvironmentID)
	assert.Equal(t, "checkout-redesign", event.FlagKey)
	assert.Equal(t, "u-1", event.UserKey)
	assert.Equal(t, ReasonFallthroughRollout, event.Reason)
	assert.Equal(t, resp.EvaluatedAt, event.EvaluatedAt)
}
