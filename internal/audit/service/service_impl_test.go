package service

import (
	"context"
	"testing"
	"time"

	auditdomain "github.com/beaconhq/beacon/internal/audit/domain"
	"github.com/beaconhq/beacon/internal/audit/repository"
	"github.com/beaconhq/beacon/internal/auditcontext"
	"github.com/beaconhq/beacon/internal/orgcontext"
	"github.com/beaconhq/beacon/pkg/db"
	"github.com/beaconhq/beacon/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testOrgID = int64(1)

func newTestService(t *testing.T) (auditdomain.Service, *gorm.DB, context.Context) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&auditdomain.AuditLog{}))

	genID, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: genID,
		Repo:  repository.Provide(),
	})
	ctx := orgcontext.WithOrgID(context.Background(), testOrgID)
	return svc, conn, ctx
}

func TestAuditLogResolvesContext(t *testing.T) {
	svc, conn, ctx := newTestService(t)

	ctx = auditcontext.WithRequestInfo(ctx, "203.0.113.7", "sdk/1.0", "req-42")
	require.NoError(t, svc.AuditLog(ctx, nil, "", nil, "flag.toggled", "flag", nil,
		map[string]any{"enabled": true}))

	var entry auditdomain.AuditLog
	require.NoError(t, conn.First(&entry).Error)

	require.NotNil(t, entry.OrgID)
	assert.Equal(t, testOrgID, entry.OrgID.Int64(), "org comes from context when not passed")
	assert.Equal(t, string(auditdomain.ActorTypeSystem), entry.ActorType, "actor defaults to system")
	assert.Equal(t, "flag.toggled", entry.Action)
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "203.0.113.7", *entry.IPAddress)
	assert.Equal(t, "req-42", entry.Metadata["request_id"])
}

func TestAuditLogRejectsEmptyAction(t *testing.T) {
	svc, _, ctx := newTestService(t)

	err := svc.AuditLog(ctx, nil, "", nil, "  ", "flag", nil, nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListPaginates(t *testing.T) {
	svc, _, ctx := newTestService(t)

	for _, action := range []string{"flag.created", "flag.toggled", "flag.archived"} {
		require.NoError(t, svc.AuditLog(ctx, nil, "", nil, action, "flag", nil, nil))
	}

	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageSize: 2},
	})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextPageToken)

	second, err := svc.List(ctx, auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)

	seen := map[string]bool{}
	for _, item := range append(first.AuditLogs, second.AuditLogs...) {
		seen[item.Action] = true
	}
	assert.Len(t, seen, 3, "pages do not overlap")
}

func TestListRejectsBadToken(t *testing.T) {
	svc, _, ctx := newTestService(t)

	_, err := svc.List(ctx, auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageToken: "%%%not-a-token%%%"},
	})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}

func TestListRejectsInvertedTimeRange(t *testing.T) {
	svc, _, ctx := newTestService(t)

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err := svc.List(ctx, auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)
}

func TestListRequiresOrganization(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidOrganization)
}

func TestListFiltersByAction(t *testing.T) {
	svc, _, ctx := newTestService(t)

	require.NoError(t, svc.AuditLog(ctx, nil, "", nil, "flag.created", "flag", nil, nil))
	require.NoError(t, svc.AuditLog(ctx, nil, "", nil, "flag.toggled", "flag", nil, nil))

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Action: "flag.toggled"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, "flag.toggled", resp.AuditLogs[0].Action)
}
