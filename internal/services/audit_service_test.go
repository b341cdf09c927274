package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/backoffice/internal/auditctx"
	"github.com/charlesng35/backoffice/internal/database/testutil"
	"github.com/charlesng35/backoffice/internal/models"
	"github.com/charlesng35/backoffice/internal/permissions"
	apperrors "github.com/charlesng35/backoffice/pkg/errors"
)

func TestAuditServiceLogAndList(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewAuditService(db)
	require.NoError(t, err)

	ctx := auditctx.WithActor(context.Background(), auditctx.Actor{
		UserID:    "user-1",
		Role:      "admin",
		CompanyID: "company-1",
		IPAddress: "10.0.0.1",
		UserAgent: "test-agent",
	})

	require.NoError(t, svc.Log(ctx, AuditEntry{
		Action:   "grant.set",
		Resource: "user-2",
		Metadata: map[string]any{"count": 3},
	}))
	require.NoError(t, svc.Log(ctx, AuditEntry{
		Actor:  permissions.Identity{ID: "root-1", Role: permissions.RoleRoot},
		Action: "menu.move",
		Result: AuditResultFailure,
	}))

	require.Error(t, svc.Log(ctx, AuditEntry{}))

	auditor := permissions.Identity{ID: "auditor", Role: permissions.RoleAudit}
	logs, total, err := svc.List(ctx, auditor, AuditListOptions{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, logs, 2)

	logs, total, err = svc.List(ctx, auditor, AuditListOptions{Filters: AuditFilters{Action: "grant.set"}})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	entry := logs[0]
	require.NotNil(t, entry.ActorID)
	require.Equal(t, "user-1", *entry.ActorID)
	require.Equal(t, "admin", entry.ActorRole)
	require.Equal(t, "10.0.0.1", entry.IPAddress)
	require.Equal(t, AuditResultSuccess, entry.Result)

	var metadata map[string]any
	require.NoError(t, json.Unmarshal(entry.Metadata, &metadata))
	require.EqualValues(t, 3, metadata["count"])

	logs, _, err = svc.List(ctx, auditor, AuditListOptions{Filters: AuditFilters{ActorID: "root-1"}})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "root", logs[0].ActorRole)
	require.Equal(t, "test-agent", logs[0].UserAgent)

	_, _, err = svc.List(ctx, permissions.Identity{ID: "a", Role: permissions.RoleAdmin}, AuditListOptions{})
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestAuditServiceCleanupOlderThan(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewAuditService(db)
	require.NoError(t, err)

	oldLog := models.AuditLog{
		BaseModel: models.BaseModel{
			CreatedAt: time.Now().AddDate(0, 0, -10),
		},
		Action: "old.action",
		Result: AuditResultSuccess,
	}
	require.NoError(t, db.Create(&oldLog).Error)
	require.NoError(t, svc.Log(context.Background(), AuditEntry{Action: "fresh.action"}))

	ctx := context.Background()
	rows, err := svc.CleanupOlderThan(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, int64(1), rows)

	_, err = svc.CleanupOlderThan(ctx, 0)
	require.Error(t, err)
}
