package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/backoffice/internal/database"
	testutil "github.com/charlesng35/backoffice/internal/database/testutil"
	"github.com/charlesng35/backoffice/internal/models"
	"github.com/charlesng35/backoffice/internal/permissions"
	"github.com/charlesng35/backoffice/internal/services"
)

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())

	store, err := services.NewAccessStore(db)
	require.NoError(t, err)
	auditSvc, err := services.NewAuditService(db)
	require.NoError(t, err)

	user := seedUser(t, db, "cleanup-user")
	dashboard := menuID(t, db, database.MenuDashboard)

	kept := models.PermissionGrant{UserID: user.ID, ResourceID: dashboard, CanRead: true}
	deletedNode := models.PermissionGrant{UserID: user.ID, ResourceID: uuid.NewString()}
	deletedUser := models.PermissionGrant{UserID: uuid.NewString(), ResourceID: dashboard}
	for _, grant := range []*models.PermissionGrant{&kept, &deletedNode, &deletedUser} {
		require.NoError(t, db.Create(grant).Error)
	}

	require.NoError(t, auditSvc.Log(context.Background(), services.AuditEntry{
		Action: "test.old",
		Result: services.AuditResultSuccess,
	}))
	require.NoError(t, db.Model(&models.AuditLog{}).Where("action = ?", "test.old").
		Update("created_at", time.Now().AddDate(0, 0, -10)).Error)
	require.NoError(t, auditSvc.Log(context.Background(), services.AuditEntry{
		Action: "test.recent",
		Result: services.AuditResultSuccess,
	}))

	c := NewCleaner(store, auditSvc,
		WithAuditRetentionDays(7),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)
	require.NoError(t, c.RunOnce(context.Background()))

	var grants []models.PermissionGrant
	require.NoError(t, db.Find(&grants).Error)
	require.Len(t, grants, 1)
	require.Equal(t, kept.ID, grants[0].ID)

	var logs []models.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	require.Equal(t, "test.recent", logs[0].Action)
}

func TestCleanerRunOnceAggregatesErrors(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	store, err := services.NewAccessStore(db)
	require.NoError(t, err)
	auditSvc, err := services.NewAuditService(db)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	err = NewCleaner(store, auditSvc).RunOnce(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "purge orphan grants")
	require.ErrorContains(t, err, "cleanup logs")
}

func TestCleanerStartRejectsInvalidSchedule(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := services.NewAccessStore(db)
	require.NoError(t, err)

	c := NewCleaner(store, nil, WithGrantSchedule("not a schedule"))
	require.Error(t, c.Start())
}

func TestCleanerStartAndStop(t *testing.T) {
	require.NoError(t, NewCleaner(nil, nil).Start())

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	auditSvc, err := services.NewAuditService(db)
	require.NoError(t, err)

	c := NewCleaner(nil, auditSvc, WithAuditSchedule("@every 1h"))
	require.NoError(t, c.Start())
	<-c.Stop().Done()
}

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username:  username,
		Email:     username + "@example.com",
		Role:      permissions.RoleUser,
		CompanyID: models.SystemCompanyID,
		IsActive:  true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func menuID(t *testing.T, db *gorm.DB, key string) string {
	t.Helper()
	var node models.MenuNode
	require.NoError(t, db.Where(&models.MenuNode{Key: key}).First(&node).Error)
	return node.ID
}
