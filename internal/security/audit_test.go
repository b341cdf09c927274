package security

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/charlesng35/backoffice/internal/auth"
	"github.com/charlesng35/backoffice/internal/database"
	testutil "github.com/charlesng35/backoffice/internal/database/testutil"
	"github.com/charlesng35/backoffice/internal/models"
	"github.com/charlesng35/backoffice/internal/permissions"
)

func checkByID(t *testing.T, result Result, id string) Check {
	t.Helper()
	for _, check := range result.Checks {
		if check.ID == id {
			return check
		}
	}
	t.Fatalf("check %q not found", id)
	return Check{}
}

func TestAuditServiceRun(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())

	root := &models.User{
		Username:  "root",
		Role:      permissions.RoleRoot,
		CompanyID: models.SystemCompanyID,
		IsActive:  true,
	}
	require.NoError(t, db.Create(root).Error)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         strings.Repeat("s", 48),
		AccessTokenTTL: 15 * time.Minute,
	})
	require.NoError(t, err)

	svc := NewAuditService(db, jwtSvc)
	fixed := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return fixed })

	result := svc.Run(context.Background())
	require.Equal(t, fixed, result.CheckedAt)
	require.Len(t, result.Checks, 5)
	require.Equal(t, 5, result.Summary[string(StatusPass)], result.Checks)
}

// openUnconstrainedDB skips foreign key enforcement so detached rows can be inserted.
func openUnconstrainedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(database.Config{
		Driver: "sqlite",
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	// The pragma is per connection, so pin the pool to one.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Exec("PRAGMA foreign_keys = OFF").Error)
	require.NoError(t, database.AutoMigrateAndSeed(db))
	return db
}

func TestAuditServiceDetectsProblems(t *testing.T) {
	db := openUnconstrainedDB(t)

	require.NoError(t, db.Create(&models.User{
		Username:  "stray",
		Role:      permissions.RoleUser,
		CompanyID: uuid.NewString(),
		IsActive:  true,
	}).Error)
	require.NoError(t, db.Create(&models.PermissionGrant{
		UserID:     uuid.NewString(),
		ResourceID: uuid.NewString(),
	}).Error)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "short-secret",
		AccessTokenTTL: 48 * time.Hour,
	})
	require.NoError(t, err)

	result := NewAuditService(db, jwtSvc).Run(context.Background())

	require.Equal(t, StatusFail, checkByID(t, result, "root_user_present").Status)
	require.Equal(t, StatusFail, checkByID(t, result, "jwt_secret_strength").Status)
	require.Equal(t, StatusFail, checkByID(t, result, "access_token_ttl").Status)
	require.Equal(t, StatusWarn, checkByID(t, result, "orphan_grants").Status)
	require.Equal(t, StatusFail, checkByID(t, result, "users_without_company").Status)
}

func TestAuditServiceWithoutDependencies(t *testing.T) {
	result := NewAuditService(nil, nil).Run(context.Background())
	require.Equal(t, 5, result.Summary[string(StatusWarn)])
}
