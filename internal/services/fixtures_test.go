package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/backoffice/internal/cache"
	"github.com/charlesng35/backoffice/internal/database/testutil"
	"github.com/charlesng35/backoffice/internal/models"
	"github.com/charlesng35/backoffice/internal/permissions"
	"github.com/charlesng35/backoffice/pkg/crypto"
)

type serviceFixture struct {
	db        *gorm.DB
	cache     *cache.LocalStore
	audit     *AuditService
	access    *AccessService
	users     *UserService
	companies *CompanyService
	menus     *MenuService
}

func newServiceFixture(t *testing.T, cfg AccessConfig) *serviceFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	nodeCache := cache.NewLocalStore(16, time.Minute)

	set, err := NewSet(db, nodeCache, cfg)
	require.NoError(t, err)

	return &serviceFixture{
		db:        db,
		cache:     nodeCache,
		audit:     set.Audit,
		access:    set.Access,
		users:     set.Users,
		companies: set.Companies,
		menus:     set.Menus,
	}
}

func (f *serviceFixture) company(t *testing.T, name string) models.Company {
	t.Helper()
	company := models.Company{Name: name}
	require.NoError(t, f.db.Create(&company).Error)
	return company
}

func (f *serviceFixture) user(t *testing.T, username string, role permissions.Role, companyID string) models.User {
	t.Helper()
	hashed, err := crypto.HashPassword("password123")
	require.NoError(t, err)

	user := models.User{
		Username:     username,
		PasswordHash: hashed,
		Role:         role,
		CompanyID:    companyID,
		IsActive:     true,
	}
	require.NoError(t, f.db.Create(&user).Error)
	return user
}

func (f *serviceFixture) root(t *testing.T) permissions.Identity {
	t.Helper()
	return f.user(t, "root", permissions.RoleRoot, models.SystemCompanyID).Identity()
}

func (f *serviceFixture) menuID(t *testing.T, key string) string {
	t.Helper()
	node, ok, err := f.access.NodeByKey(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok, "menu key %q not seeded", key)
	return node.ID
}

