package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/backoffice/internal/database"
	"github.com/charlesng35/backoffice/internal/models"
	"github.com/charlesng35/backoffice/internal/permissions"
	"github.com/charlesng35/backoffice/pkg/crypto"
	apperrors "github.com/charlesng35/backoffice/pkg/errors"
)

func TestUserServiceCreateRespectsAssignableRoles(t *testing.T) {
	f := newServiceFixture(t, AccessConfig{})
	ctx := context.Background()

	acme := f.company(t, "Acme")
	globex := f.company(t, "Globex")
	root := f.root(t)
	admin := f.user(t, "acme-admin", permissions.RoleAdmin, acme.ID).Identity()

	_, err := f.users.Create(ctx, admin, CreateUserInput{
		Username: "second-admin", Password: "password123", Role: "admin",
	})
	require.ErrorIs(t, err, apperrors.ErrRoleNotAssignable)

	created, err := f.users.Create(ctx, admin, CreateUserInput{
		Username:  "worker",
		Email:     "Worker@Acme.test",
		Password:  "password123",
		Role:      "user",
		CompanyID: globex.ID,
	})
	require.NoError(t, err)
	require.Equal(t, acme.ID, created.CompanyID, "admins create users in their own company")
	require.Equal(t, "worker@acme.test", created.Email)
	require.True(t, crypto.VerifyPassword(created.PasswordHash, "password123"))

	_, err = f.users.Create(ctx, root, CreateUserInput{
		Username: "another-root", Password: "password123", Role: "root",
	})
	require.ErrorIs(t, err, apperrors.ErrRoleNotAssignable)

	auditor, err := f.users.Create(ctx, root, CreateUserInput{
		Username: "auditor", Password: "password123", Role: "audit", CompanyID: globex.ID,
	})
	require.NoError(t, err)
	require.Equal(t, globex.ID, auditor.CompanyID)

	_, err = f.users.Create(ctx, root, CreateUserInput{
		Username: "worker", Password: "password123", Role: "user",
	})
	require.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = f.users.Create(ctx, root, CreateUserInput{
		Username: "ghost", Password: "password123", Role: "user", CompanyID: "missing",
	})
	require.ErrorIs(t, err, ErrCompanyNotVisible)

	inactive := false
	disabled, err := f.users.Create(ctx, root, CreateUserInput{
		Username: "disabled", Password: "password123", Role: "user", IsActive: &inactive,
	})
	require.NoError(t, err)
	require.False(t, disabled.IsActive)
}

func TestUserServiceListScopesByRole(t *testing.T) {
	f := newServiceFixture(t, AccessConfig{})
	ctx := context.Background()

	acme := f.company(t, "Acme")
	globex := f.company(t, "Globex")
	root := f.root(t)
	admin := f.user(t, "acme-admin", permissions.RoleAdmin, acme.ID).Identity()
	auditor := f.user(t, "auditor", permissions.RoleAudit, models.SystemCompanyID).Identity()
	member := f.user(t, "acme-user", permissions.RoleUser, acme.ID)
	f.user(t, "globex-user", permissions.RoleUser, globex.ID)

	users, total, err := f.users.List(ctx, root, ListUsersOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(4), total)
	require.Len(t, users, 4)

	users, total, err = f.users.List(ctx, admin, ListUsersOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, member.ID, users[0].ID)

	users, total, err = f.users.List(ctx, auditor, ListUsersOptions{Filters: UserFilters{Query: "globex"}})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "globex-user", users[0].Username)

	users, total, err = f.users.List(ctx, member.Identity(), ListUsersOptions{})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, users)

	users, total, err = f.users.List(ctx, root, ListUsersOptions{Page: 2, PageSize: 3})
	require.NoError(t, err)
	require.Equal(t, int64(4), total)
	require.Len(t, users, 1)

	_, err = f.users.Get(ctx, admin, auditor.ID)
	require.ErrorIs(t, err, apperrors.ErrSubjectNotVisible)
}

func TestUserServiceUpdateAndDelete(t *testing.T) {
	f := newServiceFixture(t, AccessConfig{})
	ctx := context.Background()

	acme := f.company(t, "Acme")
	globex := f.company(t, "Globex")
	root := f.root(t)
	admin := f.user(t, "acme-admin", permissions.RoleAdmin, acme.ID)
	member := f.user(t, "acme-user", permissions.RoleUser, acme.ID)

	promote := "admin"
	_, err := f.users.Update(ctx, admin.Identity(), member.ID, UpdateUserInput{Role: &promote})
	require.ErrorIs(t, err, apperrors.ErrRoleNotAssignable)

	move := globex.ID
	_, err = f.users.Update(ctx, admin.Identity(), member.ID, UpdateUserInput{CompanyID: &move})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	name := "  Acme Worker "
	inactive := false
	updated, err := f.users.Update(ctx, admin.Identity(), member.ID, UpdateUserInput{DisplayName: &name, IsActive: &inactive})
	require.NoError(t, err)
	require.Equal(t, "Acme Worker", updated.DisplayName)
	require.False(t, updated.IsActive)

	updated, err = f.users.Update(ctx, root, member.ID, UpdateUserInput{CompanyID: &move, Role: &promote})
	require.NoError(t, err)
	require.Equal(t, globex.ID, updated.CompanyID)
	require.Equal(t, permissions.RoleAdmin, updated.Role)

	// The promoted account is no longer visible to the acme admin.
	require.ErrorIs(t, f.users.Delete(ctx, admin.Identity(), member.ID), apperrors.ErrSubjectNotVisible)

	_, err = f.access.SetGrants(ctx, root, member.ID, []permissions.ResourceGrant{
		{ResourceID: f.menuID(t, database.MenuDashboard)},
	})
	require.NoError(t, err)

	require.NoError(t, f.users.Delete(ctx, root, member.ID))

	var grants int64
	require.NoError(t, f.db.Model(&models.PermissionGrant{}).Where("user_id = ?", member.ID).Count(&grants).Error)
	require.Zero(t, grants)
}

func TestUserServiceAuthenticate(t *testing.T) {
	f := newServiceFixture(t, AccessConfig{})
	ctx := context.Background()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.users.now = func() time.Time { return fixed }

	member := f.user(t, "member", permissions.RoleUser, models.SystemCompanyID)

	user, err := f.users.Authenticate(ctx, "member", "password123")
	require.NoError(t, err)
	require.Equal(t, member.ID, user.ID)
	require.NotNil(t, user.LastLoginAt)
	require.True(t, fixed.Equal(*user.LastLoginAt))

	_, err = f.users.Authenticate(ctx, "member", "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = f.users.Authenticate(ctx, "nobody", "password123")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", member.ID).Update("is_active", false).Error)
	_, err = f.users.Authenticate(ctx, "member", "password123")
	require.ErrorIs(t, err, ErrUserInactive)

	var failures int64
	require.NoError(t, f.db.Model(&models.AuditLog{}).
		Where("action = ? AND result = ?", "auth.login", AuditResultFailure).
		Count(&failures).Error)
	require.Equal(t, int64(2), failures)
}

func TestUserServicePasswords(t *testing.T) {
	f := newServiceFixture(t, AccessConfig{})
	ctx := context.Background()
	root := f.root(t)
	member := f.user(t, "member", permissions.RoleUser, models.SystemCompanyID)

	require.NoError(t, f.users.SetPassword(ctx, root, member.ID, "reset-password"))
	_, err := f.users.Authenticate(ctx, "member", "reset-password")
	require.NoError(t, err)

	err = f.users.ChangePassword(ctx, member.Identity(), "wrong", "another-password")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	require.NoError(t, f.users.ChangePassword(ctx, member.Identity(), "reset-password", "another-password"))
	_, err = f.users.Authenticate(ctx, "member", "another-password")
	require.NoError(t, err)

	err = f.users.SetPassword(ctx, member.Identity(), root.ID, "nope-nope")
	require.ErrorIs(t, err, apperrors.ErrSubjectNotVisible)
}

func TestUserServiceInitializeRoot(t *testing.T) {
	f := newServiceFixture(t, AccessConfig{})
	ctx := context.Background()

	initialized, err := f.users.IsInitialized(ctx)
	require.NoError(t, err)
	require.False(t, initialized)

	root, err := f.users.InitializeRoot(ctx, InitializeInput{Username: "admin", Password: "password123"})
	require.NoError(t, err)
	require.Equal(t, permissions.RoleRoot, root.Role)
	require.Equal(t, models.SystemCompanyID, root.CompanyID)

	initialized, err = f.users.IsInitialized(ctx)
	require.NoError(t, err)
	require.True(t, initialized)

	_, err = f.users.InitializeRoot(ctx, InitializeInput{Username: "again", Password: "password123"})
	require.ErrorIs(t, err, ErrAlreadyInitialized)
}
