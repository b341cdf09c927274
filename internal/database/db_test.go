package database

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/backoffice/internal/models"
	"github.com/charlesng35/backoffice/internal/permissions"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Exec("SELECT 1").Error)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestAutoMigrateAndSeedData(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrateAndSeed(db))

	var company models.Company
	require.NoError(t, db.First(&company, "id = ?", models.SystemCompanyID).Error)
	require.True(t, company.IsSystem)

	var nodes []models.MenuNode
	require.NoError(t, db.Find(&nodes).Error)
	require.Len(t, nodes, 7)

	forest, err := permissions.BuildTree(nodes)
	require.NoError(t, err)
	require.Len(t, forest, 3)

	admin, ok := findByKey(forest, MenuAdministration)
	require.True(t, ok)
	require.Len(t, admin.Children, 4)
	require.Equal(t, MenuUsers, admin.Children[0].Item.Key)
	require.Equal(t, MenuPermissions, admin.Children[3].Item.Key)
}

func TestSeedDataIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrateAndSeed(db))
	require.NoError(t, SeedData(db))

	var count int64
	require.NoError(t, db.Model(&models.MenuNode{}).Count(&count).Error)
	require.Equal(t, int64(7), count)

	require.NoError(t, db.Model(&models.Company{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestPermissionGrantUniquePerUserAndResource(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	grant := models.PermissionGrant{UserID: "u", ResourceID: "r", CanRead: true}
	require.NoError(t, db.Create(&grant).Error)

	duplicate := models.PermissionGrant{UserID: "u", ResourceID: "r"}
	require.ErrorIs(t, db.Create(&duplicate).Error, gorm.ErrDuplicatedKey)
}

func findByKey(forest []*permissions.TreeNode[models.MenuNode], key string) (*permissions.TreeNode[models.MenuNode], bool) {
	for _, node := range forest {
		if node.Item.Key == key {
			return node, true
		}
	}
	return nil, false
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite", DSN: "file:" + t.Name() + "?mode=memory&cache=shared&_foreign_keys=1"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
