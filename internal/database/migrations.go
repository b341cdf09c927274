package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/backoffice/internal/models"
)

// Menu keys seeded by default. Route guards refer to pages by these keys.
const (
	MenuDashboard      = "dashboard"
	MenuAdministration = "administration"
	MenuUsers          = "users"
	MenuCompanies      = "companies"
	MenuMenus          = "menus"
	MenuPermissions    = "permissions"
	MenuAudit          = "audit"
)

type menuSeed struct {
	Key      string
	Title    string
	Path     string
	Icon     string
	Children []menuSeed
}

var defaultMenu = []menuSeed{
	{Key: MenuDashboard, Title: "Dashboard", Path: "/", Icon: "home"},
	{Key: MenuAdministration, Title: "Administration", Icon: "settings", Children: []menuSeed{
		{Key: MenuUsers, Title: "Users", Path: "/admin/users", Icon: "users"},
		{Key: MenuCompanies, Title: "Companies", Path: "/admin/companies", Icon: "building"},
		{Key: MenuMenus, Title: "Menus", Path: "/admin/menus", Icon: "list-tree"},
		{Key: MenuPermissions, Title: "Permissions", Path: "/admin/permissions", Icon: "shield"},
	}},
	{Key: MenuAudit, Title: "Audit Log", Path: "/audit", Icon: "scroll"},
}

// AutoMigrate creates or updates the schema for every model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Company{},
		&models.User{},
		&models.MenuNode{},
		&models.PermissionGrant{},
		&models.AuditLog{},
	)
}

// SeedData inserts the system company and the default menu tree. Existing rows,
// matched by name or key, are left untouched.
func SeedData(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		system := models.Company{
			BaseModel:   models.BaseModel{ID: models.SystemCompanyID},
			Name:        "System",
			Description: "Owner of the root account",
			IsSystem:    true,
		}
		if err := tx.Where(models.Company{BaseModel: models.BaseModel{ID: system.ID}}).
			Attrs(system).FirstOrCreate(&models.Company{}).Error; err != nil {
			return fmt.Errorf("seed system company: %w", err)
		}

		return seedMenu(tx, nil, defaultMenu)
	})
}

func seedMenu(tx *gorm.DB, parentID *string, seeds []menuSeed) error {
	for i, seed := range seeds {
		node := models.MenuNode{
			Key:       seed.Key,
			Title:     seed.Title,
			Path:      seed.Path,
			Icon:      seed.Icon,
			ParentID:  parentID,
			SortOrder: i,
		}
		var stored models.MenuNode
		if err := tx.Where(models.MenuNode{Key: seed.Key}).Attrs(node).FirstOrCreate(&stored).Error; err != nil {
			return fmt.Errorf("seed menu %q: %w", seed.Key, err)
		}
		if len(seed.Children) == 0 {
			continue
		}
		id := stored.ID
		if err := seedMenu(tx, &id, seed.Children); err != nil {
			return err
		}
	}
	return nil
}
