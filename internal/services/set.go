package services

import (
	"gorm.io/gorm"

	"github.com/charlesng35/backoffice/internal/cache"
)

// Set bundles the services the HTTP layer and the maintenance jobs share.
type Set struct {
	Audit     *AuditService
	Access    *AccessService
	Users     *UserService
	Companies *CompanyService
	Menus     *MenuService
}

// NewSet wires every service on top of db. nodeCache may be nil.
func NewSet(db *gorm.DB, nodeCache cache.Store, cfg AccessConfig) (*Set, error) {
	audit, err := NewAuditService(db)
	if err != nil {
		return nil, err
	}
	access, err := NewAccessService(db, nodeCache, audit, cfg)
	if err != nil {
		return nil, err
	}
	users, err := NewUserService(db, access, audit)
	if err != nil {
		return nil, err
	}
	companies, err := NewCompanyService(db, access, audit)
	if err != nil {
		return nil, err
	}
	menus, err := NewMenuService(db, access, audit)
	if err != nil {
		return nil, err
	}
	return &Set{
		Audit:     audit,
		Access:    access,
		Users:     users,
		Companies: companies,
		Menus:     menus,
	}, nil
}
