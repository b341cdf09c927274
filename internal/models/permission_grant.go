package models

import "github.com/charlesng35/backoffice/internal/permissions"

// PermissionGrant restricts what a user may do on one menu node. A missing row
// means full access.
type PermissionGrant struct {
	BaseModel

	UserID     string `gorm:"type:uuid;not null;uniqueIndex:idx_grant_user_resource,priority:1" json:"user_id"`
	ResourceID string `gorm:"type:uuid;not null;uniqueIndex:idx_grant_user_resource,priority:2;index" json:"resource_id"`

	CanRead   bool `gorm:"not null" json:"can_read"`
	CanCreate bool `gorm:"not null" json:"can_create"`
	CanUpdate bool `gorm:"not null" json:"can_update"`
	CanDelete bool `gorm:"not null" json:"can_delete"`
}

// Record converts the row into an engine grant record.
func (g PermissionGrant) Record() permissions.GrantRecord {
	return permissions.GrantRecord{
		UserID:     g.UserID,
		ResourceID: g.ResourceID,
		Grant: permissions.Grant{
			CanRead:   g.CanRead,
			CanCreate: g.CanCreate,
			CanUpdate: g.CanUpdate,
			CanDelete: g.CanDelete,
		},
	}
}

// PermissionGrantFromRecord builds a row for record without an id.
func PermissionGrantFromRecord(record permissions.GrantRecord) PermissionGrant {
	return PermissionGrant{
		UserID:     record.UserID,
		ResourceID: record.ResourceID,
		CanRead:    record.CanRead,
		CanCreate:  record.CanCreate,
		CanUpdate:  record.CanUpdate,
		CanDelete:  record.CanDelete,
	}
}
