package models

import (
	"time"

	"github.com/charlesng35/backoffice/internal/permissions"
)

// User is an account that acts against the back office and is the subject of
// permission grants.
type User struct {
	BaseModel

	Username     string `gorm:"uniqueIndex;not null;size:64" json:"username"`
	Email        string `gorm:"index;size:255" json:"email"`
	PasswordHash string `json:"-"`
	DisplayName  string `json:"display_name"`

	Role      permissions.Role `gorm:"type:varchar(16);not null;index" json:"role"`
	CompanyID string           `gorm:"type:uuid;not null;index" json:"company_id"`
	Company   *Company         `gorm:"foreignKey:CompanyID" json:"company,omitempty"`

	IsActive    bool       `gorm:"default:true" json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

func (u User) SubjectRole() permissions.Role { return u.Role }

func (u User) SubjectCompanyID() string { return u.CompanyID }

// Identity returns the caller identity the engine evaluates for this user.
func (u User) Identity() permissions.Identity {
	return permissions.Identity{ID: u.ID, Role: u.Role, CompanyID: u.CompanyID}
}
