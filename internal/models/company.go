package models

import "gorm.io/datatypes"

// SystemCompanyID is the company seeded for the root account.
const SystemCompanyID = "00000000-0000-0000-0000-000000000001"

// Company is a tenant. Users belong to exactly one company.
type Company struct {
	BaseModel

	Name        string         `gorm:"uniqueIndex;not null;size:128" json:"name"`
	Description string         `json:"description"`
	IsSystem    bool           `gorm:"default:false" json:"is_system"`
	Settings    datatypes.JSON `json:"settings,omitempty"`
}

// ScopeCompanyID returns the company's own id.
func (c Company) ScopeCompanyID() string { return c.ID }
