package models

import "gorm.io/datatypes"

// AuditLog is an append-only record of an administrative mutation.
type AuditLog struct {
	BaseModel

	ActorID   *string        `gorm:"type:uuid;index" json:"actor_id"`
	ActorRole string         `gorm:"size:16" json:"actor_role"`
	CompanyID string         `gorm:"type:uuid;index" json:"company_id"`
	Action    string         `gorm:"not null;index;size:64" json:"action"`
	Resource  string         `gorm:"index;size:128" json:"resource"`
	Result    string         `gorm:"not null;size:16" json:"result"`
	IPAddress string         `json:"ip_address"`
	UserAgent string         `json:"user_agent"`
	Metadata  datatypes.JSON `json:"metadata,omitempty"`
}
