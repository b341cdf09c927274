package models

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/charlesng35/backoffice/internal/permissions"
)

// MenuNode is a back-office page or section. Nodes form a tree through ParentID
// and are ordered among siblings by SortOrder.
type MenuNode struct {
	BaseModel

	Key        string         `gorm:"uniqueIndex;not null;size:64" json:"key"`
	Title      string         `gorm:"not null;size:128" json:"title"`
	Path       string         `gorm:"size:255" json:"path"`
	Icon       string         `gorm:"size:64" json:"icon"`
	ParentID   *string        `gorm:"type:uuid;index" json:"parent_id"`
	SortOrder  int            `gorm:"not null;default:0;index" json:"order"`
	Attributes datatypes.JSON `json:"attributes,omitempty"`
}

func (n MenuNode) NodeID() string { return n.ID }

func (n MenuNode) NodeParentID() string {
	if n.ParentID == nil {
		return ""
	}
	return *n.ParentID
}

func (n MenuNode) NodeOrder() int { return n.SortOrder }

// ResourceNode converts the row into the engine's node shape. Presentation fields
// travel in Attributes.
func (n MenuNode) ResourceNode() permissions.ResourceNode {
	attrs := map[string]any{
		"key":   n.Key,
		"title": n.Title,
		"path":  n.Path,
		"icon":  n.Icon,
	}
	if len(n.Attributes) > 0 {
		extra := map[string]any{}
		if err := json.Unmarshal(n.Attributes, &extra); err == nil {
			for k, v := range extra {
				if _, reserved := attrs[k]; !reserved {
					attrs[k] = v
				}
			}
		}
	}
	return permissions.ResourceNode{
		ID:         n.ID,
		ParentID:   n.NodeParentID(),
		Order:      n.SortOrder,
		Attributes: attrs,
	}
}
