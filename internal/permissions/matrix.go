package permissions

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidAction indicates an action outside read/create/update/delete.
	ErrInvalidAction = errors.New("permission: invalid action")
	// ErrInvalidField indicates a grant field name other than can_read/can_create/can_update/can_delete.
	ErrInvalidField = errors.New("permission: invalid grant field")
	// ErrEmptyResource indicates a grant without a resource id.
	ErrEmptyResource = errors.New("permission: resource id is required")
)

// Action is one of the four independently grantable operations on a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Actions lists every action in canonical order.
var Actions = []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete}

// ParseAction accepts both bare action names and their stored field names
// (e.g. "update" or "can_update").
func ParseAction(value string) (Action, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.TrimPrefix(value, "can_")
	switch action := Action(value); action {
	case ActionRead, ActionCreate, ActionUpdate, ActionDelete:
		return action, nil
	default:
		return "", fmt.Errorf("%w %q", ErrInvalidAction, value)
	}
}

// ParseField maps a stored field name such as "can_update" to its action.
func ParseField(field string) (Action, error) {
	field = strings.ToLower(strings.TrimSpace(field))
	if !strings.HasPrefix(field, "can_") {
		return "", fmt.Errorf("%w %q", ErrInvalidField, field)
	}
	action, err := ParseAction(field)
	if err != nil {
		return "", fmt.Errorf("%w %q", ErrInvalidField, field)
	}
	return action, nil
}

// Field returns the persisted column name for the action.
func (a Action) Field() string {
	return "can_" + string(a)
}

// Grant is the set of four permissions held on a single resource.
type Grant struct {
	CanRead   bool `json:"can_read"`
	CanCreate bool `json:"can_create"`
	CanUpdate bool `json:"can_update"`
	CanDelete bool `json:"can_delete"`
}

// FullGrant is the implicit grant for a resource without a stored record.
func FullGrant() Grant {
	return Grant{CanRead: true, CanCreate: true, CanUpdate: true, CanDelete: true}
}

// Allows reports whether the grant permits action. Unknown actions are denied.
func (g Grant) Allows(action Action) bool {
	switch action {
	case ActionRead:
		return g.CanRead
	case ActionCreate:
		return g.CanCreate
	case ActionUpdate:
		return g.CanUpdate
	case ActionDelete:
		return g.CanDelete
	default:
		return false
	}
}

// With returns a copy of g with a single action overwritten.
func (g Grant) With(action Action, value bool) Grant {
	switch action {
	case ActionRead:
		g.CanRead = value
	case ActionCreate:
		g.CanCreate = value
	case ActionUpdate:
		g.CanUpdate = value
	case ActionDelete:
		g.CanDelete = value
	}
	return g
}

// GrantRecord is a stored restriction for a (user, resource) pair.
type GrantRecord struct {
	UserID     string `json:"user_id"`
	ResourceID string `json:"resource_id"`
	Grant
}

// ResourceGrant is one entry of a bulk grant update.
type ResourceGrant struct {
	ResourceID string `json:"resource_id"`
	Grant
}

// Matrix holds the stored grants of a single user. It is an exception list:
// resources without a record are fully accessible.
type Matrix struct {
	userID  string
	records map[string]Grant
}

// NewMatrix indexes records belonging to userID. Records of other users are ignored
// and a later record for the same resource wins.
func NewMatrix(userID string, records []GrantRecord) *Matrix {
	m := &Matrix{
		userID:  userID,
		records: make(map[string]Grant, len(records)),
	}
	for _, record := range records {
		if record.UserID != userID {
			continue
		}
		m.records[record.ResourceID] = record.Grant
	}
	return m
}

// UserID returns the owner of the matrix.
func (m *Matrix) UserID() string {
	if m == nil {
		return ""
	}
	return m.userID
}

// Lookup returns the stored grant for resourceID, if any.
func (m *Matrix) Lookup(resourceID string) (Grant, bool) {
	if m == nil {
		return Grant{}, false
	}
	grant, ok := m.records[resourceID]
	return grant, ok
}

// Grant returns the stored grant, defaulting to FullGrant when absent.
func (m *Matrix) Grant(resourceID string) Grant {
	if grant, ok := m.Lookup(resourceID); ok {
		return grant
	}
	return FullGrant()
}

// EffectiveGrant applies the root bypass ahead of the matrix lookup.
func EffectiveGrant(role Role, m *Matrix, resourceID string) Grant {
	if role == RoleRoot {
		return FullGrant()
	}
	return m.Grant(resourceID)
}

// PlanGrants validates a bulk update for userID and turns it into records.
// Duplicate resources collapse to the last entry while keeping first-seen order.
func PlanGrants(userID string, grants []ResourceGrant) ([]GrantRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("permission: user id is required")
	}

	positions := make(map[string]int, len(grants))
	records := make([]GrantRecord, 0, len(grants))
	for _, grant := range grants {
		resourceID := strings.TrimSpace(grant.ResourceID)
		if resourceID == "" {
			return nil, ErrEmptyResource
		}
		record := GrantRecord{UserID: userID, ResourceID: resourceID, Grant: grant.Grant}
		if pos, seen := positions[resourceID]; seen {
			records[pos] = record
			continue
		}
		positions[resourceID] = len(records)
		records = append(records, record)
	}
	return records, nil
}

// MergeField builds the record produced by toggling a single action. A missing
// record starts from FullGrant so the untouched actions stay allowed.
func MergeField(m *Matrix, resourceID string, action Action, value bool) (GrantRecord, error) {
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return GrantRecord{}, ErrEmptyResource
	}
	if _, err := ParseAction(string(action)); err != nil {
		return GrantRecord{}, err
	}

	return GrantRecord{
		UserID:     m.UserID(),
		ResourceID: resourceID,
		Grant:      m.Grant(resourceID).With(action, value),
	}, nil
}
