package permissions

import (
	"context"
	"errors"
	"strings"
)

// Checker is the authorization query facade. It combines the role hierarchy,
// the grant matrix and the visibility filters on top of a storage collaborator
// and holds no mutable state of its own.
type Checker struct {
	store Store
}

// NewChecker constructs a checker backed by the provided store.
func NewChecker(store Store) (*Checker, error) {
	if store == nil {
		return nil, errors.New("permission checker: store is required")
	}
	return &Checker{store: store}, nil
}

// Can determines whether the identity may perform action on resourceID.
// Root always may; everyone else is checked against their stored grants, with
// a missing record meaning full access.
func (c *Checker) Can(ctx context.Context, id Identity, resourceID string, action Action) (bool, error) {
	if _, err := ParseAction(string(action)); err != nil {
		return false, err
	}
	grant, err := c.Grant(ctx, id, resourceID)
	if err != nil {
		return false, err
	}
	return grant.Allows(action), nil
}

// Grant returns the effective grant of the identity on resourceID.
func (c *Checker) Grant(ctx context.Context, id Identity, resourceID string) (Grant, error) {
	if id.IsRoot() {
		return FullGrant(), nil
	}
	matrix, err := c.matrix(ctx, id.ID)
	if err != nil {
		return Grant{}, err
	}
	return matrix.Grant(strings.TrimSpace(resourceID)), nil
}

// NodeGrant pairs a node with the effective grant a subject holds on it.
type NodeGrant struct {
	Node     ResourceNode `json:"node"`
	Grant    Grant        `json:"grant"`
	Explicit bool         `json:"explicit"`
}

// EffectiveGrants lists the grant subject holds on every node, flagging which
// ones come from a stored record.
func (c *Checker) EffectiveGrants(ctx context.Context, subject Identity, nodes []ResourceNode) ([]NodeGrant, error) {
	matrix, err := c.matrix(ctx, subject.ID)
	if err != nil {
		return nil, err
	}

	out := make([]NodeGrant, 0, len(nodes))
	for _, node := range nodes {
		_, explicit := matrix.Lookup(node.ID)
		out = append(out, NodeGrant{
			Node:     node,
			Grant:    EffectiveGrant(subject.Role, matrix, node.ID),
			Explicit: explicit,
		})
	}
	return out, nil
}

// Menu fetches the node list, builds the tree and prunes it for the identity.
func (c *Checker) Menu(ctx context.Context, id Identity) ([]*TreeNode[ResourceNode], error) {
	nodes, err := c.store.FetchNodes(ctx)
	if err != nil {
		return nil, err
	}
	forest, err := BuildTree(nodes)
	if err != nil {
		return nil, err
	}
	return c.VisibleMenu(ctx, id, forest)
}

// VisibleMenu prunes an already built forest for the identity.
func (c *Checker) VisibleMenu(ctx context.Context, id Identity, forest []*TreeNode[ResourceNode]) ([]*TreeNode[ResourceNode], error) {
	if id.IsRoot() {
		return PruneTree(forest, func(ResourceNode) bool { return true }), nil
	}
	matrix, err := c.matrix(ctx, id.ID)
	if err != nil {
		return nil, err
	}
	return FilterTreeByRead(forest, matrix), nil
}

// AssignableRoles lists the roles the identity may grant.
func (c *Checker) AssignableRoles(id Identity) []Role {
	return AssignableRoles(id.Role)
}

// CanAssign reports whether the identity may grant role.
func (c *Checker) CanAssign(id Identity, role Role) bool {
	return CanAssign(id.Role, role)
}

// VisibleUsers filters identities down to the ones the caller may see.
func (c *Checker) VisibleUsers(id Identity, users []Identity) []Identity {
	return VisibleUsersOf(id, users)
}

// VisibleCompanies filters companies down to the ones the caller may see.
func (c *Checker) VisibleCompanies(id Identity, companies []Company) []Company {
	return VisibleCompaniesOf(id, companies)
}

// SetGrants replaces the supplied grant rows of userID in one atomic write.
func (c *Checker) SetGrants(ctx context.Context, userID string, grants []ResourceGrant, purgeUnmentioned bool) ([]GrantRecord, error) {
	records, err := PlanGrants(userID, grants)
	if err != nil {
		return nil, err
	}
	if err := c.store.SetGrants(ctx, strings.TrimSpace(userID), records, purgeUnmentioned); err != nil {
		return nil, err
	}
	return records, nil
}

// SetSingleField overwrites one action of a grant, creating the record from the
// full default grant when none exists yet.
func (c *Checker) SetSingleField(ctx context.Context, userID, resourceID string, action Action, value bool) (GrantRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return GrantRecord{}, errors.New("permission: user id is required")
	}
	matrix, err := c.matrix(ctx, userID)
	if err != nil {
		return GrantRecord{}, err
	}
	record, err := MergeField(matrix, resourceID, action, value)
	if err != nil {
		return GrantRecord{}, err
	}
	if err := c.store.SetGrants(ctx, userID, []GrantRecord{record}, false); err != nil {
		return GrantRecord{}, err
	}
	return record, nil
}

// MoveSibling swaps the order of nodeID with its neighbour in dir. Moving past
// either end returns no assignments and writes nothing. When the siblings were
// reordered between reading and writing, the store's ErrStaleOrder is returned
// and the caller may plan again.
func (c *Checker) MoveSibling(ctx context.Context, nodeID string, dir Direction) ([]OrderAssignment, error) {
	nodes, err := c.store.FetchNodes(ctx)
	if err != nil {
		return nil, err
	}
	swap, err := MoveSibling(nodes, nodeID, dir)
	if err != nil || len(swap) == 0 {
		return nil, err
	}
	if err := c.store.SwapOrder(ctx, swap[0], swap[1]); err != nil {
		return nil, err
	}
	return swap, nil
}

func (c *Checker) matrix(ctx context.Context, userID string) (*Matrix, error) {
	records, err := c.store.FetchGrants(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewMatrix(userID, records), nil
}

// VisibleUsersOf filters any subject collection for the identity.
func VisibleUsersOf[S Subject](id Identity, users []S) []S {
	return FilterUsers(id.Role, id.CompanyID, users)
}

// VisibleCompaniesOf filters any company-scoped collection for the identity.
func VisibleCompaniesOf[C Scoped](id Identity, companies []C) []C {
	return FilterCompanies(id.Role, id.CompanyID, companies)
}

// SubjectVisibleTo reports whether subject is visible to the identity.
func SubjectVisibleTo[S Subject](id Identity, subject S) bool {
	return SubjectVisible(id.Role, id.CompanyID, subject)
}
