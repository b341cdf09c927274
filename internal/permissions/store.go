package permissions

import "context"

// NodeSource fetches the complete resource node list.
type NodeSource interface {
	FetchNodes(ctx context.Context) ([]ResourceNode, error)
}

// GrantSource fetches every stored grant of a user.
type GrantSource interface {
	FetchGrants(ctx context.Context, userID string) ([]GrantRecord, error)
}

// GrantWriter persists grants for one user as a single atomic unit. Rows not in
// records are left alone unless purgeUnmentioned is set.
type GrantWriter interface {
	SetGrants(ctx context.Context, userID string, records []GrantRecord, purgeUnmentioned bool) error
}

// OrderSwapper atomically writes the order values of two sibling nodes. Each
// assignment carries the order the other node is expected to hold; when either
// stored value no longer matches, nothing is written and ErrStaleOrder is returned.
type OrderSwapper interface {
	SwapOrder(ctx context.Context, first, second OrderAssignment) error
}

// Store is the storage collaborator the Checker relies on. Errors it returns are
// passed through to callers unchanged.
type Store interface {
	NodeSource
	GrantSource
	GrantWriter
	OrderSwapper
}
