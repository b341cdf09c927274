package permissions

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu        sync.Mutex
	nodes     []ResourceNode
	grants    map[string]map[string]Grant
	err       error
	grantHits int
	swaps     [][2]OrderAssignment
	// beforeSwap runs with the lock held ahead of every swap attempt.
	beforeSwap func(nodes []ResourceNode)
}

func newMemoryStore(nodes ...ResourceNode) *memoryStore {
	return &memoryStore{nodes: nodes, grants: make(map[string]map[string]Grant)}
}

func (s *memoryStore) FetchNodes(context.Context) ([]ResourceNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]ResourceNode(nil), s.nodes...), nil
}

func (s *memoryStore) FetchGrants(_ context.Context, userID string) ([]GrantRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grantHits++
	if s.err != nil {
		return nil, s.err
	}
	var out []GrantRecord
	for resourceID, grant := range s.grants[userID] {
		out = append(out, GrantRecord{UserID: userID, ResourceID: resourceID, Grant: grant})
	}
	return out, nil
}

func (s *memoryStore) SetGrants(_ context.Context, userID string, records []GrantRecord, purge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if purge || s.grants[userID] == nil {
		s.grants[userID] = make(map[string]Grant)
	}
	for _, record := range records {
		s.grants[userID][record.ResourceID] = record.Grant
	}
	return nil
}

func (s *memoryStore) SwapOrder(_ context.Context, first, second OrderAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.beforeSwap != nil {
		s.beforeSwap(s.nodes)
	}
	expected := map[string]int{first.ID: second.Order, second.ID: first.Order}
	for _, n := range s.nodes {
		if want, ok := expected[n.ID]; ok && n.Order != want {
			return ErrStaleOrder
		}
	}
	for i := range s.nodes {
		switch s.nodes[i].ID {
		case first.ID:
			s.nodes[i].Order = first.Order
		case second.ID:
			s.nodes[i].Order = second.Order
		}
	}
	s.swaps = append(s.swaps, [2]OrderAssignment{first, second})
	return nil
}

func newTestChecker(t *testing.T, store *memoryStore) *Checker {
	t.Helper()
	checker, err := NewChecker(store)
	require.NoError(t, err)
	return checker
}

func TestNewCheckerRequiresStore(t *testing.T) {
	_, err := NewChecker(nil)
	require.Error(t, err)
}

func TestCheckerCanDefaultsToAllow(t *testing.T) {
	checker := newTestChecker(t, newMemoryStore())

	for _, action := range Actions {
		ok, err := checker.Can(context.Background(), Identity{ID: "5", Role: RoleUser}, "9", action)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestCheckerRootBypassesStoredGrants(t *testing.T) {
	store := newMemoryStore()
	store.grants["1"] = map[string]Grant{"9": {}}
	checker := newTestChecker(t, store)

	for _, action := range Actions {
		ok, err := checker.Can(context.Background(), Identity{ID: "1", Role: RoleRoot}, "9", action)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Zero(t, store.grantHits)
}

func TestCheckerCanHonoursRestrictions(t *testing.T) {
	store := newMemoryStore()
	store.grants["5"] = map[string]Grant{"9": {CanRead: true}}
	checker := newTestChecker(t, store)
	id := Identity{ID: "5", Role: RoleAdmin}

	ok, err := checker.Can(context.Background(), id, "9", ActionRead)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = checker.Can(context.Background(), id, "9", ActionDelete)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = checker.Can(context.Background(), id, "9", Action("approve"))
	require.ErrorIs(t, err, ErrInvalidAction)
}

func TestCheckerPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("storage unavailable")
	store := newMemoryStore()
	store.err = boom
	checker := newTestChecker(t, store)

	_, err := checker.Can(context.Background(), Identity{ID: "5", Role: RoleUser}, "9", ActionRead)
	require.ErrorIs(t, err, boom)

	_, err = checker.Menu(context.Background(), Identity{ID: "5", Role: RoleUser})
	require.ErrorIs(t, err, boom)

	_, err = checker.SetGrants(context.Background(), "5", []ResourceGrant{{ResourceID: "9"}}, false)
	require.ErrorIs(t, err, boom)

	_, err = checker.MoveSibling(context.Background(), "a", DirectionDown)
	require.Same(t, boom, err)

	_, err = checker.SetSingleField(context.Background(), "5", "9", ActionRead, false)
	require.Same(t, boom, err)
}

func TestCheckerMenuPrunesForUser(t *testing.T) {
	store := newMemoryStore(node("A", "", 0), node("B", "A", 0), node("C", "", 1))
	store.grants["5"] = map[string]Grant{"A": {}, "C": {}}
	checker := newTestChecker(t, store)

	menu, err := checker.Menu(context.Background(), Identity{ID: "5", Role: RoleUser})
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, ids(Flatten(menu)))

	menu, err = checker.Menu(context.Background(), Identity{ID: "1", Role: RoleRoot})
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "C"}, ids(Flatten(menu)))
}

func TestCheckerMenuReportsCycles(t *testing.T) {
	store := newMemoryStore(node("A", "B", 0), node("B", "A", 0))
	checker := newTestChecker(t, store)

	_, err := checker.Menu(context.Background(), Identity{ID: "5", Role: RoleUser})
	require.ErrorIs(t, err, ErrCircularParent)
}

func TestCheckerSetSingleFieldCreatesFromDefault(t *testing.T) {
	store := newMemoryStore()
	checker := newTestChecker(t, store)

	record, err := checker.SetSingleField(context.Background(), "5", "9", ActionUpdate, false)
	require.NoError(t, err)
	want := Grant{CanRead: true, CanCreate: true, CanUpdate: false, CanDelete: true}
	require.Equal(t, want, record.Grant)
	require.Equal(t, want, store.grants["5"]["9"])
}

func TestCheckerSetGrantsIsPartialByDefault(t *testing.T) {
	store := newMemoryStore()
	store.grants["5"] = map[string]Grant{"old": {}}
	checker := newTestChecker(t, store)

	_, err := checker.SetGrants(context.Background(), "5", []ResourceGrant{{ResourceID: "new", Grant: Grant{CanRead: true}}}, false)
	require.NoError(t, err)
	require.Len(t, store.grants["5"], 2)

	_, err = checker.SetGrants(context.Background(), "5", []ResourceGrant{{ResourceID: "new"}}, true)
	require.NoError(t, err)
	require.Len(t, store.grants["5"], 1)
}

func TestCheckerMoveSibling(t *testing.T) {
	store := newMemoryStore(node("a", "", 0), node("b", "", 1))
	checker := newTestChecker(t, store)

	swap, err := checker.MoveSibling(context.Background(), "b", DirectionUp)
	require.NoError(t, err)
	require.Len(t, swap, 2)
	require.Len(t, store.swaps, 1)

	swap, err = checker.MoveSibling(context.Background(), "b", DirectionUp)
	require.NoError(t, err)
	require.Empty(t, swap)
	require.Len(t, store.swaps, 1)
}

func TestCheckerMoveSiblingRejectsConcurrentReorder(t *testing.T) {
	store := newMemoryStore(node("a", "", 0), node("b", "", 1), node("c", "", 2))
	checker := newTestChecker(t, store)

	// Another writer swaps a and b between planning and writing.
	store.beforeSwap = func(nodes []ResourceNode) {
		store.beforeSwap = nil
		nodes[0].Order, nodes[1].Order = 1, 0
	}

	_, err := checker.MoveSibling(context.Background(), "b", DirectionDown)
	require.ErrorIs(t, err, ErrStaleOrder)
	require.Empty(t, store.swaps)

	swap, err := checker.MoveSibling(context.Background(), "b", DirectionDown)
	require.NoError(t, err)
	require.Equal(t, []OrderAssignment{{ID: "b", Order: 1}, {ID: "a", Order: 0}}, swap)

	orders := make(map[int]string)
	for _, n := range store.nodes {
		require.NotContains(t, orders, n.Order, "order %d shared by %s and %s", n.Order, orders[n.Order], n.ID)
		orders[n.Order] = n.ID
	}
	require.Equal(t, map[int]string{0: "a", 1: "b", 2: "c"}, orders)
}

func TestCheckerEffectiveGrants(t *testing.T) {
	store := newMemoryStore()
	store.grants["5"] = map[string]Grant{"a": {CanRead: true}}
	checker := newTestChecker(t, store)
	nodes := []ResourceNode{node("a", "", 0), node("b", "", 1)}

	grants, err := checker.EffectiveGrants(context.Background(), Identity{ID: "5", Role: RoleUser}, nodes)
	require.NoError(t, err)
	require.Equal(t, []NodeGrant{
		{Node: nodes[0], Grant: Grant{CanRead: true}, Explicit: true},
		{Node: nodes[1], Grant: FullGrant()},
	}, grants)
}

func TestCheckerVisibilityQueries(t *testing.T) {
	checker := newTestChecker(t, newMemoryStore())
	admin := Identity{ID: "a", Role: RoleAdmin, CompanyID: "7"}

	require.Equal(t, []Role{RoleUser}, checker.AssignableRoles(admin))
	require.True(t, checker.CanAssign(admin, RoleUser))
	require.False(t, checker.CanAssign(admin, RoleAdmin))

	users := []Identity{{ID: "1", Role: RoleUser, CompanyID: "7"}, {ID: "2", Role: RoleUser, CompanyID: "9"}}
	require.Equal(t, users[:1], checker.VisibleUsers(admin, users))

	companies := []Company{{ID: "7", Name: "Seven"}, {ID: "9", Name: "Nine"}}
	require.Equal(t, companies[:1], checker.VisibleCompanies(admin, companies))
	require.True(t, SubjectVisibleTo(admin, users[0]))
}

func TestCheckerIsSafeForConcurrentUse(t *testing.T) {
	store := newMemoryStore(node("a", "", 0))
	store.grants["5"] = map[string]Grant{"a": {CanRead: true}}
	checker := newTestChecker(t, store)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := checker.Can(context.Background(), Identity{ID: "5", Role: RoleUser}, "a", ActionRead)
			require.NoError(t, err)
			require.True(t, ok)
		}()
	}
	wg.Wait()
}
