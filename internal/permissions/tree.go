package permissions

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrCircularParent signals that a parent chain loops back on itself.
	ErrCircularParent = errors.New("permission: circular parent chain detected")
	// ErrDuplicateNode signals that two nodes share the same identifier.
	ErrDuplicateNode = errors.New("permission: duplicate node id")
	// ErrUnknownNode indicates a node lookup failed.
	ErrUnknownNode = errors.New("permission: unknown node")
	// ErrInvalidDirection indicates an unsupported sibling move direction.
	ErrInvalidDirection = errors.New("permission: invalid move direction")
	// ErrStaleOrder reports that sibling orders changed after a move was planned.
	ErrStaleOrder = errors.New("permission: sibling order changed concurrently")
)

// Node is the minimal shape a record needs to take part in a resource tree.
// An empty parent id marks a top-level node.
type Node interface {
	NodeID() string
	NodeParentID() string
	NodeOrder() int
}

// ResourceNode is the access-controlled unit of the navigable tree, usually a menu entry.
type ResourceNode struct {
	ID         string         `json:"id"`
	ParentID   string         `json:"parent_id,omitempty"`
	Order      int            `json:"order"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func (n ResourceNode) NodeID() string       { return n.ID }
func (n ResourceNode) NodeParentID() string { return n.ParentID }
func (n ResourceNode) NodeOrder() int       { return n.Order }

// TreeNode wraps an item with its ordered children.
type TreeNode[T Node] struct {
	Item     T              `json:"item"`
	Children []*TreeNode[T] `json:"children,omitempty"`
}

// BuildTree groups a flat node list into a forest ordered by NodeOrder within
// each sibling group. Nodes whose parent is missing from the list become
// top-level. A parent chain that loops yields ErrCircularParent.
func BuildTree[T Node](nodes []T) ([]*TreeNode[T], error) {
	index := make(map[string]T, len(nodes))
	for _, node := range nodes {
		id := node.NodeID()
		if _, exists := index[id]; exists {
			return nil, fmt.Errorf("%w %q", ErrDuplicateNode, id)
		}
		index[id] = node
	}

	if err := detectCycles(nodes, index); err != nil {
		return nil, err
	}

	groups := groupSiblings(nodes, index)

	var attach func(parentID string) []*TreeNode[T]
	attach = func(parentID string) []*TreeNode[T] {
		siblings := groups[parentID]
		if len(siblings) == 0 {
			return nil
		}
		out := make([]*TreeNode[T], 0, len(siblings))
		for _, item := range siblings {
			out = append(out, &TreeNode[T]{
				Item:     item,
				Children: attach(item.NodeID()),
			})
		}
		return out
	}

	return attach(""), nil
}

// Flatten walks the forest in pre-order and returns every item exactly once.
func Flatten[T Node](forest []*TreeNode[T]) []T {
	var out []T
	var walk func([]*TreeNode[T])
	walk = func(level []*TreeNode[T]) {
		for _, node := range level {
			if node == nil {
				continue
			}
			out = append(out, node.Item)
			walk(node.Children)
		}
	}
	walk(forest)
	return out
}

// Find returns the tree node carrying id, searching depth first.
func Find[T Node](forest []*TreeNode[T], id string) (*TreeNode[T], bool) {
	for _, node := range forest {
		if node == nil {
			continue
		}
		if node.Item.NodeID() == id {
			return node, true
		}
		if found, ok := Find(node.Children, id); ok {
			return found, true
		}
	}
	return nil, false
}

// Direction selects the neighbour a sibling move swaps with.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// ParseDirection validates a raw direction value.
func ParseDirection(value string) (Direction, error) {
	switch dir := Direction(strings.ToLower(strings.TrimSpace(value))); dir {
	case DirectionUp, DirectionDown:
		return dir, nil
	default:
		return "", fmt.Errorf("%w %q", ErrInvalidDirection, value)
	}
}

// OrderAssignment is the new order value for a single node.
type OrderAssignment struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

// MoveSibling computes the order swap that moves id one step in dir among its
// siblings. An empty result means the node is already first or last.
func MoveSibling[T Node](nodes []T, id string, dir Direction) ([]OrderAssignment, error) {
	if dir != DirectionUp && dir != DirectionDown {
		return nil, fmt.Errorf("%w %q", ErrInvalidDirection, dir)
	}

	index := make(map[string]T, len(nodes))
	for _, node := range nodes {
		index[node.NodeID()] = node
	}
	target, ok := index[id]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownNode, id)
	}

	siblings := groupSiblings(nodes, index)[effectiveParent(target, index)]

	pos := -1
	for i, sibling := range siblings {
		if sibling.NodeID() == id {
			pos = i
			break
		}
	}

	neighbour := pos - 1
	if dir == DirectionDown {
		neighbour = pos + 1
	}
	if pos < 0 || neighbour < 0 || neighbour >= len(siblings) {
		return nil, nil
	}

	other := siblings[neighbour]
	return []OrderAssignment{
		{ID: target.NodeID(), Order: other.NodeOrder()},
		{ID: other.NodeID(), Order: target.NodeOrder()},
	}, nil
}

// NextOrder returns the order value that appends a node after its future siblings.
func NextOrder[T Node](nodes []T, parentID string) int {
	index := make(map[string]T, len(nodes))
	for _, node := range nodes {
		index[node.NodeID()] = node
	}
	if _, ok := index[parentID]; !ok {
		parentID = ""
	}

	next := 0
	for _, sibling := range groupSiblings(nodes, index)[parentID] {
		if sibling.NodeOrder() >= next {
			next = sibling.NodeOrder() + 1
		}
	}
	return next
}

func effectiveParent[T Node](node T, index map[string]T) string {
	parent := node.NodeParentID()
	if parent == "" {
		return ""
	}
	if _, ok := index[parent]; !ok {
		return ""
	}
	return parent
}

func groupSiblings[T Node](nodes []T, index map[string]T) map[string][]T {
	groups := make(map[string][]T)
	for _, node := range nodes {
		parent := effectiveParent(node, index)
		groups[parent] = append(groups[parent], node)
	}
	for parent := range groups {
		siblings := groups[parent]
		sort.SliceStable(siblings, func(i, j int) bool {
			return siblings[i].NodeOrder() < siblings[j].NodeOrder()
		})
	}
	return groups
}

// detectCycles follows every parent chain once. Chains ending at a top-level
// node or an orphan are fine; revisiting a node on the current chain is not.
func detectCycles[T Node](nodes []T, index map[string]T) error {
	const (
		inProgress = 1
		done       = 2
	)
	state := make(map[string]int, len(nodes))

	for _, node := range nodes {
		var chain []string
		current := node.NodeID()
		for {
			switch state[current] {
			case done:
				current = ""
			case inProgress:
				return fmt.Errorf("%w at %s", ErrCircularParent, current)
			}
			if current == "" {
				break
			}
			state[current] = inProgress
			chain = append(chain, current)

			next, ok := index[current]
			if !ok {
				break
			}
			current = effectiveParent(next, index)
		}
		for _, id := range chain {
			state[id] = done
		}
	}
	return nil
}
