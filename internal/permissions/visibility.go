package permissions

// Scoped is anything owned by a single company. Companies return their own id.
type Scoped interface {
	ScopeCompanyID() string
}

// Company is the tenant an identity belongs to.
type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c Company) ScopeCompanyID() string { return c.ID }

// PruneTree rebuilds the forest keeping a node when keep accepts it or when at
// least one of its descendants is kept. The input forest is left untouched.
func PruneTree[T Node](forest []*TreeNode[T], keep func(T) bool) []*TreeNode[T] {
	var out []*TreeNode[T]
	for _, node := range forest {
		if node == nil {
			continue
		}
		children := PruneTree(node.Children, keep)
		if len(children) == 0 && !keep(node.Item) {
			continue
		}
		out = append(out, &TreeNode[T]{Item: node.Item, Children: children})
	}
	return out
}

// FilterTreeByRead prunes the forest to the nodes readable through m, keeping
// unreadable parents only as ancestors of readable descendants.
func FilterTreeByRead[T Node](forest []*TreeNode[T], m *Matrix) []*TreeNode[T] {
	return PruneTree(forest, func(item T) bool {
		return m.Grant(item.NodeID()).CanRead
	})
}

// FilterCompanies returns the companies the acting role may see. Root and audit
// see all of them; every other role only sees its own company.
func FilterCompanies[C Scoped](acting Role, actingCompany string, companies []C) []C {
	if acting == RoleRoot || acting == RoleAudit {
		out := make([]C, len(companies))
		copy(out, companies)
		return out
	}

	out := make([]C, 0, 1)
	for _, company := range companies {
		if company.ScopeCompanyID() == actingCompany {
			out = append(out, company)
		}
	}
	return out
}

// FilterUsers applies role visibility and company scoping to a user list.
func FilterUsers[S Subject](acting Role, actingCompany string, users []S) []S {
	return VisibleSubjects(acting, actingCompany, users)
}
