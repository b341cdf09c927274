package permissions

import "strings"

// Role identifies the privilege tier of an account.
type Role string

const (
	RoleRoot  Role = "root"
	RoleAdmin Role = "admin"
	RoleAudit Role = "audit"
	RoleUser  Role = "user"
)

var roleRanks = map[Role]int{
	RoleRoot:  4,
	RoleAdmin: 3,
	RoleAudit: 3,
	RoleUser:  1,
}

// ParseRole normalises a raw role string. Unknown values are kept as-is so
// that they rank as 0 instead of being rejected.
func ParseRole(value string) Role {
	return Role(strings.ToLower(strings.TrimSpace(value)))
}

// Rank returns the privilege rank of a role. Unknown roles rank 0.
func Rank(role Role) int {
	return roleRanks[role]
}

// Rank is a convenience wrapper around the package level Rank.
func (r Role) Rank() int {
	return Rank(r)
}

// Known reports whether the role is one of the defined tiers.
func (r Role) Known() bool {
	_, ok := roleRanks[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

// AssignableRoles lists, in descending rank, the roles the acting role may grant
// to a new or edited account. Root cannot hand out root through this path.
func AssignableRoles(acting Role) []Role {
	switch acting {
	case RoleRoot:
		return []Role{RoleAdmin, RoleAudit, RoleUser}
	case RoleAdmin, RoleAudit:
		return []Role{RoleUser}
	default:
		return []Role{}
	}
}

// CanAssign reports whether acting may grant target.
func CanAssign(acting, target Role) bool {
	for _, role := range AssignableRoles(acting) {
		if role == target {
			return true
		}
	}
	return false
}

// Subject is anything carrying a role and a company, typically a user record.
type Subject interface {
	SubjectRole() Role
	SubjectCompanyID() string
}

// Identity is the already-authenticated caller of a request.
type Identity struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	CompanyID string `json:"company_id"`
}

func (i Identity) SubjectRole() Role        { return i.Role }
func (i Identity) SubjectCompanyID() string { return i.CompanyID }

// IsRoot reports whether the identity holds the root role.
func (i Identity) IsRoot() bool {
	return i.Role == RoleRoot
}

// VisibleSubjects filters subjects down to the ones the acting role may see,
// preserving input order.
//
// Root sees every account ranked below root. Admin sees plain users of its own
// company only; audit sees plain users across all companies. Everyone else
// sees nobody.
func VisibleSubjects[S Subject](acting Role, actingCompany string, subjects []S) []S {
	out := make([]S, 0, len(subjects))
	switch acting {
	case RoleRoot:
		for _, subject := range subjects {
			if Rank(subject.SubjectRole()) < Rank(RoleRoot) {
				out = append(out, subject)
			}
		}
	case RoleAdmin:
		for _, subject := range subjects {
			if subject.SubjectRole() == RoleUser && subject.SubjectCompanyID() == actingCompany {
				out = append(out, subject)
			}
		}
	case RoleAudit:
		for _, subject := range subjects {
			if subject.SubjectRole() == RoleUser {
				out = append(out, subject)
			}
		}
	}
	return out
}

// SubjectVisible reports whether a single subject passes VisibleSubjects.
func SubjectVisible[S Subject](acting Role, actingCompany string, subject S) bool {
	return len(VisibleSubjects(acting, actingCompany, []S{subject})) == 1
}
