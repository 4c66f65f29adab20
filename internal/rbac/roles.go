package rbac

import "strings"

// Role is the only authorization input of the workflow. Keep the values stable;
// they are part of the token and RBAC contracts.
type Role string

const (
	RoleRequester  Role = "requester"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
	RoleProvider   Role = "provider"
	RoleAuditor    Role = "auditor"
)

// ParseRole normalizes a raw role string. Unknown roles return ("", false).
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleRequester, RoleSupervisor, RoleAdmin, RoleProvider, RoleAuditor:
		return r, true
	default:
		return "", false
	}
}

// IsStaff reports whether the role acts on behalf of the fleet operator
// (everyone except the requester).
func IsStaff(r Role) bool {
	switch r {
	case RoleSupervisor, RoleAdmin, RoleProvider, RoleAuditor:
		return true
	default:
		return false
	}
}

// SeesAllCostCenters reports whether the role bypasses the cost-center visibility filter.
func SeesAllCostCenters(r Role) bool { return r == RoleAdmin || r == RoleAuditor }

// AllRoles lists every known role in a stable order.
func AllRoles() []Role {
	return []Role{RoleRequester, RoleSupervisor, RoleAdmin, RoleProvider, RoleAuditor}
}
