package models

import "strings"

// Role is the closed set of dashboard roles. Values are canonical lowercase.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleSales   Role = "sales"
)

// EntryPath is where unauthenticated visitors are sent.
const EntryPath = "/"

// Roles lists every known role.
var Roles = []Role{RoleAdmin, RoleManager, RoleSales}

// ParseRole normalises any casing ("Sales", "SALES", " sales ") to the canonical role.
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	return r, r.Valid()
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleSales:
		return true
	}
	return false
}

// Upstream renders the role in the casing the CRM API expects.
func (r Role) Upstream() string {
	if r == "" {
		return ""
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}

// HomePath is the role's default dashboard.
func (r Role) HomePath() string {
	switch r {
	case RoleAdmin:
		return "/admin/dashboard"
	case RoleManager:
		return "/manager/dashboard"
	case RoleSales:
		return "/sales/dashboard"
	}
	return EntryPath
}

// Authorized is the single authorization check for roles. An empty allowed list
// admits any valid role.
func Authorized(role Role, allowed ...Role) bool {
	if !role.Valid() {
		return false
	}
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == role {
			return true
		}
	}
	return false
}
