package models

// Role identifies the permission bundle a user operates under. Roles are
// compile-time constants, not database rows: the four bundles ship with the
// binary and are validated for exhaustiveness at startup.
type Role string

const (
	RoleOwner         Role = "owner"
	RoleAdministrator Role = "administrator"
	RoleManager       Role = "manager"
	RoleEmployee      Role = "employee"
)

// AllRoles returns every role the platform defines.
func AllRoles() []Role {
	return []Role{RoleOwner, RoleAdministrator, RoleManager, RoleEmployee}
}

// IsValid reports whether r is one of the defined roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdministrator, RoleManager, RoleEmployee:
		return true
	}
	return false
}
