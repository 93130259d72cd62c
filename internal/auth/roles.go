// Package auth provides the role and capability model for the console.
package auth

// Role represents a user role assigned by the intake backend. The
// console never changes a role, it only reads it.
type Role string

const (
	RoleOperador   Role = "operador"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// Capability represents a named permission flag consulted to gate
// console actions.
type Capability string

// Case capabilities
const (
	CapViewAllCases   Capability = "canViewAllCases"
	CapEditCases      Capability = "canEditCases"
	CapDeleteCases    Capability = "canDeleteCases"
	CapAssignCases    Capability = "canAssignCases"
	CapInterveneCases Capability = "canInterveneCases"
)

// User administration capabilities
const (
	CapViewUsers   Capability = "canViewUsers"
	CapCreateUsers Capability = "canCreateUsers"
	CapEditUsers   Capability = "canEditUsers"
	CapDeleteUsers Capability = "canDeleteUsers"
)

// System capabilities
const (
	CapViewMetrics       Capability = "canViewMetrics"
	CapViewSystemHealth  Capability = "canViewSystemHealth"
	CapEditConfiguration Capability = "canEditConfiguration"
	CapExportData        Capability = "canExportData"
)

// AllCapabilities enumerates the full capability key set. Resolve is
// total over this list for every role.
var AllCapabilities = []Capability{
	CapViewAllCases, CapEditCases, CapDeleteCases, CapAssignCases, CapInterveneCases,
	CapViewUsers, CapCreateUsers, CapEditUsers, CapDeleteUsers,
	CapViewMetrics, CapViewSystemHealth, CapEditConfiguration, CapExportData,
}

// PermissionSet is the complete capability mapping for one role. A
// struct rather than a map so a role table cannot silently omit a key.
type PermissionSet struct {
	CanViewAllCases   bool `json:"canViewAllCases"`
	CanEditCases      bool `json:"canEditCases"`
	CanDeleteCases    bool `json:"canDeleteCases"`
	CanAssignCases    bool `json:"canAssignCases"`
	CanInterveneCases bool `json:"canInterveneCases"`

	CanViewUsers   bool `json:"canViewUsers"`
	CanCreateUsers bool `json:"canCreateUsers"`
	CanEditUsers   bool `json:"canEditUsers"`
	CanDeleteUsers bool `json:"canDeleteUsers"`

	CanViewMetrics       bool `json:"canViewMetrics"`
	CanViewSystemHealth  bool `json:"canViewSystemHealth"`
	CanEditConfiguration bool `json:"canEditConfiguration"`
	CanExportData        bool `json:"canExportData"`
}

// Each role's set is declared independently. Supervisor and admin
// happen to be supersets of operador for case capabilities; that is a
// fact about the current tables, not a derived hierarchy, so a change
// to one table never leaks into another.
var rolePermissions = map[Role]PermissionSet{
	RoleOperador: {
		CanViewAllCases:   false,
		CanEditCases:      true,
		CanDeleteCases:    false,
		CanAssignCases:    false,
		CanInterveneCases: true,

		CanViewUsers:   false,
		CanCreateUsers: false,
		CanEditUsers:   false,
		CanDeleteUsers: false,

		CanViewMetrics:       true,
		CanViewSystemHealth:  false,
		CanEditConfiguration: false,
		CanExportData:        true,
	},
	RoleSupervisor: {
		CanViewAllCases:   true,
		CanEditCases:      true,
		CanDeleteCases:    true,
		CanAssignCases:    true,
		CanInterveneCases: true,

		CanViewUsers:   true,
		CanCreateUsers: false,
		CanEditUsers:   false,
		CanDeleteUsers: false,

		CanViewMetrics:       true,
		CanViewSystemHealth:  true,
		CanEditConfiguration: false,
		CanExportData:        true,
	},
	RoleAdmin: {
		CanViewAllCases:   true,
		CanEditCases:      true,
		CanDeleteCases:    true,
		CanAssignCases:    true,
		CanInterveneCases: true,

		CanViewUsers:   true,
		CanCreateUsers: true,
		CanEditUsers:   true,
		CanDeleteUsers: true,

		CanViewMetrics:       true,
		CanViewSystemHealth:  true,
		CanEditConfiguration: true,
		CanExportData:        true,
	},
}

// Resolve returns the capability set for a role. Pure and total: an
// unknown role (a defect upstream, the backend only issues the three
// enumerated values) resolves to the zero set, which denies everything.
func Resolve(role Role) PermissionSet {
	return rolePermissions[role]
}

// HasCapability reports whether a role grants a capability.
func HasCapability(role Role, cap Capability) bool {
	return Resolve(role).Has(cap)
}

// Has projects a single capability out of the set.
func (p PermissionSet) Has(cap Capability) bool {
	switch cap {
	case CapViewAllCases:
		return p.CanViewAllCases
	case CapEditCases:
		return p.CanEditCases
	case CapDeleteCases:
		return p.CanDeleteCases
	case CapAssignCases:
		return p.CanAssignCases
	case CapInterveneCases:
		return p.CanInterveneCases
	case CapViewUsers:
		return p.CanViewUsers
	case CapCreateUsers:
		return p.CanCreateUsers
	case CapEditUsers:
		return p.CanEditUsers
	case CapDeleteUsers:
		return p.CanDeleteUsers
	case CapViewMetrics:
		return p.CanViewMetrics
	case CapViewSystemHealth:
		return p.CanViewSystemHealth
	case CapEditConfiguration:
		return p.CanEditConfiguration
	case CapExportData:
		return p.CanExportData
	}
	return false
}

// ValidRole reports whether the backend-supplied role string is one of
// the enumerated roles.
func ValidRole(role Role) bool {
	_, ok := rolePermissions[role]
	return ok
}
