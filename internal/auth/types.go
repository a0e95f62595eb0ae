package auth

import "errors"

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer can observe the compositor but not change it.
	RoleViewer Role = "viewer"

	// RoleOperator drives content lifecycles: the role given to wall panels
	// and orchestration services.
	RoleOperator Role = "operator"

	// RoleAdmin additionally changes category configuration at runtime.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Sentinel errors for auth operations.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrForbidden    = errors.New("insufficient permissions")
)
