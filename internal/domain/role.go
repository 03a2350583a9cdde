package domain

// Role is the actor role carried by an authenticated identity claim.
type Role string

const (
	RoleVolunteer Role = "volunteer"
	RoleNGO       Role = "ngo"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleVolunteer || r == RoleNGO
}

// Actor is the authenticated caller performing an operation.
type Actor struct {
	UserID string
	Role   Role
}

// IsNGO reports whether the actor may triage problems.
func (a Actor) IsNGO() bool {
	return a.Role == RoleNGO
}
