package domain

// Role is the coarse permission class carried by a verified credential.
type Role string

const (
	RoleRider    Role = "rider"
	RoleDriver   Role = "driver"
	RoleOperator Role = "operator"
)

// ParseRole maps a claim value to a Role, defaulting to rider.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleDriver, RoleOperator:
		return Role(s)
	case "admin":
		return RoleOperator
	}
	return RoleRider
}

// Principal is the authenticated caller of an operation.
type Principal struct {
	Subject string
	Role    Role
}

// IsOperator reports whether the principal may perform operator actions.
func (p Principal) IsOperator() bool { return p.Role == RoleOperator }

// SenderKind maps the principal's role to a chat sender kind.
func (p Principal) SenderKind() SenderKind {
	switch p.Role {
	case RoleDriver:
		return SenderDriver
	case RoleOperator:
		return SenderOperator
	}
	return SenderRider
}
