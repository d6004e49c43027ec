package domain

// OperatorRole enumerates back-office roles allowed to call the API.
type OperatorRole string

const (
	RoleDispatcher OperatorRole = "DISPATCHER"
	RoleSupervisor OperatorRole = "SUPERVISOR"
	RoleAdmin      OperatorRole = "ADMIN"
)

// Operator is the authenticated caller as described by its bearer token.
type Operator struct {
	ID   string
	Role OperatorRole
}

// Valid reports whether the role is known.
func (r OperatorRole) Valid() bool {
	switch r {
	case RoleDispatcher, RoleSupervisor, RoleAdmin:
		return true
	}
	return false
}
