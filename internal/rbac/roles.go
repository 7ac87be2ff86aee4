package rbac

// Role names. Keep these stable; they are part of the service token contract.
const (
	// RoleService is a backend caller pushing exchanges and triggers.
	RoleService = "service"
	// RoleOperator is a human reading state and reports.
	RoleOperator = "operator"
	// RoleAdmin spans accounts.
	RoleAdmin = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }
