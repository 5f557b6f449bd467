package constants

const (
	Customer   = "customer"
	Contractor = "contractor"
	Admin      = "admin"
)

// ValidRoles is the set of allowed values for users.role.
var ValidRoles = []string{Customer, Contractor, Admin}

// IsValidRole returns true if role is one of the allowed values.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
