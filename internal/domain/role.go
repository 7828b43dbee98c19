package domain

// Role enumerates the account types stored in users.user_type.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleProvider, RoleAdmin:
		return true
	}
	return false
}

// SelfRegistrable reports whether an account of this role may be created
// through public registration.
func (r Role) SelfRegistrable() bool {
	return r == RoleCustomer || r == RoleProvider
}
