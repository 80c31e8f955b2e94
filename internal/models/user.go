package models

// user role
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User is user entity, kept minimal: credentials and sessions
// are issued by the surrounding application
type User struct {
	ID    string
	Login string
	Role  string
}

// TokenPayload is verified auth token payload supplying the current actor
type TokenPayload struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the actor is an administrator
func (p *TokenPayload) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}
