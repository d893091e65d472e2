package users

import (
	"time"

	"github.com/gatehouse-io/gatehouse/internal/authz"
)

// User is an account as exposed to administrators and to its owner.
type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      authz.Role `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// UpdateInput carries the fields an update may change. Nil fields are kept.
type UpdateInput struct {
	Name  *string
	Email *string
	Role  *authz.Role
}

// Empty reports whether the input changes nothing.
func (in UpdateInput) Empty() bool {
	return in.Name == nil && in.Email == nil && in.Role == nil
}
