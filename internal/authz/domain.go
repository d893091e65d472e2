// Package authz decides whether an authenticated principal may perform an
// operation on a protected entity.
package authz

import (
	"fmt"
	"strings"
)

// Role is the privilege tier assigned to a principal.
type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Roles lists every known role from least to most privileged.
func Roles() []Role {
	return []Role{RoleMember, RoleModerator, RoleAdmin}
}

// ParseRole normalises raw into a known Role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if role.level() == 0 {
		return "", fmt.Errorf("authz: unknown role %q", raw)
	}
	return role, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r.level() > 0
}

func (r Role) level() int {
	switch r {
	case RoleAdmin:
		return 30
	case RoleModerator:
		return 20
	case RoleMember:
		return 10
	default:
		return 0
	}
}

// Principal describes the authenticated actor of a single request.
type Principal struct {
	ID   string
	Role Role
}

// IsZero reports whether no principal was resolved.
func (p Principal) IsZero() bool {
	return p.ID == ""
}

// EntityType names a protected collection.
type EntityType string

const (
	EntityResource EntityType = "resource"
	// EntityUser is the admin-managed user collection.
	EntityUser EntityType = "user"
	// EntityProfile is the caller's own user record.
	EntityProfile EntityType = "profile"
	// EntityAudit is the authorization audit trail.
	EntityAudit EntityType = "audit"
)

// Operation is what a principal wants to do with an entity.
type Operation string

const (
	OpList   Operation = "list"
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Operations lists every known operation.
func Operations() []Operation {
	return []Operation{OpList, OpRead, OpCreate, OpUpdate, OpDelete}
}

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	switch o {
	case OpList, OpRead, OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// TargetsRecord reports whether the operation acts on one existing record.
func (o Operation) TargetsRecord() bool {
	return o == OpRead || o == OpUpdate || o == OpDelete
}

// Action pairs an operation with the entity it applies to.
type Action struct {
	Entity    EntityType
	Operation Operation
}

// NewAction builds an Action.
func NewAction(entity EntityType, op Operation) Action {
	return Action{Entity: entity, Operation: op}
}

func (a Action) String() string {
	return string(a.Entity) + ":" + string(a.Operation)
}

// ListScope restricts which records a list query may fetch.
type ListScope struct {
	All   bool
	Owner string
}

// Includes reports whether a record owned by owner falls inside the scope.
func (s ListScope) Includes(owner string) bool {
	return s.All || (s.Owner != "" && s.Owner == owner)
}
