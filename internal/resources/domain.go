// Package resources manages the owner-scoped resource collection.
package resources

import "time"

// Owner is the public view of the user who created a resource.
type Owner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Resource is a record owned by the user who created it. The owner never
// changes after creation.
type Resource struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Owner       Owner     `json:"owner"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateInput carries the fields for a new resource.
type CreateInput struct {
	Name        string
	Description string
}

// UpdateInput carries the fields an update may change. Nil fields are kept.
type UpdateInput struct {
	Name        *string
	Description *string
}
