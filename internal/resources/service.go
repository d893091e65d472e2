package resources

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gatehouse-io/gatehouse/internal/authz"
)

// RepositoryPort defines data access methods for resources.
type RepositoryPort interface {
	ListScopedBy(ctx context.Context, scope authz.ListScope) ([]Resource, error)
	Get(ctx context.Context, id string) (*Resource, error)
	Create(ctx context.Context, id, ownerID string, in CreateInput) (*Resource, error)
	Update(ctx context.Context, id string, in UpdateInput) (*Resource, error)
	Delete(ctx context.Context, id string) error
}

// Service handles resource business logic. Callers authorize first.
type Service struct {
	repo  RepositoryPort
	newID func() string
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, newID: uuid.NewString}
}

// List returns the resources inside scope. A zero scope yields nothing.
func (s *Service) List(ctx context.Context, scope authz.ListScope) ([]Resource, error) {
	if !scope.All && scope.Owner == "" {
		return []Resource{}, nil
	}
	items, err := s.repo.ListScopedBy(ctx, scope)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, item := range items {
		if scope.Includes(item.Owner.ID) {
			out = append(out, item)
		}
	}
	return out, nil
}

// Get returns one resource.
func (s *Service) Get(ctx context.Context, id string) (*Resource, error) {
	return s.repo.Get(ctx, id)
}

// Create stores a new resource owned by the principal.
func (s *Service) Create(ctx context.Context, p authz.Principal, in CreateInput) (*Resource, error) {
	if p.IsZero() {
		return nil, fmt.Errorf("resources: create requires a principal")
	}
	in.Name = strings.TrimSpace(in.Name)
	return s.repo.Create(ctx, s.newID(), p.ID, in)
}

// Update changes a resource's name or description.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Resource, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if in.Name == nil && in.Description == nil {
		return s.repo.Get(ctx, id)
	}
	return s.repo.Update(ctx, id, in)
}

// Delete removes a resource.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
