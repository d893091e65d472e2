package users

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gatehouse-io/gatehouse/internal/authz"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	UpdateUser(ctx context.Context, id string, in UpdateInput) (*User, error)
	DeleteUser(ctx context.Context, id string) error
}

// Invalidator drops cached authorization state for a user.
type Invalidator interface {
	Invalidate(ctx context.Context, id string) error
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	cache  Invalidator
	logger *slog.Logger
}

// NewService builds Service instance. cache may be nil.
func NewService(repo RepositoryPort, cache Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

// UpdateUser changes a user's details. Role changes take effect on the
// user's next request.
func (s *Service) UpdateUser(ctx context.Context, id string, in UpdateInput) (*User, error) {
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		in.Email = &email
	}
	if in.Empty() {
		return s.repo.GetUser(ctx, id)
	}
	user, err := s.repo.UpdateUser(ctx, id, in)
	if err != nil {
		return nil, err
	}
	if in.Role != nil {
		if err := s.invalidate(ctx, id); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// UpdateProfile changes the caller's own name or email. The role is never
// touched.
func (s *Service) UpdateProfile(ctx context.Context, p authz.Principal, in UpdateInput) (*User, error) {
	in.Role = nil
	return s.UpdateUser(ctx, p.ID, in)
}

// DeleteUser removes a user.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx, id)
}

// invalidate fails the whole call when the cached role cannot be dropped: the
// row is already written, and the caller must retry so the change reaches
// the cache.
func (s *Service) invalidate(ctx context.Context, id string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "role cache invalidate", slog.String("user", id), slog.Any("error", err))
		return err
	}
	return nil
}
