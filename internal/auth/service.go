package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-io/gatehouse/internal/authz"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// Revoker invalidates a token id until a point in time.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
}

// Service wraps authentication business rules.
type Service struct {
	repo    Repository
	tokens  *TokenManager
	revoker Revoker
	cost    int
}

// NewService constructs a new Service. revoker may be nil, in which case
// logout only succeeds without invalidating the token.
func NewService(repo Repository, tokens *TokenManager, revoker Revoker) *Service {
	return &Service{repo: repo, tokens: tokens, revoker: revoker, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost.
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (Token, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return Token{}, err
	}
	return s.tokens.Issue(user.ID)
}

// RegisterInput carries the self-service signup fields.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Register creates a member account and issues its first token. The role is
// always member; elevation happens through the admin user endpoints.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, Token, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, Token{}, err
	}
	user, err := s.repo.CreateUser(ctx, User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: string(hash),
		Role:         string(authz.RoleMember),
	})
	if err != nil {
		return nil, Token{}, err
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, Token{}, err
	}
	return user, token, nil
}

// Logout revokes the presented token.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return shared.ErrInvalidCredentials
	}
	if s.revoker == nil || claims.ID == "" {
		return nil
	}
	return s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}
