package users_test

import (
	"context"
	"sync"
	"time"

	"github.com/gatehouse-io/gatehouse/internal/authz"
	"github.com/gatehouse-io/gatehouse/internal/shared"
	"github.com/gatehouse-io/gatehouse/internal/users"
)

// memStore is an in-memory users table satisfying the repository, the
// principal store and the record store.
type memStore struct {
	mu    sync.Mutex
	users map[string]users.User
	order []string
}

func newMemStore(list ...users.User) *memStore {
	s := &memStore{users: map[string]users.User{}}
	for _, u := range list {
		s.users[u.ID] = u
		s.order = append(s.order, u.ID)
	}
	return s
}

func (s *memStore) ListUsers(context.Context) ([]users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []users.User
	for _, id := range s.order {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *memStore) GetUser(_ context.Context, id string) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &u, nil
}

func (s *memStore) UpdateUser(_ context.Context, id string, in users.UpdateInput) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if in.Email != nil {
		for other, existing := range s.users {
			if other != id && existing.Email == *in.Email {
				return nil, shared.ErrEmailTaken
			}
		}
		u.Email = *in.Email
	}
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Role != nil {
		u.Role = *in.Role
	}
	u.UpdatedAt = time.Now()
	s.users[id] = u
	return &u, nil
}

func (s *memStore) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memStore) LoadRole(_ context.Context, id string) (authz.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return "", authz.ErrPrincipalNotFound
	}
	return u.Role, nil
}

func (s *memStore) LoadOwner(_ context.Context, _ authz.EntityType, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return "", authz.ErrRecordNotFound
	}
	return id, nil
}

// subjectTokens treats "tok-<id>" as a valid credential for <id>.
type subjectTokens struct{}

func (subjectTokens) Verify(_ context.Context, token string) (authz.Credential, error) {
	const prefix = "tok-"
	if len(token) <= len(prefix) || token[:len(prefix)] != prefix {
		return authz.Credential{}, shared.ErrInvalidCredentials
	}
	return authz.Credential{Subject: token[len(prefix):], ValidUntil: time.Now().Add(time.Hour)}, nil
}
