package e2e

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gatehouse-io/gatehouse/internal/auth"
	"github.com/gatehouse-io/gatehouse/internal/authz"
	"github.com/gatehouse-io/gatehouse/internal/resources"
	"github.com/gatehouse-io/gatehouse/internal/shared"
	"github.com/gatehouse-io/gatehouse/internal/users"
)

// world is a single in-memory database shared by every module so the flow
// sees the same rows through auth, users and resources.
type world struct {
	mu        sync.Mutex
	accounts  map[string]auth.User
	resources map[string]resources.Resource
	owners    map[string]string
	now       time.Time
}

func newWorld() *world {
	return &world{
		accounts:  map[string]auth.User{},
		resources: map[string]resources.Resource{},
		owners:    map[string]string{},
		now:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

type accounts struct{ *world }

func (w accounts) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, u := range w.world.accounts {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (w accounts) CreateUser(_ context.Context, u auth.User) (*auth.User, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, existing := range w.world.accounts {
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, shared.ErrEmailTaken
		}
	}
	u.CreatedAt, u.UpdatedAt = w.now, w.now
	w.world.accounts[u.ID] = u
	return &u, nil
}

type people struct{ *world }

func toUser(u auth.User) users.User {
	return users.User{ID: u.ID, Name: u.Name, Email: u.Email, Role: authz.Role(u.Role), CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt}
}

func (w people) ListUsers(context.Context) ([]users.User, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]users.User, 0, len(w.accounts))
	for _, u := range w.accounts {
		out = append(out, toUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (w people) GetUser(_ context.Context, id string) (*users.User, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	u, ok := w.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := toUser(u)
	return &out, nil
}

func (w people) UpdateUser(_ context.Context, id string, in users.UpdateInput) (*users.User, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	u, ok := w.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.Role != nil {
		u.Role = string(*in.Role)
	}
	w.accounts[id] = u
	out := toUser(u)
	return &out, nil
}

func (w people) DeleteUser(_ context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.accounts[id]; !ok {
		return shared.ErrNotFound
	}
	delete(w.accounts, id)
	for rid, owner := range w.owners {
		if owner == id {
			delete(w.owners, rid)
			delete(w.resources, rid)
		}
	}
	return nil
}

func (w people) LoadRole(_ context.Context, id string) (authz.Role, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	u, ok := w.accounts[id]
	if !ok {
		return "", authz.ErrPrincipalNotFound
	}
	return authz.Role(u.Role), nil
}

func (w people) LoadOwner(_ context.Context, _ authz.EntityType, id string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.accounts[id]; !ok {
		return "", authz.ErrRecordNotFound
	}
	return id, nil
}

type collection struct{ *world }

func (w collection) LoadOwner(_ context.Context, _ authz.EntityType, id string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	owner, ok := w.owners[id]
	if !ok {
		return "", authz.ErrRecordNotFound
	}
	return owner, nil
}

func (w collection) ListScopedBy(_ context.Context, scope authz.ListScope) ([]resources.Resource, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []resources.Resource
	for id, res := range w.resources {
		if scope.Includes(w.owners[id]) {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (w collection) Get(_ context.Context, id string) (*resources.Resource, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	res, ok := w.resources[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &res, nil
}

func (w collection) Create(_ context.Context, id, ownerID string, in resources.CreateInput) (*resources.Resource, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	owner := w.accounts[ownerID]
	res := resources.Resource{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		Owner:       resources.Owner{ID: owner.ID, Name: owner.Name, Email: owner.Email},
		CreatedAt:   w.now,
		UpdatedAt:   w.now,
	}
	w.resources[id] = res
	w.owners[id] = ownerID
	return &res, nil
}

func (w collection) Update(_ context.Context, id string, in resources.UpdateInput) (*resources.Resource, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	res, ok := w.resources[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if in.Name != nil {
		res.Name = *in.Name
	}
	if in.Description != nil {
		res.Description = *in.Description
	}
	w.resources[id] = res
	return &res, nil
}

func (w collection) Delete(_ context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.resources[id]; !ok {
		return shared.ErrNotFound
	}
	delete(w.resources, id)
	delete(w.owners, id)
	return nil
}
