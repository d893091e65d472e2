package resources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/internal/authz"
)

type leakyRepo struct {
	RepositoryPort
	items   []Resource
	created struct{ id, owner string }
	calls   int
}

func (l *leakyRepo) ListScopedBy(context.Context, authz.ListScope) ([]Resource, error) {
	l.calls++
	return append([]Resource(nil), l.items...), nil
}

func (l *leakyRepo) Create(_ context.Context, id, owner string, in CreateInput) (*Resource, error) {
	l.created.id, l.created.owner = id, owner
	return &Resource{ID: id, Name: in.Name, Owner: Owner{ID: owner}}, nil
}

func TestListDropsRecordsOutsideScope(t *testing.T) {
	repo := &leakyRepo{items: []Resource{{ID: "a", Owner: Owner{ID: "u1"}}, {ID: "b", Owner: Owner{ID: "u2"}}}}
	out, err := NewService(repo).List(context.Background(), authz.ListScope{Owner: "u1"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ID)
}

func TestListWithZeroScopeSkipsStore(t *testing.T) {
	repo := &leakyRepo{items: []Resource{{ID: "a", Owner: Owner{ID: "u1"}}}}
	out, err := NewService(repo).List(context.Background(), authz.ListScope{})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, repo.calls)
}

func TestCreateAssignsOwnerAndID(t *testing.T) {
	repo := &leakyRepo{}
	svc := NewService(repo)
	svc.newID = func() string { return "fixed" }

	res, err := svc.Create(context.Background(), authz.Principal{ID: "mod", Role: authz.RoleModerator}, CreateInput{Name: " n "})
	require.NoError(t, err)
	assert.Equal(t, "fixed", repo.created.id)
	assert.Equal(t, "mod", repo.created.owner)
	assert.Equal(t, "n", res.Name)

	_, err = svc.Create(context.Background(), authz.Principal{}, CreateInput{Name: "n"})
	assert.Error(t, err)
}
