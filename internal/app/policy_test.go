package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/internal/authz"
)

func TestLoadPolicyDefault(t *testing.T) {
	p, err := LoadPolicy(&Config{})
	require.NoError(t, err)
	assert.Equal(t, authz.DefaultPolicy().Rules(), p.Rules())
}

func TestLoadPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	doc := "resource:\n  read:\n    admin: all\n    moderator: owner\n    member: owner\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	p, err := LoadPolicy(&Config{PolicyFile: path})
	require.NoError(t, err)
	read := authz.NewAction(authz.EntityResource, authz.OpRead)
	assert.Equal(t, authz.GrantOwner, p.Grant(authz.RoleMember, read))
	assert.Equal(t, authz.GrantOwner, p.Grant(authz.RoleModerator, read))
	assert.Equal(t, authz.GrantNone, p.Grant(authz.RoleAdmin, authz.NewAction(authz.EntityResource, authz.OpDelete)))
}

func TestLoadPolicyFileErrors(t *testing.T) {
	_, err := LoadPolicyFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("resource:\n  read:\n    member: everything\n"), 0o600))
	_, err = LoadPolicyFile(path)
	assert.Error(t, err)
}
