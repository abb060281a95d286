package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockslide/rockslide/internal/registry/auth"
	"github.com/rockslide/rockslide/internal/registry/storage"
)

func TestAllowAll(t *testing.T) {
	var p auth.Provider = auth.AllowAll{}
	loc, err := storage.NewImageLocation("library", "nginx")
	require.NoError(t, err)

	user, ok := p.CheckCredentials(context.Background(), auth.UnverifiedCredentials{})
	require.True(t, ok)
	assert.Equal(t, auth.ReadWrite, p.GetPermissions(context.Background(), user, loc))
}

func TestDenyAll(t *testing.T) {
	var p auth.Provider = auth.DenyAll{}
	_, ok := p.CheckCredentials(context.Background(), auth.NewUsernameAndPassword("alice", "hunter2"))
	assert.False(t, ok)
}

func TestUserPassMap(t *testing.T) {
	p := auth.UserPassMap{"alice": "hunter2"}

	_, ok := p.CheckCredentials(context.Background(), auth.NewUsernameAndPassword("alice", "hunter2"))
	assert.True(t, ok)

	_, ok = p.CheckCredentials(context.Background(), auth.NewUsernameAndPassword("alice", "wrong"))
	assert.False(t, ok)

	_, ok = p.CheckCredentials(context.Background(), auth.NewUsernameAndPassword("bob", "hunter2"))
	assert.False(t, ok)

	_, ok = p.CheckCredentials(context.Background(), auth.UnverifiedCredentials{})
	assert.False(t, ok)
}

func TestMasterPassword(t *testing.T) {
	p := auth.MasterPassword("letmein")

	_, ok := p.CheckCredentials(context.Background(), auth.NewUsernameAndPassword("anyone", "letmein"))
	assert.True(t, ok)

	_, ok = p.CheckCredentials(context.Background(), auth.NewUsernameAndPassword("anyone", "nope"))
	assert.False(t, ok)
}

func TestPermissions(t *testing.T) {
	assert.True(t, auth.Read.PermitRead())
	assert.False(t, auth.Read.PermitWrite())
	assert.True(t, auth.WriteOnly.PermitWrite())
	assert.False(t, auth.WriteOnly.PermitRead())
	assert.True(t, auth.ReadWrite.PermitRead())
	assert.True(t, auth.ReadWrite.PermitWrite())
	assert.False(t, auth.NoAccess.PermitRead())
	assert.False(t, auth.NoAccess.PermitWrite())
}
