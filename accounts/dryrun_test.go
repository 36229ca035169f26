package accounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDryRunDelegatesReads(t *testing.T) {
	inner := NewMemorySystem("sudo")
	inner.AddUser("alice", 1100, "/bin/bash").IsLocked = true
	require.NoError(t, inner.GrantPrivilegedGroup("alice"))
	inner.Calls = nil

	dry := NewDryRun(inner)

	assert.True(t, dry.AccountExists("alice"))
	assert.False(t, dry.AccountExists("ghost"))
	assert.True(t, dry.GroupExists("sudo"))
	assert.True(t, dry.PasswordLocked("alice"))
	assert.True(t, dry.HasPrivilegedGroup("alice"))

	user, err := dry.LookupAccount("alice")
	require.NoError(t, err)
	assert.Equal(t, 1100, user.UID)
}

func TestDryRunOverlayTracksCreations(t *testing.T) {
	inner := NewMemorySystem("sudo")
	dry := NewDryRun(inner)

	assert.False(t, dry.AccountExists("alice"))
	require.NoError(t, dry.CreateAccount(CreateAccountRequest{Username: "alice"}))
	assert.True(t, dry.AccountExists("alice"), "a would-be creation must be visible to later records")
	assert.False(t, inner.AccountExists("alice"))

	require.NoError(t, dry.CreateGroup("ops"))
	assert.True(t, dry.GroupExists("ops"))
	require.NoError(t, dry.DeleteGroup("ops"))
	assert.False(t, dry.GroupExists("ops"))

	require.NoError(t, dry.DeleteGroup("sudo"))
	assert.False(t, dry.GroupExists("sudo"))
	assert.True(t, inner.GroupExists("sudo"))
}

func TestDryRunMutatorsNeverReachInner(t *testing.T) {
	inner := NewMemorySystem("sudo")
	inner.AddUser("alice", 1100, "/bin/bash")
	dry := NewDryRun(inner)

	require.NoError(t, dry.CreateAccount(CreateAccountRequest{Username: "bob"}))
	require.NoError(t, dry.CreateGroup("ops"))
	require.NoError(t, dry.DeleteGroup("sudo"))
	require.NoError(t, dry.SetPassword("alice", "x"))
	require.NoError(t, dry.LockPassword("alice"))
	require.NoError(t, dry.SetShell("alice", "/usr/sbin/nologin"))
	require.NoError(t, dry.SetComment("alice", "changed"))

	assert.Empty(t, inner.MutatorCalls())
	assert.False(t, inner.AccountExists("bob"))
	assert.True(t, inner.GroupExists("sudo"))
	assert.False(t, inner.PasswordLocked("alice"))
	assert.Equal(t, "/bin/bash", inner.Users["alice"].User.Shell)
}
