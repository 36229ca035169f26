package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	ctx, err := Load(filepath.Join(t.TempDir(), "nope.ini"))
	require.NoError(t, err)

	assert.Equal(t, "/bin/bash", ctx.Defaults.Shell)
	assert.Equal(t, "sudo", ctx.Defaults.PrivilegedGroup)
	assert.Equal(t, 1000, ctx.Defaults.UIDFloor)
	assert.Equal(t, "0", ctx.Defaults.ExpirySelector)
	assert.Empty(t, ctx.Roles)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	content := `
[defaults]
shell = /bin/zsh
privileged_group = wheel
password_max_days = 180
uid_floor = 2000

[secrets]
spool_dir = /srv/secrets
recipient = age1example

[role:developer]
shell = /bin/bash
sudo = ALLOW
expiry_days = 365

[role:contractor]
sudo = deny
expiry_days = 90
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ctx, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/bin/zsh", ctx.Defaults.Shell)
	assert.Equal(t, "wheel", ctx.Defaults.PrivilegedGroup)
	assert.Equal(t, 180, ctx.Defaults.PasswordMaxDays)
	assert.Equal(t, 2000, ctx.Defaults.UIDFloor)
	// Untouched keys keep their built-in values.
	assert.Equal(t, 7, ctx.Defaults.PasswordWarnDays)

	assert.Equal(t, "/srv/secrets", ctx.Defaults.SecretSpoolDir)
	assert.Equal(t, "age1example", ctx.Defaults.SecretRecipient)

	require.Len(t, ctx.Roles, 2)
	dev, ok := ctx.Role("developer")
	require.True(t, ok)
	assert.Equal(t, "/bin/bash", dev.Shell)
	assert.Equal(t, "allow", dev.Sudo, "sudo stance is lowercased")
	assert.Equal(t, 365, dev.ExpiryDays)

	con, ok := ctx.Role("contractor")
	require.True(t, ok)
	assert.Empty(t, con.Shell)
	assert.Equal(t, 90, con.ExpiryDays)
}

func TestLoadRoleWithoutExpiryDaysIsUnset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	content := `
[role:minimal]
shell = /bin/sh
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ctx, err := Load(path)
	require.NoError(t, err)

	role, ok := ctx.Role("minimal")
	require.True(t, ok)
	assert.Equal(t, -1, role.ExpiryDays)
	assert.Empty(t, role.Sudo)
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, WriteDefault(path))

	ctx, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/bin/bash", ctx.Defaults.Shell)
	assert.Equal(t, "sudo", ctx.Defaults.PrivilegedGroup)
	assert.Empty(t, ctx.Roles, "the starter roles are commented out")
}

func TestWriteDefaultRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(path, []byte("[defaults]\n"), 0o644))

	err := WriteDefault(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}
