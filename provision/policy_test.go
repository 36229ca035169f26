package provision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mordilloSan/accountctl/common/config"
)

func testContext() *config.PolicyContext {
	ctx := config.NewContext()
	ctx.Roles["developer"] = config.Role{
		Name:       "developer",
		Shell:      "/bin/sh",
		Sudo:       "allow",
		ExpiryDays: -1,
	}
	ctx.Roles["contractor"] = config.Role{
		Name:       "contractor",
		Shell:      "/bin/sh",
		Sudo:       "deny",
		ExpiryDays: 180,
	}
	return ctx
}

func TestResolveExplicitShellWinsOverRole(t *testing.T) {
	ctx := testContext()

	// The record names a role-resolvable expiry, but the explicit
	// shell path must still win for the shell attribute.
	rec := AccountRecord{Username: "alice", Shell: "/bin/bash", Expiry: "contractor"}
	policy, err := Resolve(rec, "developer", ctx)
	require.NoError(t, err)

	assert.Equal(t, "/bin/bash", policy.Shell)
	assert.NotEmpty(t, policy.ExpiryDate)
}

func TestResolveRoleShell(t *testing.T) {
	ctx := testContext()

	rec := AccountRecord{Username: "alice", Shell: "developer"}
	policy, err := Resolve(rec, "", ctx)
	require.NoError(t, err)
	assert.Equal(t, "/bin/sh", policy.Shell)
	assert.True(t, policy.SudoAllowed)
}

func TestResolveUnknownRoleFails(t *testing.T) {
	ctx := testContext()

	_, err := Resolve(AccountRecord{Username: "alice", Shell: "astronaut"}, "", ctx)
	var perr *PolicyError
	require.ErrorAs(t, err, &perr)
}

func TestResolveNonExecutableShellFails(t *testing.T) {
	ctx := testContext()

	_, err := Resolve(AccountRecord{Username: "alice", Shell: "/etc/passwd"}, "", ctx)
	var perr *PolicyError
	require.ErrorAs(t, err, &perr)
}

func TestResolveDefaultsWhenNoRole(t *testing.T) {
	ctx := testContext()

	policy, err := Resolve(AccountRecord{Username: "alice"}, "", ctx)
	require.NoError(t, err)
	assert.Equal(t, ctx.Defaults.Shell, policy.Shell)
	assert.False(t, policy.SudoAllowed)
	assert.Empty(t, policy.ExpiryDate, "default expiry is never")
	assert.Equal(t, ctx.Defaults.PasswordMaxDays, policy.PasswordMaxDays)
}

func TestResolveExplicitSudoWinsOverRole(t *testing.T) {
	ctx := testContext()

	policy, err := Resolve(AccountRecord{Username: "alice", Sudo: "deny"}, "developer", ctx)
	require.NoError(t, err)
	assert.False(t, policy.SudoAllowed)
}

func TestResolveExpiryZeroAlwaysMeansNever(t *testing.T) {
	ctx := testContext()

	// Even with a role carrying a default day count.
	policy, err := Resolve(AccountRecord{Username: "alice", Expiry: "0"}, "contractor", ctx)
	require.NoError(t, err)
	assert.Empty(t, policy.ExpiryDate)
}

func TestResolveExpiryDateVerbatim(t *testing.T) {
	ctx := testContext()

	policy, err := Resolve(AccountRecord{Username: "alice", Expiry: "2030-06-15"}, "", ctx)
	require.NoError(t, err)
	assert.Equal(t, "2030-06-15", policy.ExpiryDate)
}

func TestResolveExpiryDayCount(t *testing.T) {
	ctx := testContext()

	policy, err := Resolve(AccountRecord{Username: "alice", Expiry: "30"}, "", ctx)
	require.NoError(t, err)

	expected := time.Now().AddDate(0, 0, 30).Format("2006-01-02")
	assert.Equal(t, expected, policy.ExpiryDate)
}

func TestResolveNegativeExpiryFails(t *testing.T) {
	ctx := testContext()

	_, err := Resolve(AccountRecord{Username: "alice", Expiry: "-5"}, "", ctx)
	var perr *PolicyError
	require.ErrorAs(t, err, &perr)
}

func TestResolveExpiryFromRoleSelector(t *testing.T) {
	ctx := testContext()

	policy, err := Resolve(AccountRecord{Username: "alice", Expiry: "contractor"}, "", ctx)
	require.NoError(t, err)

	expected := time.Now().AddDate(0, 0, 180).Format("2006-01-02")
	assert.Equal(t, expected, policy.ExpiryDate)
}

func TestResolveNologinShellFlagged(t *testing.T) {
	ctx := testContext()

	policy, err := Resolve(AccountRecord{Username: "svc", Shell: "/usr/sbin/nologin"}, "", ctx)
	require.NoError(t, err)
	assert.True(t, policy.NoLogin)
}

func TestResolvePasswordAgingFromRecord(t *testing.T) {
	ctx := testContext()

	rec := AccountRecord{Username: "alice", PasswordExpiryDays: 90, PasswordWarnDays: 14, PasswordMinDays: 2}
	policy, err := Resolve(rec, "", ctx)
	require.NoError(t, err)
	assert.Equal(t, 90, policy.PasswordMaxDays)
	assert.Equal(t, 14, policy.PasswordWarnDays)
	assert.Equal(t, 2, policy.PasswordMinDays)
}

func TestResolveExpirySelector(t *testing.T) {
	date, err := ResolveExpirySelector("0")
	require.NoError(t, err)
	assert.Empty(t, date)

	date, err = ResolveExpirySelector("2031-01-01")
	require.NoError(t, err)
	assert.Equal(t, "2031-01-01", date)

	_, err = ResolveExpirySelector("not-a-date")
	assert.Error(t, err)
}
