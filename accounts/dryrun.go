package accounts

import (
	"github.com/mordilloSan/go-logger/logger"
)

// DryRunSystem wraps another System, delegating every read but turning
// every mutator into a logged no-op. Would-be creations and deletions
// are tracked in overlay sets so the existence predicates see them:
// later records in the same batch classify exactly as they would in a
// real run (a duplicate is skipped, not created twice).
type DryRunSystem struct {
	inner           System
	createdAccounts map[string]bool
	createdGroups   map[string]bool
	deletedGroups   map[string]bool
}

// NewDryRun wraps sys so that no mutating primitive ever reaches the
// identity store.
func NewDryRun(sys System) *DryRunSystem {
	return &DryRunSystem{
		inner:           sys,
		createdAccounts: map[string]bool{},
		createdGroups:   map[string]bool{},
		deletedGroups:   map[string]bool{},
	}
}

func (d *DryRunSystem) AccountExists(username string) bool {
	return d.createdAccounts[username] || d.inner.AccountExists(username)
}

func (d *DryRunSystem) GroupExists(name string) bool {
	if d.deletedGroups[name] {
		return false
	}
	return d.createdGroups[name] || d.inner.GroupExists(name)
}
func (d *DryRunSystem) LookupAccount(username string) (*User, error) {
	return d.inner.LookupAccount(username)
}
func (d *DryRunSystem) PasswordLocked(username string) bool { return d.inner.PasswordLocked(username) }
func (d *DryRunSystem) Shell(username string) (string, error) {
	return d.inner.Shell(username)
}
func (d *DryRunSystem) HasPrivilegedGroup(username string) bool {
	return d.inner.HasPrivilegedGroup(username)
}
func (d *DryRunSystem) Comment(username string) (string, error) {
	return d.inner.Comment(username)
}

func (d *DryRunSystem) CreateAccount(req CreateAccountRequest) error {
	logger.Infof("[dry-run] would create user %s (shell=%s groups=%v)", req.Username, req.Shell, req.SecondaryGroups)
	d.createdAccounts[req.Username] = true
	return nil
}

func (d *DryRunSystem) CreateGroup(name string) error {
	logger.Infof("[dry-run] would create group %s", name)
	d.createdGroups[name] = true
	delete(d.deletedGroups, name)
	return nil
}

func (d *DryRunSystem) DeleteGroup(name string) error {
	logger.Infof("[dry-run] would delete group %s", name)
	d.deletedGroups[name] = true
	delete(d.createdGroups, name)
	return nil
}

func (d *DryRunSystem) AddGroupMember(group, username string) error {
	logger.Infof("[dry-run] would add %s to group %s", username, group)
	return nil
}

func (d *DryRunSystem) SetPassword(username, secret string) error {
	logger.Infof("[dry-run] would set password for %s", username)
	return nil
}

func (d *DryRunSystem) SetPasswordAging(username string, maxDays, minDays, warnDays int) error {
	logger.Infof("[dry-run] would set password aging for %s (max=%d min=%d warn=%d)", username, maxDays, minDays, warnDays)
	return nil
}

func (d *DryRunSystem) ForcePasswordChange(username string) error {
	logger.Infof("[dry-run] would force password change for %s", username)
	return nil
}

func (d *DryRunSystem) SetAccountExpiry(username, date string) error {
	logger.Infof("[dry-run] would set account expiry for %s to %q", username, date)
	return nil
}

func (d *DryRunSystem) LockPassword(username string) error {
	logger.Infof("[dry-run] would lock password for %s", username)
	return nil
}

func (d *DryRunSystem) UnlockPassword(username string) error {
	logger.Infof("[dry-run] would unlock password for %s", username)
	return nil
}

func (d *DryRunSystem) SetShell(username, path string) error {
	logger.Infof("[dry-run] would change shell for %s to %s", username, path)
	return nil
}

func (d *DryRunSystem) GrantPrivilegedGroup(username string) error {
	logger.Infof("[dry-run] would grant privileged group to %s", username)
	return nil
}

func (d *DryRunSystem) RevokePrivilegedGroup(username string) error {
	logger.Infof("[dry-run] would revoke privileged group from %s", username)
	return nil
}

func (d *DryRunSystem) SetComment(username, text string) error {
	logger.Infof("[dry-run] would set comment for %s", username)
	return nil
}

func (d *DryRunSystem) SetKeyAuthDirAccess(username string, allowed bool) error {
	logger.Infof("[dry-run] would set key-auth dir access for %s to %v", username, allowed)
	return nil
}
