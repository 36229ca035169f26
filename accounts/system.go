package accounts

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mordilloSan/go-logger/logger"
)

// System is the set of identity-store primitives the provisioning
// orchestrator and the lifecycle sequencer run against. The real
// implementation shells out to the shadow-utils tools; tests and dry
// runs substitute their own.
type System interface {
	AccountExists(username string) bool
	GroupExists(name string) bool
	LookupAccount(username string) (*User, error)

	CreateAccount(req CreateAccountRequest) error
	CreateGroup(name string) error
	DeleteGroup(name string) error
	AddGroupMember(group, username string) error

	SetPassword(username, secret string) error
	SetPasswordAging(username string, maxDays, minDays, warnDays int) error
	ForcePasswordChange(username string) error
	SetAccountExpiry(username, date string) error // empty date clears expiry

	LockPassword(username string) error
	UnlockPassword(username string) error
	PasswordLocked(username string) bool

	SetShell(username, path string) error
	Shell(username string) (string, error)

	GrantPrivilegedGroup(username string) error
	RevokePrivilegedGroup(username string) error
	HasPrivilegedGroup(username string) bool

	SetComment(username, text string) error
	Comment(username string) (string, error)

	SetKeyAuthDirAccess(username string, allowed bool) error
}

// LocalSystem implements System against the host's identity store using
// useradd/usermod/groupadd/chage/passwd/gpasswd.
type LocalSystem struct {
	// PrivilegedGroup is the group conferring sudo rights (from config).
	PrivilegedGroup string
}

// NewLocalSystem returns a System for the local host.
func NewLocalSystem(privilegedGroup string) *LocalSystem {
	return &LocalSystem{PrivilegedGroup: privilegedGroup}
}

func (s *LocalSystem) AccountExists(username string) bool {
	return UserExists(username)
}

func (s *LocalSystem) GroupExists(name string) bool {
	_, err := LookupGroup(name)
	return err == nil
}

func (s *LocalSystem) LookupAccount(username string) (*User, error) {
	return LookupUser(username)
}

// CreateAccount creates a new system user with the resolved shell,
// groups and expiry date.
func (s *LocalSystem) CreateAccount(req CreateAccountRequest) error {
	if req.Username == "" {
		return fmt.Errorf("username is required")
	}

	args := []string{"-m"}

	if req.Comment != "" {
		args = append(args, "-c", req.Comment)
	}
	if req.Shell != "" {
		args = append(args, "-s", req.Shell)
	}
	if req.PrimaryGroup != "" {
		args = append(args, "-g", req.PrimaryGroup)
	}
	if len(req.SecondaryGroups) > 0 {
		args = append(args, "-G", strings.Join(req.SecondaryGroups, ","))
	}
	if req.ExpiryDate != "" {
		args = append(args, "-e", req.ExpiryDate)
	}

	args = append(args, req.Username)

	cmd := exec.Command("useradd", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to create user: %s", strings.TrimSpace(string(output)))
	}

	logger.Infof("Created user: %s", req.Username)
	return nil
}

// CreateGroup creates a system group. Creating a group that already
// exists is a no-op success.
func (s *LocalSystem) CreateGroup(name string) error {
	if name == "" {
		return fmt.Errorf("group name is required")
	}
	if s.GroupExists(name) {
		return nil
	}

	cmd := exec.Command("groupadd", name)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to create group: %s", strings.TrimSpace(string(output)))
	}

	logger.Infof("Created group: %s", name)
	return nil
}

// DeleteGroup deletes a system group.
func (s *LocalSystem) DeleteGroup(name string) error {
	if name == "" {
		return fmt.Errorf("group name is required")
	}
	if name == "root" {
		return fmt.Errorf("cannot delete root group")
	}

	cmd := exec.Command("groupdel", name)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to delete group: %s", strings.TrimSpace(string(output)))
	}

	logger.Infof("Deleted group: %s", name)
	return nil
}

func (s *LocalSystem) AddGroupMember(group, username string) error {
	cmd := exec.Command("gpasswd", "-a", username, group)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to add user %s to group %s: %s", username, group, strings.TrimSpace(string(output)))
	}
	return nil
}

// SetPassword sets a user's password using chpasswd.
func (s *LocalSystem) SetPassword(username, secret string) error {
	cmd := exec.Command("chpasswd")
	cmd.Stdin = strings.NewReader(fmt.Sprintf("%s:%s", username, secret))
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("chpasswd failed: %s", strings.TrimSpace(string(output)))
	}
	return nil
}

// SetPasswordAging applies max/min/warning day counts via chage.
func (s *LocalSystem) SetPasswordAging(username string, maxDays, minDays, warnDays int) error {
	args := []string{
		"-M", strconv.Itoa(maxDays),
		"-m", strconv.Itoa(minDays),
		"-W", strconv.Itoa(warnDays),
		username,
	}
	cmd := exec.Command("chage", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to set password aging: %s", strings.TrimSpace(string(output)))
	}
	return nil
}

// ForcePasswordChange expires the current password so the user must
// pick a new one at next login.
func (s *LocalSystem) ForcePasswordChange(username string) error {
	cmd := exec.Command("chage", "-d", "0", username)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to force password change: %s", strings.TrimSpace(string(output)))
	}
	return nil
}

// SetAccountExpiry sets the account expiry date; an empty date clears
// it (account never expires).
func (s *LocalSystem) SetAccountExpiry(username, date string) error {
	cmd := exec.Command("usermod", "-e", date, username)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to set account expiry: %s", strings.TrimSpace(string(output)))
	}
	return nil
}

// LockPassword locks a user account's password.
func (s *LocalSystem) LockPassword(username string) error {
	cmd := exec.Command("passwd", "-l", username)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to lock user: %s", strings.TrimSpace(string(output)))
	}

	logger.Infof("Locked user: %s", username)
	return nil
}

// UnlockPassword unlocks a user account's password.
func (s *LocalSystem) UnlockPassword(username string) error {
	cmd := exec.Command("passwd", "-u", username)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to unlock user: %s", strings.TrimSpace(string(output)))
	}

	logger.Infof("Unlocked user: %s", username)
	return nil
}

func (s *LocalSystem) PasswordLocked(username string) bool {
	return getLockedUsers()[username]
}

func (s *LocalSystem) SetShell(username, path string) error {
	cmd := exec.Command("usermod", "-s", path, username)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to change shell: %s", strings.TrimSpace(string(output)))
	}
	return nil
}

func (s *LocalSystem) Shell(username string) (string, error) {
	u, err := LookupUser(username)
	if err != nil {
		return "", err
	}
	return u.Shell, nil
}

func (s *LocalSystem) GrantPrivilegedGroup(username string) error {
	if GroupHasMember(s.PrivilegedGroup, username) {
		return nil
	}
	return s.AddGroupMember(s.PrivilegedGroup, username)
}

func (s *LocalSystem) RevokePrivilegedGroup(username string) error {
	if !GroupHasMember(s.PrivilegedGroup, username) {
		return nil
	}
	cmd := exec.Command("gpasswd", "-d", username, s.PrivilegedGroup)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to remove user %s from group %s: %s", username, s.PrivilegedGroup, strings.TrimSpace(string(output)))
	}
	return nil
}

func (s *LocalSystem) HasPrivilegedGroup(username string) bool {
	return GroupHasMember(s.PrivilegedGroup, username)
}

func (s *LocalSystem) SetComment(username, text string) error {
	cmd := exec.Command("usermod", "-c", text, username)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to set comment: %s", strings.TrimSpace(string(output)))
	}
	return nil
}

func (s *LocalSystem) Comment(username string) (string, error) {
	u, err := LookupUser(username)
	if err != nil {
		return "", err
	}
	return u.Gecos, nil
}

// SetKeyAuthDirAccess toggles permissions on the account's ~/.ssh
// directory. A missing directory is a no-op success.
func (s *LocalSystem) SetKeyAuthDirAccess(username string, allowed bool) error {
	u, err := LookupUser(username)
	if err != nil {
		return err
	}

	dir := filepath.Join(u.HomeDir, ".ssh")
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil
	}

	mode := os.FileMode(0o000)
	if allowed {
		mode = 0o700
	}
	if err := os.Chmod(dir, mode); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", dir, err)
	}
	return nil
}
