package accounts

import (
	"fmt"
	"strings"
)

// MemoryAccount is one account held by MemorySystem.
type MemoryAccount struct {
	User
	Password   string
	MustChange bool
	AgingMax   int
	AgingMin   int
	AgingWarn  int
	Expiry     string
	KeyAuthOK  bool
}

// MemorySystem is an in-memory System used by tests. Mutator calls are
// recorded in Calls; FailOn injects failures by method name, optionally
// scoped to one argument ("CreateGroup:ops").
type MemorySystem struct {
	PrivilegedGroup string
	Users           map[string]*MemoryAccount
	Groups          map[string]*Group
	Calls           []string
	FailOn          map[string]error
}

// NewMemorySystem returns an empty MemorySystem with the given
// privileged group pre-created.
func NewMemorySystem(privilegedGroup string) *MemorySystem {
	m := &MemorySystem{
		PrivilegedGroup: privilegedGroup,
		Users:           map[string]*MemoryAccount{},
		Groups:          map[string]*Group{},
		FailOn:          map[string]error{},
	}
	m.Groups[privilegedGroup] = &Group{Name: privilegedGroup, GID: 27}
	return m
}

// AddUser seeds an existing account.
func (m *MemorySystem) AddUser(username string, uid int, shell string) *MemoryAccount {
	acct := &MemoryAccount{
		User: User{Username: username, UID: uid, Shell: shell, HomeDir: "/home/" + username},
	}
	m.Users[username] = acct
	return acct
}

func (m *MemorySystem) fail(method string, args ...string) error {
	if err, ok := m.FailOn[method+":"+strings.Join(args, ",")]; ok {
		return err
	}
	if err, ok := m.FailOn[method]; ok {
		return err
	}
	return nil
}

func (m *MemorySystem) record(method string, args ...string) {
	m.Calls = append(m.Calls, method+"("+strings.Join(args, ",")+")")
}

// MutatorCalls returns the names of all mutating calls made so far.
func (m *MemorySystem) MutatorCalls() []string {
	return m.Calls
}

func (m *MemorySystem) AccountExists(username string) bool {
	_, ok := m.Users[username]
	return ok
}

func (m *MemorySystem) GroupExists(name string) bool {
	_, ok := m.Groups[name]
	return ok
}

func (m *MemorySystem) LookupAccount(username string) (*User, error) {
	acct, ok := m.Users[username]
	if !ok {
		return nil, fmt.Errorf("user not found: %s", username)
	}
	u := acct.User
	return &u, nil
}

func (m *MemorySystem) CreateAccount(req CreateAccountRequest) error {
	m.record("CreateAccount", req.Username)
	if err := m.fail("CreateAccount", req.Username); err != nil {
		return err
	}
	if m.AccountExists(req.Username) {
		return fmt.Errorf("useradd: user '%s' already exists", req.Username)
	}
	m.Users[req.Username] = &MemoryAccount{
		User: User{
			Username:     req.Username,
			UID:          1000 + len(m.Users),
			Gecos:        req.Comment,
			Shell:        req.Shell,
			HomeDir:      "/home/" + req.Username,
			PrimaryGroup: req.PrimaryGroup,
			Groups:       append([]string(nil), req.SecondaryGroups...),
		},
		Expiry:    req.ExpiryDate,
		KeyAuthOK: true,
	}
	return nil
}

func (m *MemorySystem) CreateGroup(name string) error {
	m.record("CreateGroup", name)
	if err := m.fail("CreateGroup", name); err != nil {
		return err
	}
	if m.GroupExists(name) {
		return nil
	}
	m.Groups[name] = &Group{Name: name, GID: 1000 + len(m.Groups)}
	return nil
}

func (m *MemorySystem) DeleteGroup(name string) error {
	m.record("DeleteGroup", name)
	if err := m.fail("DeleteGroup", name); err != nil {
		return err
	}
	if !m.GroupExists(name) {
		return fmt.Errorf("groupdel: group '%s' does not exist", name)
	}
	delete(m.Groups, name)
	return nil
}

func (m *MemorySystem) AddGroupMember(group, username string) error {
	m.record("AddGroupMember", group, username)
	if err := m.fail("AddGroupMember", group); err != nil {
		return err
	}
	g, ok := m.Groups[group]
	if !ok {
		return fmt.Errorf("group not found: %s", group)
	}
	g.Members = append(g.Members, username)
	return nil
}

func (m *MemorySystem) SetPassword(username, secret string) error {
	m.record("SetPassword", username)
	if err := m.fail("SetPassword", username); err != nil {
		return err
	}
	acct, ok := m.Users[username]
	if !ok {
		return fmt.Errorf("user not found: %s", username)
	}
	acct.Password = secret
	acct.IsLocked = false
	return nil
}

func (m *MemorySystem) SetPasswordAging(username string, maxDays, minDays, warnDays int) error {
	m.record("SetPasswordAging", username)
	if err := m.fail("SetPasswordAging", username); err != nil {
		return err
	}
	acct, ok := m.Users[username]
	if !ok {
		return fmt.Errorf("user not found: %s", username)
	}
	acct.AgingMax, acct.AgingMin, acct.AgingWarn = maxDays, minDays, warnDays
	return nil
}

func (m *MemorySystem) ForcePasswordChange(username string) error {
	m.record("ForcePasswordChange", username)
	if err := m.fail("ForcePasswordChange", username); err != nil {
		return err
	}
	acct, ok := m.Users[username]
	if !ok {
		return fmt.Errorf("user not found: %s", username)
	}
	acct.MustChange = true
	return nil
}

func (m *MemorySystem) SetAccountExpiry(username, date string) error {
	m.record("SetAccountExpiry", username, date)
	if err := m.fail("SetAccountExpiry", username); err != nil {
		return err
	}
	acct, ok := m.Users[username]
	if !ok {
		return fmt.Errorf("user not found: %s", username)
	}
	acct.Expiry = date
	return nil
}

func (m *MemorySystem) LockPassword(username string) error {
	m.record("LockPassword", username)
	if err := m.fail("LockPassword", username); err != nil {
		return err
	}
	acct, ok := m.Users[username]
	if !ok {
		return fmt.Errorf("user not found: %s", username)
	}
	acct.IsLocked = true
	return nil
}

func (m *MemorySystem) UnlockPassword(username string) error {
	m.record("UnlockPassword", username)
	if err := m.fail("UnlockPassword", username); err != nil {
		return err
	}
	acct, ok := m.Users[username]
	if !ok {
		return fmt.Errorf("user not found: %s", username)
	}
	acct.IsLocked = false
	return nil
}

func (m *MemorySystem) PasswordLocked(username string) bool {
	acct, ok := m.Users[username]
	return ok && acct.IsLocked
}

func (m *MemorySystem) SetShell(username, path string) error {
	m.record("SetShell", username, path)
	if err := m.fail("SetShell", username); err != nil {
		return err
	}
	acct, ok := m.Users[username]
	if !ok {
		return fmt.Errorf("user not found: %s", username)
	}
	acct.User.Shell = path
	return nil
}

func (m *MemorySystem) Shell(username string) (string, error) {
	acct, ok := m.Users[username]
	if !ok {
		return "", fmt.Errorf("user not found: %s", username)
	}
	return acct.User.Shell, nil
}

func (m *MemorySystem) GrantPrivilegedGroup(username string) error {
	m.record("GrantPrivilegedGroup", username)
	if err := m.fail("GrantPrivilegedGroup", username); err != nil {
		return err
	}
	if m.HasPrivilegedGroup(username) {
		return nil
	}
	return m.AddGroupMember(m.PrivilegedGroup, username)
}

func (m *MemorySystem) RevokePrivilegedGroup(username string) error {
	m.record("RevokePrivilegedGroup", username)
	if err := m.fail("RevokePrivilegedGroup", username); err != nil {
		return err
	}
	g, ok := m.Groups[m.PrivilegedGroup]
	if !ok {
		return nil
	}
	members := g.Members[:0]
	for _, member := range g.Members {
		if member != username {
			members = append(members, member)
		}
	}
	g.Members = members
	return nil
}

func (m *MemorySystem) HasPrivilegedGroup(username string) bool {
	g, ok := m.Groups[m.PrivilegedGroup]
	if !ok {
		return false
	}
	for _, member := range g.Members {
		if member == username {
			return true
		}
	}
	return false
}

func (m *MemorySystem) SetComment(username, text string) error {
	m.record("SetComment", username)
	if err := m.fail("SetComment", username); err != nil {
		return err
	}
	acct, ok := m.Users[username]
	if !ok {
		return fmt.Errorf("user not found: %s", username)
	}
	acct.Gecos = text
	return nil
}

func (m *MemorySystem) Comment(username string) (string, error) {
	acct, ok := m.Users[username]
	if !ok {
		return "", fmt.Errorf("user not found: %s", username)
	}
	return acct.Gecos, nil
}

func (m *MemorySystem) SetKeyAuthDirAccess(username string, allowed bool) error {
	m.record("SetKeyAuthDirAccess", username, fmt.Sprintf("%v", allowed))
	if err := m.fail("SetKeyAuthDirAccess", username); err != nil {
		return err
	}
	acct, ok := m.Users[username]
	if !ok {
		return fmt.Errorf("user not found: %s", username)
	}
	acct.KeyAuthOK = allowed
	return nil
}
