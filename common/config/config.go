// Package config loads the accountctl configuration file: global
// provisioning defaults plus the role table. The loaded PolicyContext is
// passed explicitly to policy resolution and the lifecycle sequencer so
// that both stay pure functions of (record, config).
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/ini.v1"
)

// DefaultPath is where the config file lives on a managed host.
const DefaultPath = "/etc/accountctl/config.ini"

const roleSectionPrefix = "role:"

// Defaults holds the global fallback values applied when neither the
// record nor a role supplies one.
type Defaults struct {
	Shell            string
	DefaultPassword  string
	PrivilegedGroup  string
	PasswordMaxDays  int
	PasswordMinDays  int
	PasswordWarnDays int
	// UIDFloor is the lowest UID considered a regular (non-system)
	// account. Lifecycle operations refuse to touch anything below it.
	UIDFloor int
	// ExpirySelector is the global account-expiry default: "0" for
	// never, an ISO date, or a day count.
	ExpirySelector string
	// SecretSpoolDir is where generated passwords are persisted for
	// operator retrieval.
	SecretSpoolDir string
	// SecretRecipient is the age public key the spooled records are
	// encrypted to.
	SecretRecipient string
}

// Role is a named bundle of default policy values. An empty field means
// the role has no opinion and resolution falls through to Defaults.
type Role struct {
	Name       string
	Shell      string
	Sudo       string // "allow", "deny" or ""
	ExpiryDays int    // -1 = unset
}

// PolicyContext is everything policy resolution needs: the role table
// and the global defaults.
type PolicyContext struct {
	Defaults Defaults
	Roles    map[string]Role
}

// NewContext returns a PolicyContext with built-in defaults and an
// empty role table.
func NewContext() *PolicyContext {
	return &PolicyContext{
		Defaults: Defaults{
			Shell:            "/bin/bash",
			DefaultPassword:  "ChangeMe.1st!",
			PrivilegedGroup:  "sudo",
			PasswordMaxDays:  99999,
			PasswordMinDays:  0,
			PasswordWarnDays: 7,
			UIDFloor:         1000,
			ExpirySelector:   "0",
			SecretSpoolDir:   "/var/lib/accountctl/secrets",
		},
		Roles: map[string]Role{},
	}
}

// Role looks up a role by name.
func (c *PolicyContext) Role(name string) (Role, bool) {
	r, ok := c.Roles[name]
	return r, ok
}

// Load reads the config file at path and merges it over the built-in
// defaults. A missing file is not an error; the built-ins apply.
func Load(path string) (*PolicyContext, error) {
	ctx := NewContext()

	if path == "" {
		path = DefaultPath
	}

	iniFile, err := ini.LoadSources(ini.LoadOptions{
		SkipUnrecognizableLines: true,
	}, path)
	if err != nil {
		if os.IsNotExist(err) {
			return ctx, nil
		}
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	d := &ctx.Defaults
	if sec := iniFile.Section("defaults"); sec != nil {
		d.Shell = sec.Key("shell").MustString(d.Shell)
		d.DefaultPassword = sec.Key("default_password").MustString(d.DefaultPassword)
		d.PrivilegedGroup = sec.Key("privileged_group").MustString(d.PrivilegedGroup)
		d.PasswordMaxDays = sec.Key("password_max_days").MustInt(d.PasswordMaxDays)
		d.PasswordMinDays = sec.Key("password_min_days").MustInt(d.PasswordMinDays)
		d.PasswordWarnDays = sec.Key("password_warn_days").MustInt(d.PasswordWarnDays)
		d.UIDFloor = sec.Key("uid_floor").MustInt(d.UIDFloor)
		d.ExpirySelector = sec.Key("expiry").MustString(d.ExpirySelector)
	}
	if sec := iniFile.Section("secrets"); sec != nil {
		d.SecretSpoolDir = sec.Key("spool_dir").MustString(d.SecretSpoolDir)
		d.SecretRecipient = sec.Key("recipient").MustString(d.SecretRecipient)
	}

	for _, sec := range iniFile.Sections() {
		name, ok := strings.CutPrefix(sec.Name(), roleSectionPrefix)
		if !ok || name == "" {
			continue
		}
		ctx.Roles[name] = Role{
			Name:       name,
			Shell:      sec.Key("shell").String(),
			Sudo:       strings.ToLower(sec.Key("sudo").String()),
			ExpiryDays: sec.Key("expiry_days").MustInt(-1),
		}
	}

	return ctx, nil
}

// WriteDefault writes a commented starter config to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists: %s", path)
	}

	const template = `# accountctl configuration

[defaults]
shell = /bin/bash
default_password = ChangeMe.1st!
privileged_group = sudo
password_max_days = 99999
password_min_days = 0
password_warn_days = 7
uid_floor = 1000
# Account expiry default: 0 = never, an ISO date, or a day count.
expiry = 0

[secrets]
spool_dir = /var/lib/accountctl/secrets
# age public key generated passwords are encrypted to. Without it,
# random-password provisioning and account restore cannot spool secrets.
# recipient = age1...

# Roles bundle default policy values. A record that names a role picks
# up the role's values for any field it did not set explicitly.
#
# [role:developer]
# shell = /bin/bash
# sudo = deny
# expiry_days = 365
`
	if err := os.WriteFile(path, []byte(template), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
