// Package provision implements the batch provisioning pipeline: format
// ingestion into canonical records, policy resolution against the role
// table, and the dependency-ordered orchestrator that classifies every
// record as created, skipped or failed.
package provision

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// AccountRecord is one requested account. Field names match the JSON
// and YAML batch formats.
type AccountRecord struct {
	Username string `json:"username" yaml:"username"`
	// Comment is the GECOS text, conventionally "Full Name:Department".
	Comment        string `json:"comment" yaml:"comment"`
	RandomPassword bool   `json:"randomPassword" yaml:"randomPassword"`
	// Shell is an explicit path, a role name, or empty.
	Shell string `json:"shell" yaml:"shell"`
	// Sudo is "allow", "deny" or empty.
	Sudo         string   `json:"sudo" yaml:"sudo"`
	PrimaryGroup string   `json:"primaryGroup" yaml:"primaryGroup"`
	Groups       []string `json:"groups" yaml:"groups"`
	// Password aging, in days. Zero means unset; defaults apply.
	PasswordExpiryDays int `json:"passwordExpiryDays" yaml:"passwordExpiryDays"`
	PasswordWarnDays   int `json:"passwordWarnDays" yaml:"passwordWarnDays"`
	PasswordMinDays    int `json:"passwordMinDays" yaml:"passwordMinDays"`
	// Expiry is the account-expiry selector: an ISO date, a day count,
	// "0" for never, or a role name.
	Expiry string `json:"expiry" yaml:"expiry"`
}

// GroupAction says what a GroupRecord asks for.
type GroupAction string

const (
	GroupCreate GroupAction = "create"
	GroupDelete GroupAction = "delete"
)

// GroupRecord is one requested group.
type GroupRecord struct {
	Name    string      `json:"name" yaml:"name"`
	Members []string    `json:"members" yaml:"members"`
	Action  GroupAction `json:"action" yaml:"action"`
}

// ValidationError is a malformed record: never retried, always
// classified failed.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Account names: lowercase letter start, then lowercase letters,
// digits, underscore or hyphen, at most 32 characters, not ending in a
// hyphen.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)

// reservedNames are system accounts a batch must never try to claim.
var reservedNames = []string{
	"root", "daemon", "bin", "sys", "sync", "games", "man", "lp",
	"mail", "news", "uucp", "proxy", "backup", "nobody", "sshd",
	"adm", "shutdown", "halt", "operator",
}

// ValidateUsername checks the account-name grammar and the reserved
// name list.
func ValidateUsername(name string) error {
	if err := validateNameGrammar(name, "username"); err != nil {
		return err
	}
	if slices.Contains(reservedNames, name) {
		return &ValidationError{Reason: fmt.Sprintf("username %q is a reserved system name", name)}
	}
	return nil
}

// ValidateGroupName checks the name grammar only; reserved names are
// legal group targets.
func ValidateGroupName(name string) error {
	return validateNameGrammar(name, "group name")
}

func validateNameGrammar(name, what string) error {
	if name == "" {
		return &ValidationError{Reason: what + " is empty"}
	}
	if !namePattern.MatchString(name) {
		return &ValidationError{Reason: fmt.Sprintf("invalid %s %q: must start with a lowercase letter and contain only [a-z0-9_-], max 32 chars", what, name)}
	}
	if strings.HasSuffix(name, "-") {
		return &ValidationError{Reason: fmt.Sprintf("invalid %s %q: must not end in a hyphen", what, name)}
	}
	return nil
}

// ValidateComment checks the "Full Name:Department" convention: exactly
// one separator, a non-empty name containing an internal space with no
// surrounding whitespace, and a non-empty department token.
func ValidateComment(comment string) error {
	if comment == "" {
		return nil
	}
	parts := strings.Split(comment, ":")
	if len(parts) != 2 {
		return &ValidationError{Reason: fmt.Sprintf("comment %q must be \"Full Name:Department\" with exactly one separator", comment)}
	}
	name, dept := parts[0], parts[1]
	if name == "" || dept == "" {
		return &ValidationError{Reason: fmt.Sprintf("comment %q has an empty name or department", comment)}
	}
	if name != strings.TrimSpace(name) {
		return &ValidationError{Reason: fmt.Sprintf("comment name %q has leading or trailing whitespace", name)}
	}
	if !strings.Contains(name, " ") {
		return &ValidationError{Reason: fmt.Sprintf("comment name %q must contain first and last name", name)}
	}
	return nil
}

// ValidateAccountRecord performs the full untrusted-record check:
// grammar, enumerations and numeric fields. The first violation wins.
func ValidateAccountRecord(rec AccountRecord) error {
	if err := ValidateUsername(rec.Username); err != nil {
		return err
	}
	if err := ValidateComment(rec.Comment); err != nil {
		return err
	}
	switch rec.Sudo {
	case "", "allow", "deny":
	default:
		return &ValidationError{Reason: fmt.Sprintf("invalid sudo selector %q: must be allow or deny", rec.Sudo)}
	}
	if rec.PasswordExpiryDays < 0 || rec.PasswordWarnDays < 0 || rec.PasswordMinDays < 0 {
		return &ValidationError{Reason: "password aging day counts must not be negative"}
	}
	if rec.PrimaryGroup != "" {
		if err := ValidateGroupName(rec.PrimaryGroup); err != nil {
			return err
		}
	}
	for _, g := range rec.Groups {
		if err := ValidateGroupName(g); err != nil {
			return err
		}
	}
	return nil
}
