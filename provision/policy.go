package provision

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mordilloSan/accountctl/accounts"
	"github.com/mordilloSan/accountctl/common/config"
)

// ResolvedPolicy is the effective policy for one account record. It is
// derived per record and never persisted.
type ResolvedPolicy struct {
	Shell string
	// NoLogin marks nologin-class shells so password-policy steps can
	// be skipped downstream.
	NoLogin          bool
	SudoAllowed      bool
	PasswordMaxDays  int
	PasswordMinDays  int
	PasswordWarnDays int
	// ExpiryDate is the resolved calendar date, or empty for "never".
	ExpiryDate string
}

// PolicyError is an unresolvable shell/role/expiry selector. It fails
// the record before any mutation happens.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return e.Reason }

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

const expiryDateLayout = "2006-01-02"

// Resolve computes the effective policy for rec. Precedence per
// attribute, highest first: an explicit value on the record, the named
// role, the global defaults. roleName is the optional batch-level role;
// a record whose shell selector names a role uses that role instead.
func Resolve(rec AccountRecord, roleName string, ctx *config.PolicyContext) (*ResolvedPolicy, error) {
	role, err := effectiveRole(rec, roleName, ctx)
	if err != nil {
		return nil, err
	}

	policy := &ResolvedPolicy{}

	policy.Shell, err = resolveShell(rec.Shell, role, ctx)
	if err != nil {
		return nil, err
	}
	policy.NoLogin = accounts.NonLoginShell(policy.Shell)

	policy.SudoAllowed = resolveSudo(rec.Sudo, role)

	policy.ExpiryDate, err = resolveExpiry(rec.Expiry, role, ctx)
	if err != nil {
		return nil, err
	}

	policy.PasswordMaxDays = pickDays(rec.PasswordExpiryDays, ctx.Defaults.PasswordMaxDays)
	policy.PasswordWarnDays = pickDays(rec.PasswordWarnDays, ctx.Defaults.PasswordWarnDays)
	policy.PasswordMinDays = pickDays(rec.PasswordMinDays, ctx.Defaults.PasswordMinDays)

	return policy, nil
}

// effectiveRole picks the single role supplying defaulted attributes:
// a role-name shell selector on the record wins over the batch role.
func effectiveRole(rec AccountRecord, roleName string, ctx *config.PolicyContext) (*config.Role, error) {
	if rec.Shell != "" && !strings.HasPrefix(rec.Shell, "/") {
		role, ok := ctx.Role(rec.Shell)
		if !ok {
			return nil, &PolicyError{Reason: fmt.Sprintf("unknown shell or role %q", rec.Shell)}
		}
		return &role, nil
	}
	if roleName != "" {
		role, ok := ctx.Role(roleName)
		if !ok {
			return nil, &PolicyError{Reason: fmt.Sprintf("unknown role %q", roleName)}
		}
		return &role, nil
	}
	return nil, nil
}

func resolveShell(selector string, role *config.Role, ctx *config.PolicyContext) (string, error) {
	switch {
	case strings.HasPrefix(selector, "/"):
		// Nologin-class shells are acceptable whether or not the host
		// has them installed yet.
		if accounts.NonLoginShell(selector) {
			return selector, nil
		}
		if err := checkExecutable(selector); err != nil {
			return "", &PolicyError{Reason: fmt.Sprintf("shell %q is not an executable path: %v", selector, err)}
		}
		return selector, nil
	case selector != "":
		// effectiveRole already resolved the role selector; its shell
		// applies if set, otherwise the global default.
		if role != nil && role.Shell != "" {
			return role.Shell, nil
		}
		return ctx.Defaults.Shell, nil
	default:
		if role != nil && role.Shell != "" {
			return role.Shell, nil
		}
		return ctx.Defaults.Shell, nil
	}
}

func resolveSudo(selector string, role *config.Role) bool {
	switch selector {
	case "allow":
		return true
	case "deny":
		return false
	}
	if role != nil && role.Sudo == "allow" {
		return true
	}
	// Global default stance is deny.
	return false
}

// resolveExpiry turns an account-expiry selector into a calendar date,
// or empty for "never". "0" always means never and short-circuits role
// and default lookup.
func resolveExpiry(selector string, role *config.Role, ctx *config.PolicyContext) (string, error) {
	switch {
	case selector == "0":
		return "", nil
	case isoDatePattern.MatchString(selector):
		return selector, nil
	case selector != "" && isInteger(selector):
		n, _ := strconv.Atoi(selector)
		if n < 0 {
			return "", &PolicyError{Reason: fmt.Sprintf("negative expiry day count %q", selector)}
		}
		return daysFromNow(n), nil
	case selector != "":
		// Role-name selector.
		r, ok := ctx.Role(selector)
		if !ok {
			return "", &PolicyError{Reason: fmt.Sprintf("unknown expiry role %q", selector)}
		}
		if r.ExpiryDays < 0 {
			return "", nil
		}
		return expiryFromDays(r.ExpiryDays)
	default:
		if role != nil && role.ExpiryDays >= 0 {
			return expiryFromDays(role.ExpiryDays)
		}
		return resolveDefaultExpiry(ctx.Defaults.ExpirySelector)
	}
}

// ResolveExpirySelector resolves a literal expiry selector (date, day
// count, or "0") with no role lookup. Used by account restore.
func ResolveExpirySelector(selector string) (string, error) {
	switch {
	case selector == "" || selector == "0":
		return "", nil
	case isoDatePattern.MatchString(selector):
		return selector, nil
	case isInteger(selector):
		n, _ := strconv.Atoi(selector)
		if n < 0 {
			return "", &PolicyError{Reason: fmt.Sprintf("negative expiry day count %q", selector)}
		}
		return daysFromNow(n), nil
	default:
		return "", &PolicyError{Reason: fmt.Sprintf("invalid expiry selector %q", selector)}
	}
}

func resolveDefaultExpiry(selector string) (string, error) {
	date, err := ResolveExpirySelector(selector)
	if err != nil {
		return "", &PolicyError{Reason: fmt.Sprintf("invalid configured expiry default %q", selector)}
	}
	return date, nil
}

func expiryFromDays(n int) (string, error) {
	if n == 0 {
		return "", nil
	}
	return daysFromNow(n), nil
}

func daysFromNow(n int) string {
	return time.Now().AddDate(0, 0, n).Format(expiryDateLayout)
}

func isInteger(s string) bool {
	if s == "" {
		return false
	}
	start := 0
	if s[0] == '-' || s[0] == '+' {
		start = 1
	}
	if start == len(s) {
		return false
	}
	for _, c := range s[start:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("is a directory")
	}
	if info.Mode()&0o111 == 0 {
		return fmt.Errorf("not executable")
	}
	return nil
}

func pickDays(recordValue, defaultValue int) int {
	if recordValue > 0 {
		return recordValue
	}
	return defaultValue
}
