// Package lifecycle executes the fixed, ordered suspend and restore
// step sequences on a single existing account. Steps are best-effort:
// a failure is recorded and the sequence continues, except where a
// later step's safety depends on an earlier one (the suspend shell
// change), which aborts early and compensates.
package lifecycle

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mordilloSan/go-logger/logger"

	"github.com/mordilloSan/accountctl/accounts"
	"github.com/mordilloSan/accountctl/audit"
	"github.com/mordilloSan/accountctl/common/config"
	"github.com/mordilloSan/accountctl/provision"
	"github.com/mordilloSan/accountctl/secrets"
)

// SecretStore persists the new password generated on restore.
type SecretStore interface {
	StoreGeneratedSecret(username, secret string) error
}

// StepResult is the outcome of one lifecycle step.
type StepResult struct {
	Name    string            `json:"name"`
	Outcome audit.StepOutcome `json:"outcome"`
	Detail  string            `json:"detail,omitempty"`
}

// Result is the outcome of one suspend or restore sequence.
type Result struct {
	Username       string        `json:"username"`
	Action         string        `json:"action"`
	Steps          []StepResult  `json:"steps"`
	StepsCompleted int           `json:"stepsCompleted"`
	StepsTotal     int           `json:"stepsTotal"`
	Succeeded      bool          `json:"succeeded"`
	Elapsed        time.Duration `json:"elapsed"`
}

// RestoreOptions selects the values a restored account goes back to.
// Empty fields fall back to the role's values, then the global
// defaults.
type RestoreOptions struct {
	Shell  string // explicit shell path
	Role   string // role supplying shell/sudo where unset
	Sudo   string // "allow", "deny" or empty (default deny)
	Expiry string // literal expiry selector: date, day count, or "0"
}

// Sequencer runs lifecycle sequences against an identity store.
type Sequencer struct {
	sys      accounts.System
	ctx      *config.PolicyContext
	store    SecretStore // nil when no secret spool is configured
	recorder *audit.Recorder
}

// NewSequencer builds a Sequencer.
func NewSequencer(sys accounts.System, ctx *config.PolicyContext, store SecretStore, recorder *audit.Recorder) *Sequencer {
	return &Sequencer{sys: sys, ctx: ctx, store: store, recorder: recorder}
}

// step is one entry of a lifecycle sequence. compensate is invoked in
// reverse order over already-completed steps when a step flagged
// abortOnFailure fails. bestEffort steps do not count against overall
// success.
type step struct {
	name           string
	run            func() (audit.StepOutcome, string, error)
	compensate     func()
	abortOnFailure bool
	bestEffort     bool
}

var suspendMarker = regexp.MustCompile(`\s*\[SUSPENDED [^\]]*\]`)

// Suspend locks the account down: password lock, nologin shell, sudo
// revocation, past expiry date, key-auth directory shutoff, and a
// comment annotation carrying the reason.
func (s *Sequencer) Suspend(username, reason string) (*Result, error) {
	if _, err := s.precheck(username); err != nil {
		return nil, err
	}

	if sessions := ActiveSessions(username); len(sessions) > 0 {
		logger.Warnf("account %s has active sessions (%s); suspension does not terminate them",
			username, strings.Join(sessions, ", "))
	}

	// Square brackets in the reason would corrupt the marker that
	// restore strips back out of the comment.
	reason = strings.NewReplacer("[", "(", "]", ")").Replace(reason)

	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	steps := []step{
		{
			name: "lock password",
			run: func() (audit.StepOutcome, string, error) {
				if s.sys.PasswordLocked(username) {
					return audit.StepSkipped, "already locked", nil
				}
				return runErr(s.sys.LockPassword(username))
			},
			compensate: func() {
				if err := s.sys.UnlockPassword(username); err != nil {
					logger.Errorf("failed to revert password lock for %s: %v", username, err)
				}
			},
		},
		{
			name: "set nologin shell",
			run: func() (audit.StepOutcome, string, error) {
				return runErr(s.sys.SetShell(username, accounts.NologinShellPath()))
			},
			// A locked-but-still-interactively-shelled account is an
			// unsafe half-state; bail out and revert the lock.
			abortOnFailure: true,
		},
		{
			name: "revoke privileged group",
			run: func() (audit.StepOutcome, string, error) {
				return runErr(s.sys.RevokePrivilegedGroup(username))
			},
		},
		{
			name: "expire account",
			run: func() (audit.StepOutcome, string, error) {
				return runErr(s.sys.SetAccountExpiry(username, yesterday))
			},
		},
		{
			name: "restrict key-auth directory",
			run: func() (audit.StepOutcome, string, error) {
				return runErr(s.sys.SetKeyAuthDirAccess(username, false))
			},
			bestEffort: true,
		},
		{
			name: "annotate comment",
			run: func() (audit.StepOutcome, string, error) {
				comment, err := s.sys.Comment(username)
				if err != nil {
					return audit.StepFailed, err.Error(), err
				}
				marker := fmt.Sprintf(" [SUSPENDED %s: %s]", time.Now().Format("2006-01-02"), reason)
				return runErr(s.sys.SetComment(username, comment+marker))
			},
		},
	}

	return s.execute(username, "suspend", steps), nil
}

// Restore reverses a suspension. The account always gets a fresh
// random password: it must not resume with a secret a non-admin may
// know.
func (s *Sequencer) Restore(username string, opts RestoreOptions) (*Result, error) {
	if _, err := s.precheck(username); err != nil {
		return nil, err
	}

	shell, err := s.restoreShell(opts)
	if err != nil {
		return nil, err
	}
	expiry, err := provision.ResolveExpirySelector(opts.Expiry)
	if err != nil {
		return nil, err
	}

	steps := []step{
		{
			name: "unlock password",
			run: func() (audit.StepOutcome, string, error) {
				if !s.sys.PasswordLocked(username) {
					return audit.StepSkipped, "already unlocked", nil
				}
				return runErr(s.sys.UnlockPassword(username))
			},
		},
		{
			name: "assign new password",
			run: func() (audit.StepOutcome, string, error) {
				secret, err := secrets.GeneratePassword(secrets.MinPasswordLength)
				if err != nil {
					return audit.StepFailed, err.Error(), err
				}
				if err := s.sys.SetPassword(username, secret); err != nil {
					return audit.StepFailed, err.Error(), err
				}
				if s.store == nil {
					err := fmt.Errorf("secret spool unavailable; new password not persisted")
					return audit.StepFailed, err.Error(), err
				}
				if err := s.store.StoreGeneratedSecret(username, secret); err != nil {
					return audit.StepFailed, err.Error(), err
				}
				return audit.StepOK, "", nil
			},
		},
		{
			name: "force password change",
			run: func() (audit.StepOutcome, string, error) {
				return runErr(s.sys.ForcePasswordChange(username))
			},
		},
		{
			name: "restore shell",
			run: func() (audit.StepOutcome, string, error) {
				return runErr(s.sys.SetShell(username, shell))
			},
		},
		{
			name: "restore sudo stance",
			run: func() (audit.StepOutcome, string, error) {
				if s.restoreSudoAllowed(opts) {
					return runErr(s.sys.GrantPrivilegedGroup(username))
				}
				return runErr(s.sys.RevokePrivilegedGroup(username))
			},
		},
		{
			name: "restore account expiry",
			run: func() (audit.StepOutcome, string, error) {
				return runErr(s.sys.SetAccountExpiry(username, expiry))
			},
		},
		{
			name: "restore key-auth directory",
			run: func() (audit.StepOutcome, string, error) {
				return runErr(s.sys.SetKeyAuthDirAccess(username, true))
			},
			bestEffort: true,
		},
		{
			name: "restore comment",
			run: func() (audit.StepOutcome, string, error) {
				comment, err := s.sys.Comment(username)
				if err != nil {
					return audit.StepFailed, err.Error(), err
				}
				restored := suspendMarker.ReplaceAllString(comment, "")
				if restored == comment {
					return audit.StepSkipped, "no suspension marker", nil
				}
				return runErr(s.sys.SetComment(username, restored))
			},
		},
	}

	return s.execute(username, "restore", steps), nil
}

// precheck enforces the sequence preconditions: the account must exist
// and must not be a protected system account.
func (s *Sequencer) precheck(username string) (*accounts.User, error) {
	user, err := s.sys.LookupAccount(username)
	if err != nil {
		return nil, fmt.Errorf("account does not exist: %s", username)
	}
	if user.UID < s.ctx.Defaults.UIDFloor {
		return nil, fmt.Errorf("refusing to modify protected system account %s (uid %d below floor %d)",
			username, user.UID, s.ctx.Defaults.UIDFloor)
	}
	return user, nil
}

func (s *Sequencer) execute(username, action string, steps []step) *Result {
	start := time.Now()
	result := &Result{
		Username:   username,
		Action:     action,
		StepsTotal: len(steps),
		Succeeded:  true,
	}

	aborted := false
	for i, st := range steps {
		outcome, detail, err := st.run()
		result.Steps = append(result.Steps, StepResult{Name: st.name, Outcome: outcome, Detail: detail})

		if outcome != audit.StepFailed {
			result.StepsCompleted++
			continue
		}

		logger.Warnf("%s %s: step %q failed: %v", action, username, st.name, err)
		if !st.bestEffort {
			result.Succeeded = false
		}

		if st.abortOnFailure {
			// Revert the already-completed steps that registered a
			// compensation, most recent first.
			for j := i - 1; j >= 0; j-- {
				if steps[j].compensate != nil && result.Steps[j].Outcome == audit.StepOK {
					steps[j].compensate()
					result.Steps[j].Outcome = audit.StepFailed
					result.Steps[j].Detail = "reverted after " + st.name + " failure"
					result.StepsCompleted--
				}
			}
			aborted = true
			break
		}
	}

	if aborted {
		result.Succeeded = false
	}

	result.Elapsed = time.Since(start)
	s.recorder.Event(action, username, sequenceResult(result),
		fmt.Sprintf("steps %d/%d", result.StepsCompleted, result.StepsTotal))
	return result
}

func (s *Sequencer) restoreShell(opts RestoreOptions) (string, error) {
	if opts.Shell != "" {
		return opts.Shell, nil
	}
	if opts.Role != "" {
		role, ok := s.ctx.Role(opts.Role)
		if !ok {
			return "", fmt.Errorf("unknown role %q", opts.Role)
		}
		if role.Shell != "" {
			return role.Shell, nil
		}
	}
	return s.ctx.Defaults.Shell, nil
}

func (s *Sequencer) restoreSudoAllowed(opts RestoreOptions) bool {
	switch opts.Sudo {
	case "allow":
		return true
	case "deny":
		return false
	}
	if opts.Role != "" {
		if role, ok := s.ctx.Role(opts.Role); ok && role.Sudo == "allow" {
			return true
		}
	}
	return false
}

func sequenceResult(r *Result) string {
	if r.Succeeded {
		return "succeeded"
	}
	return audit.ResultFailed
}

func runErr(err error) (audit.StepOutcome, string, error) {
	if err != nil {
		return audit.StepFailed, err.Error(), err
	}
	return audit.StepOK, "", nil
}
