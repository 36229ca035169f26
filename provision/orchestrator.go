package provision

import (
	"fmt"
	"strings"
	"time"

	"github.com/mordilloSan/go-logger/logger"

	"github.com/mordilloSan/accountctl/accounts"
	"github.com/mordilloSan/accountctl/audit"
	"github.com/mordilloSan/accountctl/common/config"
	"github.com/mordilloSan/accountctl/secrets"
)

// SecretStore persists generated passwords for operator retrieval.
type SecretStore interface {
	StoreGeneratedSecret(username, secret string) error
}

// RecordResult is the classification of one account record.
type RecordResult struct {
	Record  AccountRecord `json:"record"`
	Outcome audit.Outcome `json:"outcome"`
	Reason  string        `json:"reason,omitempty"`
	// Shell and Groups record the resolved values for audit.
	Shell  string   `json:"shell,omitempty"`
	Groups []string `json:"groups,omitempty"`
	// Warnings are partial-success failures: the account exists but a
	// post-creation step (aging, sudo, secret spool) did not stick.
	Warnings []string `json:"warnings,omitempty"`
}

// GroupResult is the classification of one group record.
type GroupResult struct {
	Record   GroupRecord   `json:"record"`
	Outcome  audit.Outcome `json:"outcome"`
	Reason   string        `json:"reason,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
}

// BatchSummary is the aggregate result of one provisioning run. The
// three buckets partition the input in order.
type BatchSummary struct {
	Created        []RecordResult `json:"created"`
	Skipped        []RecordResult `json:"skipped"`
	Failed         []RecordResult `json:"failed"`
	TotalProcessed int            `json:"totalProcessed"`
	Elapsed        time.Duration  `json:"elapsed"`
}

// GroupSummary is the aggregate result of one group batch. Applied
// covers both successful creations and deletions.
type GroupSummary struct {
	Applied        []GroupResult `json:"applied"`
	Skipped        []GroupResult `json:"skipped"`
	Failed         []GroupResult `json:"failed"`
	TotalProcessed int           `json:"totalProcessed"`
	Elapsed        time.Duration `json:"elapsed"`
}

// Orchestrator drives one batch run end-to-end: policy resolution,
// group dependencies, account creation and outcome classification.
// Records are processed strictly in input order with no parallelism.
type Orchestrator struct {
	sys      accounts.System
	ctx      *config.PolicyContext
	store    SecretStore // nil when no secret spool is configured
	recorder *audit.Recorder
	// Role is the optional batch-level role applied to records that do
	// not name one themselves.
	Role string
}

// NewOrchestrator builds an Orchestrator. store may be nil; generated
// secrets then surface as per-record warnings instead of being spooled.
func NewOrchestrator(sys accounts.System, ctx *config.PolicyContext, store SecretStore, recorder *audit.Recorder) *Orchestrator {
	return &Orchestrator{sys: sys, ctx: ctx, store: store, recorder: recorder}
}

// ProvisionValidated runs a trusted batch: records produced by the
// ingestion pass skip per-record re-validation. One record's failure
// never aborts the run.
func (o *Orchestrator) ProvisionValidated(records []AccountRecord) *BatchSummary {
	start := time.Now()
	summary := &BatchSummary{}

	for _, rec := range records {
		result := o.provisionOne(rec, true)
		summary.add(result)
		o.recorder.Event("provision", rec.Username, string(result.Outcome), result.Reason)
	}

	summary.TotalProcessed = len(records)
	summary.Elapsed = time.Since(start)
	return summary
}

// ProvisionBatch runs one full ingested batch: validated records flow
// through the trusted path; records rejected at ingestion classify
// failed without any system call, keeping the three buckets a
// partition of the whole input.
func (o *Orchestrator) ProvisionBatch(records []AccountRecord, rejected []RejectedRecord) *BatchSummary {
	summary := o.ProvisionValidated(records)
	for _, rej := range rejected {
		result := RecordResult{
			Record:  rej.Record,
			Outcome: audit.OutcomeFailed,
			Reason:  rej.Reason,
		}
		summary.Failed = append(summary.Failed, result)
		summary.TotalProcessed++
		o.recorder.Event("provision", rej.Record.Username, string(result.Outcome), result.Reason)
	}
	return summary
}

// ProvisionRaw provisions a single untrusted record, validating its
// syntax and semantics before anything else runs.
func (o *Orchestrator) ProvisionRaw(rec AccountRecord) RecordResult {
	result := o.provisionOne(rec, false)
	o.recorder.Event("provision", rec.Username, string(result.Outcome), result.Reason)
	return result
}

func (s *BatchSummary) add(r RecordResult) {
	switch r.Outcome {
	case audit.OutcomeCreated:
		s.Created = append(s.Created, r)
	case audit.OutcomeSkipped:
		s.Skipped = append(s.Skipped, r)
	default:
		s.Failed = append(s.Failed, r)
	}
}

func (o *Orchestrator) provisionOne(rec AccountRecord, trusted bool) RecordResult {
	result := RecordResult{Record: rec}

	if !trusted {
		if err := ValidateAccountRecord(rec); err != nil {
			result.Outcome = audit.OutcomeFailed
			result.Reason = err.Error()
			return result
		}
	}

	// Existing accounts are never mutated by the provisioning path.
	if o.sys.AccountExists(rec.Username) {
		result.Outcome = audit.OutcomeSkipped
		result.Reason = "already exists"
		return result
	}

	policy, err := Resolve(rec, o.Role, o.ctx)
	if err != nil {
		result.Outcome = audit.OutcomeFailed
		result.Reason = err.Error()
		return result
	}
	result.Shell = policy.Shell

	if rec.PrimaryGroup != "" {
		if err := o.ensureGroup(rec.PrimaryGroup); err != nil {
			result.Outcome = audit.OutcomeFailed
			result.Reason = fmt.Sprintf("required group %s: %v", rec.PrimaryGroup, err)
			return result
		}
	}

	var missingGroups []string
	for _, group := range rec.Groups {
		if err := o.ensureGroup(group); err != nil {
			logger.Warnf("failed to create group %s for %s: %v", group, rec.Username, err)
			missingGroups = append(missingGroups, group)
		}
	}
	if len(missingGroups) > 0 {
		result.Outcome = audit.OutcomeFailed
		result.Reason = fmt.Sprintf("could not create groups: %s", strings.Join(missingGroups, ", "))
		return result
	}

	groups := rec.Groups
	err = o.sys.CreateAccount(accounts.CreateAccountRequest{
		Username:        rec.Username,
		Comment:         rec.Comment,
		Shell:           policy.Shell,
		PrimaryGroup:    rec.PrimaryGroup,
		SecondaryGroups: groups,
		ExpiryDate:      policy.ExpiryDate,
	})
	if err != nil {
		result.Outcome = audit.OutcomeFailed
		result.Reason = err.Error()
		return result
	}
	result.Groups = groups

	o.applyPassword(rec, policy, &result)

	if policy.SudoAllowed {
		if err := o.sys.GrantPrivilegedGroup(rec.Username); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("grant sudo: %v", err))
		}
	} else {
		if err := o.sys.RevokePrivilegedGroup(rec.Username); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("revoke sudo: %v", err))
		}
	}

	result.Outcome = audit.OutcomeCreated
	return result
}

// applyPassword sets the initial secret and, for interactive shells,
// the aging policy. Failures here are partial successes: the account
// exists and stays classified created, with the failure surfaced.
func (o *Orchestrator) applyPassword(rec AccountRecord, policy *ResolvedPolicy, result *RecordResult) {
	secret := o.ctx.Defaults.DefaultPassword
	generated := false
	if rec.RandomPassword {
		var err error
		secret, err = secrets.GeneratePassword(secrets.MinPasswordLength)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("generate password: %v", err))
			return
		}
		generated = true
	}

	if err := o.sys.SetPassword(rec.Username, secret); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("set password: %v", err))
		return
	}

	// The global default secret is not a secret; only generated ones
	// get spooled.
	if generated {
		if o.store == nil {
			result.Warnings = append(result.Warnings, "secret spool unavailable; generated password not persisted")
		} else if err := o.store.StoreGeneratedSecret(rec.Username, secret); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("spool secret: %v", err))
		}
	}

	if policy.NoLogin {
		return
	}

	if err := o.sys.ForcePasswordChange(rec.Username); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("force password change: %v", err))
	}
	if err := o.sys.SetPasswordAging(rec.Username, policy.PasswordMaxDays, policy.PasswordMinDays, policy.PasswordWarnDays); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("password aging: %v", err))
	}
}

// ensureGroup creates a group dependency if it is absent. Group
// creation is idempotent; an existing group is success.
func (o *Orchestrator) ensureGroup(name string) error {
	if o.sys.GroupExists(name) {
		return nil
	}
	return o.sys.CreateGroup(name)
}

// ProvisionGroups runs a group batch: create requests are idempotent
// (an existing group classifies skipped), delete requests skip missing
// groups.
func (o *Orchestrator) ProvisionGroups(records []GroupRecord) *GroupSummary {
	start := time.Now()
	summary := &GroupSummary{}

	for _, rec := range records {
		if rec.Action == "" {
			rec.Action = GroupCreate
		}
		result := o.provisionGroup(rec)
		switch result.Outcome {
		case audit.OutcomeCreated:
			summary.Applied = append(summary.Applied, result)
		case audit.OutcomeSkipped:
			summary.Skipped = append(summary.Skipped, result)
		default:
			summary.Failed = append(summary.Failed, result)
		}
		o.recorder.Event("group-"+string(rec.Action), rec.Name, string(result.Outcome), result.Reason)
	}

	summary.TotalProcessed = len(records)
	summary.Elapsed = time.Since(start)
	return summary
}

func (o *Orchestrator) provisionGroup(rec GroupRecord) GroupResult {
	result := GroupResult{Record: rec}

	if err := ValidateGroupName(rec.Name); err != nil {
		result.Outcome = audit.OutcomeFailed
		result.Reason = err.Error()
		return result
	}

	switch rec.Action {
	case GroupCreate:
		if o.sys.GroupExists(rec.Name) {
			result.Outcome = audit.OutcomeSkipped
			result.Reason = "already exists"
			return result
		}
		if err := o.sys.CreateGroup(rec.Name); err != nil {
			result.Outcome = audit.OutcomeFailed
			result.Reason = err.Error()
			return result
		}
		for _, member := range rec.Members {
			if err := o.sys.AddGroupMember(rec.Name, member); err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("add member %s: %v", member, err))
			}
		}
		result.Outcome = audit.OutcomeCreated
		return result

	case GroupDelete:
		if !o.sys.GroupExists(rec.Name) {
			result.Outcome = audit.OutcomeSkipped
			result.Reason = "does not exist"
			return result
		}
		if err := o.sys.DeleteGroup(rec.Name); err != nil {
			result.Outcome = audit.OutcomeFailed
			result.Reason = err.Error()
			return result
		}
		result.Outcome = audit.OutcomeCreated
		result.Reason = "deleted"
		return result

	default:
		result.Outcome = audit.OutcomeFailed
		result.Reason = fmt.Sprintf("unknown group action %q", rec.Action)
		return result
	}
}
