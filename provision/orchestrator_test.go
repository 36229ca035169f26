package provision

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mordilloSan/accountctl/accounts"
	"github.com/mordilloSan/accountctl/audit"
)

type recordingStore struct {
	stored map[string]string
	err    error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{stored: map[string]string{}}
}

func (s *recordingStore) StoreGeneratedSecret(username, secret string) error {
	if s.err != nil {
		return s.err
	}
	s.stored[username] = secret
	return nil
}

func newTestOrchestrator(sys accounts.System) (*Orchestrator, *recordingStore) {
	store := newRecordingStore()
	return NewOrchestrator(sys, testContext(), store, audit.NewRecorder()), store
}

func TestProvisionBatchPartitionsInput(t *testing.T) {
	sys := accounts.NewMemorySystem("sudo")
	sys.AddUser("existing", 1200, "/bin/bash")
	sys.FailOn["CreateAccount:broken"] = errors.New("useradd: UID range exhausted")

	orch, _ := newTestOrchestrator(sys)

	records := []AccountRecord{
		{Username: "alice"},
		{Username: "existing"},
		{Username: "broken"},
		{Username: "bob"},
	}
	summary := orch.ProvisionValidated(records)

	assert.Equal(t, 4, summary.TotalProcessed)
	assert.Len(t, summary.Created, 2)
	assert.Len(t, summary.Skipped, 1)
	assert.Len(t, summary.Failed, 1)
	assert.Equal(t, summary.TotalProcessed, len(summary.Created)+len(summary.Skipped)+len(summary.Failed))

	assert.Equal(t, "existing", summary.Skipped[0].Record.Username)
	assert.Equal(t, "already exists", summary.Skipped[0].Reason)
	assert.Equal(t, "broken", summary.Failed[0].Record.Username)
	assert.Contains(t, summary.Failed[0].Reason, "UID range exhausted")
}

func TestProvisionRerunSkipsEverything(t *testing.T) {
	sys := accounts.NewMemorySystem("sudo")
	orch, _ := newTestOrchestrator(sys)

	records := []AccountRecord{{Username: "alice"}, {Username: "bob"}}

	first := orch.ProvisionValidated(records)
	require.Len(t, first.Created, 2)

	second := orch.ProvisionValidated(records)
	assert.Empty(t, second.Created)
	assert.Len(t, second.Skipped, 2)
	for _, r := range second.Skipped {
		assert.Equal(t, "already exists", r.Reason)
	}
}

func TestProvisionCreatesDependencyGroups(t *testing.T) {
	sys := accounts.NewMemorySystem("sudo")
	orch, _ := newTestOrchestrator(sys)

	rec := AccountRecord{Username: "alice", PrimaryGroup: "eng", Groups: []string{"ops", "web"}}
	summary := orch.ProvisionValidated([]AccountRecord{rec})
	require.Len(t, summary.Created, 1)

	assert.True(t, sys.GroupExists("eng"))
	assert.True(t, sys.GroupExists("ops"))
	assert.True(t, sys.GroupExists("web"))
	assert.Equal(t, []string{"ops", "web"}, summary.Created[0].Groups)
}

func TestProvisionPrimaryGroupFailureFailsRecord(t *testing.T) {
	sys := accounts.NewMemorySystem("sudo")
	sys.FailOn["CreateGroup:eng"] = errors.New("groupadd: GID range exhausted")
	orch, _ := newTestOrchestrator(sys)

	summary := orch.ProvisionValidated([]AccountRecord{{Username: "alice", PrimaryGroup: "eng"}})
	require.Len(t, summary.Failed, 1)
	assert.Contains(t, summary.Failed[0].Reason, "eng")
	assert.False(t, sys.AccountExists("alice"), "no account may be created after a dependency failure")
}

func TestProvisionSecondaryGroupFailureListsGroups(t *testing.T) {
	sys := accounts.NewMemorySystem("sudo")
	sys.FailOn["CreateGroup:ops"] = errors.New("groupadd failed")
	sys.FailOn["CreateGroup:web"] = errors.New("groupadd failed")
	orch, _ := newTestOrchestrator(sys)

	rec := AccountRecord{Username: "alice", Groups: []string{"ops", "good", "web"}}
	summary := orch.ProvisionValidated([]AccountRecord{rec})

	require.Len(t, summary.Failed, 1)
	assert.Contains(t, summary.Failed[0].Reason, "ops")
	assert.Contains(t, summary.Failed[0].Reason, "web")
	assert.NotContains(t, summary.Failed[0].Reason, "good")
}

func TestProvisionRandomPasswordSpooled(t *testing.T) {
	sys := accounts.NewMemorySystem("sudo")
	orch, store := newTestOrchestrator(sys)

	summary := orch.ProvisionValidated([]AccountRecord{{Username: "alice", RandomPassword: true}})
	require.Len(t, summary.Created, 1)
	require.Empty(t, summary.Created[0].Warnings)

	secret, ok := store.stored["alice"]
	require.True(t, ok, "generated secret must be spooled")
	assert.GreaterOrEqual(t, len(secret), 16)
	assert.Equal(t, secret, sys.Users["alice"].Password)
}

func TestProvisionDefaultPasswordNotSpooled(t *testing.T) {
	sys := accounts.NewMemorySystem("sudo")
	orch, store := newTestOrchestrator(sys)

	summary := orch.ProvisionValidated([]AccountRecord{{Username: "alice"}})
	require.Len(t, summary.Created, 1)
	assert.Empty(t, store.stored, "the global default secret is not spooled")
}

func TestProvisionAgingFailureIsPartialSuccess(t *testing.T) {
	sys := accounts.NewMemorySystem("sudo")
	sys.FailOn["SetPasswordAging"] = errors.New("chage: permission denied")
	orch, _ := newTestOrchestrator(sys)

	summary := orch.ProvisionValidated([]AccountRecord{{Username: "alice"}})
	require.Len(t, summary.Created, 1, "the account exists; aging failure must not fail the record")
	require.Len(t, summary.Created[0].Warnings, 1)
	assert.Contains(t, summary.Created[0].Warnings[0], "permission denied")
}

func TestProvisionNologinSkipsAging(t *testing.T) {
	sys := accounts.NewMemorySystem("sudo")
	orch, _ := newTestOrchestrator(sys)

	summary := orch.ProvisionValidated([]AccountRecord{{Username: "svc", Shell: "/usr/sbin/nologin"}})
	require.Len(t, summary.Created, 1)

	for _, call := range sys.MutatorCalls() {
		assert.NotContains(t, call, "SetPasswordAging", "nologin accounts get no aging policy")
		assert.NotContains(t, call, "ForcePasswordChange")
	}
}

func TestProvisionSudoStance(t *testing.T) {
	sys := accounts.NewMemorySystem("sudo")
	orch, _ := newTestOrchestrator(sys)

	summary := orch.ProvisionValidated([]AccountRecord{
		{Username: "admin", Sudo: "allow"},
		{Username: "plain", Sudo: "deny"},
	})
	require.Len(t, summary.Created, 2)

	assert.True(t, sys.HasPrivilegedGroup("admin"))
	assert.False(t, sys.HasPrivilegedGroup("plain"))
}

func TestProvisionRawValidatesFirst(t *testing.T) {
	sys := accounts.NewMemorySystem("sudo")
	orch, _ := newTestOrchestrator(sys)

	result := orch.ProvisionRaw(AccountRecord{Username: "Not Valid"})
	assert.Equal(t, audit.OutcomeFailed, result.Outcome)
	assert.Empty(t, sys.MutatorCalls(), "validation failure must precede any mutation")

	result = orch.ProvisionRaw(AccountRecord{Username: "alice", Comment: "Alice Smith:Engineering"})
	assert.Equal(t, audit.OutcomeCreated, result.Outcome)
}

func TestProvisionPolicyErrorBeforeMutation(t *testing.T) {
	sys := accounts.NewMemorySystem("sudo")
	orch, _ := newTestOrchestrator(sys)

	summary := orch.ProvisionValidated([]AccountRecord{{Username: "alice", Shell: "astronaut"}})
	require.Len(t, summary.Failed, 1)
	assert.Empty(t, sys.MutatorCalls(), "policy resolution failure must precede any mutation")
}

func TestProvisionDryRunMatchesRealClassification(t *testing.T) {
	records := []AccountRecord{
		{Username: "alice"},
		{Username: "existing"},
		{Username: "bad shell", Shell: "astronaut"},
	}

	dry := accounts.NewMemorySystem("sudo")
	dry.AddUser("existing", 1200, "/bin/bash")
	dryOrch, _ := newTestOrchestrator(accounts.NewDryRun(dry))
	drySummary := dryOrch.ProvisionValidated(records)

	assert.Empty(t, dry.MutatorCalls(), "dry-run must never call a mutating primitive")

	real := accounts.NewMemorySystem("sudo")
	real.AddUser("existing", 1200, "/bin/bash")
	realOrch, _ := newTestOrchestrator(real)
	realSummary := realOrch.ProvisionValidated(records)

	assert.Equal(t, len(realSummary.Created), len(drySummary.Created))
	assert.Equal(t, len(realSummary.Skipped), len(drySummary.Skipped))
	assert.Equal(t, len(realSummary.Failed), len(drySummary.Failed))
	for i := range realSummary.Created {
		assert.Equal(t, realSummary.Created[i].Outcome, drySummary.Created[i].Outcome)
		assert.Equal(t, realSummary.Created[i].Record.Username, drySummary.Created[i].Record.Username)
	}
}

func TestProvisionBatchClassifiesRejectedAsFailed(t *testing.T) {
	sys := accounts.NewMemorySystem("sudo")
	orch, _ := newTestOrchestrator(sys)

	records, rejected, err := ParseAccounts(
		strings.NewReader("BADNAME:no-internal-space\ngood\n"), FormatText)
	require.NoError(t, err)

	summary := orch.ProvisionBatch(records, rejected)
	assert.Equal(t, 2, summary.TotalProcessed)
	require.Len(t, summary.Created, 1)
	assert.Equal(t, "good", summary.Created[0].Record.Username)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "BADNAME", summary.Failed[0].Record.Username)

	assert.False(t, sys.AccountExists("BADNAME"))
	for _, call := range sys.MutatorCalls() {
		assert.NotContains(t, call, "BADNAME", "a rejected record must never reach a primitive")
	}
}

func TestProvisionDryRunSkipsDuplicateRecords(t *testing.T) {
	records := []AccountRecord{{Username: "zed"}, {Username: "zed"}}

	dry := accounts.NewMemorySystem("sudo")
	dryOrch, _ := newTestOrchestrator(accounts.NewDryRun(dry))
	drySummary := dryOrch.ProvisionValidated(records)

	real := accounts.NewMemorySystem("sudo")
	realOrch, _ := newTestOrchestrator(real)
	realSummary := realOrch.ProvisionValidated(records)

	assert.Len(t, realSummary.Created, 1)
	assert.Len(t, realSummary.Skipped, 1)
	assert.Len(t, drySummary.Created, 1)
	assert.Len(t, drySummary.Skipped, 1)
	assert.Empty(t, dry.MutatorCalls())
}

func TestProvisionGroupsDryRunIdempotent(t *testing.T) {
	inner := accounts.NewMemorySystem("sudo")
	orch, _ := newTestOrchestrator(accounts.NewDryRun(inner))

	summary := orch.ProvisionGroups([]GroupRecord{
		{Name: "ops", Action: GroupCreate},
		{Name: "ops", Action: GroupCreate},
	})
	assert.Len(t, summary.Applied, 1)
	assert.Len(t, summary.Skipped, 1)
	assert.Empty(t, inner.MutatorCalls())
}

func TestProvisionGroupsZeroActionDefaultsToCreate(t *testing.T) {
	sys := accounts.NewMemorySystem("sudo")
	orch, _ := newTestOrchestrator(sys)

	summary := orch.ProvisionGroups([]GroupRecord{{Name: "ops"}})
	require.Len(t, summary.Applied, 1)
	assert.Equal(t, GroupCreate, summary.Applied[0].Record.Action)
	assert.True(t, sys.GroupExists("ops"))
}

func TestProvisionGroupsIdempotent(t *testing.T) {
	sys := accounts.NewMemorySystem("sudo")
	orch, _ := newTestOrchestrator(sys)

	records := []GroupRecord{
		{Name: "ops", Action: GroupCreate},
		{Name: "ops", Action: GroupCreate},
	}
	summary := orch.ProvisionGroups(records)

	assert.Len(t, summary.Applied, 1, "the second create must classify skipped, never two creations")
	assert.Len(t, summary.Skipped, 1)
	assert.Empty(t, summary.Failed)
}

func TestProvisionGroupsDelete(t *testing.T) {
	sys := accounts.NewMemorySystem("sudo")
	require.NoError(t, sys.CreateGroup("legacy"))
	orch, _ := newTestOrchestrator(sys)

	summary := orch.ProvisionGroups([]GroupRecord{
		{Name: "legacy", Action: GroupDelete},
		{Name: "ghost", Action: GroupDelete},
	})

	require.Len(t, summary.Applied, 1)
	assert.Equal(t, "deleted", summary.Applied[0].Reason)
	require.Len(t, summary.Skipped, 1)
	assert.Equal(t, "does not exist", summary.Skipped[0].Reason)
	assert.False(t, sys.GroupExists("legacy"))
}

func TestProvisionGroupsWithMembers(t *testing.T) {
	sys := accounts.NewMemorySystem("sudo")
	sys.AddUser("alice", 1100, "/bin/bash")
	orch, _ := newTestOrchestrator(sys)

	summary := orch.ProvisionGroups([]GroupRecord{
		{Name: "ops", Members: []string{"alice"}, Action: GroupCreate},
	})
	require.Len(t, summary.Applied, 1)
	assert.Contains(t, sys.Groups["ops"].Members, "alice")
}

func TestProvisionExampleLine(t *testing.T) {
	// The canonical full-format example: explicit 90-day password
	// expiry, sudo allow, no random password, defaulted shell.
	records, rejected, err := ParseAccounts(
		strings.NewReader("alice:Alice Smith:Engineering:90:a:no:\n"), FormatText)
	require.Empty(t, rejected)
	require.NoError(t, err)

	sys := accounts.NewMemorySystem("sudo")
	orch, _ := newTestOrchestrator(sys)
	summary := orch.ProvisionValidated(records)

	require.Len(t, summary.Created, 1)
	created := summary.Created[0]
	assert.Equal(t, "/bin/bash", created.Shell, "shell falls back to the interactive default")
	assert.Equal(t, 90, sys.Users["alice"].AgingMax)
	assert.True(t, sys.HasPrivilegedGroup("alice"))
}
