// Package audit owns the shared classification vocabulary and emits one
// audit event per record classification and one per lifecycle sequence.
// Events go to the systemd journal when it is available, otherwise they
// fall back to the process log.
package audit

import (
	"fmt"

	"github.com/coreos/go-systemd/journal"
	"github.com/mordilloSan/go-logger/logger"
)

// Outcome classifies one provisioning record.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// StepOutcome classifies one lifecycle step.
type StepOutcome string

const (
	StepOK      StepOutcome = "ok"
	StepSkipped StepOutcome = "skipped"
	StepFailed  StepOutcome = "failed"
)

// Sequence-level results for lock/unlock style actions.
const (
	ResultLocked   = "locked"
	ResultUnlocked = "unlocked"
	ResultSkipped  = "skipped"
	ResultFailed   = "failed"
)

// Recorder writes audit events. The zero value is usable; it probes
// journal availability on first use.
type Recorder struct {
	journalOff bool
}

// NewRecorder returns a Recorder, disabling the journal sink when the
// journal socket is absent (containers, test environments).
func NewRecorder() *Recorder {
	return &Recorder{journalOff: !journal.Enabled()}
}

// Event emits one audit event. action names the operation ("provision",
// "suspend", ...), target is the account or group, result is the
// classification, detail carries the human-readable reason.
func (r *Recorder) Event(action, target, result, detail string) {
	message := fmt.Sprintf("accountctl %s %s: %s", action, target, result)
	if detail != "" {
		message += " (" + detail + ")"
	}

	if !r.journalOff {
		fields := map[string]string{
			"ACCOUNTCTL_ACTION": action,
			"ACCOUNTCTL_TARGET": target,
			"ACCOUNTCTL_RESULT": result,
		}
		if detail != "" {
			fields["ACCOUNTCTL_DETAIL"] = detail
		}
		if err := journal.Send(message, journal.PriInfo, fields); err != nil {
			logger.Warnf("journal send failed, disabling journal audit sink: %v", err)
			r.journalOff = true
		}
	}

	logger.InfoKV("audit", "action", action, "target", target, "result", result, "detail", detail)
}
