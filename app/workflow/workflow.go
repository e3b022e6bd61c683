// Package workflow runs the post-purchase audit sequence as a persisted task
// record advanced by a scheduler loop.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"
)

const (
	Name = "portfolio-audit"

	StepWelcome   = "welcome-pending"
	StepWaiting   = "waiting"
	StepFollowUp  = "followup-pending"
	StepCompleted = "completed"

	FollowUpDelay = 72 * time.Hour
	MaxAttempts   = 10

	baseBackoff = time.Minute
	maxBackoff  = time.Hour
)

// Mailer sends the two emails of the audit sequence.
type Mailer interface {
	SendAuditWelcome(ctx context.Context, to string) models.Result
	SendAuditFollowUp(ctx context.Context, to string) models.Result
}

// Outcome is stored in workflow_runs.result once the run completes.
type Outcome struct {
	Status string `json:"status"`
	Email  string `json:"email"`
}

// NewRun builds the initial record for a purchase by email.
func NewRun(id, email string, now time.Time) models.WorkflowRun {
	return models.WorkflowRun{
		ID:        id,
		Workflow:  Name,
		Email:     email,
		NextStep:  StepWelcome,
		ResumeAt:  now,
		Status:    models.WorkflowRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Phase is the user-facing state of run at now. A follow-up that is not yet
// due reports as waiting.
func Phase(run models.WorkflowRun, now time.Time) string {
	if run.Status == models.WorkflowCompleted {
		return StepCompleted
	}
	if run.NextStep == StepFollowUp && run.ResumeAt.After(now) {
		return StepWaiting
	}
	return run.NextStep
}

// Advance executes the step run is parked on and returns the record to
// persist. The returned error is the step failure, already folded into the
// record as a retry or a terminal failure.
func Advance(ctx context.Context, run models.WorkflowRun, now time.Time, m Mailer) (models.WorkflowRun, error) {
	if !run.Due(now) {
		return run, nil
	}

	var err error
	switch run.NextStep {
	case StepWelcome:
		if err = resultErr(m.SendAuditWelcome(ctx, run.Email)); err == nil {
			run.NextStep = StepFollowUp
			run.ResumeAt = now.Add(FollowUpDelay)
		}
	case StepFollowUp:
		if err = resultErr(m.SendAuditFollowUp(ctx, run.Email)); err == nil {
			run.NextStep = StepCompleted
			run.ResumeAt = now
			run.Status = models.WorkflowCompleted
			run.Result, _ = json.Marshal(Outcome{Status: StepCompleted, Email: run.Email})
		}
	default:
		err = fmt.Errorf("unknown workflow step %q", run.NextStep)
		run.Attempts = MaxAttempts - 1
	}

	run.UpdatedAt = now
	if err == nil {
		run.Attempts = 0
		run.LastError = ""
		return run, nil
	}

	run.Attempts++
	run.LastError = err.Error()
	if run.Attempts >= MaxAttempts {
		run.Status = models.WorkflowFailed
		return run, err
	}
	run.ResumeAt = now.Add(Backoff(run.Attempts))
	return run, err
}

// Backoff is 1m doubled per attempt, capped at 1h.
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		return baseBackoff
	}
	d := baseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

func resultErr(r models.Result) error {
	if r.OK {
		return nil
	}
	if r.Error == "" {
		return errors.New("email send failed")
	}
	return errors.New(r.Error)
}
