package models

import "time"

type WorkflowStatus string

const (
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
)

// WorkflowRun is the persisted position of a durable workflow instance.
type WorkflowRun struct {
	ID        string         `json:"id"`
	Workflow  string         `json:"workflow"`
	Email     string         `json:"email"`
	NextStep  string         `json:"next_step"`
	ResumeAt  time.Time      `json:"resume_at"`
	Attempts  int            `json:"attempts"`
	Status    WorkflowStatus `json:"status"`
	LastError string         `json:"last_error,omitempty"`
	Result    []byte         `json:"result,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Due reports whether the run should be advanced at now.
func (r WorkflowRun) Due(now time.Time) bool {
	return r.Status == WorkflowRunning && !r.ResumeAt.After(now)
}

// WakeUp is the queue message that asks a worker to advance a run now.
type WakeUp struct {
	RunID string `json:"run_id"`
}
