package model

import (
	"time"

	"jobsee-orchestrator/internal/domain"

	"github.com/oklog/ulid/v2"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task is one queued request to run the application process for a user.
// IDs are ULIDs so that lexical order follows creation order.
type Task struct {
	ID          string
	UserID      string
	Status      TaskStatus
	WorkerID    string
	Outcome     string
	LastError   string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

func NewTask(userID string) (*Task, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Task{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Status:    TaskStatusPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// NewWorkerID returns a unique identifier for a worker process.
func NewWorkerID(prefix string) string {
	if prefix == "" {
		prefix = "worker"
	}
	return prefix + "-" + ulid.Make().String()
}

// Claim moves a pending task to processing. It is used by in-memory stores;
// the Postgres store performs the same transition in a single statement.
func (t *Task) Claim(workerID string, now time.Time) error {
	if t.Status != TaskStatusPending {
		return domain.ErrQueueClaimConflict
	}
	t.Status = TaskStatusProcessing
	t.WorkerID = workerID
	t.StartedAt = &now
	return nil
}

// Finish moves a processing task to a terminal status. It returns false when
// the task was already terminal, leaving it unchanged.
func (t *Task) Finish(status TaskStatus, detail string, now time.Time) (bool, error) {
	if !status.IsTerminal() {
		return false, domain.ErrInvalidArgument
	}
	if t.Status.IsTerminal() {
		return false, nil
	}
	if t.Status != TaskStatusProcessing {
		return false, domain.ErrTaskNotProcessing
	}
	t.Status = status
	t.CompletedAt = &now
	if status == TaskStatusFailed {
		t.LastError = detail
	} else {
		t.Outcome = detail
	}
	return true, nil
}
