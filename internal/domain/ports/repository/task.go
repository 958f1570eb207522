package repository

import (
	"context"
	"time"

	"jobsee-orchestrator/internal/domain/model"
)

// TaskRepository is the durable FIFO of application runs.
type TaskRepository interface {
	Create(ctx context.Context, tx Tx, t *model.Task) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Task, error)

	// ClaimNextPending atomically moves the oldest pending task to processing
	// and stamps workerID and started_at. Returns domain.ErrNotFound when the
	// queue is empty.
	ClaimNextPending(ctx context.Context, workerID string) (*model.Task, error)

	// MarkCompleted and MarkFailed only transition processing tasks. They
	// return false without error when the task was already terminal.
	MarkCompleted(ctx context.Context, tx Tx, id, outcome string) (bool, error)
	MarkFailed(ctx context.Context, tx Tx, id, reason string) (bool, error)

	HasOpenTask(ctx context.Context, tx Tx, userID string) (bool, error)
	ListProcessingOlderThan(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.Task, error)
}
