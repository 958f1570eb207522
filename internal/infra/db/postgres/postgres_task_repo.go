package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"jobsee-orchestrator/internal/domain"
	"jobsee-orchestrator/internal/domain/model"
	"jobsee-orchestrator/internal/domain/ports/repository"
)

var _ repository.TaskRepository = (*taskRepo)(nil)

type taskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *taskRepo {
	return &taskRepo{pool: pool}
}

const taskColumns = `id, user_id, status, COALESCE(worker_id, ''), outcome, last_error, created_at, started_at, completed_at`

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	var status string
	if err := row.Scan(&t.ID, &t.UserID, &status, &t.WorkerID, &t.Outcome, &t.LastError,
		&t.CreatedAt, &t.StartedAt, &t.CompletedAt); err != nil {
		return nil, scanErr(err)
	}
	t.Status = model.TaskStatus(status)
	return &t, nil
}

func (r *taskRepo) Create(ctx context.Context, tx repository.Tx, t *model.Task) error {
	const q = `
INSERT INTO application_tasks (id, user_id, status, outcome, last_error, created_at)
VALUES ($1, $2, $3, '', '', $4);`
	_, err := execSQL(ctx, r.pool, tx, q, t.ID, t.UserID, t.Status, t.CreatedAt)
	return err
}

func (r *taskRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM application_tasks WHERE id = $1;`
	return scanTask(pickRow(ctx, r.pool, tx, q, id))
}

// ClaimNextPending selects and transitions the oldest pending task in a single
// statement. Users that already have a processing task are skipped, and a
// partial unique index on processing rows backs that rule under races.
func (r *taskRepo) ClaimNextPending(ctx context.Context, workerID string) (*model.Task, error) {
	q := `
UPDATE application_tasks t
   SET status = 'processing', worker_id = $1, started_at = now()
 WHERE t.id = (
        SELECT p.id
          FROM application_tasks p
         WHERE p.status = 'pending'
           AND NOT EXISTS (
                SELECT 1 FROM application_tasks r
                 WHERE r.user_id = p.user_id AND r.status = 'processing')
         ORDER BY p.created_at, p.id
         LIMIT 1
         FOR UPDATE SKIP LOCKED)
   AND t.status = 'pending'
RETURNING ` + taskColumns + `;`

	t, err := scanTask(pickRow(ctx, r.pool, nil, q, workerID))
	if err == nil {
		return t, nil
	}
	if errors.Is(err, domain.ErrAlreadyExists) {
		return nil, domain.ErrQueueClaimConflict
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	// Nothing was updated: either the queue is empty or every candidate row
	// was locked by a concurrent claimer.
	var pending bool
	row := pickRow(ctx, r.pool, nil, `SELECT EXISTS (SELECT 1 FROM application_tasks WHERE status = 'pending');`)
	if err := row.Scan(&pending); err != nil {
		return nil, scanErr(err)
	}
	if pending {
		return nil, domain.ErrQueueClaimConflict
	}
	return nil, domain.ErrNotFound
}

func (r *taskRepo) MarkCompleted(ctx context.Context, tx repository.Tx, id, outcome string) (bool, error) {
	const q = `
UPDATE application_tasks
   SET status = 'completed', outcome = $2, completed_at = now()
 WHERE id = $1 AND status = 'processing';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, outcome)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *taskRepo) MarkFailed(ctx context.Context, tx repository.Tx, id, reason string) (bool, error) {
	const q = `
UPDATE application_tasks
   SET status = 'failed', last_error = $2, completed_at = now()
 WHERE id = $1 AND status = 'processing';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *taskRepo) HasOpenTask(ctx context.Context, tx repository.Tx, userID string) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM application_tasks
   WHERE user_id = $1 AND status IN ('pending', 'processing'));`
	var open bool
	if err := pickRow(ctx, r.pool, tx, q, userID).Scan(&open); err != nil {
		return false, scanErr(err)
	}
	return open, nil
}

func (r *taskRepo) ListProcessingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Task, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + taskColumns + `
  FROM application_tasks
 WHERE status = 'processing' AND started_at < $1
 ORDER BY started_at
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
