package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"jobsee-orchestrator/internal/domain"
	"jobsee-orchestrator/internal/domain/model"
	"jobsee-orchestrator/internal/domain/ports/repository"
)

var _ repository.QuotaRepository = (*quotaRepo)(nil)

type quotaRepo struct {
	pool *pgxpool.Pool
}

func NewQuotaRepo(pool *pgxpool.Pool) *quotaRepo {
	return &quotaRepo{pool: pool}
}

const quotaSelect = `SELECT user_id, application_limit, applied_count, last_run_at, updated_at FROM user_quotas WHERE user_id = $1`

func scanQuota(row pgx.Row) (*model.UserQuota, error) {
	var q model.UserQuota
	if err := row.Scan(&q.UserID, &q.ApplicationLimit, &q.AppliedCount, &q.LastRunAt, &q.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return &q, nil
}

func (r *quotaRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.UserQuota, error) {
	return scanQuota(pickRow(ctx, r.pool, tx, quotaSelect+`;`, userID))
}

func (r *quotaRepo) LockByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.UserQuota, error) {
	if _, ok := tx.(pgx.Tx); !ok {
		return nil, domain.ErrInvalidExecContext
	}
	return scanQuota(pickRow(ctx, r.pool, tx, quotaSelect+` FOR UPDATE;`, userID))
}

func (r *quotaRepo) Save(ctx context.Context, tx repository.Tx, q *model.UserQuota) error {
	q.UpdatedAt = time.Now().UTC()
	const stmt = `
INSERT INTO user_quotas (user_id, application_limit, applied_count, last_run_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE SET
  application_limit = EXCLUDED.application_limit,
  applied_count = EXCLUDED.applied_count,
  last_run_at = EXCLUDED.last_run_at,
  updated_at = EXCLUDED.updated_at;`
	_, err := execSQL(ctx, r.pool, tx, stmt, q.UserID, q.ApplicationLimit, q.AppliedCount, q.LastRunAt, q.UpdatedAt)
	return err
}
