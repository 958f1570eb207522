package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"jobsee-orchestrator/internal/domain/model"
	"jobsee-orchestrator/internal/domain/ports/repository"
)

var _ repository.ApplicationRepository = (*applicationRepo)(nil)

type applicationRepo struct {
	pool *pgxpool.Pool
}

func NewApplicationRepo(pool *pgxpool.Pool) *applicationRepo {
	return &applicationRepo{pool: pool}
}

func (r *applicationRepo) InsertBatch(ctx context.Context, tx repository.Tx, recs []*model.JobApplicationRecord) (int, error) {
	const q = `
INSERT INTO job_applications (
  id, user_id, task_id, job_title, company, platform, job_url, location,
  application_method, status, applied_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (task_id, platform, job_url) DO NOTHING;`

	inserted := 0
	for _, rec := range recs {
		tag, err := execSQL(ctx, r.pool, tx, q,
			rec.ID, rec.UserID, rec.TaskID, rec.JobTitle, rec.Company, rec.Platform, rec.JobURL,
			rec.Location, rec.ApplicationMethod, rec.Status, rec.AppliedAt)
		if err != nil {
			return inserted, fmt.Errorf("insert application %s: %w", rec.JobURL, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (r *applicationRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.JobApplicationRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT id, user_id, task_id, job_title, company, platform, job_url, location,
       application_method, status, applied_at, response_received, response_at
  FROM job_applications
 WHERE user_id = $1
 ORDER BY applied_at DESC, id
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.JobApplicationRecord
	for rows.Next() {
		var a model.JobApplicationRecord
		if err := rows.Scan(&a.ID, &a.UserID, &a.TaskID, &a.JobTitle, &a.Company, &a.Platform, &a.JobURL,
			&a.Location, &a.ApplicationMethod, &a.Status, &a.AppliedAt, &a.ResponseReceived, &a.ResponseAt); err != nil {
			return nil, scanErr(err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *applicationRepo) CountByTask(ctx context.Context, tx repository.Tx, taskID string) (int, error) {
	var n int
	if err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM job_applications WHERE task_id = $1;`, taskID).Scan(&n); err != nil {
		return 0, scanErr(err)
	}
	return n, nil
}

func (r *applicationRepo) Summary(ctx context.Context, tx repository.Tx, userID string) (*model.ApplicationStats, error) {
	const q = `
SELECT platform, COUNT(*), COUNT(*) FILTER (WHERE status = 'applied')
  FROM job_applications
 WHERE user_id = $1
 GROUP BY platform;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	s := &model.ApplicationStats{UserID: userID, ByPlatform: map[string]int{}}
	for rows.Next() {
		var platform string
		var total, ok int
		if err := rows.Scan(&platform, &total, &ok); err != nil {
			return nil, scanErr(err)
		}
		s.ByPlatform[platform] = total
		s.Total += total
		s.Successful += ok
	}
	return s, rows.Err()
}
