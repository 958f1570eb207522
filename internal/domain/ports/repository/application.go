package repository

import (
	"context"

	"jobsee-orchestrator/internal/domain/model"
)

type ApplicationRepository interface {
	// InsertBatch stores records and skips ones already recorded for the
	// same (task, platform, job url). It returns how many rows were new.
	InsertBatch(ctx context.Context, tx Tx, recs []*model.JobApplicationRecord) (int, error)
	ListByUser(ctx context.Context, tx Tx, userID string, limit int) ([]*model.JobApplicationRecord, error)
	CountByTask(ctx context.Context, tx Tx, taskID string) (int, error)
	// Summary fills Total, Successful and ByPlatform for userID.
	Summary(ctx context.Context, tx Tx, userID string) (*model.ApplicationStats, error)
}
