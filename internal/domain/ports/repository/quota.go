package repository

import (
	"context"

	"jobsee-orchestrator/internal/domain/model"
)

type QuotaRepository interface {
	FindByUserID(ctx context.Context, tx Tx, userID string) (*model.UserQuota, error)
	// LockByUserID reads the quota row with a row lock; tx must be a transaction.
	LockByUserID(ctx context.Context, tx Tx, userID string) (*model.UserQuota, error)
	Save(ctx context.Context, tx Tx, q *model.UserQuota) error
}
