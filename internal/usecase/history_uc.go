package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"jobsee-orchestrator/internal/domain"
	"jobsee-orchestrator/internal/domain/model"
	"jobsee-orchestrator/internal/domain/ports/repository"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

type ApplicationHistory struct {
	UserID                string
	Applications          []*model.JobApplicationRecord
	ApplicationsRemaining int
}

// HistoryUseCase answers read-only questions about past runs.
type HistoryUseCase struct {
	users  repository.UserRepository
	quotas repository.QuotaRepository
	apps   repository.ApplicationRepository
	tasks  repository.TaskRepository
	log    *zerolog.Logger
}

func NewHistoryUseCase(users repository.UserRepository, quotas repository.QuotaRepository, apps repository.ApplicationRepository, tasks repository.TaskRepository, logger *zerolog.Logger) *HistoryUseCase {
	return &HistoryUseCase{users: users, quotas: quotas, apps: apps, tasks: tasks, log: logger}
}

// Applications returns the user's records newest first.
func (uc *HistoryUseCase) Applications(ctx context.Context, userID string, limit int) (*ApplicationHistory, error) {
	if _, err := uc.user(ctx, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	recs, err := uc.apps.ListByUser(ctx, repository.NoTX, userID, limit)
	if err != nil {
		return nil, err
	}
	q, err := uc.quota(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ApplicationHistory{UserID: userID, Applications: recs, ApplicationsRemaining: q.Headroom()}, nil
}

// Stats returns totals, remaining quota and a per-platform breakdown.
func (uc *HistoryUseCase) Stats(ctx context.Context, userID string) (*model.ApplicationStats, error) {
	u, err := uc.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	st, err := uc.apps.Summary(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	q, err := uc.quota(ctx, userID)
	if err != nil {
		return nil, err
	}
	st.UserID = userID
	st.PlanID = u.PlanID
	st.ApplicationLimit = q.ApplicationLimit
	st.ApplicationsRemaining = q.Headroom()
	st.LastRunAt = q.LastRunAt
	if st.ByPlatform == nil {
		st.ByPlatform = map[string]int{}
	}
	return st, nil
}

// Task returns a snapshot of a queued or finished task.
func (uc *HistoryUseCase) Task(ctx context.Context, id string) (*model.Task, error) {
	return uc.tasks.FindByID(ctx, repository.NoTX, id)
}

func (uc *HistoryUseCase) user(ctx context.Context, userID string) (*model.User, error) {
	u, err := uc.users.FindByID(ctx, repository.NoTX, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUserNotFound
	}
	return u, err
}

// quota treats a user without a quota row as having none left.
func (uc *HistoryUseCase) quota(ctx context.Context, userID string) (*model.UserQuota, error) {
	q, err := uc.quotas.FindByUserID(ctx, repository.NoTX, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return &model.UserQuota{UserID: userID}, nil
	}
	return q, err
}
