package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"jobsee-orchestrator/internal/domain"
	"jobsee-orchestrator/internal/domain/model"
	"jobsee-orchestrator/internal/domain/ports/repository"
)

// EnqueueResult is a freshly queued task plus the number of applications the
// run is expected to attempt.
type EnqueueResult struct {
	Task               *model.Task
	TargetApplications int
}

// RunUseCase queues application runs for eligible users.
type RunUseCase struct {
	users  repository.UserRepository
	quotas repository.QuotaRepository
	tasks  repository.TaskRepository
	plans  []PlatformPlan
	log    *zerolog.Logger
}

func NewRunUseCase(users repository.UserRepository, quotas repository.QuotaRepository, tasks repository.TaskRepository, plans []PlatformPlan, logger *zerolog.Logger) *RunUseCase {
	l := logger.With().Str("component", "run").Logger()
	return &RunUseCase{users: users, quotas: quotas, tasks: tasks, plans: plans, log: &l}
}

// Enqueue creates a pending task for userID after checking that a run could
// do anything. A user has at most one pending or processing task.
func (uc *RunUseCase) Enqueue(ctx context.Context, userID string) (*EnqueueResult, error) {
	user, err := uc.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	if !user.Active {
		return nil, domain.ErrAccountInactive
	}
	q, err := uc.quotas.FindByUserID(ctx, repository.NoTX, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrQuotaExhausted
		}
		return nil, err
	}
	if q.Headroom() == 0 {
		return nil, domain.ErrQuotaExhausted
	}
	if !user.HasAnyCredential() {
		return nil, domain.ErrMissingCredentials
	}
	if len(user.SearchTitles(0)) == 0 {
		return nil, domain.ErrNoTargetTitles
	}

	open, err := uc.tasks.HasOpenTask(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, domain.ErrRunAlreadyQueued
	}

	task, err := model.NewTask(userID)
	if err != nil {
		return nil, err
	}
	if err := uc.tasks.Create(ctx, repository.NoTX, task); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, domain.ErrRunAlreadyQueued
		}
		return nil, fmt.Errorf("create task: %w", err)
	}

	var eligible []PlatformPlan
	for _, p := range uc.plans {
		if _, ok := user.CredentialFor(p.Name()); ok {
			eligible = append(eligible, p)
		}
	}
	target := q.Grant(targetApplications(eligible))
	if len(eligible) == 0 {
		target = 0
	}

	uc.log.Info().Str("task_id", task.ID).Str("user_id", userID).Int("target", target).Msg("application run queued")
	return &EnqueueResult{Task: task, TargetApplications: target}, nil
}
