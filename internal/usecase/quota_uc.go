package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"jobsee-orchestrator/internal/domain"
	"jobsee-orchestrator/internal/domain/ports/repository"
	"jobsee-orchestrator/internal/infra/metrics"
)

// CommitResult reports what a quota commit actually added.
type CommitResult struct {
	Requested int
	Added     int
	Overrun   bool
	Remaining int
}

// QuotaUseCase is the application quota ledger.
type QuotaUseCase struct {
	quotas repository.QuotaRepository
	tm     repository.TransactionManager
	log    *zerolog.Logger
	now    func() time.Time
}

func NewQuotaUseCase(quotas repository.QuotaRepository, tm repository.TransactionManager, logger *zerolog.Logger) *QuotaUseCase {
	l := logger.With().Str("component", "quota").Logger()
	return &QuotaUseCase{quotas: quotas, tm: tm, log: &l, now: time.Now}
}

// Reserve returns how many of requested applications the user may still
// submit. It does not change the ledger.
func (uc *QuotaUseCase) Reserve(ctx context.Context, userID string, requested int) (int, error) {
	q, err := uc.quotas.FindByUserID(ctx, repository.NoTX, userID)
	if err != nil {
		return 0, fmt.Errorf("load quota: %w", err)
	}
	return q.Grant(requested), nil
}

// Commit adds actual to the user's applied count in its own transaction.
func (uc *QuotaUseCase) Commit(ctx context.Context, userID string, actual int) (CommitResult, error) {
	var res CommitResult
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		res, err = uc.CommitTx(ctx, tx, userID, actual)
		return err
	})
	return res, err
}

// CommitTx adds actual to the applied count under a row lock inside tx. The
// count is clamped at the limit; a clamped commit is reported as an overrun
// and still succeeds.
func (uc *QuotaUseCase) CommitTx(ctx context.Context, tx repository.Tx, userID string, actual int) (CommitResult, error) {
	q, err := uc.quotas.LockByUserID(ctx, tx, userID)
	if err != nil {
		return CommitResult{}, fmt.Errorf("lock quota: %w", err)
	}
	added, overrun := q.Apply(actual, uc.now().UTC())
	if err := uc.quotas.Save(ctx, tx, q); err != nil {
		return CommitResult{}, fmt.Errorf("save quota: %w", err)
	}
	if overrun {
		metrics.IncQuotaOverrun()
		uc.log.Warn().Err(domain.ErrQuotaOverrun).
			Str("user_id", userID).
			Int("requested", actual).
			Int("added", added).
			Int("limit", q.ApplicationLimit).
			Msg("quota commit clamped")
	}
	return CommitResult{Requested: actual, Added: added, Overrun: overrun, Remaining: q.Headroom()}, nil
}
