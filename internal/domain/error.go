package domain

import (
	"context"
	"errors"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrLockNotAcquired    = errors.New("lock held by another owner")

	// Account / quota
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountInactive    = errors.New("account not active")
	ErrMissingCredentials = errors.New("platform credentials missing")
	ErrNoTargetTitles     = errors.New("no target job titles configured")
	ErrQuotaExhausted     = errors.New("application quota exhausted")
	ErrQuotaOverrun       = errors.New("quota commit would exceed application limit")
	ErrRunAlreadyQueued   = errors.New("user already has a queued or running task")

	// Queue
	ErrQueueClaimConflict = errors.New("lost race claiming task")
	ErrTaskNotProcessing  = errors.New("task is not in processing state")

	// Platform automation
	ErrAuth              = errors.New("platform authentication failed")
	ErrTimeout           = errors.New("timed out waiting for page or affordance")
	ErrApply             = errors.New("application flow failed")
	ErrNoAffordance      = errors.New("no progress affordance found")
	ErrStepLimitExceeded = errors.New("apply step limit exceeded")
	ErrUnknownPlatform   = errors.New("unknown platform")
)

// IsRecoverable reports whether err only affects the current candidate or
// platform step, so the caller can move on instead of aborting.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	switch {
	case errors.Is(err, ErrTimeout),
		errors.Is(err, ErrApply),
		errors.Is(err, ErrNoAffordance),
		errors.Is(err, ErrStepLimitExceeded),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}
