package model

import (
	"time"

	"jobsee-orchestrator/internal/domain"
)

// UserQuota is the paid application allowance of a user.
// AppliedCount never exceeds ApplicationLimit.
type UserQuota struct {
	UserID           string
	ApplicationLimit int
	AppliedCount     int
	LastRunAt        *time.Time
	UpdatedAt        time.Time
}

func NewUserQuota(userID string, limit int) (*UserQuota, error) {
	if userID == "" || limit < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &UserQuota{UserID: userID, ApplicationLimit: limit, UpdatedAt: time.Now().UTC()}, nil
}

// Headroom is the number of applications still available.
func (q *UserQuota) Headroom() int {
	if q == nil {
		return 0
	}
	h := q.ApplicationLimit - q.AppliedCount
	if h < 0 {
		return 0
	}
	return h
}

// Grant returns min(requested, headroom), never negative.
func (q *UserQuota) Grant(requested int) int {
	if requested <= 0 {
		return 0
	}
	h := q.Headroom()
	if requested < h {
		return requested
	}
	return h
}

// Apply increments AppliedCount by n, clamped to the limit. It returns the
// amount actually added and whether clamping happened.
func (q *UserQuota) Apply(n int, now time.Time) (added int, overrun bool) {
	if n < 0 {
		n = 0
	}
	added = q.Grant(n)
	overrun = added < n
	q.AppliedCount += added
	q.LastRunAt = &now
	q.UpdatedAt = now
	return added, overrun
}

// Allocation is the per-run split of granted headroom across platforms.
type Allocation struct {
	Granted     int
	PerPlatform map[string]int
	Order       []string
}

// For returns the sub-allocation of a platform.
func (a Allocation) For(platform string) int {
	if a.PerPlatform == nil {
		return 0
	}
	return a.PerPlatform[platform]
}

// Total sums all sub-allocations.
func (a Allocation) Total() int {
	n := 0
	for _, v := range a.PerPlatform {
		n += v
	}
	return n
}
