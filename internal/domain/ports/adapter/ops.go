package adapter

import (
	"context"
	"time"
)

// Alerter notifies operators about anomalies such as quota overruns and
// stuck tasks.
type Alerter interface {
	Alert(ctx context.Context, subject, text string) error
}

// SecretOpener decrypts sealed credential secrets.
type SecretOpener interface {
	Open(sealed string) (string, error)
}

// DailyBudget tracks a per-user per-platform daily application ceiling.
type DailyBudget interface {
	Remaining(ctx context.Context, userID, platform string, dailyCap int) (int, error)
	Consume(ctx context.Context, userID, platform string, n int) error
}

// Locker is a best-effort distributed mutex.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// OnceMarker records keys shared across replicas. MarkOnce reports true only
// for the first caller to mark key within ttl.
type OnceMarker interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
