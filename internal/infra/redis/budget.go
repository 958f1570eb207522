package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"jobsee-orchestrator/internal/domain/ports/adapter"

	"github.com/go-redis/redis/v8"
)

var _ adapter.DailyBudget = (*DailyBudget)(nil)

// DailyBudget counts applications per user, platform and UTC day.
type DailyBudget struct {
	client RedisClient
	now    func() time.Time
}

func NewDailyBudget(client RedisClient) *DailyBudget {
	return &DailyBudget{client: client, now: time.Now}
}

func BudgetKey(userID, platform string, day time.Time) string {
	return fmt.Sprintf("budget:%s:%s:%s", userID, platform, day.UTC().Format("20060102"))
}

// Remaining returns how many applications are left today under dailyCap.
func (b *DailyBudget) Remaining(ctx context.Context, userID, platform string, dailyCap int) (int, error) {
	if dailyCap <= 0 {
		return 0, nil
	}
	val, err := b.client.Get(ctx, BudgetKey(userID, platform, b.now()))
	if errors.Is(err, redis.Nil) {
		return dailyCap, nil
	}
	if err != nil {
		return 0, err
	}
	used, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("budget counter %q: %w", val, err)
	}
	if left := dailyCap - used; left > 0 {
		return left, nil
	}
	return 0, nil
}

func (b *DailyBudget) Consume(ctx context.Context, userID, platform string, n int) error {
	if n <= 0 {
		return nil
	}
	key := BudgetKey(userID, platform, b.now())
	count, err := b.client.IncrBy(ctx, key, int64(n))
	if err != nil {
		return err
	}
	if count == int64(n) {
		return b.client.Expire(ctx, key, 48*time.Hour)
	}
	return nil
}
