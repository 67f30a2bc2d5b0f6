package redis

import (
	"context"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

// SweepLock guards the daily sweep so it runs at most once per calendar day
// even when several worker replicas share the same schedule, or a crashed run
// is restarted by hand. The lock key embeds the date, so a new day always
// gets a fresh lock and a mid-sweep crash never blocks the next day's run.
type SweepLock struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

// NewSweepLock creates a date-keyed lock with the given retention.
func NewSweepLock(client *redislib.Client, ttl time.Duration) *SweepLock {
	if ttl <= 0 {
		ttl = 36 * time.Hour
	}
	return &SweepLock{
		client: client,
		prefix: "challenge:sweep:",
		ttl:    ttl,
	}
}

// Acquire claims the sweep for the given day. It returns false when another
// run already claimed it.
func (l *SweepLock) Acquire(ctx context.Context, day time.Time) (bool, error) {
	return l.client.SetNX(ctx, l.key(day), time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
}

// Release frees the lock early, letting a manual re-run proceed the same day.
func (l *SweepLock) Release(ctx context.Context, day time.Time) error {
	return l.client.Del(ctx, l.key(day)).Err()
}

func (l *SweepLock) key(day time.Time) string {
	return fmt.Sprintf("%s%s", l.prefix, day.Format("2006-01-02"))
}
