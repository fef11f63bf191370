// Package progress reports sync pipeline progress to Redis so operators
// can watch long-running bulk calls from outside the process.
package progress

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailroom/internal/pkg/logger"
	"github.com/ignite/mailroom/internal/service/subscriber"
)

// SessionTTL bounds how long a finished sync's progress stays readable.
const SessionTTL = time.Hour

// RedisReporter implements subscriber.ProgressReporter over a Redis hash
// per sync call. Reporting is best-effort: Redis failures are logged and
// swallowed so they can never fail a sync.
type RedisReporter struct {
	client *redis.Client
}

// NewRedisReporter creates a reporter over the given client.
func NewRedisReporter(client *redis.Client) *RedisReporter {
	return &RedisReporter{client: client}
}

// Key returns the Redis key for a sync call's progress hash.
func Key(syncID string) string {
	return "mailroom:sync:" + syncID
}

// Report writes the current step to the sync's progress hash.
func (r *RedisReporter) Report(ctx context.Context, syncID string, p subscriber.Progress) {
	key := Key(syncID)
	err := r.client.HSet(ctx, key,
		"step", p.Step,
		"processed", p.Processed,
		"total", p.Total,
		"elapsed_ms", p.Elapsed.Milliseconds(),
	).Err()
	if err != nil {
		logger.Warn("sync progress report failed", "sync_id", syncID, "error", err)
		return
	}
	r.client.Expire(ctx, key, SessionTTL)
}
