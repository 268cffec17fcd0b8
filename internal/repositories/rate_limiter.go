package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aryankhatri/food-ordering-platform/internal/config"
	"github.com/redis/go-redis/v9"
)

type RateLimitRepository interface {
	CheckRateLimit(ctx context.Context, clientIP string) (bool, int, error)
}

type rateLimitRepository struct {
	client *redis.Client
	cfg    *config.RateConfig
}

func NewRateLimitRepo(client *redis.Client, cfg *config.RateConfig) RateLimitRepository {
	return &rateLimitRepository{client: client, cfg: cfg}
}

// CheckRateLimit enforces a sliding window per client IP over a redis sorted
// set. Returns whether the request is allowed and, when it is not, how many
// seconds to wait before retrying.
func (r *rateLimitRepository) CheckRateLimit(ctx context.Context, clientIP string) (bool, int, error) {

	key := fmt.Sprintf("rate:cart:%s", clientIP)

	now := time.Now().UnixNano()

	windowStart := now - r.cfg.WindowSize.Nanoseconds()

	pipe := r.client.Pipeline()

	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	count := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, r.cfg.WindowSize)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("redis pipeline error for rate limit check: %w", err)
	}

	requests := count.Val()

	if requests > r.cfg.MaxRequests {

		oldest, err := r.client.ZRangeArgsWithScores(ctx, redis.ZRangeArgs{
			Key: key, Start: 0, Stop: 0,
		}).Result()
		if err != nil || len(oldest) == 0 {
			return false, int(r.cfg.WindowSize.Seconds()), nil
		}

		oldestNano := int64(oldest[0].Score)
		retryAfter := max((oldestNano+r.cfg.WindowSize.Nanoseconds()-now)/int64(time.Second), 0)

		slog.Warn("Rate limit exceeded", slog.String("client_ip", clientIP), slog.Int64("requests", requests))
		return false, int(retryAfter), nil
	}

	return true, 0, nil
}
