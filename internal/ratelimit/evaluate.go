package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/beaconhq/beacon/internal/cache"
	"github.com/beaconhq/beacon/internal/config"
	"github.com/beaconhq/beacon/internal/observability/metrics"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyEvaluateEnv = "evaluate:env:%s"

const evaluateEndpoint = "evaluate"

type Params struct {
	fx.In

	Config  config.Config
	Holder  *config.EngineConfigHolder
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

// EvaluateLimiter throttles the SDK evaluate endpoint per environment.
// With redis configured the bucket is shared across replicas; without
// it the limiter degrades to a per-process bucket rather than failing
// open entirely.
type EvaluateLimiter struct {
	holder  *config.EngineConfigHolder
	metrics *metrics.Metrics
	log     *zap.Logger

	bucket *TokenBucket
	local  cache.Cache[string, *localBucket]
}

type localBucket struct {
	mu     sync.Mutex
	tokens float64
	ts     time.Time
}

func NewEvaluateLimiter(p Params) *EvaluateLimiter {
	limiter := &EvaluateLimiter{
		holder:  p.Holder,
		metrics: p.Metrics,
		log:     p.Log.Named("ratelimit.evaluate"),
		local:   cache.NewTTLCache[string, *localBucket](),
	}

	if addr := strings.TrimSpace(p.Config.RedisAddr); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: strings.TrimSpace(p.Config.RedisPassword),
			DB:       p.Config.RedisDB,
		})
		limiter.bucket = NewTokenBucket(client)
	} else {
		limiter.log.Info("redis not configured, evaluate rate limit is per process")
	}

	return limiter
}

// Allow reports whether this evaluate call may proceed. Limits come
// from the hot-reloaded engine config, so zero or negative values turn
// the limiter off without a restart.
func (l *EvaluateLimiter) Allow(ctx context.Context, environmentKey string) bool {
	cfg := l.holder.Get()
	if cfg.EvaluateRatePerSec <= 0 || cfg.EvaluateBurst <= 0 {
		return true
	}

	allowed := l.allow(ctx, environmentKey, cfg.EvaluateRatePerSec, cfg.EvaluateBurst)
	if allowed {
		l.metrics.RecordRateLimitAllowed(ctx, environmentKey, evaluateEndpoint)
	} else {
		l.metrics.RecordRateLimitDenied(ctx, environmentKey, evaluateEndpoint, "rate_exceeded")
	}
	return allowed
}

func (l *EvaluateLimiter) allow(ctx context.Context, environmentKey string, rate float64, burst int) bool {
	if l.bucket != nil {
		allowed, err := l.bucket.Allow(ctx, fmt.Sprintf(keyEvaluateEnv, environmentKey), rate, burst)
		if err == nil {
			return allowed
		}
		// Redis trouble must not take evaluation down with it.
		l.log.Warn("redis rate limit check failed, using local bucket", zap.Error(err))
	}
	return l.allowLocal(environmentKey, rate, burst)
}

func (l *EvaluateLimiter) allowLocal(environmentKey string, rate float64, burst int) bool {
	now := time.Now()
	ttl := defaultBucketTTL(rate, burst)

	bucket, ok := l.local.Get(environmentKey)
	if !ok {
		bucket = &localBucket{tokens: float64(burst), ts: now}
		l.local.Set(environmentKey, bucket, ttl)
	}

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	elapsed := now.Sub(bucket.ts).Seconds()
	if elapsed > 0 {
		bucket.tokens += elapsed * rate
		if bucket.tokens > float64(burst) {
			bucket.tokens = float64(burst)
		}
		bucket.ts = now
	}

	if bucket.tokens < 1 {
		return false
	}
	bucket.tokens--
	return true
}
