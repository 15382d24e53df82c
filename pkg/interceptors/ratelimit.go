package interceptors

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/aqarbay-api/pkg/httpx"
	"github.com/FACorreiaa/aqarbay-api/pkg/observability"
)

// Window is a fixed-window request budget.
type Window struct {
	Name   string
	Period time.Duration
	Limit  int64
}

// Route classes and their per-client budgets.
var DefaultWindows = map[string][]Window{
	"public": {
		{Name: "minute", Period: time.Minute, Limit: 60},
		{Name: "hour", Period: time.Hour, Limit: 1000},
		{Name: "day", Period: 24 * time.Hour, Limit: 10000},
	},
	"admin": {
		{Name: "minute", Period: time.Minute, Limit: 120},
		{Name: "hour", Period: time.Hour, Limit: 5000},
		{Name: "day", Period: 24 * time.Hour, Limit: 50000},
	},
}

// WindowLimiter counts requests per key and window.
type WindowLimiter interface {
	// Allow reports whether key is within every window. When it is not,
	// the exhausted window is returned.
	Allow(ctx context.Context, key string, windows []Window) (bool, Window, error)
}

// RedisWindowLimiter keeps fixed-window counters in Redis so limits hold
// across replicas.
type RedisWindowLimiter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisWindowLimiter(client *redis.Client) *RedisWindowLimiter {
	return &RedisWindowLimiter{client: client, prefix: "rate_limit", now: time.Now}
}

func (l *RedisWindowLimiter) Allow(ctx context.Context, key string, windows []Window) (bool, Window, error) {
	now := l.now()
	pipe := l.client.TxPipeline()
	counters := make([]*redis.IntCmd, len(windows))
	for i, w := range windows {
		bucket := now.Unix() / int64(w.Period/time.Second)
		redisKey := fmt.Sprintf("%s:%s:%s:%d", l.prefix, key, w.Name, bucket)
		counters[i] = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, w.Period)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return true, Window{}, fmt.Errorf("rate limit pipeline failed: %w", err)
	}
	for i, w := range windows {
		if counters[i].Val() > w.Limit {
			return false, w, nil
		}
	}
	return true, Window{}, nil
}

// RouteClass maps a request to a key of DefaultWindows. An empty class
// disables per-client limiting for the request.
func RouteClass(r *http.Request) string {
	switch {
	case r.URL.Path == "/" || r.URL.Path == "/health" || r.URL.Path == "/ready" || r.URL.Path == "/metrics":
		return ""
	case strings.HasPrefix(r.URL.Path, "/api/admin/"):
		return "admin"
	default:
		return "public"
	}
}

// NewRateLimitMiddleware applies a process-wide token bucket and, when
// windows is non-nil, per-client fixed windows. Window limiter errors let the
// request through.
func NewRateLimitMiddleware(global *rate.Limiter, windows WindowLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			class := RouteClass(r)
			if class == "" {
				next.ServeHTTP(w, r)
				return
			}

			if global != nil && !global.Allow() {
				observability.RateLimitedTotal.WithLabelValues("global").Inc()
				tooManyRequests(w, r, "server is busy, try again shortly")
				return
			}

			if windows != nil {
				key := class + ":" + clientIP(r)
				ok, exhausted, err := windows.Allow(r.Context(), key, DefaultWindows[class])
				if err != nil {
					logger.Warn("rate limiter unavailable, allowing request", appendLoggerFields(r.Context(), "error", err)...)
				} else if !ok {
					observability.RateLimitedTotal.WithLabelValues(class).Inc()
					tooManyRequests(w, r, fmt.Sprintf("rate limit exceeded: %d requests per %s", exhausted.Limit, exhausted.Name))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func tooManyRequests(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("Retry-After", strconv.Itoa(60))
	httpx.WriteProblem(w, http.StatusTooManyRequests, "Too Many Requests", detail, r.URL.Path)
}
