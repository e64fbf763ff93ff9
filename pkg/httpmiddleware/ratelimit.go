package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Decision is the outcome of counting one request against a key.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts requests per key over a sliding window.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (Decision, error)
}

// RateLimit rejects requests over the limiter's budget with 429 and sets the
// X-RateLimit-* headers on every response. key defaults to the client IP.
// When the limiter itself fails the request is let through and the error is
// logged.
func RateLimit(l Limiter, key func(*http.Request) string) Middleware {
	if key == nil {
		key = clientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := l.Allow(r.Context(), key(r), time.Now())
			if err != nil {
				zctx.From(r.Context()).Warn("Rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				retry := max(time.Until(d.ResetAt), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ShopperKey limits identified shoppers individually and everyone else by
// client IP, so shoppers behind one NAT do not share a budget.
func ShopperKey(r *http.Request) string {
	if id := r.Header.Get(ShopperHeader); id != "" {
		return "shopper:" + id
	}
	return "ip:" + clientIP(r)
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// MemoryLimiter is a process-local limiter. It approximates a sliding window
// from two fixed windows, weighting the previous one by its overlap.
type MemoryLimiter struct {
	max    int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*windowPair
}

type windowPair struct {
	prev, curr float64
	currStart  time.Time
}

// NewMemoryLimiter allows max requests per key within window.
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{max: max, window: window, windows: make(map[string]*windowPair)}
}

// Allow implements Limiter. It never fails.
func (m *MemoryLimiter) Allow(_ context.Context, key string, now time.Time) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.windows[key]
	if !ok {
		p = &windowPair{currStart: now.Truncate(m.window)}
		m.windows[key] = p
	}
	if elapsed := now.Sub(p.currStart); elapsed >= m.window {
		p.prev = p.curr
		if elapsed >= 2*m.window {
			p.prev = 0
		}
		p.curr = 0
		p.currStart = now.Truncate(m.window)
	}

	overlap := max(1-now.Sub(p.currStart).Seconds()/m.window.Seconds(), 0)
	count := p.prev*overlap + p.curr
	d := Decision{Limit: m.max, ResetAt: p.currStart.Add(m.window)}
	if count >= float64(m.max) {
		return d, nil
	}
	p.curr++
	d.Allowed = true
	d.Remaining = max(int(float64(m.max)-count-1), 0)
	return d, nil
}

// Start evicts idle keys every two windows until ctx is done.
func (m *MemoryLimiter) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(2 * m.window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.evict(now)
			}
		}
	}()
}

func (m *MemoryLimiter) evict(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, p := range m.windows {
		if now.Sub(p.currStart) >= 2*m.window {
			delete(m.windows, key)
		}
	}
}

// RedisLimiter keeps an exact sliding log per key in a Redis sorted set, so
// every replica shares one budget. Rejected requests are not counted.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	max    int
	window time.Duration
}

// NewRedisLimiter allows max requests per key within window. Keys are stored
// under prefix.
func NewRedisLimiter(client redis.UniversalClient, prefix string, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, max: max, window: window}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string, now time.Time) (Decision, error) {
	redisKey := l.prefix + key
	member := uuid.NewString()
	cutoff := strconv.FormatInt(now.Add(-l.window).UnixMicro(), 10)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", cutoff)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMicro()), Member: member})
	count := pipe.ZCard(ctx, redisKey)
	oldest := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	pipe.PExpire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, errors.Wrap(err, "count request")
	}

	d := Decision{Limit: l.max, ResetAt: now.Add(l.window)}
	if zs := oldest.Val(); len(zs) > 0 {
		d.ResetAt = time.UnixMicro(int64(zs[0].Score)).Add(l.window)
	}

	n := int(count.Val())
	if n > l.max {
		if err := l.client.ZRem(ctx, redisKey, member).Err(); err != nil {
			return Decision{}, errors.Wrap(err, "uncount rejected request")
		}
		return d, nil
	}
	d.Allowed = true
	d.Remaining = l.max - n
	return d, nil
}

// WriteError writes the API error body {"code","message"}.
func WriteError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
