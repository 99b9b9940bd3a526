package httpx

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	rateBucketTTL        = 5 * time.Minute
	rateBucketSweepEvery = time.Minute
)

// RateLimitConfig configures RateLimitByIP.
type RateLimitConfig struct {
	PerSecond float64
	Burst     int
	// TrustForwardedFor keys buckets on the first X-Forwarded-For address.
	// Only enable behind a proxy that overwrites the header.
	TrustForwardedFor bool
	Now               func() time.Time
}

type rateBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// ipLimiter is a token bucket per client IP. Idle buckets are dropped lazily.
type ipLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*rateBucket
	limit     rate.Limit
	burst     int
	trustXFF  bool
	now       func() time.Time
	lastSweep time.Time
}

func newIPLimiter(cfg RateLimitConfig) *ipLimiter {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ipLimiter{
		buckets:  make(map[string]*rateBucket),
		limit:    rate.Limit(cfg.PerSecond),
		burst:    burst,
		trustXFF: cfg.TrustForwardedFor,
		now:      now,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= rateBucketSweepEvery {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > rateBucketTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &rateBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// RateLimitByIP returns a middleware that answers 429 once a client exceeds its token bucket.
// A non-positive PerSecond disables limiting.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.PerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	l := newIPLimiter(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientIP(r, l.trustXFF)) {
				w.Header().Set("Retry-After", "1")
				WriteError(w, ErrorParams{
					Code:    http.StatusTooManyRequests,
					ErrCode: "rate_limited",
					Err:     errors.New("too many login attempts"),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request, trustXFF bool) string {
	if trustXFF {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
