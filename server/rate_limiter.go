package server

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-bridge/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const limiterCleanupInterval = 5 * time.Minute

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter throttles auth form posts per client address.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	metrics metrics.Recorder
	now     func() time.Time

	lock     sync.Mutex
	limiters map[string]*clientLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(limit rate.Limit, burst int, recorder metrics.Recorder) *RateLimiter {
	rl := &RateLimiter{
		limit:    limit,
		burst:    burst,
		metrics:  recorder,
		now:      time.Now,
		limiters: make(map[string]*clientLimiter),
		stopCh:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the background cleanup.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware rejects requests over the limit with 429 and a Retry-After header.
func (rl *RateLimiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := clientAddress(r)
		if !rl.allow(key) {
			rl.metrics.RecordRateLimited(r.URL.Path)
			log.Warn().Str("client", key).Str("path", r.URL.Path).Msg("rate limit exceeded")
			writeRateLimitResponse(w, rl.limit)
			return
		}
		next(w, r)
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.lock.Lock()
	defer rl.lock.Unlock()

	cl, ok := rl.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = cl
	}
	cl.lastAccess = rl.now()
	return cl.limiter.AllowN(cl.lastAccess, 1)
}

// Len is the number of tracked client addresses.
func (rl *RateLimiter) Len() int {
	rl.lock.Lock()
	defer rl.lock.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(2 * limiterCleanupInterval)
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup forgets clients not seen for longer than ttl.
func (rl *RateLimiter) cleanup(ttl time.Duration) {
	now := rl.now()
	rl.lock.Lock()
	defer rl.lock.Unlock()
	for key, cl := range rl.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.limiters, key)
		}
	}
}

func writeRateLimitResponse(w http.ResponseWriter, limit rate.Limit) {
	retryAfter := 1
	if limit > 0 {
		retryAfter = int(math.Max(1, math.Ceil(1/float64(limit))))
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	http.Error(w, "Too many requests. Please wait and try again.", http.StatusTooManyRequests)
}

// clientAddress is the first X-Forwarded-For hop, or the remote host.
func clientAddress(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
