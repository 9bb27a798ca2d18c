package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// guardBucket is one caller's fixed window.
type guardBucket struct {
	mu          sync.Mutex
	points      float64
	windowStart time.Time
}

// RateGuard is the ingress guard: a fixed-window counter per caller key
// plus an independent trip-counter circuit breaker. The breaker counts
// consecutive guard violations, not engine failures; it protects the
// orchestrator itself from being used as an amplification vector.
type RateGuard struct {
	mu      sync.RWMutex
	buckets map[string]*guardBucket

	capacity float64
	window   time.Duration

	breakerMu      sync.Mutex
	violations     int
	firstViolation time.Time
	trippedUntil   time.Time

	breakerThreshold int
	breakerWindow    time.Duration
	cooldown         time.Duration

	// now is overridable for tests
	now func() time.Time
}

func NewRateGuard(capacity float64, window time.Duration, breakerThreshold int, breakerWindow, cooldown time.Duration) *RateGuard {
	g := &RateGuard{
		buckets:          make(map[string]*guardBucket),
		capacity:         capacity,
		window:           window,
		breakerThreshold: breakerThreshold,
		breakerWindow:    breakerWindow,
		cooldown:         cooldown,
		now:              time.Now,
	}

	// Drop idle buckets so the key space stays bounded
	go g.cleanup()

	return g
}

// Consume charges cost points against the key's current window. When the
// guard rejects, retryAfter is the seconds until the caller may try again.
func (g *RateGuard) Consume(key string, cost float64) (allowed bool, retryAfter float64) {
	now := g.now()

	if remaining, tripped := g.trippedFor(now); tripped {
		return false, remaining
	}

	b := g.getBucket(key)
	b.mu.Lock()
	if b.windowStart.IsZero() || now.Sub(b.windowStart) >= g.window {
		b.windowStart = now
		b.points = 0
	}
	if b.points+cost > g.capacity {
		retry := (g.window - now.Sub(b.windowStart)).Seconds()
		b.mu.Unlock()
		g.recordViolation(now)
		return false, retry
	}
	b.points += cost
	b.mu.Unlock()

	g.recordSuccess()
	return true, 0
}

func (g *RateGuard) getBucket(key string) *guardBucket {
	g.mu.RLock()
	b, exists := g.buckets[key]
	g.mu.RUnlock()
	if exists {
		return b
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Double-check after acquiring write lock
	if b, exists := g.buckets[key]; exists {
		return b
	}
	b = &guardBucket{}
	g.buckets[key] = b
	return b
}

func (g *RateGuard) trippedFor(now time.Time) (float64, bool) {
	g.breakerMu.Lock()
	defer g.breakerMu.Unlock()
	if now.Before(g.trippedUntil) {
		return g.trippedUntil.Sub(now).Seconds(), true
	}
	return 0, false
}

func (g *RateGuard) recordViolation(now time.Time) {
	g.breakerMu.Lock()
	defer g.breakerMu.Unlock()

	if g.firstViolation.IsZero() || now.Sub(g.firstViolation) > g.breakerWindow {
		g.firstViolation = now
		g.violations = 0
	}
	g.violations++
	if g.breakerThreshold > 0 && g.violations >= g.breakerThreshold {
		g.trippedUntil = now.Add(g.cooldown)
		g.violations = 0
		g.firstViolation = time.Time{}
	}
}

func (g *RateGuard) recordSuccess() {
	g.breakerMu.Lock()
	g.violations = 0
	g.firstViolation = time.Time{}
	g.breakerMu.Unlock()
}

func (g *RateGuard) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := g.now()
		g.mu.Lock()
		for key, b := range g.buckets {
			b.mu.Lock()
			idle := !b.windowStart.IsZero() && now.Sub(b.windowStart) > 10*g.window
			b.mu.Unlock()
			if idle {
				delete(g.buckets, key)
			}
		}
		g.mu.Unlock()
	}
}

// ClientKey extracts the caller identity from the remote address.
func ClientKey(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// RateGuardMiddleware applies the guard to every request except the
// health and metrics probes.
func RateGuardMiddleware(guard *RateGuard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, retryAfter := guard.Consume(ClientKey(r.RemoteAddr), 1)
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter))))
				http.Error(w, "rate limit exceeded, please try again later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
