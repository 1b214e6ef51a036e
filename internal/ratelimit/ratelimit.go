// Package ratelimit is a per-client token bucket for the write endpoints.
// Buckets are keyed by client address and refill continuously.
package ratelimit

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/carelib/carelib/internal/httputil"
)

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   float64
}

func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		rate:    requestsPerSecond,
		burst:   float64(burst),
	}
	go l.cleanup()
	return l
}

func (l *Limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, exists := l.buckets[key]
	if !exists {
		l.buckets[key] = &bucket{tokens: l.burst - 1, lastSeen: time.Now()}
		return true
	}

	elapsed := time.Since(b.lastSeen).Seconds()
	b.lastSeen = time.Now()
	b.tokens += elapsed * l.rate
	if b.tokens > l.burst {
		b.tokens = l.burst
	}

	if b.tokens < 1 {
		return false
	}

	b.tokens--
	return true
}

func (l *Limiter) cleanup() {
	for {
		time.Sleep(5 * time.Minute)
		l.mu.Lock()
		for key, b := range l.buckets {
			if time.Since(b.lastSeen) > 10*time.Minute {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			key = strings.TrimSpace(strings.Split(forwarded, ",")[0])
		}

		if !l.allow(key) {
			w.Header().Set("Retry-After", "10")
			httputil.WriteError(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}
