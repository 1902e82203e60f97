package authapi

import (
	"strings"
	"sync"
	"time"
)

// LoginThrottle gates login attempts before any credential or store work.
type LoginThrottle interface {
	// Allow records an attempt for (ip, username) and reports whether it is
	// within the window limit. A denied attempt is not recorded.
	Allow(ip, username string, now time.Time) bool
}

// MemoryThrottle is a sliding-window throttle keyed by (ip, lowercased
// username). It is process-local: a multi-instance deployment needs a shared
// implementation behind the same interface.
type MemoryThrottle struct {
	limit  int
	window time.Duration

	mu       sync.Mutex
	attempts map[string][]time.Time
}

// NewMemoryThrottle builds a throttle allowing limit attempts per window.
func NewMemoryThrottle(limit int, window time.Duration) *MemoryThrottle {
	return &MemoryThrottle{
		limit:    limit,
		window:   window,
		attempts: make(map[string][]time.Time),
	}
}

func throttleKey(ip, username string) string {
	return ip + "|" + strings.ToLower(strings.TrimSpace(username))
}

// Allow implements LoginThrottle.
func (t *MemoryThrottle) Allow(ip, username string, now time.Time) bool {
	if t.limit <= 0 {
		return true
	}
	key := throttleKey(ip, username)
	cut := now.Add(-t.window)

	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.attempts[key][:0]
	for _, at := range t.attempts[key] {
		if at.After(cut) {
			kept = append(kept, at)
		}
	}

	if len(kept) >= t.limit {
		if len(kept) > 0 {
			t.attempts[key] = kept
		} else {
			delete(t.attempts, key)
		}
		return false
	}

	t.attempts[key] = append(kept, now)
	return true
}
