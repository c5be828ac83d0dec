package scanner

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/maxvaer/dirsift/internal/logger"
)

// Throttler spaces out requests. With adaptive mode on, 429/503 responses
// and runs of connection errors double the delay; healthy responses halve
// it back toward the configured base.
type Throttler struct {
	mu           sync.Mutex
	baseDelay    time.Duration
	currentDelay time.Duration
	maxDelay     time.Duration
	consecutive  int // consecutive throttle signals
	enabled      bool
	log          *slog.Logger
}

// NewThrottler creates a throttler starting at baseDelay.
func NewThrottler(baseDelay time.Duration, adaptive bool, log *slog.Logger) *Throttler {
	if log == nil {
		log = logger.Discard()
	}
	return &Throttler{
		baseDelay:    baseDelay,
		currentDelay: baseDelay,
		maxDelay:     30 * time.Second,
		enabled:      adaptive,
		log:          log,
	}
}

// Delay returns the current per-request delay.
func (t *Throttler) Delay() time.Duration {
	if !t.enabled {
		return t.baseDelay
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentDelay
}

// RecordStatus updates the throttler based on a response status code.
func (t *Throttler) RecordStatus(statusCode int) {
	if !t.enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if statusCode == http.StatusTooManyRequests || statusCode == http.StatusServiceUnavailable {
		t.consecutive++
		// Exponential back-off: double the delay, up to maxDelay.
		newDelay := t.currentDelay * 2
		if newDelay < 500*time.Millisecond {
			newDelay = 500 * time.Millisecond
		}
		if newDelay > t.maxDelay {
			newDelay = t.maxDelay
		}
		if newDelay != t.currentDelay {
			t.currentDelay = newDelay
			t.log.Warn("rate limited, backing off", "status", statusCode, "delay", t.currentDelay)
		}
	} else {
		if t.consecutive > 0 {
			t.consecutive = 0
			// Gradually recover: halve delay toward base, but not below base.
			newDelay := t.currentDelay / 2
			if newDelay < t.baseDelay {
				newDelay = t.baseDelay
			}
			if newDelay != t.currentDelay {
				t.currentDelay = newDelay
				t.log.Info("recovering from rate limit", "delay", t.currentDelay)
			}
		}
	}
}

// RecordError counts a connection error as a possible rate limit signal.
func (t *Throttler) RecordError() {
	if !t.enabled {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutive++
	if t.consecutive >= 3 {
		newDelay := t.currentDelay * 2
		if newDelay < 500*time.Millisecond {
			newDelay = 500 * time.Millisecond
		}
		if newDelay > t.maxDelay {
			newDelay = t.maxDelay
		}
		if newDelay != t.currentDelay {
			t.currentDelay = newDelay
			t.log.Warn("repeated connection errors, backing off", "delay", t.currentDelay)
		}
	}
}
