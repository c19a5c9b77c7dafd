package proximity

import (
	"sync"
	"time"
)

// Throttle tracks, per target id, when the last alert for that target was
// sent, and refuses a new alert until the cooldown has elapsed. State lives
// in process memory only; a restarted monitor starts with a clean slate.
type Throttle struct {
	cooldown time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewThrottle(cooldown time.Duration) *Throttle {
	return &Throttle{
		cooldown: cooldown,
		lastSent: make(map[string]time.Time),
	}
}

// ShouldNotify reports whether an alert for targetID may be sent at now.
// When it returns true it records now as the new last-sent time; otherwise
// state is unchanged. The check-and-update is atomic per call.
func (t *Throttle) ShouldNotify(targetID string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.lastSent[targetID]
	if ok && now.Sub(last) <= t.cooldown {
		return false
	}
	t.lastSent[targetID] = now
	return true
}
