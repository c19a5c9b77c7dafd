package proximity

import (
	"context"
	"log/slog"
	"sync"
)

// Tracker keeps one running Monitor per active session and routes incoming
// fixes to it. Monitors start lazily on the first fix and are torn down on
// Stop (logout), on a fatal source error, or when the tracker closes.
type Tracker struct {
	store   Store
	alerter Alerter
	logger  *slog.Logger

	mu       sync.Mutex
	monitors map[string]*Monitor
	closed   bool
	wg       sync.WaitGroup
}

func NewTracker(store Store, alerter Alerter, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:    store,
		alerter:  alerter,
		logger:   logger,
		monitors: make(map[string]*Monitor),
	}
}

// Deliver routes a fix to the user's monitor, starting one if needed.
func (t *Tracker) Deliver(self Presence, fix Fix) {
	m := t.monitor(self)
	if m == nil {
		return
	}
	m.Deliver(fix)
}

// Fail reports a terminal location-source error for the user's session.
// Permission denial stops that monitor for good.
func (t *Tracker) Fail(uid string, err error) {
	t.mu.Lock()
	m := t.monitors[uid]
	t.mu.Unlock()
	if m != nil {
		m.Fail(err)
	}
}

// Stop ends the user's monitoring session, removing their published location.
func (t *Tracker) Stop(uid string) {
	t.mu.Lock()
	m := t.monitors[uid]
	delete(t.monitors, uid)
	t.mu.Unlock()
	if m != nil {
		m.Stop()
	}
}

// Close stops all monitors and waits for them to finish their cleanup.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	monitors := t.monitors
	t.monitors = make(map[string]*Monitor)
	t.mu.Unlock()

	for _, m := range monitors {
		m.Stop()
	}
	t.wg.Wait()
}

func (t *Tracker) monitor(self Presence) *Monitor {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	if m, ok := t.monitors[self.UID]; ok {
		return m
	}

	m := NewMonitor(self, t.store, t.alerter, t.logger)
	t.monitors[self.UID] = m

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := m.Run(context.Background()); err != nil {
			t.logger.Warn("monitor stopped", "uid", self.UID, "error", err)
		}
		t.mu.Lock()
		if t.monitors[self.UID] == m {
			delete(t.monitors, self.UID)
		}
		t.mu.Unlock()
	}()

	return m
}
