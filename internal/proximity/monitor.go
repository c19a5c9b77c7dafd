// Package proximity implements the per-session proximity engine: it consumes
// location fixes, scans live user locations and tourist objects for targets
// within range, throttles repeat alerts per target, and republishes the
// session's own location.
package proximity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/touristquiz/api/internal/geo"
	"github.com/touristquiz/api/internal/metrics"
)

const (
	// Alert radii, inclusive: a target exactly on the boundary is in range.
	UserRadiusMeters   = 30.0
	ObjectRadiusMeters = 30.0

	// Minimum gap between two alerts for the same target.
	UserCooldown   = 5 * time.Minute
	ObjectCooldown = 10 * time.Minute

	// OnlineWindow is how fresh a published location must be to count as live.
	OnlineWindow = 2 * time.Minute
)

// ErrPermissionDenied is the fatal-to-self condition raised by a location
// source that has lost its permission to sample. The monitor stops cleanly
// instead of retrying.
var ErrPermissionDenied = errors.New("location permission denied")

// Fix is a single location sample.
type Fix struct {
	Lat float64
	Lng float64
	At  time.Time
}

// Target is a candidate for a proximity alert: another user's live location
// or a tourist object.
type Target struct {
	ID   string
	Name string
	Lat  float64
	Lng  float64
}

// Alert is delivered to the session owner when a target comes within range.
type Alert struct {
	Kind     string `json:"kind"` // "user" or "object"
	TargetID string `json:"targetId"`
	Name     string `json:"name"`
	Meters   int    `json:"meters"`
}

// Presence identifies the session owner in the shared location store. The
// profile image reference is cached here once, at session start, and
// republished with every fix.
type Presence struct {
	UID             string
	Name            string
	ProfileImageURL string
}

// Store is the view of the shared location and object collections the
// monitor needs.
type Store interface {
	// LiveUsers returns published locations no older than window.
	LiveUsers(ctx context.Context, window time.Duration) ([]Target, error)
	Objects(ctx context.Context) ([]Target, error)
	PublishLocation(ctx context.Context, p Presence, fix Fix) error
	RemoveLocation(ctx context.Context, uid string) error
}

// Alerter receives proximity alerts for a user.
type Alerter interface {
	Alert(uid string, a Alert)
}

// AlerterFunc adapts a function to the Alerter interface.
type AlerterFunc func(uid string, a Alert)

func (f AlerterFunc) Alert(uid string, a Alert) { f(uid, a) }

type sample struct {
	fix Fix
	err error
}

// Monitor runs the proximity engine for one session. It is push-driven:
// Deliver feeds it fixes, Fail injects a terminal source error, Stop ends
// the session. Run owns all state and must be started exactly once.
type Monitor struct {
	self    Presence
	store   Store
	alerter Alerter
	logger  *slog.Logger

	users   *Throttle
	objects *Throttle

	samples  chan sample
	stopOnce sync.Once
	stopped  chan struct{}
}

func NewMonitor(self Presence, store Store, alerter Alerter, logger *slog.Logger) *Monitor {
	return &Monitor{
		self:    self,
		store:   store,
		alerter: alerter,
		logger:  logger.With("component", "proximity", "uid", self.UID),
		users:   NewThrottle(UserCooldown),
		objects: NewThrottle(ObjectCooldown),
		samples: make(chan sample, 1),
		stopped: make(chan struct{}),
	}
}

// Deliver hands a fix to the monitor. Fixes arriving faster than the monitor
// can process are dropped; the next sample supersedes them anyway.
func (m *Monitor) Deliver(fix Fix) {
	select {
	case <-m.stopped:
	case m.samples <- sample{fix: fix}:
	default:
	}
}

// Fail injects a terminal error from the location source.
func (m *Monitor) Fail(err error) {
	select {
	case <-m.stopped:
	case m.samples <- sample{err: err}:
	}
}

// Stop ends the monitoring session. Safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopped) })
}

// Run processes samples until the session ends. On exit the monitor removes
// its own published location so the user neither appears online nor gets
// alerted upon after stopping. A permission-denied sample returns
// ErrPermissionDenied; every other exit path returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.cleanup()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.stopped:
			return nil
		case s := <-m.samples:
			if s.err != nil {
				if errors.Is(s.err, ErrPermissionDenied) {
					m.logger.Warn("location permission denied, stopping monitor")
					m.Stop()
					return ErrPermissionDenied
				}
				m.logger.Warn("location source error", "error", s.err)
				continue
			}
			m.handleFix(ctx, s.fix)
		}
	}
}

// handleFix runs the three sub-actions of a cycle. They share the fix but
// not any mutable state, so they run concurrently; none blocks the others.
func (m *Monitor) handleFix(ctx context.Context, fix Fix) {
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		m.scanUsers(ctx, fix)
	}()
	go func() {
		defer wg.Done()
		m.scanObjects(ctx, fix)
	}()
	go func() {
		defer wg.Done()
		if err := m.store.PublishLocation(ctx, m.self, fix); err != nil {
			m.logger.Warn("publishing own location failed", "error", err)
		}
	}()

	wg.Wait()
}

// scanUsers alerts for every other live user within range. A read failure is
// logged and the cycle skipped; the monitor keeps running.
func (m *Monitor) scanUsers(ctx context.Context, fix Fix) {
	targets, err := m.store.LiveUsers(ctx, OnlineWindow)
	if err != nil {
		m.logger.Warn("user scan failed", "error", err)
		return
	}
	for _, t := range targets {
		if t.ID == m.self.UID {
			continue
		}
		m.evaluate("user", t, fix, UserRadiusMeters, m.users)
	}
}

func (m *Monitor) scanObjects(ctx context.Context, fix Fix) {
	targets, err := m.store.Objects(ctx)
	if err != nil {
		m.logger.Warn("object scan failed", "error", err)
		return
	}
	for _, t := range targets {
		m.evaluate("object", t, fix, ObjectRadiusMeters, m.objects)
	}
}

func (m *Monitor) evaluate(kind string, t Target, fix Fix, radius float64, throttle *Throttle) {
	dist := geo.DistanceMeters(fix.Lat, fix.Lng, t.Lat, t.Lng)
	if dist > radius {
		return
	}
	if !throttle.ShouldNotify(t.ID, fix.At) {
		metrics.AlertsThrottled.WithLabelValues(kind).Inc()
		return
	}
	metrics.AlertsSent.WithLabelValues(kind).Inc()
	m.alerter.Alert(m.self.UID, Alert{
		Kind:     kind,
		TargetID: t.ID,
		Name:     t.Name,
		Meters:   int(dist),
	})
}

func (m *Monitor) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.RemoveLocation(ctx, m.self.UID); err != nil {
		m.logger.Warn("removing own location failed", "error", err)
	}
}
