package proximity

import (
	"testing"
	"time"
)

func TestThrottleFirstAlertPasses(t *testing.T) {
	th := NewThrottle(5 * time.Minute)
	now := time.Now()

	if !th.ShouldNotify("target-1", now) {
		t.Fatal("first alert for a target should pass")
	}
}

func TestThrottleWithinCooldownBlocked(t *testing.T) {
	th := NewThrottle(5 * time.Minute)
	now := time.Now()

	th.ShouldNotify("target-1", now)

	if th.ShouldNotify("target-1", now.Add(4*time.Minute)) {
		t.Error("alert within cooldown should be blocked")
	}
	if th.ShouldNotify("target-1", now.Add(5*time.Minute)) {
		t.Error("alert exactly at cooldown should be blocked")
	}
}

func TestThrottleAfterCooldownPasses(t *testing.T) {
	th := NewThrottle(5 * time.Minute)
	now := time.Now()

	th.ShouldNotify("target-1", now)

	if !th.ShouldNotify("target-1", now.Add(5*time.Minute+time.Second)) {
		t.Fatal("alert after cooldown should pass")
	}
}

func TestThrottleBlockedAttemptKeepsOriginalWindow(t *testing.T) {
	th := NewThrottle(5 * time.Minute)
	now := time.Now()

	th.ShouldNotify("target-1", now)

	// A blocked attempt must not reset the window.
	th.ShouldNotify("target-1", now.Add(4*time.Minute))

	if !th.ShouldNotify("target-1", now.Add(6*time.Minute)) {
		t.Fatal("cooldown window should run from the last sent alert, not the last attempt")
	}
}

func TestThrottleTargetsAreIndependent(t *testing.T) {
	th := NewThrottle(10 * time.Minute)
	now := time.Now()

	th.ShouldNotify("target-1", now)

	if !th.ShouldNotify("target-2", now) {
		t.Fatal("cooldown for one target should not affect another")
	}
}
