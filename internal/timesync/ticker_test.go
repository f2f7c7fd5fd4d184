package timesync

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func liveAnchor(minutes int) Anchor {
	return LocalAnchor(time.Now(), minutes)
}

func expiredAnchor() Anchor {
	return LocalAnchor(time.Now().Add(-time.Hour), 30)
}

func TestTickInvokesCallbackWhileRunning(t *testing.T) {
	var got []int
	tk := NewTicker(liveAnchor(30), func(rem int) { got = append(got, rem) }, nil, zerolog.Nop())

	if done := tk.tick(); done {
		t.Fatal("tick on a live anchor should not report done")
	}
	if len(got) != 1 {
		t.Fatalf("onTick fired %d times, want 1", len(got))
	}
	if got[0] < 1798 || got[0] > 1800 {
		t.Errorf("onTick remaining = %d, want about 1800", got[0])
	}
}

func TestTickSuppressedWhilePaused(t *testing.T) {
	ticks := 0
	tk := NewTicker(liveAnchor(30), func(int) { ticks++ }, nil, zerolog.Nop())

	tk.Pause()
	if !tk.Paused() {
		t.Fatal("Paused() should report true after Pause")
	}
	if done := tk.tick(); done {
		t.Fatal("paused tick should not report done")
	}
	if ticks != 0 {
		t.Errorf("onTick fired %d times while paused, want 0", ticks)
	}

	tk.Resume()
	tk.tick()
	if ticks != 1 {
		t.Errorf("onTick fired %d times after resume, want 1", ticks)
	}
}

func TestExpiryFiresExactlyOnce(t *testing.T) {
	expires := 0
	tk := NewTicker(expiredAnchor(), nil, func() { expires++ }, zerolog.Nop())

	if done := tk.tick(); !done {
		t.Fatal("tick on an expired anchor should report done")
	}
	// Further ticks are no-ops once expiry has fired.
	tk.tick()
	tk.tick()

	if expires != 1 {
		t.Errorf("onExpire fired %d times, want 1", expires)
	}
}

func TestExpiryFiresEvenWhilePaused(t *testing.T) {
	expires := 0
	tk := NewTicker(expiredAnchor(), nil, func() { expires++ }, zerolog.Nop())

	tk.Pause()
	tk.tick()

	if expires != 1 {
		t.Errorf("onExpire fired %d times while paused, want 1", expires)
	}
}

func TestPauseDoesNotExtendDeadline(t *testing.T) {
	tk := NewTicker(liveAnchor(30), nil, nil, zerolog.Nop())

	before := tk.anchor.Deadline()
	tk.Pause()
	time.Sleep(10 * time.Millisecond)
	tk.Resume()

	if !tk.anchor.Deadline().Equal(before) {
		t.Error("deadline moved across a pause/resume cycle")
	}
}

func TestStopIsIdempotentAndHaltsTicks(t *testing.T) {
	ticks := 0
	tk := NewTicker(liveAnchor(30), func(int) { ticks++ }, nil, zerolog.Nop())

	tk.Stop()
	tk.Stop()

	if done := tk.tick(); !done {
		t.Fatal("tick after Stop should report done")
	}
	if ticks != 0 {
		t.Errorf("onTick fired %d times after Stop, want 0", ticks)
	}
}
