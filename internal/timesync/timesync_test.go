package timesync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type stubSource struct {
	now time.Time
	err error
}

func (s stubSource) Now(ctx context.Context) (time.Time, error) {
	return s.now, s.err
}

func TestResolveDeadlineFromAuthority(t *testing.T) {
	// The authority says it is exactly the exam start, so a 30 minute
	// exam has the full 1800 seconds left regardless of the local clock.
	start := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	src := stubSource{now: start}

	a := ResolveDeadline(context.Background(), src, start, 30, zerolog.Nop())

	if !a.FromAuthority() {
		t.Error("anchor should report authority origin")
	}
	if got := a.Deadline(); !got.Equal(start.Add(30 * time.Minute)) {
		t.Errorf("Deadline() = %v, want %v", got, start.Add(30*time.Minute))
	}
	if rem := a.Remaining(); rem < 1798 || rem > 1800 {
		t.Errorf("Remaining() = %d, want about 1800", rem)
	}
}

func TestResolveDeadlineLocalFallback(t *testing.T) {
	src := stubSource{err: errors.New("authority down")}
	start := time.Now()

	a := ResolveDeadline(context.Background(), src, start, 30, zerolog.Nop())

	if a.FromAuthority() {
		t.Error("fallback anchor should not report authority origin")
	}
	if rem := a.Remaining(); rem < 1798 || rem > 1800 {
		t.Errorf("Remaining() after fallback = %d, want about 1800", rem)
	}
}

func TestRemainingClampsAtZero(t *testing.T) {
	src := stubSource{now: time.Now()}
	start := time.Now().Add(-2 * time.Hour)

	a := ResolveDeadline(context.Background(), src, start, 30, zerolog.Nop())

	if rem := a.Remaining(); rem != 0 {
		t.Errorf("Remaining() past deadline = %d, want 0", rem)
	}
	if !a.Expired() {
		t.Error("anchor past deadline should report expired")
	}
}

func TestRemainingUsesAuthorityOffset(t *testing.T) {
	// Local clock is irrelevant: the authority reports a time 10
	// minutes into the exam, so 20 of 30 minutes remain.
	start := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	src := stubSource{now: start.Add(10 * time.Minute)}

	a := ResolveDeadline(context.Background(), src, start, 30, zerolog.Nop())

	if rem := a.Remaining(); rem < 1198 || rem > 1200 {
		t.Errorf("Remaining() = %d, want about 1200", rem)
	}
}

func TestLocalAnchor(t *testing.T) {
	a := LocalAnchor(time.Now(), 45)
	if a.FromAuthority() {
		t.Error("local anchor must not claim authority origin")
	}
	if rem := a.Remaining(); rem < 2698 || rem > 2700 {
		t.Errorf("Remaining() = %d, want about 2700", rem)
	}
}
