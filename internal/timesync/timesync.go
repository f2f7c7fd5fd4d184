// Package timesync resolves a trustworthy "now" for a session and
// free-runs the countdown from that single anchor. The time authority
// is queried exactly once per session; after that only the local
// monotonic clock advances the countdown.
package timesync

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TimeSource is the external time authority. Implementations must
// honor the context deadline.
type TimeSource interface {
	Now(ctx context.Context) (time.Time, error)
}

// Anchor is a fixed reference point: a trusted wall-clock reading, the
// local monotonic instant it was taken at, and the session deadline
// derived from it. An Anchor is immutable; pausing the visible
// countdown never moves the deadline.
type Anchor struct {
	trustedNow    time.Time
	anchoredAt    time.Time
	deadline      time.Time
	fromAuthority bool
}

// ResolveDeadline anchors the session clock and computes the deadline
// examStart + durationMinutes. One call to the time authority is
// attempted; any failure (network error, timeout, malformed response)
// falls back to the local device clock so the session can always
// start.
func ResolveDeadline(ctx context.Context, src TimeSource, examStart time.Time, durationMinutes int, log zerolog.Logger) Anchor {
	deadline := examStart.Add(time.Duration(durationMinutes) * time.Minute)

	now, err := src.Now(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Time authority unreachable, falling back to local clock")
		return Anchor{
			trustedNow: time.Now(),
			anchoredAt: time.Now(),
			deadline:   deadline,
		}
	}

	return Anchor{
		trustedNow:    now,
		anchoredAt:    time.Now(),
		deadline:      deadline,
		fromAuthority: true,
	}
}

// LocalAnchor builds an anchor directly from the local clock. Used
// when no time authority is configured.
func LocalAnchor(examStart time.Time, durationMinutes int) Anchor {
	return Anchor{
		trustedNow: time.Now(),
		anchoredAt: time.Now(),
		deadline:   examStart.Add(time.Duration(durationMinutes) * time.Minute),
	}
}

// Deadline returns the fixed session deadline.
func (a Anchor) Deadline() time.Time {
	return a.deadline
}

// FromAuthority reports whether the anchor came from the time
// authority rather than the local-clock fallback.
func (a Anchor) FromAuthority() bool {
	return a.fromAuthority
}

// Remaining derives the seconds left on the countdown from local
// elapsed time: max(0, deadline - (anchor + elapsed)).
func (a Anchor) Remaining() int {
	current := a.trustedNow.Add(time.Since(a.anchoredAt))
	rem := a.deadline.Sub(current)
	if rem <= 0 {
		return 0
	}
	return int(rem / time.Second)
}

// Expired reports whether the deadline has passed.
func (a Anchor) Expired() bool {
	return a.Remaining() == 0
}
