package timesync

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Ticker drives the 1-second countdown. Ticks are strictly serialized
// (a single goroutine evaluates the anchor) and the expiry callback
// fires at most once. Pausing suppresses the visible tick callback
// only; the anchor keeps aging and expiry still fires on time, so a
// paused session earns no deadline credit.
type Ticker struct {
	mu       sync.Mutex
	anchor   Anchor
	paused   bool
	stopped  bool
	expired  bool
	stopCh   chan struct{}
	onTick   func(remaining int)
	onExpire func()
	log      zerolog.Logger
}

// NewTicker creates a countdown ticker over a fixed anchor. onTick
// receives the remaining seconds once per second while running and
// not paused; onExpire fires exactly once when the countdown reaches
// zero.
func NewTicker(anchor Anchor, onTick func(remaining int), onExpire func(), log zerolog.Logger) *Ticker {
	return &Ticker{
		anchor:   anchor,
		stopCh:   make(chan struct{}),
		onTick:   onTick,
		onExpire: onExpire,
		log:      log.With().Str("component", "countdown").Logger(),
	}
}

// Start launches the tick loop. Call once; the loop exits on Stop or
// after expiry has fired.
func (t *Ticker) Start() {
	go t.loop()
}

func (t *Ticker) loop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			if done := t.tick(); done {
				return
			}
		}
	}
}

// tick evaluates the anchor once. Callbacks run outside the lock so
// they may freely call back into Pause/Resume/Stop.
func (t *Ticker) tick() (done bool) {
	t.mu.Lock()
	if t.stopped || t.expired {
		t.mu.Unlock()
		return true
	}

	remaining := t.anchor.Remaining()
	fireExpire := remaining == 0
	fireTick := !fireExpire && !t.paused
	if fireExpire {
		t.expired = true
	}
	t.mu.Unlock()

	if fireTick && t.onTick != nil {
		t.onTick(remaining)
	}
	if fireExpire {
		t.log.Info().Msg("Countdown reached zero")
		if t.onExpire != nil {
			t.onExpire()
		}
		return true
	}
	return false
}

// Pause freezes the visible countdown. The deadline is unaffected.
func (t *Ticker) Pause() {
	t.mu.Lock()
	t.paused = true
	t.mu.Unlock()
}

// Resume lifts a pause.
func (t *Ticker) Resume() {
	t.mu.Lock()
	t.paused = false
	t.mu.Unlock()
}

// Paused reports whether the visible countdown is frozen.
func (t *Ticker) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// Stop terminates the tick loop. Safe to call multiple times and from
// within callbacks.
func (t *Ticker) Stop() {
	t.mu.Lock()
	if !t.stopped {
		t.stopped = true
		close(t.stopCh)
	}
	t.mu.Unlock()
}
