package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Countdown is the per-session exam clock. At most one is live per session;
// starting a new one replaces (and halts) the previous, matching the
// at-most-one-live-countdown invariant.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	active    bool
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func newCountdown(durationSeconds int) *Countdown {
	return &Countdown{
		remaining: durationSeconds,
		active:    true,
		stopCh:    make(chan struct{}),
	}
}

// Active reports whether the countdown is still ticking.
func (c *Countdown) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Remaining returns the seconds left on the clock.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// decrement ticks the clock down one second and returns the new value.
func (c *Countdown) decrement() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remaining--
	return c.remaining
}

// halt stops the countdown without firing the end callback. Idempotent.
func (c *Countdown) halt() {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// StartCountdown starts (or restarts) the session clock. Any running
// countdown is halted first so its future ticks never fire. onTick delivers
// the ticking countdown and the remaining seconds after each 1-second
// decrement, so a D-second countdown reports D-1 down to 0; consumers use
// the handle with OwnsCountdown to discard a tick that raced a stop or a
// restart. onEnd fires exactly once when the clock reaches zero, and only
// while the countdown is still the session's current one. A manual or
// replace stop fires no onEnd.
func (st *Store) StartCountdown(sess *Session, durationSeconds int, onTick func(cd *Countdown, remainingSeconds int), onEnd func()) {
	st.mu.Lock()
	if sess.countdown != nil {
		sess.countdown.halt()
		log.Debug().Str("session_id", sess.ID).Msg("replaced running countdown")
	}
	cd := newCountdown(durationSeconds)
	sess.countdown = cd
	sess.ended = false
	st.mu.Unlock()

	go st.runCountdown(sess, cd, onTick, onEnd)
}

// StopCountdown halts any running countdown and clears the timer state.
// Idempotent when nothing is running. No end callback fires.
func (st *Store) StopCountdown(sess *Session, reason string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if sess.countdown == nil {
		return false
	}
	sess.countdown.halt()
	sess.countdown = nil
	sess.ended = true
	log.Info().Str("session_id", sess.ID).Str("reason", reason).Msg("countdown stopped")
	return true
}

// OwnsCountdown reports whether cd is still the session's current clock.
// A tick that raced a manual stop or a restart fails this check.
func (st *Store) OwnsCountdown(sess *Session, cd *Countdown) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return sess.countdown == cd
}

// CountdownState snapshots the timer for state queries.
func (st *Store) CountdownState(sess *Session) (remainingSeconds int, active bool) {
	st.mu.RLock()
	cd := sess.countdown
	st.mu.RUnlock()

	if cd == nil {
		return 0, false
	}
	return cd.Remaining(), cd.Active()
}

func (st *Store) runCountdown(sess *Session, cd *Countdown, onTick func(*Countdown, int), onEnd func()) {
	ticker := st.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-cd.stopCh:
			return
		case <-ticker.Chan():
			// A halt that raced the tick wins: no further callbacks.
			if !cd.Active() {
				return
			}
			remaining := cd.decrement()
			onTick(cd, remaining)
			if remaining <= 0 {
				cd.halt()
				st.mu.Lock()
				owner := sess.countdown == cd
				if owner {
					sess.countdown = nil
					sess.ended = true
				}
				st.mu.Unlock()
				// A countdown replaced while its final tick was in
				// flight has been superseded; its end never fires.
				if owner {
					onEnd()
				}
				return
			}
		}
	}
}
