// Package expiry arms the single cleanup timer for a cart hold.
package expiry

import (
	"sync"
	"time"

	"github.com/example/ticket-storefront/internal/clock"
	"github.com/sirupsen/logrus"
)

// Action is what Plan decided for a given expiry.
type Action int

const (
	// None means no timer: no expiry known or the cart is empty.
	None Action = iota
	// FireNow means the expiry already passed.
	FireNow
	// Arm means a timer for Decision.Delay.
	Arm
)

func (a Action) String() string {
	switch a {
	case None:
		return "none"
	case FireNow:
		return "fire_now"
	case Arm:
		return "arm"
	default:
		return "unknown"
	}
}

// Decision is the result of Plan.
type Decision struct {
	Action Action
	Delay  time.Duration
}

// Plan decides how to react to expiresAt at now.
func Plan(expiresAt *time.Time, hasItems bool, now time.Time) Decision {
	if expiresAt == nil || !hasItems {
		return Decision{Action: None}
	}
	d := expiresAt.Sub(now)
	if d <= 0 {
		return Decision{Action: FireNow}
	}
	return Decision{Action: Arm, Delay: d}
}

// Handler is invoked when the hold expires. It must tolerate being
// called after the hold was already cleared.
type Handler func()

// Scheduler keeps at most one armed timer. Every Schedule call cancels
// the previous timer before applying the new plan.
type Scheduler struct {
	mu         sync.Mutex
	timer      *clock.Timer
	generation uint64
	deadline   *time.Time

	clock   clock.Clock
	handler Handler
	logger  logrus.FieldLogger
}

func NewScheduler(clk clock.Clock, handler Handler, logger logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		clock:   clk,
		handler: handler,
		logger:  logger.WithField("component", "expiry"),
	}
}

// Schedule re-arms the scheduler for expiresAt. An expiry that already
// passed invokes the handler synchronously before Schedule returns.
// Must not be called while holding a lock the handler acquires.
func (s *Scheduler) Schedule(expiresAt *time.Time, hasItems bool) Decision {
	decision := s.Rearm(expiresAt, hasItems)
	if decision.Action == FireNow {
		s.logger.WithField("expires_at", expiresAt.Format(time.RFC3339)).Info("hold already expired")
		s.handler()
	}
	return decision
}

// Rearm is Schedule without the synchronous call. A passed expiry leaves
// the scheduler disarmed and returns FireNow for the caller to act on,
// so Rearm is safe under locks the handler takes.
func (s *Scheduler) Rearm(expiresAt *time.Time, hasItems bool) Decision {
	s.mu.Lock()
	s.stopLocked()
	s.generation++
	gen := s.generation

	decision := Plan(expiresAt, hasItems, s.clock.Now())
	if decision.Action != Arm {
		s.mu.Unlock()
		return decision
	}

	at := *expiresAt
	s.deadline = &at
	s.timer = s.clock.AfterFunc(decision.Delay, func() { s.fire(gen) })
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"expires_at": at.Format(time.RFC3339),
		"in":         decision.Delay.String(),
	}).Debug("expiry timer armed")
	return decision
}

// Disarm cancels the armed timer, if any.
func (s *Scheduler) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.generation++
}

// Deadline returns the expiry the armed timer targets.
func (s *Scheduler) Deadline() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deadline == nil {
		return time.Time{}, false
	}
	return *s.deadline, true
}

// Remaining is the time left before the armed timer fires, or zero.
func (s *Scheduler) Remaining() time.Duration {
	deadline, ok := s.Deadline()
	if !ok {
		return 0
	}
	return max(0, deadline.Sub(s.clock.Now()))
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.generation {
		// superseded by a later Schedule or Disarm
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.deadline = nil
	s.mu.Unlock()

	s.logger.Info("hold expired")
	s.handler()
}

func (s *Scheduler) stopLocked() {
	s.timer.Stop()
	s.timer = nil
	s.deadline = nil
}
