package system

import (
	"time"

	coresys "github.com/l1jgo/banker/internal/core/system"
	"github.com/l1jgo/banker/internal/core/timer"
)

// TimerSystem advances the virtual clock by the tick duration, firing deposit
// resumptions and tab-load timeouts. Phase 1 (Timers).
type TimerSystem struct {
	sched *timer.Scheduler
}

func NewTimerSystem(sched *timer.Scheduler) *TimerSystem {
	return &TimerSystem{sched: sched}
}

func (s *TimerSystem) Phase() coresys.Phase { return coresys.PhaseTimers }

func (s *TimerSystem) Update(dt time.Duration) {
	s.sched.Advance(dt)
}
