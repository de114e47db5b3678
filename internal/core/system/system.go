package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput   Phase = iota // 0: accept sessions, drain frame queues, dispatch
	PhaseTimers               // 1: advance the scheduler (deposit resumptions, tab timeouts)
	PhaseEvents               // 2: swap + dispatch the event bus
	PhaseOutput               // 3: flush session buffers
	PhasePersist              // 4: journal flush
)

// System is the interface every phase system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
