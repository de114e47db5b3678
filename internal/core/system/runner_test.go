package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type probe struct {
	phase Phase
	name  string
	log   *[]string
}

func (p probe) Phase() Phase { return p.phase }

func (p probe) Update(time.Duration) { *p.log = append(*p.log, p.name) }

func TestRunnerOrdersByPhaseThenRegistration(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(probe{PhaseOutput, "output", &log})
	r.Register(probe{PhaseInput, "input", &log})
	r.Register(probe{PhaseEvents, "events-a", &log})
	r.Register(probe{PhaseTimers, "timers", &log})
	r.Register(probe{PhaseEvents, "events-b", &log})

	r.Tick(10 * time.Millisecond)
	require.Equal(t, []string{"input", "timers", "events-a", "events-b", "output"}, log)
}
