package system

import (
	"time"

	coresys "github.com/l1jgo/banker/internal/core/system"
	"github.com/l1jgo/banker/internal/net"
)

// OutputSystem flushes every session's buffered frames to its writer goroutine.
// Phase 3 (Output).
type OutputSystem struct {
	store *net.SessionStore
}

func NewOutputSystem(store *net.SessionStore) *OutputSystem {
	return &OutputSystem{store: store}
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(_ time.Duration) {
	s.store.ForEach(func(sess *net.Session) {
		sess.FlushOutput()
	})
}
