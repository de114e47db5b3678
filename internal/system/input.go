package system

import (
	"time"

	coresys "github.com/l1jgo/banker/internal/core/system"
	"github.com/l1jgo/banker/internal/net"
	"github.com/l1jgo/banker/internal/net/packet"
	"github.com/l1jgo/banker/internal/world"
	"go.uber.org/zap"
)

// SessionSource is the accept side of the hook listener (*net.Server).
type SessionSource interface {
	NewSessions() <-chan *net.Session
	DeadSessions() <-chan uint64
	NotifyDead(sessionID uint64)
}

// InputSystem drains frame queues from all hook sessions and dispatches them
// through the registry. Phase 0 (Input).
type InputSystem struct {
	src          SessionSource
	registry     *packet.Registry
	store        *net.SessionStore
	world        *world.State
	maxPerTick   int
	onDisconnect func(*net.Session)
	log          *zap.Logger
}

func NewInputSystem(
	src SessionSource,
	registry *packet.Registry,
	store *net.SessionStore,
	ws *world.State,
	maxPerTick int,
	onDisconnect func(*net.Session),
	log *zap.Logger,
) *InputSystem {
	return &InputSystem{
		src:          src,
		registry:     registry,
		store:        store,
		world:        ws,
		maxPerTick:   maxPerTick,
		onDisconnect: onDisconnect,
		log:          log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	// Accept new sessions
	for {
		select {
		case sess := <-s.src.NewSessions():
			s.store.Add(sess)
		default:
			goto doneNew
		}
	}
doneNew:

	// Process dead sessions
	for {
		select {
		case id := <-s.src.DeadSessions():
			s.store.Remove(id)
		default:
			goto doneDead
		}
	}
doneDead:

	for id, sess := range s.store.Raw() {
		if sess.IsClosed() {
			// 斷線前已收到的訊框仍要處理（例如最後一次 S_CANCEL_CONTRACT）
			s.drain(sess)
			if s.onDisconnect != nil {
				s.onDisconnect(sess)
			}
			s.src.NotifyDead(id)
			s.store.Remove(id)
			continue
		}
		s.drain(sess)
	}
}

// drain dispatches up to maxPerTick queued frames of one session.
func (s *InputSystem) drain(sess *net.Session) {
	for i := 0; i < s.maxPerTick; i++ {
		select {
		case data := <-sess.InQueue:
			var local uint64
			var table *packet.OpcodeTable
			if a := s.world.GetBySession(sess.ID); a != nil {
				local, table = a.GameID, a.Table
			}
			if err := s.registry.Dispatch(sess, sess.State(), local, table, data); err != nil {
				s.log.Debug("訊框分派錯誤",
					zap.Uint64("session", sess.ID),
					zap.Bool("closing", sess.IsClosed()),
					zap.Error(err),
				)
			}
		default:
			return
		}
	}
}

// SessionCount returns the current number of hook sessions.
func (s *InputSystem) SessionCount() int {
	return s.store.Count()
}
