package world

import (
	"github.com/l1jgo/banker/internal/banker"
	"github.com/l1jgo/banker/internal/net"
	"github.com/l1jgo/banker/internal/net/packet"
)

// Agent 是一條掛勾連線（一個遊戲客戶端）在代理端的全部狀態。
// Accessed only from the game loop goroutine; no locks needed.
type Agent struct {
	SessionID uint64
	Session   *net.Session

	GameID          uint64 // local actor; mapped events for other ids are dropped
	Name            string
	Profile         string // blacklist key
	ProtocolVersion int32

	Table  *packet.OpcodeTable
	Gate   *banker.SessionGate // this session's last hello result
	Banker *banker.Banker
}

// State holds every connected agent, keyed by hook session.
type State struct {
	agents map[uint64]*Agent
}

func NewState() *State {
	return &State{agents: make(map[uint64]*Agent)}
}

func (s *State) AddAgent(a *Agent) {
	s.agents[a.SessionID] = a
}

// RemoveAgent removes and returns the agent of a session, or nil.
func (s *State) RemoveAgent(sessionID uint64) *Agent {
	a := s.agents[sessionID]
	delete(s.agents, sessionID)
	return a
}

func (s *State) GetBySession(sessionID uint64) *Agent {
	return s.agents[sessionID]
}

func (s *State) AgentCount() int {
	return len(s.agents)
}

func (s *State) AllAgents(fn func(*Agent)) {
	for _, a := range s.agents {
		fn(a)
	}
}
