package banker

import (
	"github.com/google/uuid"
	"github.com/l1jgo/banker/internal/core/timer"
	"go.uber.org/zap"
)

// Session 是一次合約開啟期間的所有暫態狀態。
// 合約開啟時建立，取消時關閉：所有計時器停止、延續失效。
type Session struct {
	ID           uuid.UUID
	ContractType int32

	lastOffset    int32
	seenOffset    bool
	autoDeposited bool

	paging Paginator
	op     *operation
	log    *zap.Logger
}

// operation 是一次進行中的存入作業（單頁或多頁）。
type operation struct {
	allTabs bool
	run     *reconcileRun
	wait    *timer.Timer
	emitted int
}

func newSession(contractType int32, sched *timer.Scheduler, log *zap.Logger) *Session {
	id := uuid.New()
	return &Session{
		ID:           id,
		ContractType: contractType,
		paging:       newPaginator(sched),
		log:          log.With(zap.String("contract_session", id.String())),
	}
}

// Busy reports whether a deposit operation is in progress.
func (s *Session) Busy() bool {
	return s.op != nil
}

// Paging exposes the session's pagination controller (read-only use).
func (s *Session) Paging() *Paginator {
	return &s.paging
}

func (s *Session) endOperation() {
	s.paging.End()
	if s.op != nil {
		s.op.wait.Stop()
		s.op = nil
	}
}

func (s *Session) close() {
	s.endOperation()
}
