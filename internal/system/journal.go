package system

import (
	"context"
	"time"

	"github.com/l1jgo/banker/internal/core/event"
	coresys "github.com/l1jgo/banker/internal/core/system"
	"github.com/l1jgo/banker/internal/persist"
	"go.uber.org/zap"
)

const (
	journalWriteTimeout = 5 * time.Second
	maxJournalBacklog   = 10000 // 資料庫長時間無法寫入時，超過的最舊紀錄丟棄
)

// JournalSystem 收集 DepositSent 事件，定期批次寫入存入日誌。Phase 4 (Persist).
type JournalSystem struct {
	store    persist.Store
	pending  []persist.JournalEntry
	interval time.Duration
	elapsed  time.Duration
	log      *zap.Logger
}

func NewJournalSystem(bus *event.Bus, store persist.Store, interval time.Duration, log *zap.Logger) *JournalSystem {
	s := &JournalSystem{store: store, interval: interval, log: log}
	event.Subscribe(bus, s.onDepositSent)
	return s
}

func (s *JournalSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *JournalSystem) onDepositSent(e event.DepositSent) {
	s.pending = append(s.pending, persist.JournalEntry{
		Profile:   e.Profile,
		SessionID: e.ContractSession,
		Container: e.Container,
		Offset:    e.Offset,
		ItemID:    e.ItemID,
		DbID:      e.DbID,
		Amount:    e.Amount,
		SentAt:    time.Now(),
	})
	if over := len(s.pending) - maxJournalBacklog; over > 0 {
		s.log.Warn("存入日誌積壓過多，丟棄最舊紀錄", zap.Int("dropped", over))
		s.pending = append(s.pending[:0], s.pending[over:]...)
	}
}

func (s *JournalSystem) Update(dt time.Duration) {
	s.elapsed += dt
	if s.elapsed < s.interval {
		return
	}
	s.elapsed = 0
	s.Flush()
}

// Flush writes every pending entry now. Called on shutdown as well.
// 寫入失敗時保留紀錄，下次再試。
func (s *JournalSystem) Flush() {
	if len(s.pending) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()
	if err := s.store.WriteJournal(ctx, s.pending); err != nil {
		s.log.Error("存入日誌寫入失敗", zap.Int("pending", len(s.pending)), zap.Error(err))
		return
	}
	s.log.Debug("存入日誌已寫入", zap.Int("count", len(s.pending)))
	s.pending = s.pending[:0]
}

// Pending returns the number of entries not yet written.
func (s *JournalSystem) Pending() int {
	return len(s.pending)
}
