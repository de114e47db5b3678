package banker

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Persister 保存黑名單。每次變更後呼叫；核心不知道儲存方式。
type Persister interface {
	SaveBlacklist(ctx context.Context, ids []int32) error
}

const persistTimeout = 5 * time.Second

// BlacklistStore 擁有被排除的物品編號集合與擷取模式。
// 其他元件只能透過存取方法讀取，所有寫入都經過這裡。
type BlacklistStore struct {
	ids     map[int32]struct{}
	mode    CaptureMode
	persist Persister
	log     *zap.Logger
}

// NewBlacklistStore 以已載入的編號建立黑名單。persist 可為 nil（不保存）。
func NewBlacklistStore(ids []int32, persist Persister, log *zap.Logger) *BlacklistStore {
	s := &BlacklistStore{
		ids:     make(map[int32]struct{}, len(ids)),
		persist: persist,
		log:     log,
	}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Has is the only read path used during reconciliation.
func (s *BlacklistStore) Has(id int32) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *BlacklistStore) Len() int {
	return len(s.ids)
}

// IDs returns the blacklisted identifiers in ascending order.
func (s *BlacklistStore) IDs() []int32 {
	out := make([]int32, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Add 加入黑名單並保存。回傳集合是否改變。
func (s *BlacklistStore) Add(id int32) bool {
	if s.Has(id) {
		return false
	}
	s.ids[id] = struct{}{}
	s.save()
	return true
}

// Remove 移出黑名單並保存。回傳集合是否改變。
func (s *BlacklistStore) Remove(id int32) bool {
	if !s.Has(id) {
		return false
	}
	delete(s.ids, id)
	s.save()
	return true
}

// Clear 清空黑名單並保存。
func (s *BlacklistStore) Clear() {
	s.ids = make(map[int32]struct{})
	s.save()
}

func (s *BlacklistStore) Mode() CaptureMode {
	return s.mode
}

// ToggleCapture 切換擷取模式（見 CaptureMode.Toggle），回傳新模式。
func (s *BlacklistStore) ToggleCapture(want CaptureMode) CaptureMode {
	s.mode = s.mode.Toggle(want)
	return s.mode
}

// ResetCapture returns the capture mode to None.
func (s *BlacklistStore) ResetCapture() {
	s.mode = CaptureNone
}

// Observe 是每個存入/領出請求都會經過的擷取掛勾。
func (s *BlacklistStore) Observe(dir Transfer, itemID int32) CaptureEffect {
	next, effect := s.mode.Observe(dir)
	s.mode = next
	switch effect {
	case EffectAdd:
		s.Add(itemID)
	case EffectRemove:
		s.Remove(itemID)
	}
	return effect
}

func (s *BlacklistStore) save() {
	if s.persist == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.persist.SaveBlacklist(ctx, s.IDs()); err != nil {
		s.log.Error("黑名單保存失敗", zap.Int("count", len(s.ids)), zap.Error(err))
	}
}
