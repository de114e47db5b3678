package banker

import "sort"

// SortCarried 排序攜帶物品：編號遞增，數量遞增，最後攤平位置遞減。
//
// 同編號同數量時先存入位置最高的堆疊。遊戲會把後面的同類堆疊合併到剛空出的格子，
// 若從低位置開始存，下一筆要存的格子會再次出現已存過的物品。
func SortCarried(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		if a.Amount != b.Amount {
			return a.Amount < b.Amount
		}
		return a.LinearPosition() > b.LinearPosition()
	})
}

// SortStored sorts container items by identifier only.
func SortStored(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ID < items[j].ID
	})
}

// reconcileRun 是一次分頁對帳的合併走訪狀態，可在每次存入之間暫停。
type reconcileRun struct {
	carried []Item
	stored  []Item
	ci, si  int
}

func newReconcileRun(carried, stored []Item) *reconcileRun {
	r := &reconcileRun{
		carried: append([]Item(nil), carried...),
		stored:  append([]Item(nil), stored...),
	}
	SortCarried(r.carried)
	SortStored(r.stored)
	return r
}

// next 前進到下一個編號也存在於容器中的攜帶堆疊。
// 配對時只前進攜帶端指標，容器端指標不動，讓同編號的多個攜帶堆疊都能配對到同一個容器項目。
func (r *reconcileRun) next() (Item, bool) {
	for r.ci < len(r.carried) && r.si < len(r.stored) {
		c, s := r.carried[r.ci], r.stored[r.si]
		switch {
		case c.ID == s.ID:
			r.ci++
			return c, true
		case c.ID < s.ID:
			r.ci++
		default:
			r.si++
		}
	}
	return Item{}, false
}

// Plan 回傳一次完整對帳會存入的攜帶堆疊（依存入順序）。excluded 為 nil 時不排除任何物品。
func Plan(carried, stored []Item, excluded func(id int32) bool) []Item {
	r := newReconcileRun(carried, stored)
	var out []Item
	for {
		it, ok := r.next()
		if !ok {
			return out
		}
		if excluded != nil && excluded(it.ID) {
			continue
		}
		out = append(out, it)
	}
}
