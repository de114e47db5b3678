package timer

import (
	"container/heap"
	"time"
)

// Timer 是一個已排程的一次性回呼。由 Scheduler.After 建立。
type Timer struct {
	at    time.Duration
	seq   uint64
	fn    func()
	index int
	s     *Scheduler
	done  bool
}

// Stop 取消尚未觸發的計時器。已觸發或已取消時回傳 false。
func (t *Timer) Stop() bool {
	if t == nil || t.done {
		return false
	}
	t.done = true
	heap.Remove(&t.s.q, t.index)
	return true
}

// Pending 回報計時器是否仍在等待觸發。
func (t *Timer) Pending() bool {
	return t != nil && !t.done
}

// Scheduler 是由遊戲迴圈 tick 推進的計時器佇列。
// 只在遊戲迴圈 goroutine 內使用，不需要鎖。
// 時間是虛擬的：只有 Advance 會讓時鐘前進，測試可以精確控制觸發順序。
type Scheduler struct {
	now time.Duration
	seq uint64
	q   queue
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Now returns the scheduler's virtual clock.
func (s *Scheduler) Now() time.Duration {
	return s.now
}

// Len returns the number of pending timers.
func (s *Scheduler) Len() int {
	return len(s.q)
}

// After 在 d 之後執行 fn。d <= 0 時於下一次 Advance 觸發。
func (s *Scheduler) After(d time.Duration, fn func()) *Timer {
	if d < 0 {
		d = 0
	}
	s.seq++
	t := &Timer{at: s.now + d, seq: s.seq, fn: fn, s: s}
	heap.Push(&s.q, t)
	return t
}

// Advance 推進虛擬時鐘 dt，依到期時間（同時到期者依排程順序）觸發所有到期的計時器。
// 回呼中新排程且在此區間內到期的計時器也會在本次觸發。回傳觸發數量。
func (s *Scheduler) Advance(dt time.Duration) int {
	target := s.now + dt
	fired := 0
	for len(s.q) > 0 {
		t := s.q[0]
		if t.at > target {
			break
		}
		heap.Pop(&s.q)
		t.done = true
		if t.at > s.now {
			s.now = t.at
		}
		fired++
		t.fn()
	}
	if target > s.now {
		s.now = target
	}
	return fired
}

// ── heap ──

type queue []*Timer

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}

func (q queue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *queue) Push(x any) {
	t := x.(*Timer)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}
