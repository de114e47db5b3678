package banker

import (
	"time"

	"github.com/l1jgo/banker/internal/core/timer"
)

// NextOffset 計算下一個分頁的起始格：(offset + PageSlots) mod 已解鎖格數。
// 已解鎖格數無效時視為只有一頁。
func NextOffset(offset, numUnlocked int32) int32 {
	if numUnlocked <= 0 {
		return offset
	}
	return (offset + PageSlots) % numUnlocked
}

// continuation 是等待下一個容器畫面事件的一次性延續。
type continuation struct {
	target int32
	fn     func()
	fired  bool
}

func (c *continuation) fire() error {
	if c.fired {
		return ErrCaptureRace
	}
	c.fired = true
	if c.fn != nil {
		c.fn()
	}
	return nil
}

// Paginator 是多分頁存入的分頁控制器。
// 同時最多只有一個等待中的延續；延續在第一次使用時立即清空，
// 因此確認事件與逾時之間的競爭只會有一方生效。
type Paginator struct {
	sched *timer.Scheduler

	start  int32
	pages  int32 // 工作階段開始時的分頁數，走訪上限
	steps  int32
	active bool

	pending *continuation
	timeout *timer.Timer
	send    *timer.Timer
}

func newPaginator(sched *timer.Scheduler) Paginator {
	return Paginator{sched: sched}
}

// Begin 開始一個多分頁工作階段，記下起始分頁。
// 起始格先折回 [0, numUnlocked)，否則走訪永遠回不到起點。
func (p *Paginator) Begin(start, numUnlocked int32) {
	p.pages = 1
	if numUnlocked > 0 {
		start %= numUnlocked
		if start < 0 {
			start += numUnlocked
		}
		p.pages = (numUnlocked + PageSlots - 1) / PageSlots
	}
	p.start = start
	p.steps = 1
	p.active = true
}

func (p *Paginator) Active() bool {
	return p.active
}

// Start returns the offset the session began at.
func (p *Paginator) Start() int32 {
	return p.start
}

// Next 回傳下一個分頁，以及是否還有尚未走訪的分頁（下一頁不等於起始頁）。
// 回到起始頁，或已走訪開始時的分頁數，代表工作階段完成，不是錯誤。
func (p *Paginator) Next(view *ContainerView) (next int32, more bool) {
	next = NextOffset(view.Offset, view.NumUnlocked)
	if !p.active || next == p.start || p.steps >= p.pages {
		return next, false
	}
	p.steps++
	return next, true
}

// Pending reports whether a tab change is awaiting confirmation.
func (p *Paginator) Pending() bool {
	return p.pending != nil
}

// Await 登記切換到 target 的延續並立即啟動逾時；
// 實際的切換請求在 sendDelay 後透過 send 送出。
func (p *Paginator) Await(target int32, sendDelay, timeout time.Duration, send func(), then func(), onTimeout func()) {
	p.cancelTimers()
	c := &continuation{target: target, fn: then}
	p.pending = c
	p.timeout = p.sched.After(timeout, func() {
		if p.pending != c {
			return
		}
		p.pending = nil
		p.send.Stop()
		onTimeout()
	})
	p.send = p.sched.After(sendDelay, send)
}

// Deliver 消耗等待中的延續。沒有延續時回傳 false。
func (p *Paginator) Deliver() (bool, error) {
	c := p.pending
	if c == nil {
		return false, nil
	}
	p.pending = nil
	// 畫面已到（可能是操作者自己切換），尚未送出的切換請求作廢
	p.cancelTimers()
	return true, c.fire()
}

// End 結束工作階段：取消計時器並使延續失效。
func (p *Paginator) End() {
	p.cancelTimers()
	p.pending = nil
	p.active = false
}

func (p *Paginator) cancelTimers() {
	p.timeout.Stop()
	p.send.Stop()
	p.timeout = nil
	p.send = nil
}
