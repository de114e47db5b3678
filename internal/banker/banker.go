package banker

import (
	"errors"
	"fmt"

	"github.com/l1jgo/banker/internal/core/timer"
	"go.uber.org/zap"
)

// DepositCommand 是送往伺服器的存入請求（C_PUT_WARE_ITEM）。Money 固定為 0。
type DepositCommand struct {
	Container  int32
	Offset     int32
	Money      uint64
	FromPocket int32
	FromSlot   int32
	ItemID     int32
	DbID       uint64
	Amount     int32
	ToSlot     int32
}

// ViewTabCommand 要求伺服器顯示容器的另一個分頁（C_VIEW_WARE）。
type ViewTabCommand struct {
	Container int32
	Offset    int32
}

type NoticeLevel uint8

const (
	NoticeInfo NoticeLevel = iota
	NoticeError
)

// Notice 是給操作者看的訊息。Err 不為 nil 時屬於錯誤分類中的一種。
type Notice struct {
	Level NoticeLevel
	Text  string
	Err   error
}

// Outbound 是外部傳輸層。送出為 fire-and-forget，失敗不重試。
type Outbound interface {
	SendDeposit(cmd DepositCommand)
	SendViewTab(cmd ViewTabCommand)
	Notify(n Notice)
}

// Gate 回報協定相容性。Err 為 nil 代表允許轉移。
type Gate interface {
	Err() error
}

// SessionGate 保存某條掛勾連線最近一次 hello 的檢查結果。
// 其他連線之後的 hello 不會改變它。
type SessionGate struct {
	err error
}

// NewSessionGate returns a gate that stays closed until the first Set.
func NewSessionGate() *SessionGate {
	return &SessionGate{err: ErrProtocolIncompatible}
}

func (g *SessionGate) Set(err error) { g.err = err }
func (g *SessionGate) Err() error    { return g.err }

// Deps holds the collaborators of a Banker.
type Deps struct {
	Blacklist *BlacklistStore
	Gate      Gate
	Scheduler *timer.Scheduler
	Delay     DelayPolicy
	Out       Outbound
	Log       *zap.Logger
}

// Banker 是單一本地角色的自動存入代理。
// 所有方法只能在遊戲迴圈 goroutine 呼叫；暫停點由 Scheduler 計時器恢復。
type Banker struct {
	settings  Settings
	blacklist *BlacklistStore
	gate      Gate
	sched     *timer.Scheduler
	delay     DelayPolicy
	out       Outbound
	log       *zap.Logger

	contract ContractTracker
	cache    SnapshotCache
	session  *Session
}

func New(settings Settings, deps Deps) *Banker {
	return &Banker{
		settings:  settings,
		blacklist: deps.Blacklist,
		gate:      deps.Gate,
		sched:     deps.Scheduler,
		delay:     deps.Delay,
		out:       deps.Out,
		log:       deps.Log,
	}
}

// ── accessors ─────────────────────────────────────────────────────

func (b *Banker) Settings() Settings         { return b.settings }
func (b *Banker) Contract() *ContractTracker { return &b.contract }
func (b *Banker) Snapshots() *SnapshotCache  { return &b.cache }
func (b *Banker) Blacklist() *BlacklistStore { return b.blacklist }
func (b *Banker) Session() *Session          { return b.session }

// ── inbound events ────────────────────────────────────────────────

// OnContractStarted 處理發送給本地角色的 S_REQUEST_CONTRACT。
// 已有合約時先關閉舊的工作階段。
func (b *Banker) OnContractStarted(contractType int32) {
	if b.session != nil {
		b.session.close()
	}
	b.contract.Start(contractType)
	b.session = newSession(contractType, b.sched, b.log)
	b.session.log.Debug("合約開始", zap.Int32("type", contractType))
}

// OnContractCancelled 處理 S_CANCEL_CONTRACT：清除容器類型、上次分頁、自動存入旗標，
// 並讓進行中的作業靜默結束。
func (b *Banker) OnContractCancelled() {
	b.contract.Cancel()
	b.cache.ClearView()
	if b.session != nil {
		b.session.log.Debug("合約結束", zap.Bool("busy", b.session.Busy()))
		b.session.close()
		b.session = nil
	}
}

// OnInventory replaces the carried-item source (S_ITEMLIST).
func (b *Banker) OnInventory(items []Item) {
	b.cache.SetInventory(items)
}

// OnContainerView 處理 S_VIEW_WARE_EX：替換快照、視設定觸發自動存入、
// 並交付等待中的分頁延續。
func (b *Banker) OnContainerView(v ContainerView) {
	b.cache.SetView(v)
	b.contract.SetContainer(v.Container)

	sess := b.session
	if sess == nil {
		return
	}
	b.maybeAutoDeposit(sess, v)
	sess.lastOffset = v.Offset
	sess.seenOffset = true

	if !sess.paging.Pending() || !b.contract.IsBank() || !b.settings.DepositAllowed(v.Container) {
		return
	}
	if _, err := sess.paging.Deliver(); err != nil {
		sess.log.Error("分頁延續重複觸發", zap.Int32("offset", v.Offset), zap.Error(err))
	}
}

// OnTransfer 是存入/領出請求的擷取掛勾（包含手動與代理自己送出的請求）。
func (b *Banker) OnTransfer(dir Transfer, itemID int32) {
	switch b.blacklist.Observe(dir, itemID) {
	case EffectAdd:
		b.info(fmt.Sprintf("Item %d added to blacklist", itemID))
	case EffectRemove:
		b.info(fmt.Sprintf("Item %d removed from blacklist", itemID))
	}
}

// ── deposit requests ──────────────────────────────────────────────

// Deposit 依設定存入目前分頁或所有分頁。先把擷取模式重設為 None。
func (b *Banker) Deposit() error {
	if err := b.checkReady(false); err != nil {
		return err
	}
	b.blacklist.ResetCapture()
	b.start(!b.settings.SingleTab)
	return nil
}

// DepositTab deposits into the current tab only.
func (b *Banker) DepositTab() error {
	if err := b.checkReady(false); err != nil {
		return err
	}
	b.start(false)
	return nil
}

// DepositAll deposits into every tab, starting from the current one.
func (b *Banker) DepositAll() error {
	if err := b.checkReady(false); err != nil {
		return err
	}
	b.start(true)
	return nil
}

// ReportGate 在掛勾工作階段開始時呼叫：協定不相容時通知操作者，
// 並區分「已修復、重新啟動後生效」與「自動修復失敗」。
func (b *Banker) ReportGate() error {
	err := b.gate.Err()
	if err != nil {
		b.fail(err)
	}
	return err
}

// Ready 回報現在是否可以開始存入（不發送通知）。
func (b *Banker) Ready() error {
	return b.readiness()
}

func (b *Banker) checkReady(silent bool) error {
	err := b.readiness()
	if err != nil && !silent {
		b.fail(err)
	}
	return err
}

func (b *Banker) readiness() error {
	if err := b.gate.Err(); err != nil {
		return err
	}
	if !b.contract.IsBank() || b.session == nil {
		return ErrNoContract
	}
	if b.cache.View() == nil {
		return ErrNoView
	}
	if c, ok := b.contract.Container(); !ok || !b.settings.DepositAllowed(c) {
		return ErrDepositNotAllowed
	}
	if b.session.Busy() {
		return ErrOperationActive
	}
	return nil
}

func (b *Banker) maybeAutoDeposit(sess *Session, v ContainerView) {
	if v.Action != 0 || !b.settings.Auto || b.blacklist.Mode() != CaptureNone {
		return
	}
	if b.settings.SingleTab {
		if sess.seenOffset && sess.lastOffset == v.Offset {
			return
		}
	} else {
		if sess.autoDeposited {
			return
		}
		sess.autoDeposited = true
	}
	if err := b.checkReady(true); err != nil {
		sess.log.Debug("略過自動存入", zap.Error(err))
		return
	}
	b.start(!b.settings.SingleTab)
}

func (b *Banker) start(allTabs bool) {
	sess := b.session
	view := b.cache.View()
	if allTabs {
		b.info("Depositing items in all tabs")
		sess.paging.Begin(view.Offset, view.NumUnlocked)
	} else {
		b.info("Depositing items in this tab")
	}
	op := &operation{allTabs: allTabs}
	sess.op = op
	sess.log.Debug("開始存入",
		zap.Bool("all_tabs", allTabs),
		zap.Int32("offset", view.Offset),
		zap.Int32("unlocked", view.NumUnlocked),
	)
	b.runTab(sess, op)
}

// runTab 以目前快照開始一個分頁的對帳。
func (b *Banker) runTab(sess *Session, op *operation) {
	op.run = newReconcileRun(b.cache.Carried(b.settings.Sources), b.cache.Stored())
	b.step(sess, op)
}

// step 從上次停下的位置繼續合併走訪。每次恢復前重新確認合約，
// 合約已關閉時靜默停止（部分完成是合法的終止狀態）。
func (b *Banker) step(sess *Session, op *operation) {
	op.wait = nil
	if b.session != sess || sess.op != op {
		return
	}
	if !b.contract.IsBank() {
		sess.log.Debug("合約已關閉，停止存入", zap.Int("emitted", op.emitted))
		sess.endOperation()
		return
	}

	item, ok := op.run.next()
	if !ok {
		b.tabFinished(sess, op)
		return
	}
	if !b.blacklist.Has(item.ID) {
		b.depositItem(item)
		op.emitted++
	}
	op.wait = b.sched.After(b.delay.Next(b.settings.Human), func() {
		b.step(sess, op)
	})
}

func (b *Banker) depositItem(item Item) {
	view := b.cache.View()
	container, _ := b.contract.Container()
	b.out.SendDeposit(DepositCommand{
		Container:  container,
		Offset:     view.Offset,
		FromPocket: item.Pocket,
		FromSlot:   item.Slot,
		ItemID:     item.ID,
		DbID:       item.DbID,
		Amount:     item.Amount,
		ToSlot:     view.Offset,
	})
	b.OnTransfer(TransferDeposit, item.ID)
}

// tabFinished 在一個分頁走訪完畢時呼叫：單頁模式回報完成；
// 多頁模式交給分頁控制器，回到起始頁時結束。
func (b *Banker) tabFinished(sess *Session, op *operation) {
	view := b.cache.View()
	if !op.allTabs {
		sess.endOperation()
		b.info(fmt.Sprintf("Finished depositing tab %d", view.Tab()))
		return
	}

	next, more := sess.paging.Next(view)
	if more {
		b.changeTab(sess, next, func() { b.runTab(sess, op) })
		return
	}
	b.info("Finished depositing all tabs")
	// 切回起始頁；延續只負責結束作業。
	b.changeTab(sess, next, sess.endOperation)
}

func (b *Banker) changeTab(sess *Session, target int32, then func()) {
	container, _ := b.contract.Container()
	send := func() {
		b.out.SendViewTab(ViewTabCommand{Container: container, Offset: target})
	}
	onTimeout := func() {
		sess.endOperation()
		b.fail(&TabLoadError{Tab: TabNumber(target)})
	}
	sess.paging.Await(target, b.delay.Next(b.settings.Human), b.settings.PageTimeout, send, then, onTimeout)
}

// ── capture & blacklist commands ──────────────────────────────────

// ToggleCapture 切換擷取模式。協定不相容時拒絕。
func (b *Banker) ToggleCapture(want CaptureMode) (CaptureMode, error) {
	if err := b.gate.Err(); err != nil {
		b.fail(err)
		return b.blacklist.Mode(), err
	}
	mode := b.blacklist.ToggleCapture(want)
	switch mode {
	case CaptureAddNext:
		b.info("Next item deposited or retrieved will be added to blacklist")
	case CaptureRemoveNext:
		b.info("Next item deposited or retrieved will be removed from blacklist")
	case CaptureAutoBoth:
		b.info("Next retrieved items will be added to and banked items will be removed from blacklist")
	default:
		b.info("Blacklist capture disabled")
	}
	return mode, nil
}

func (b *Banker) BlacklistAdd(id int32) {
	b.blacklist.Add(id)
	b.info(fmt.Sprintf("Item %d added to blacklist", id))
}

func (b *Banker) BlacklistRemove(id int32) {
	b.blacklist.Remove(id)
	b.info(fmt.Sprintf("Item %d removed from blacklist", id))
}

func (b *Banker) BlacklistClear() {
	b.blacklist.Clear()
	b.info("Blacklist cleared")
}

// BlacklistList reports the blacklisted identifiers to the operator.
func (b *Banker) BlacklistList() []int32 {
	ids := b.blacklist.IDs()
	if len(ids) == 0 {
		b.info("Blacklist is empty")
		return ids
	}
	b.info(fmt.Sprintf("Blacklist items: %v", ids))
	return ids
}

// ── settings toggles ──────────────────────────────────────────────

func (b *Banker) ToggleAuto() bool {
	b.settings.Auto = !b.settings.Auto
	if b.settings.Auto {
		b.info("Switched to automatic mode")
	} else {
		b.info("Switched to manual mode")
	}
	return b.settings.Auto
}

func (b *Banker) ToggleHuman() bool {
	b.settings.Human = !b.settings.Human
	if b.settings.Human {
		b.info(`Switched to "human-like (slow)" depositing speed`)
	} else {
		b.info(`Switched to "fast" depositing speed`)
	}
	return b.settings.Human
}

func (b *Banker) ToggleSingleTab() bool {
	b.settings.SingleTab = !b.settings.SingleTab
	if b.settings.SingleTab {
		b.info(`Switched to "single tab" mode`)
	} else {
		b.info(`Switched to "all tabs" mode`)
	}
	return b.settings.SingleTab
}

func (b *Banker) ToggleDepositIn(container int32) (bool, error) {
	enabled, known := b.settings.ToggleDepositIn(container)
	if !known {
		err := fmt.Errorf("%w: unknown container type %d", ErrInvalidOperation, container)
		b.fail(err)
		return false, err
	}
	b.info(fmt.Sprintf("Depositing in %s bank %s", ContainerName(container), enabledText(enabled)))
	return enabled, nil
}

func (b *Banker) ToggleSource(src Source) (bool, error) {
	if src != SourceBag && src != SourcePockets {
		err := fmt.Errorf("%w: unknown item source %d", ErrInvalidOperation, src)
		b.fail(err)
		return false, err
	}
	enabled := b.settings.ToggleSource(src)
	b.info(fmt.Sprintf("Depositing from %s %s", src, enabledText(enabled)))
	return enabled, nil
}

func enabledText(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

// ── notices ───────────────────────────────────────────────────────

func (b *Banker) info(text string) {
	b.out.Notify(Notice{Level: NoticeInfo, Text: text})
}

func (b *Banker) fail(err error) {
	b.out.Notify(Notice{Level: NoticeError, Text: describe(err), Err: err})
}

// describe 將錯誤分類轉成操作者看得懂的訊息。
func describe(err error) string {
	var tabErr *TabLoadError
	if errors.As(err, &tabErr) {
		return fmt.Sprintf("Failed to load bank tab %d.", tabErr.Tab)
	}
	switch {
	case errors.Is(err, ErrManualFixRequired):
		return "Automatic fixing failed. Manual fixing required. Please check the banker log for details."
	case errors.Is(err, ErrProtocolIncompatible):
		return "Banker is disabled. Restart the game and the hook to apply protocol fixes."
	case errors.Is(err, ErrNoContract), errors.Is(err, ErrNoView):
		return "Bank must be open to use banker."
	case errors.Is(err, ErrDepositNotAllowed):
		return `Not allowed to bank here. Check the deposit settings if you did not expect this.`
	case errors.Is(err, ErrOperationActive):
		return "A deposit is already running."
	default:
		return err.Error()
	}
}
