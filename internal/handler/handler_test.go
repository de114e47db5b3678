package handler

import (
	"context"
	gonet "net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/l1jgo/banker/internal/banker"
	"github.com/l1jgo/banker/internal/config"
	"github.com/l1jgo/banker/internal/core/event"
	"github.com/l1jgo/banker/internal/core/timer"
	"github.com/l1jgo/banker/internal/data"
	"github.com/l1jgo/banker/internal/net"
	"github.com/l1jgo/banker/internal/net/packet"
	"github.com/l1jgo/banker/internal/persist"
	"github.com/l1jgo/banker/internal/protocol"
	"github.com/l1jgo/banker/internal/world"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	testVersion = 380000
	localID     = uint64(7001)
)

var mappedNames = []string{
	packet.S_REQUEST_CONTRACT,
	packet.S_CANCEL_CONTRACT,
	packet.S_VIEW_WARE_EX,
	packet.S_ITEMLIST,
	packet.C_GET_WARE_ITEM,
	packet.C_PUT_WARE_ITEM,
	packet.C_VIEW_WARE,
}

type harness struct {
	t     *testing.T
	deps  *Deps
	sess  *net.Session
	opts  protocol.Options
	codes map[string]uint16
	store persist.Store
}

func newHarness(t *testing.T, installed bool) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)

	cfg, err := config.Parse(nil)
	require.NoError(t, err)
	cfg.Database.DSN = "file:" + filepath.Join(t.TempDir(), "banker.db")

	store, err := persist.Open(context.Background(), cfg.Database, log)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	root := t.TempDir()
	opts := protocol.Options{
		MapDir:                filepath.Join(root, "map"),
		DefinitionsDir:        filepath.Join(root, "defs"),
		BundledMapDir:         filepath.Join(root, "bundled"),
		BundledDefinitionsDir: filepath.Join(root, "bundled_defs"),
		Baseline:              372752,
	}
	ref := protocol.NewMap()
	codes := make(map[string]uint16)
	for i, name := range mappedNames {
		codes[name] = uint16(0x20 + i)
		ref.Set(name, codes[name])
		opts.Requirements = append(opts.Requirements, data.ProtocolRequirement{Name: name})
	}
	for _, d := range []string{opts.MapDir, opts.DefinitionsDir, opts.BundledMapDir, opts.BundledDefinitionsDir} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	for _, name := range mappedNames {
		path := filepath.Join(opts.DefinitionsDir, protocol.DefFileName(name, 1))
		require.NoError(t, os.WriteFile(path, []byte(name), 0o644))
	}
	require.NoError(t, protocol.WriteMapFile(filepath.Join(opts.BundledMapDir, protocol.MapFileName(375000)), ref))
	if installed {
		require.NoError(t, protocol.WriteMapFile(filepath.Join(opts.MapDir, protocol.MapFileName(testVersion)), ref))
	}

	deps := &Deps{
		Config:    cfg,
		Log:       log,
		World:     world.NewState(),
		Registry:  packet.NewRegistry(log),
		Guard:     protocol.NewGuard(opts, log),
		Scheduler: timer.NewScheduler(),
		Bus:       event.NewBus(),
		Store:     store,
	}
	RegisterAll(deps.Registry, deps)

	h := &harness{t: t, deps: deps, opts: opts, codes: codes, store: store}
	h.sess = h.newSession(1)
	return h
}

// newSession opens another hook connection on the same agent process.
func (h *harness) newSession(id uint64) *net.Session {
	c1, c2 := gonet.Pipe()
	h.t.Cleanup(func() {
		c1.Close()
		c2.Close()
	})
	return net.NewSession(c1, id, net.SessionOptions{InQueueSize: 16, OutQueueSize: 256}, zaptest.NewLogger(h.t))
}

func (h *harness) dispatch(frame []byte) error {
	return h.dispatchOn(h.sess, frame)
}

func (h *harness) dispatchOn(sess *net.Session, frame []byte) error {
	var local uint64
	var table *packet.OpcodeTable
	if a := h.deps.World.GetBySession(sess.ID); a != nil {
		local, table = a.GameID, a.Table
	}
	return h.deps.Registry.Dispatch(sess, sess.State(), local, table, frame)
}

func (h *harness) agent() *world.Agent {
	return h.deps.World.GetBySession(h.sess.ID)
}

func (h *harness) hello(gameID uint64, name string) {
	h.helloOn(h.sess, testVersion, gameID, name)
}

func (h *harness) helloOn(sess *net.Session, version int32, gameID uint64, name string) {
	w := packet.NewWriterWithOpcode(packet.OpHello)
	w.WriteD(version)
	w.WriteQ(gameID)
	w.WriteS(name)
	require.NoError(h.t, h.dispatchOn(sess, w.Bytes()))
}

func (h *harness) mapped(name string, gameID uint64) *packet.Writer {
	w := packet.NewWriterWithOpcode(h.codes[name])
	w.WriteQ(gameID)
	return w
}

func (h *harness) control(action byte, arg int32) {
	w := packet.NewWriterWithOpcode(packet.OpControl)
	w.WriteC(action)
	w.WriteD(arg)
	require.NoError(h.t, h.dispatch(w.Bytes()))
}

func (h *harness) openBank(gameID uint64, stored ...banker.Item) {
	w := h.mapped(packet.S_REQUEST_CONTRACT, gameID)
	w.WriteD(banker.BankContract)
	require.NoError(h.t, h.dispatch(w.Bytes()))

	w = h.mapped(packet.S_VIEW_WARE_EX, gameID)
	w.WriteD(banker.ContainerPersonal)
	w.WriteC(1)
	w.WriteD(0)   // offset
	w.WriteD(144) // unlocked
	w.WriteQ(0)
	w.WriteH(uint16(len(stored)))
	for _, it := range stored {
		w.WriteQ(it.DbID)
		w.WriteD(it.ID)
		w.WriteD(it.Amount)
		w.WriteD(it.Slot)
	}
	require.NoError(h.t, h.dispatch(w.Bytes()))
}

func (h *harness) inventory(items ...banker.Item) {
	w := h.mapped(packet.S_ITEMLIST, localID)
	w.WriteH(uint16(len(items)))
	for _, it := range items {
		w.WriteQ(it.DbID)
		w.WriteD(it.ID)
		w.WriteD(it.Amount)
		w.WriteD(it.Pocket)
		w.WriteD(it.Slot)
	}
	require.NoError(h.t, h.dispatch(w.Bytes()))
}

// sent flushes the session buffer and returns every frame written so far.
func (h *harness) sent() [][]byte {
	h.sess.FlushOutput()
	var out [][]byte
	for {
		select {
		case f := <-h.sess.OutQueue:
			out = append(out, f)
		default:
			return out
		}
	}
}

func framesOf(frames [][]byte, opcode uint16) [][]byte {
	var out [][]byte
	for _, f := range frames {
		if packet.Opcode(f) == opcode {
			out = append(out, f)
		}
	}
	return out
}

func noticeOf(t *testing.T, frame []byte) (byte, string) {
	t.Helper()
	r := packet.NewReader(frame)
	level := r.ReadC()
	text := r.ReadS()
	require.False(t, r.Short())
	return level, text
}

func TestHelloBindsAgent(t *testing.T) {
	h := newHarness(t, true)
	var connected []event.HookConnected
	event.Subscribe(h.deps.Bus, func(e event.HookConnected) { connected = append(connected, e) })

	h.hello(localID, "Alice")

	require.Equal(t, packet.StateReady, h.sess.State())
	a := h.agent()
	require.NotNil(t, a)
	require.Equal(t, localID, a.GameID)
	require.Equal(t, "Alice", a.Profile)
	code, ok := a.Table.Opcode(packet.C_PUT_WARE_ITEM)
	require.True(t, ok)
	require.Equal(t, h.codes[packet.C_PUT_WARE_ITEM], code)
	require.Empty(t, framesOf(h.sent(), packet.OpNotice))

	h.deps.Bus.SwapBuffers()
	h.deps.Bus.DispatchAll()
	require.Len(t, connected, 1)
	require.True(t, connected[0].Compatible)
	require.Equal(t, int32(testVersion), connected[0].ProtocolVersion)
}

func TestHelloIncompatibleNotifiesUntilNextHello(t *testing.T) {
	h := newHarness(t, false)

	h.hello(localID, "Alice")
	notices := framesOf(h.sent(), packet.OpNotice)
	require.Len(t, notices, 1)
	level, text := noticeOf(t, notices[0])
	require.Equal(t, byte(banker.NoticeError), level)
	require.Contains(t, text, "Restart")

	// 修復後的對照檔已寫出，下一次 hello 通過
	_, err := os.Stat(filepath.Join(h.opts.MapDir, protocol.MapFileName(testVersion)))
	require.NoError(t, err)

	first := h.agent()
	h.hello(localID, "Alice")
	require.Empty(t, framesOf(h.sent(), packet.OpNotice))
	require.Same(t, first, h.agent())
	require.NoError(t, h.agent().Banker.ReportGate())
}

func TestGateIsKeptPerSession(t *testing.T) {
	h := newHarness(t, true)

	// 第一條連線的協定版本沒有對照檔
	h.helloOn(h.sess, 390000, localID, "Alice")
	a := h.agent()
	require.ErrorIs(t, a.Gate.Err(), banker.ErrProtocolIncompatible)
	_, ok := a.Table.Opcode(packet.C_PUT_WARE_ITEM)
	require.False(t, ok)
	h.sent()

	other := h.newSession(2)
	h.helloOn(other, testVersion, 7002, "Bob")
	b := h.deps.World.GetBySession(other.ID)
	require.NoError(t, b.Gate.Err())
	require.NoError(t, b.Banker.ReportGate())

	// 另一條連線通過檢查不會打開第一條連線的閘門
	require.ErrorIs(t, a.Gate.Err(), banker.ErrProtocolIncompatible)
	h.control(packet.CtlCaptureAdd, 0)
	notices := framesOf(h.sent(), packet.OpNotice)
	require.Len(t, notices, 1)
	level, _ := noticeOf(t, notices[0])
	require.Equal(t, byte(banker.NoticeError), level)
	require.Equal(t, banker.CaptureNone, a.Banker.Blacklist().Mode())
}

func TestGateClosedWhenNamesCannotBeBound(t *testing.T) {
	require.NoError(t, gateResult(nil, nil))
	err := gateResult(nil, []string{packet.C_VIEW_WARE})
	require.ErrorIs(t, err, banker.ErrProtocolIncompatible)
	require.ErrorIs(t, gateResult(banker.ErrManualFixRequired, nil), banker.ErrManualFixRequired)
}

func TestDepositTabSendsMappedFrame(t *testing.T) {
	h := newHarness(t, true)
	var journal []event.DepositSent
	event.Subscribe(h.deps.Bus, func(e event.DepositSent) { journal = append(journal, e) })

	h.hello(localID, "Alice")
	h.inventory(
		banker.Item{DbID: 1001, ID: 40308, Amount: 500, Slot: 3},
		banker.Item{DbID: 1002, ID: 40014, Amount: 1, Slot: 4},
	)
	h.openBank(localID, banker.Item{DbID: 9001, ID: 40308, Amount: 100, Slot: 0})
	h.sent()

	h.control(packet.CtlDepositTab, 0)
	h.deps.Scheduler.Advance(time.Second)

	frames := h.sent()
	puts := framesOf(frames, h.codes[packet.C_PUT_WARE_ITEM])
	require.Len(t, puts, 1)

	r := packet.NewReader(puts[0])
	require.Equal(t, banker.ContainerPersonal, r.ReadD())
	require.Equal(t, int32(0), r.ReadD())  // offset
	require.Equal(t, uint64(0), r.ReadQ()) // money
	require.Equal(t, int32(0), r.ReadD())  // fromPocket
	require.Equal(t, int32(3), r.ReadD())  // fromSlot
	require.Equal(t, int32(40308), r.ReadD())
	require.Equal(t, uint64(1001), r.ReadQ())
	require.Equal(t, int32(500), r.ReadD())
	require.Equal(t, int32(0), r.ReadD()) // toSlot
	require.False(t, r.Short())
	require.Zero(t, r.Remaining())

	var texts []string
	for _, f := range framesOf(frames, packet.OpNotice) {
		_, text := noticeOf(t, f)
		texts = append(texts, text)
	}
	require.Equal(t, []string{"Depositing items in this tab", "Finished depositing tab 1"}, texts)

	h.deps.Bus.SwapBuffers()
	h.deps.Bus.DispatchAll()
	require.Len(t, journal, 1)
	require.Equal(t, "Alice", journal[0].Profile)
	require.Equal(t, uint64(1001), journal[0].DbID)
	require.NotEqual(t, uuid.Nil, journal[0].ContractSession)
}

func TestEventsForOtherActorsAreDropped(t *testing.T) {
	h := newHarness(t, true)
	h.hello(localID, "Alice")

	w := h.mapped(packet.S_REQUEST_CONTRACT, localID+1)
	w.WriteD(banker.BankContract)
	require.NoError(t, h.dispatch(w.Bytes()))
	require.False(t, h.agent().Banker.Contract().IsOpen())

	h.openBank(localID)
	require.True(t, h.agent().Banker.Contract().IsBank())

	w = h.mapped(packet.S_CANCEL_CONTRACT, localID+1)
	w.WriteD(banker.BankContract)
	require.NoError(t, h.dispatch(w.Bytes()))
	require.True(t, h.agent().Banker.Contract().IsOpen())

	w = h.mapped(packet.S_CANCEL_CONTRACT, localID)
	w.WriteD(banker.BankContract)
	require.NoError(t, h.dispatch(w.Bytes()))
	require.False(t, h.agent().Banker.Contract().IsOpen())
}

func TestFramesIgnoredBeforeHello(t *testing.T) {
	h := newHarness(t, true)
	w := packet.NewWriterWithOpcode(packet.OpControl)
	w.WriteC(packet.CtlToggleAuto)
	w.WriteD(0)
	require.Error(t, h.dispatch(w.Bytes()))

	// 尚未綁定代碼表：映射名稱一律視為未知
	w = packet.NewWriterWithOpcode(h.codes[packet.S_REQUEST_CONTRACT])
	w.WriteQ(localID)
	w.WriteD(banker.BankContract)
	require.NoError(t, h.dispatch(w.Bytes()))
	require.Nil(t, h.agent())
}

func TestBlacklistControlPersistsPerProfile(t *testing.T) {
	h := newHarness(t, true)
	h.hello(localID, "Alice")

	h.control(packet.CtlBlacklistAdd, 40308)
	h.control(packet.CtlBlacklistAdd, 40014)
	h.control(packet.CtlBlacklistRemove, 40014)

	ids, err := h.store.LoadBlacklist(context.Background(), "Alice")
	require.NoError(t, err)
	require.Equal(t, []int32{40308}, ids)

	// 重新連線後從資料庫載入
	HandleDisconnect(h.sess, h.deps)
	h.hello(localID, "Alice")
	require.True(t, h.agent().Banker.Blacklist().Has(40308))
}

func TestTransferObservedForCapture(t *testing.T) {
	h := newHarness(t, true)
	h.hello(localID, "Alice")
	h.control(packet.CtlCaptureAdd, 0)

	w := h.mapped(packet.C_GET_WARE_ITEM, localID)
	writeTransfer(w, banker.DepositCommand{Container: banker.ContainerPersonal, ItemID: 49001, DbID: 5, Amount: 1})
	require.NoError(t, h.dispatch(w.Bytes()))

	b := h.agent().Banker
	require.True(t, b.Blacklist().Has(49001))
	require.Equal(t, banker.CaptureNone, b.Blacklist().Mode())
}

func TestControlTogglesSettings(t *testing.T) {
	h := newHarness(t, true)
	h.hello(localID, "Alice")
	b := h.agent().Banker

	h.control(packet.CtlToggleAuto, 0)
	h.control(packet.CtlToggleHuman, 0)
	h.control(packet.CtlToggleTabMode, 0)
	h.control(packet.CtlToggleDepositIn, banker.ContainerGuild)
	h.control(packet.CtlToggleDepositFrom, 2)
	h.control(packet.CtlToggleDepositFrom, 3) // rejected
	h.control(0xEE, 0)                        // unknown, ignored

	s := b.Settings()
	require.True(t, s.Auto)
	require.True(t, s.Human)
	require.True(t, s.SingleTab)
	require.True(t, s.DepositAllowed(banker.ContainerGuild))
	require.Equal(t, banker.SourceBoth, s.Sources)

	notices := framesOf(h.sent(), packet.OpNotice)
	require.Len(t, notices, 6)
	level, _ := noticeOf(t, notices[5])
	require.Equal(t, byte(banker.NoticeError), level)
}

func TestDisconnectDropsAgent(t *testing.T) {
	h := newHarness(t, true)
	var gone []event.HookDisconnected
	event.Subscribe(h.deps.Bus, func(e event.HookDisconnected) { gone = append(gone, e) })

	h.hello(localID, "Alice")
	h.openBank(localID)
	HandleDisconnect(h.sess, h.deps)
	HandleDisconnect(h.sess, h.deps)

	require.Nil(t, h.agent())
	h.deps.Bus.SwapBuffers()
	h.deps.Bus.DispatchAll()
	require.Len(t, gone, 1)
	require.Equal(t, "Alice", gone[0].Name)
}

func TestNewCharacterOnSameHookReplacesAgent(t *testing.T) {
	h := newHarness(t, true)
	h.hello(localID, "Alice")
	h.openBank(localID)
	old := h.agent()

	h.hello(localID+5, "Bob")
	a := h.agent()
	require.NotSame(t, old, a)
	require.Equal(t, "Bob", a.Profile)
	require.False(t, old.Banker.Contract().IsOpen())
}

func TestProfileOf(t *testing.T) {
	require.Equal(t, "main", profileOf("main", "Alice", 1))
	require.Equal(t, "Alice", profileOf("", "Alice", 1))
	require.Equal(t, "42", profileOf("", "", 42))
}
