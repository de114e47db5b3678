package handler

import (
	"github.com/l1jgo/banker/internal/banker"
	"github.com/l1jgo/banker/internal/net"
	"github.com/l1jgo/banker/internal/net/packet"
	"go.uber.org/zap"
)

// HandleViewWare processes S_VIEW_WARE_EX, one tab of the open container:
// D container, C action, D offset, D numUnlocked, Q money, H count,
// count×{Q dbid, D id, D amount, D slot}.
func HandleViewWare(sess *net.Session, r *packet.Reader, deps *Deps) {
	v := banker.ContainerView{
		Container: r.ReadD(),
		Action:    r.ReadC(),
	}
	v.Offset = r.ReadD()
	v.NumUnlocked = r.ReadD()
	v.Money = r.ReadQ()
	count := int(r.ReadH())
	v.Items = make([]banker.Item, 0, count)
	for i := 0; i < count; i++ {
		it := banker.Item{DbID: r.ReadQ()}
		it.ID = r.ReadD()
		it.Amount = r.ReadD()
		it.Slot = r.ReadD()
		v.Items = append(v.Items, it)
	}
	if r.Short() {
		return
	}
	a := agentOf(sess, deps)
	if a == nil {
		return
	}
	sess.Log().Debug("容器分頁",
		zap.Int32("container", v.Container),
		zap.Int32("offset", v.Offset),
		zap.Int32("unlocked", v.NumUnlocked),
		zap.Int("items", len(v.Items)),
	)
	a.Banker.OnContainerView(v)
}

// HandleWareGet observes a retrieve request (manual or scripted).
func HandleWareGet(sess *net.Session, r *packet.Reader, deps *Deps) {
	handleTransfer(sess, r, deps, banker.TransferRetrieve)
}

// HandleWarePut observes a deposit request made from the game client.
// 代理自己送出的存入在送出時已經觀察過，掛勾不會回送。
func HandleWarePut(sess *net.Session, r *packet.Reader, deps *Deps) {
	handleTransfer(sess, r, deps, banker.TransferDeposit)
}

func handleTransfer(sess *net.Session, r *packet.Reader, deps *Deps, dir banker.Transfer) {
	cmd := readTransfer(r)
	if r.Short() {
		return
	}
	if a := agentOf(sess, deps); a != nil {
		a.Banker.OnTransfer(dir, cmd.ItemID)
	}
}

// ── transfer body ────────────────────────────────────────────────
// D container, D offset, Q money, D fromPocket, D fromSlot, D id, Q dbid, D amount, D toSlot

func readTransfer(r *packet.Reader) banker.DepositCommand {
	var c banker.DepositCommand
	c.Container = r.ReadD()
	c.Offset = r.ReadD()
	c.Money = r.ReadQ()
	c.FromPocket = r.ReadD()
	c.FromSlot = r.ReadD()
	c.ItemID = r.ReadD()
	c.DbID = r.ReadQ()
	c.Amount = r.ReadD()
	c.ToSlot = r.ReadD()
	return c
}

func writeTransfer(w *packet.Writer, c banker.DepositCommand) {
	w.WriteD(c.Container)
	w.WriteD(c.Offset)
	w.WriteQ(c.Money)
	w.WriteD(c.FromPocket)
	w.WriteD(c.FromSlot)
	w.WriteD(c.ItemID)
	w.WriteQ(c.DbID)
	w.WriteD(c.Amount)
	w.WriteD(c.ToSlot)
}
