package handler

import (
	"github.com/l1jgo/banker/internal/banker"
	"github.com/l1jgo/banker/internal/core/event"
	"github.com/l1jgo/banker/internal/net/packet"
	"github.com/l1jgo/banker/internal/world"
	"go.uber.org/zap"
)

// hookOutbound 把代理的指令編碼成掛勾訊框，寫入連線的輸出緩衝。
// 映射名稱以 hello 時綁定的代碼表解析；外送訊框不帶 gameId。
type hookOutbound struct {
	agent *world.Agent
	bus   *event.Bus
}

func (o *hookOutbound) SendDeposit(cmd banker.DepositCommand) {
	w, ok := o.writer(packet.C_PUT_WARE_ITEM)
	if !ok {
		return
	}
	writeTransfer(w, cmd)
	o.agent.Session.Send(w.Bytes())

	ev := event.DepositSent{
		SessionID: o.agent.SessionID,
		Profile:   o.agent.Profile,
		Container: cmd.Container,
		Offset:    cmd.Offset,
		ItemID:    cmd.ItemID,
		DbID:      cmd.DbID,
		Amount:    cmd.Amount,
	}
	if s := o.agent.Banker.Session(); s != nil {
		ev.ContractSession = s.ID
	}
	event.Emit(o.bus, ev)
}

func (o *hookOutbound) SendViewTab(cmd banker.ViewTabCommand) {
	w, ok := o.writer(packet.C_VIEW_WARE)
	if !ok {
		return
	}
	w.WriteD(cmd.Container)
	w.WriteD(cmd.Offset)
	o.agent.Session.Send(w.Bytes())
}

// Notify sends NOTICE (opcode 1): C level, S text.
func (o *hookOutbound) Notify(n banker.Notice) {
	log := o.agent.Session.Log()
	if n.Level == banker.NoticeError {
		log.Warn("通知", zap.String("text", n.Text), zap.Error(n.Err))
	} else {
		log.Info("通知", zap.String("text", n.Text))
	}
	w := packet.NewWriterWithOpcode(packet.OpNotice)
	w.WriteC(byte(n.Level))
	w.WriteS(n.Text)
	o.agent.Session.Send(w.Bytes())
}

func (o *hookOutbound) writer(name string) (*packet.Writer, bool) {
	code, ok := o.agent.Table.Opcode(name)
	if !ok {
		// 協定守衛通過時不會發生；代碼表與對照檔不同步才會走到這裡
		o.agent.Session.Log().Error("外送名稱未綁定，略過", zap.String("name", name))
		return nil, false
	}
	return packet.NewWriterWithOpcode(code), true
}
