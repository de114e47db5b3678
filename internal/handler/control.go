package handler

import (
	"github.com/l1jgo/banker/internal/banker"
	"github.com/l1jgo/banker/internal/net"
	"github.com/l1jgo/banker/internal/net/packet"
	"go.uber.org/zap"
)

// HandleControl processes CONTROL (opcode 2): C action, D arg.
// 操作結果與錯誤都由代理以 NOTICE 回報，這裡只記錄。
func HandleControl(sess *net.Session, r *packet.Reader, deps *Deps) {
	action := r.ReadC()
	arg := r.ReadD()
	if r.Short() {
		return
	}
	a := agentOf(sess, deps)
	if a == nil {
		return
	}
	b := a.Banker

	var err error
	switch action {
	case packet.CtlDeposit:
		err = b.Deposit()
	case packet.CtlDepositTab:
		err = b.DepositTab()
	case packet.CtlDepositAll:
		err = b.DepositAll()

	case packet.CtlCaptureAdd:
		_, err = b.ToggleCapture(banker.CaptureAddNext)
	case packet.CtlCaptureRemove:
		_, err = b.ToggleCapture(banker.CaptureRemoveNext)
	case packet.CtlCaptureAuto:
		_, err = b.ToggleCapture(banker.CaptureAutoBoth)

	case packet.CtlBlacklistAdd:
		b.BlacklistAdd(arg)
	case packet.CtlBlacklistRemove:
		b.BlacklistRemove(arg)
	case packet.CtlBlacklistClear:
		b.BlacklistClear()
	case packet.CtlBlacklistList:
		b.BlacklistList()

	case packet.CtlToggleAuto:
		b.ToggleAuto()
	case packet.CtlToggleHuman:
		b.ToggleHuman()
	case packet.CtlToggleTabMode:
		b.ToggleSingleTab()
	case packet.CtlToggleDepositIn:
		_, err = b.ToggleDepositIn(arg)
	case packet.CtlToggleDepositFrom:
		_, err = b.ToggleSource(sourceArg(arg))

	default:
		sess.Log().Warn("未知控制指令", zap.Uint8("action", action), zap.Int32("arg", arg))
		return
	}
	if err != nil {
		sess.Log().Debug("控制指令被拒絕", zap.Uint8("action", action), zap.Error(err))
	}
}

// sourceArg maps the wire value (1 bag, 2 pockets) to a Source; anything else is rejected by the banker.
func sourceArg(arg int32) banker.Source {
	switch arg {
	case 1:
		return banker.SourceBag
	case 2:
		return banker.SourcePockets
	default:
		return banker.SourceNone
	}
}
