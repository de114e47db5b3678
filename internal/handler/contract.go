package handler

import (
	"github.com/l1jgo/banker/internal/net"
	"github.com/l1jgo/banker/internal/net/packet"
	"go.uber.org/zap"
)

// HandleRequestContract processes S_REQUEST_CONTRACT: D type.
func HandleRequestContract(sess *net.Session, r *packet.Reader, deps *Deps) {
	typ := r.ReadD()
	if r.Short() {
		return
	}
	a := agentOf(sess, deps)
	if a == nil {
		return
	}
	sess.Log().Debug("合約開啟", zap.Int32("type", typ))
	a.Banker.OnContractStarted(typ)
}

// HandleCancelContract processes S_CANCEL_CONTRACT: D type.
// 類型欄位只記錄，不論類型為何都關閉目前合約。
func HandleCancelContract(sess *net.Session, r *packet.Reader, deps *Deps) {
	typ := r.ReadD()
	if r.Short() {
		return
	}
	a := agentOf(sess, deps)
	if a == nil {
		return
	}
	sess.Log().Debug("合約取消", zap.Int32("type", typ))
	a.Banker.OnContractCancelled()
}
