package handler

import (
	"github.com/l1jgo/banker/internal/config"
	"github.com/l1jgo/banker/internal/core/event"
	"github.com/l1jgo/banker/internal/core/timer"
	"github.com/l1jgo/banker/internal/net"
	"github.com/l1jgo/banker/internal/net/packet"
	"github.com/l1jgo/banker/internal/persist"
	"github.com/l1jgo/banker/internal/protocol"
	"github.com/l1jgo/banker/internal/scripting"
	"github.com/l1jgo/banker/internal/world"
	"go.uber.org/zap"
)

// Deps holds shared dependencies injected into all frame handlers.
type Deps struct {
	Config    *config.Config
	Log       *zap.Logger
	World     *world.State
	Registry  *packet.Registry
	Guard     *protocol.Guard
	Scheduler *timer.Scheduler
	Bus       *event.Bus
	Store     persist.Store     // nil = 黑名單只存在記憶體
	Scripting *scripting.Engine // nil = 只用內建延遲
}

// RegisterAll registers all frame handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	// Handshake phase. hello 也可在 Ready 時重送（遊戲切換角色）。
	reg.Register(packet.OpHello,
		[]packet.SessionState{packet.StateHandshake, packet.StateReady},
		func(sess any, r *packet.Reader) {
			HandleHello(sess.(*net.Session), r, deps)
		},
	)

	ready := []packet.SessionState{packet.StateReady}

	reg.Register(packet.OpControl, ready,
		func(sess any, r *packet.Reader) {
			HandleControl(sess.(*net.Session), r, deps)
		},
	)

	// Mapped game events
	reg.RegisterNamed(packet.S_REQUEST_CONTRACT, ready,
		func(sess any, r *packet.Reader) {
			HandleRequestContract(sess.(*net.Session), r, deps)
		},
	)
	reg.RegisterNamed(packet.S_CANCEL_CONTRACT, ready,
		func(sess any, r *packet.Reader) {
			HandleCancelContract(sess.(*net.Session), r, deps)
		},
	)
	reg.RegisterNamed(packet.S_VIEW_WARE_EX, ready,
		func(sess any, r *packet.Reader) {
			HandleViewWare(sess.(*net.Session), r, deps)
		},
	)
	reg.RegisterNamed(packet.S_ITEMLIST, ready,
		func(sess any, r *packet.Reader) {
			HandleItemList(sess.(*net.Session), r, deps)
		},
	)
	reg.RegisterNamed(packet.C_GET_WARE_ITEM, ready,
		func(sess any, r *packet.Reader) {
			HandleWareGet(sess.(*net.Session), r, deps)
		},
	)
	reg.RegisterNamed(packet.C_PUT_WARE_ITEM, ready,
		func(sess any, r *packet.Reader) {
			HandleWarePut(sess.(*net.Session), r, deps)
		},
	)

	reg.DeclareOutbound(packet.C_PUT_WARE_ITEM, packet.C_VIEW_WARE)
}

// agentOf returns the agent bound to a session, or nil before hello.
func agentOf(sess *net.Session, deps *Deps) *world.Agent {
	return deps.World.GetBySession(sess.ID)
}
