package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/l1jgo/banker/internal/banker"
	"github.com/l1jgo/banker/internal/core/event"
	"github.com/l1jgo/banker/internal/net"
	"github.com/l1jgo/banker/internal/net/packet"
	"github.com/l1jgo/banker/internal/persist"
	"github.com/l1jgo/banker/internal/scripting"
	"github.com/l1jgo/banker/internal/world"
	"go.uber.org/zap"
)

const loadTimeout = 5 * time.Second

// HandleHello processes HELLO (opcode 0): D protocolVersion, Q localGameId, S characterName.
// 每次 hello 都重新執行協定檢查並重新綁定代碼表。
func HandleHello(sess *net.Session, r *packet.Reader, deps *Deps) {
	version := r.ReadD()
	gameID := r.ReadQ()
	name := r.ReadS()
	if r.Short() {
		sess.Log().Warn("hello 欄位不足")
		return
	}

	log := sess.Log().With(zap.Int32("protocol_version", version), zap.String("name", name))

	deps.Guard.Check(int(version))
	table, missing := deps.Registry.Bind(deps.Guard.Map())
	if len(missing) > 0 {
		log.Warn("部分協定名稱無法綁定", zap.Strings("names", missing))
	}

	a := agentOf(sess, deps)
	if a != nil && a.GameID != gameID {
		// 同一連線換了角色：舊代理的合約狀態全部作廢
		log.Info("本地角色變更", zap.Uint64("old", a.GameID), zap.Uint64("new", gameID))
		closeAgent(deps.World.RemoveAgent(sess.ID))
		a = nil
	}
	if a == nil {
		a = newAgent(sess, gameID, name, deps)
		deps.World.AddAgent(a)
	}
	a.Name = name
	a.ProtocolVersion = version
	a.Table = table
	a.Gate.Set(gateResult(deps.Guard.Err(), missing))

	sess.SetState(packet.StateReady)
	err := a.Banker.ReportGate()

	log.Info("掛勾已連線",
		zap.Uint64("game_id", gameID),
		zap.String("profile", a.Profile),
		zap.Bool("compatible", err == nil),
	)
	event.Emit(deps.Bus, event.HookConnected{
		SessionID:       sess.ID,
		GameID:          gameID,
		Name:            name,
		ProtocolVersion: version,
		Compatible:      err == nil,
	})
}

// HandleDisconnect 清除斷線連線的代理。由 InputSystem 在連線關閉後呼叫。
func HandleDisconnect(sess *net.Session, deps *Deps) {
	a := deps.World.RemoveAgent(sess.ID)
	if a == nil {
		return
	}
	closeAgent(a)
	sess.Log().Info("掛勾已斷線", zap.String("name", a.Name))
	event.Emit(deps.Bus, event.HookDisconnected{SessionID: sess.ID, Name: a.Name})
}

// gateResult 決定這條連線的閘門：檢查通過但仍有名稱無法綁定時同樣停用。
func gateResult(checked error, unbound []string) error {
	if checked != nil {
		return checked
	}
	if len(unbound) > 0 {
		return fmt.Errorf("%w: unbound %s", banker.ErrProtocolIncompatible, strings.Join(unbound, ", "))
	}
	return nil
}

func closeAgent(a *world.Agent) {
	if a == nil || a.Banker == nil {
		return
	}
	a.Banker.OnContractCancelled()
}

// profileOf 決定黑名單的鍵：設定檔指定優先，其次角色名稱。
func profileOf(configured, name string, gameID uint64) string {
	switch {
	case configured != "":
		return configured
	case name != "":
		return name
	default:
		return strconv.FormatUint(gameID, 10)
	}
}

func newAgent(sess *net.Session, gameID uint64, name string, deps *Deps) *world.Agent {
	cfg := deps.Config.Banker
	a := &world.Agent{
		SessionID: sess.ID,
		Session:   sess,
		GameID:    gameID,
		Name:      name,
		Profile:   profileOf(cfg.Profile, name, gameID),
		Gate:      banker.NewSessionGate(),
	}
	log := sess.Log().With(zap.String("profile", a.Profile))

	var ids []int32
	var persister banker.Persister
	if deps.Store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		loaded, err := deps.Store.LoadBlacklist(ctx, a.Profile)
		cancel()
		if err != nil {
			log.Error("載入黑名單失敗，以空白名單開始", zap.Error(err))
		} else {
			ids = loaded
		}
		persister = persist.ProfileBlacklist{Store: deps.Store, Profile: a.Profile}
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano() ^ int64(sess.ID)
	}

	a.Banker = banker.New(banker.NewSettings(cfg), banker.Deps{
		Blacklist: banker.NewBlacklistStore(ids, persister, log),
		Gate:      a.Gate,
		Scheduler: deps.Scheduler,
		Delay: banker.ScriptedDelay{
			Base:     banker.NewRandomDelay(seed),
			Override: scriptedDelay(deps.Scripting),
		},
		Out: &hookOutbound{agent: a, bus: deps.Bus},
		Log: log,
	})
	return a
}

// scriptedDelay adapts the Lua deposit_delay hook to the banker's delay override.
func scriptedDelay(e *scripting.Engine) banker.DelayOverride {
	if e == nil || !e.Has("deposit_delay") {
		return nil
	}
	return func(human bool, base time.Duration) (time.Duration, bool) {
		ms, ok := e.DepositDelay(human, int(base/time.Millisecond))
		if !ok {
			return 0, false
		}
		return time.Duration(ms) * time.Millisecond, true
	}
}
