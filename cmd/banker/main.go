package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/l1jgo/banker/internal/config"
	"github.com/l1jgo/banker/internal/core/event"
	coresys "github.com/l1jgo/banker/internal/core/system"
	"github.com/l1jgo/banker/internal/core/timer"
	"github.com/l1jgo/banker/internal/data"
	"github.com/l1jgo/banker/internal/handler"
	gonet "github.com/l1jgo/banker/internal/net"
	"github.com/l1jgo/banker/internal/net/packet"
	"github.com/l1jgo/banker/internal/persist"
	"github.com/l1jgo/banker/internal/protocol"
	"github.com/l1jgo/banker/internal/scripting"
	"github.com/l1jgo/banker/internal/system"
	"github.com/l1jgo/banker/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const journalInterval = time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(bind string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             L1JGO Banker  v0.1.0          \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        倉庫自動存入代理 · 掛勾橋接         \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1m掛勾位址:\033[0m %s\n\n", bind)
}

// displayWidth counts CJK characters as two columns.
func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		if r > 0x7F {
			w += 2
		} else {
			w++
		}
	}
	return w
}

func printSection(title string) {
	lineLen := 46 - displayWidth(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - displayWidth(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main agent logic ──────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/banker.toml"
	if p := os.Getenv("BANKER_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Hook.BindAddress)

	// 3. Database + migrations
	printSection("資料庫")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := persist.Open(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer store.Close()
	printOK(fmt.Sprintf("%s 連線成功，遷移完成", store.Driver()))
	fmt.Println()

	// 4. Protocol requirements + guard
	printSection("協定")
	reqs, err := data.LoadProtocolTable(cfg.Protocol.Requirements)
	if err != nil {
		return fmt.Errorf("load protocol list: %w", err)
	}
	printStat("必要協定名稱", reqs.Count())
	guard := protocol.NewGuard(protocol.Options{
		MapDir:                cfg.Protocol.MapDir,
		DefinitionsDir:        cfg.Protocol.DefinitionsDir,
		BundledMapDir:         cfg.Protocol.BundledMapDir,
		BundledDefinitionsDir: cfg.Protocol.BundledDefinitionsDir,
		Baseline:              cfg.Protocol.BaselineVersion,
		Requirements:          reqs.All(),
	}, log)
	printOK("相容性檢查於掛勾 hello 時執行")
	fmt.Println()

	// 5. Lua hooks
	printSection("腳本")
	engine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()
	if engine.Has("deposit_delay") {
		printOK("deposit_delay 已載入")
	} else {
		printOK("使用內建延遲")
	}
	fmt.Println()

	// 6. Handlers
	sched := timer.NewScheduler()
	bus := event.NewBus()
	worldState := world.NewState()
	pktReg := packet.NewRegistry(log)
	deps := &handler.Deps{
		Config:    cfg,
		Log:       log,
		World:     worldState,
		Registry:  pktReg,
		Guard:     guard,
		Scheduler: sched,
		Bus:       bus,
		Store:     store,
		Scripting: engine,
	}
	handler.RegisterAll(pktReg, deps)

	event.Subscribe(bus, func(e event.HookConnected) {
		log.Info("代理就緒",
			zap.Uint64("session", e.SessionID),
			zap.String("name", e.Name),
			zap.Bool("compatible", e.Compatible),
			zap.Int("agents", worldState.AgentCount()),
		)
	})

	// 7. Hook listener
	netServer, err := gonet.NewServer(cfg.Hook.BindAddress, gonet.SessionOptions{
		InQueueSize:  cfg.Hook.InQueueSize,
		OutQueueSize: cfg.Hook.OutQueueSize,
		WriteTimeout: cfg.Hook.WriteTimeout,
		ReadTimeout:  cfg.Hook.ReadTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	go netServer.AcceptLoop()

	// 8. Systems
	sessions := gonet.NewSessionStore()
	runner := coresys.NewRunner()
	runner.Register(system.NewInputSystem(netServer, pktReg, sessions, worldState, cfg.Hook.MaxFramesPerTick,
		func(sess *gonet.Session) { handler.HandleDisconnect(sess, deps) }, log))
	runner.Register(system.NewTimerSystem(sched))
	runner.Register(system.NewEventSystem(bus))
	runner.Register(system.NewOutputSystem(sessions))
	journal := system.NewJournalSystem(bus, store, journalInterval, log)
	runner.Register(journal)

	// 9. Game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Hook.TickRate)
	defer ticker.Stop()

	printSection("代理就緒")
	printReady(fmt.Sprintf("監聽位址 %s", netServer.Addr().String()))
	printReady(fmt.Sprintf("遊戲迴圈啟動 (tick: %s)", cfg.Hook.TickRate))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Hook.TickRate)
		case sig := <-shutdownCh:
			log.Info("收到關閉信號", zap.String("signal", sig.String()))
			netServer.Shutdown()
			sessions.CloseAll()
			// 最後一輪：送出已排入的事件並寫完日誌
			runner.Tick(0)
			journal.Flush()
			log.Info("代理已停止")
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
