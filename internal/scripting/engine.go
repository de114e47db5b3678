package scripting

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for operator-supplied hooks.
// Single-goroutine access only (game loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
// 目錄不存在時回傳沒有任何掛勾的引擎。
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	for _, dir := range []string{scriptsDir, filepath.Join(scriptsDir, "banker")} {
		if err := e.loadDir(dir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// LoadString runs a chunk of Lua source (tests, console).
func (e *Engine) LoadString(src string) error {
	return e.vm.DoString(src)
}

// Has reports whether a global Lua function is defined.
func (e *Engine) Has(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// maxDepositDelayMs 是腳本延遲的上限，超過時截斷。
const maxDepositDelayMs = 60_000

// DepositDelay 呼叫 Lua deposit_delay(ctx)，ctx = { human = bool, base_ms = int }。
// 函式不存在、回傳 nil 或出錯時 ok=false，呼叫端沿用內建延遲。
func (e *Engine) DepositDelay(human bool, baseMs int) (ms int, ok bool) {
	fn, isFn := e.vm.GetGlobal("deposit_delay").(*lua.LFunction)
	if !isFn {
		return 0, false
	}

	t := e.vm.NewTable()
	t.RawSetString("human", lua.LBool(human))
	t.RawSetString("base_ms", lua.LNumber(baseMs))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua deposit_delay error", zap.Error(err))
		return 0, false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	n, isNum := result.(lua.LNumber)
	if !isNum {
		if result != lua.LNil {
			e.log.Warn("lua deposit_delay returned non-number", zap.String("type", result.Type().String()))
		}
		return 0, false
	}
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		e.log.Warn("lua deposit_delay returned invalid delay", zap.Float64("ms", f))
		return 0, false
	}
	if f > maxDepositDelayMs {
		f = maxDepositDelayMs
	}
	return int(f), true
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
