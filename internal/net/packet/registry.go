package packet

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// SessionState represents the hook session's current protocol phase.
type SessionState int

const (
	StateHandshake SessionState = iota // awaiting hello
	StateReady                         // hello received, opcode table bound
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateHandshake:
		return "Handshake"
	case StateReady:
		return "Ready"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// HandlerFunc is the callback signature for packet handlers.
// The session pointer is passed as an opaque interface to avoid import cycles.
type HandlerFunc func(sess any, r *Reader)

type handlerEntry struct {
	name          string
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Resolver resolves a protocol name to its numeric code (an installed protocol map).
type Resolver interface {
	Get(name string) (uint16, bool)
}

// OpcodeTable 是單一掛勾連線的代碼 ↔ 名稱對照，hello 時由 Registry.Bind 建立。
type OpcodeTable struct {
	byCode map[uint16]string
	byName map[string]uint16
}

// Opcode returns the code bound to name.
func (t *OpcodeTable) Opcode(name string) (uint16, bool) {
	if t == nil {
		return 0, false
	}
	c, ok := t.byName[name]
	return c, ok
}

// Name returns the name bound to code.
func (t *OpcodeTable) Name(code uint16) (string, bool) {
	if t == nil {
		return "", false
	}
	n, ok := t.byCode[code]
	return n, ok
}

// Registry 是中央路由：保留操作碼直接對應處理器，其餘依名稱對應，
// 名稱到代碼的綁定由每條連線的 OpcodeTable 決定。
type Registry struct {
	reserved map[uint16]*handlerEntry
	named    map[string]*handlerEntry
	outbound map[string]bool
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		reserved: make(map[uint16]*handlerEntry),
		named:    make(map[string]*handlerEntry),
		outbound: make(map[string]bool),
		log:      log,
	}
}

func newEntry(name string, states []SessionState, fn HandlerFunc) *handlerEntry {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	return &handlerEntry{name: name, fn: fn, allowedStates: allowed}
}

// Register maps a reserved opcode to a handler, restricted to the given session states.
func (reg *Registry) Register(opcode uint16, states []SessionState, fn HandlerFunc) {
	reg.reserved[opcode] = newEntry(fmt.Sprintf("0x%04X", opcode), states, fn)
}

// RegisterNamed maps a protocol name to a handler. The payload reaches the handler
// only when its leading gameId is the session's local actor; the Reader is
// positioned after the gameId.
func (reg *Registry) RegisterNamed(name string, states []SessionState, fn HandlerFunc) {
	reg.named[name] = newEntry(name, states, fn)
}

// DeclareOutbound records names the agent sends, so Bind resolves them too.
func (reg *Registry) DeclareOutbound(names ...string) {
	for _, n := range names {
		reg.outbound[n] = true
	}
}

// Bind 以 res 解析所有已登記的名稱，回傳對照表與無法解析的名稱（已排序）。
// 與保留操作碼衝突的代碼視為無法解析。
func (reg *Registry) Bind(res Resolver) (*OpcodeTable, []string) {
	t := &OpcodeTable{
		byCode: make(map[uint16]string),
		byName: make(map[string]uint16),
	}
	names := make([]string, 0, len(reg.named)+len(reg.outbound))
	for n := range reg.named {
		names = append(names, n)
	}
	for n := range reg.outbound {
		if _, dup := reg.named[n]; !dup {
			names = append(names, n)
		}
	}
	sort.Strings(names)

	var missing []string
	for _, n := range names {
		code, ok := res.Get(n)
		if !ok || code < reservedLimit {
			if ok {
				reg.log.Warn("協定代碼與保留操作碼衝突", zap.String("name", n), zap.Uint16("code", code))
			}
			missing = append(missing, n)
			continue
		}
		if other, taken := t.byCode[code]; taken {
			reg.log.Warn("協定代碼重複", zap.String("name", n), zap.String("other", other), zap.Uint16("code", code))
			missing = append(missing, n)
			continue
		}
		t.byCode[code] = n
		t.byName[n] = code
	}
	return t, missing
}

// Dispatch finds the handler for the payload's opcode, validates the session
// state, checks the local actor for mapped names, and calls the handler.
// Unknown opcodes and events for other actors are silently ignored.
func (reg *Registry) Dispatch(sess any, state SessionState, local uint64, table *OpcodeTable, data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("short payload (%d bytes)", len(data))
	}
	opcode := Opcode(data)
	reg.log.Debug("收到封包",
		zap.Uint16("opcode", opcode),
		zap.Int("size", len(data)),
		zap.String("state", state.String()),
	)

	entry, mapped := reg.reserved[opcode], false
	if entry == nil {
		name, ok := table.Name(opcode)
		if ok {
			entry, mapped = reg.named[name], true
		}
	}
	if entry == nil {
		reg.log.Debug("未知操作碼", zap.Uint16("opcode", opcode), zap.String("state", state.String()))
		return nil
	}

	if !entry.allowedStates[state] {
		reg.log.Warn("操作碼在此狀態下不允許",
			zap.String("name", entry.name),
			zap.String("state", state.String()),
		)
		return fmt.Errorf("%s not allowed in state %s", entry.name, state)
	}

	r := NewReader(data)
	if mapped {
		if id := r.ReadQ(); id != local {
			return nil
		}
	}
	return reg.safeCall(entry, sess, r)
}

// safeCall executes a handler with panic recovery to prevent a single
// bad frame from crashing the game loop.
func (reg *Registry) safeCall(entry *handlerEntry, sess any, r *Reader) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("處理器 panic 已恢復",
				zap.String("name", entry.name),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for %s: %v", entry.name, rec)
		}
	}()
	entry.fn(sess, r)
	if r.Short() {
		return fmt.Errorf("%s: truncated payload", entry.name)
	}
	return nil
}
