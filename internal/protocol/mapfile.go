package protocol

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Map 是協定名稱 → 數字代碼的對照表，保留檔案中的出現順序以便原樣寫回。
type Map struct {
	names []string
	codes map[string]uint16
}

func NewMap() *Map {
	return &Map{codes: make(map[string]uint16)}
}

// Get returns the code for name.
func (m *Map) Get(name string) (uint16, bool) {
	c, ok := m.codes[name]
	return c, ok
}

func (m *Map) Has(name string) bool {
	_, ok := m.codes[name]
	return ok
}

// Set 設定代碼；新名稱附加在最後，既有名稱保持原位置。
func (m *Map) Set(name string, code uint16) {
	if _, ok := m.codes[name]; !ok {
		m.names = append(m.names, name)
	}
	m.codes[name] = code
}

func (m *Map) Len() int {
	return len(m.names)
}

// Names returns the names in file order.
func (m *Map) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Clone returns an independent copy.
func (m *Map) Clone() *Map {
	c := &Map{
		names: make([]string, len(m.names)),
		codes: make(map[string]uint16, len(m.codes)),
	}
	copy(c.names, m.names)
	for k, v := range m.codes {
		c.codes[k] = v
	}
	return c
}

// Missing 回傳 names 中不在對照表裡的名稱（保持輸入順序）。
func (m *Map) Missing(names []string) []string {
	var out []string
	for _, n := range names {
		if !m.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

// ── file format ──────────────────────────────────────────────────

var fieldSep = regexp.MustCompile(`\s*=\s*|\s+`)

// ParseMap 讀取對照檔。每行為 "NAME CODE" 或 "NAME = CODE"；keyFirst=false 時
// 欄位順序相反（"CODE NAME"）。空行與 # 註解略過，代碼無法解析的行也略過並計入 skipped。
func ParseMap(r io.Reader, keyFirst bool) (m *Map, skipped int, err error) {
	m = NewMap()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := fieldSep.Split(line, -1)
		if len(fields) < 2 {
			skipped++
			continue
		}
		key, val := fields[0], fields[1]
		if !keyFirst {
			key, val = val, key
		}
		code, err := strconv.ParseUint(val, 10, 16)
		if err != nil || key == "" {
			skipped++
			continue
		}
		m.Set(key, uint16(code))
	}
	if err := sc.Err(); err != nil {
		return nil, skipped, err
	}
	return m, skipped, nil
}

// ReadMapFile parses a key-first mapping file.
func ReadMapFile(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, _, err := ParseMap(f, true)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

// Encode 以 "NAME CODE" 格式輸出，行序與對照表相同。
func (m *Map) Encode() []byte {
	var buf bytes.Buffer
	for i, n := range m.names {
		if i > 0 {
			buf.WriteByte('\n')
		}
		fmt.Fprintf(&buf, "%s %d", n, m.codes[n])
	}
	return buf.Bytes()
}

func WriteMapFile(path string, m *Map) error {
	return os.WriteFile(path, m.Encode(), 0o644)
}

// MapFileName returns the installed name of the mapping for a protocol version.
func MapFileName(version int) string {
	return fmt.Sprintf("protocol.%d.map", version)
}

// ParseMapFileName 解析 "protocol.VERSION[.map]"；其他名稱回傳 ok=false。
func ParseMapFileName(name string) (version int, ok bool) {
	parts := strings.Split(name, ".")
	if len(parts) < 2 || parts[0] != "protocol" {
		return 0, false
	}
	v, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return v, true
}
