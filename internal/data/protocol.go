package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProtocolRequirement 是一個必須能解析的協定名稱。
// MinVersion 為定義檔的最低版本（0 = 不限）。
type ProtocolRequirement struct {
	Name       string `yaml:"name"`
	MinVersion int    `yaml:"min_version"`
}

// ProtocolTable holds the required protocol names in file order.
type ProtocolTable struct {
	list   []ProtocolRequirement
	byName map[string]*ProtocolRequirement
}

// LoadProtocolTable loads protocol_list.yaml.
func LoadProtocolTable(path string) (*ProtocolTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read protocol list: %w", err)
	}
	return ParseProtocolTable(raw)
}

func ParseProtocolTable(raw []byte) (*ProtocolTable, error) {
	var entries []ProtocolRequirement
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse protocol list: %w", err)
	}
	t := &ProtocolTable{
		list:   make([]ProtocolRequirement, 0, len(entries)),
		byName: make(map[string]*ProtocolRequirement, len(entries)),
	}
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("parse protocol list: entry without name")
		}
		if e.MinVersion < 0 {
			return nil, fmt.Errorf("parse protocol list: %s: negative min_version", e.Name)
		}
		if _, dup := t.byName[e.Name]; dup {
			return nil, fmt.Errorf("parse protocol list: duplicate %s", e.Name)
		}
		t.list = append(t.list, e)
		t.byName[e.Name] = &t.list[len(t.list)-1]
	}
	return t, nil
}

// Get returns the requirement for name, or nil if it is not required.
func (t *ProtocolTable) Get(name string) *ProtocolRequirement {
	return t.byName[name]
}

// All returns the requirements in file order.
func (t *ProtocolTable) All() []ProtocolRequirement {
	return t.list
}

// Names returns the required protocol names in file order.
func (t *ProtocolTable) Names() []string {
	out := make([]string, len(t.list))
	for i, e := range t.list {
		out[i] = e.Name
	}
	return out
}

func (t *ProtocolTable) Count() int {
	return len(t.list)
}
