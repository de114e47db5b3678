package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Hook      HookConfig      `toml:"hook"`
	Banker    BankerConfig    `toml:"banker"`
	Protocol  ProtocolConfig  `toml:"protocol"`
	Database  DatabaseConfig  `toml:"database"`
	Scripting ScriptingConfig `toml:"scripting"`
	Logging   LoggingConfig   `toml:"logging"`
}

// HookConfig 是掛勾橋接連線的網路設定。
type HookConfig struct {
	BindAddress      string        `toml:"bind_address"`
	TickRate         time.Duration `toml:"tick_rate"`
	InQueueSize      int           `toml:"in_queue_size"`
	OutQueueSize     int           `toml:"out_queue_size"`
	MaxFramesPerTick int           `toml:"max_frames_per_tick"`
	WriteTimeout     time.Duration `toml:"write_timeout"`
	ReadTimeout      time.Duration `toml:"read_timeout"`
	StartTime        int64         // set at boot, not from config
}

// BankerConfig 是存入代理的初始設定；執行期切換不寫回檔案。
type BankerConfig struct {
	Profile     string            `toml:"profile"` // blacklist key; empty = character name from hello
	Auto        bool              `toml:"auto"`
	SingleTab   bool              `toml:"single_tab"`
	Human       bool              `toml:"human"`
	PageTimeout time.Duration     `toml:"page_timeout"`
	Seed        int64             `toml:"seed"` // delay RNG seed; 0 = time based
	DepositIn   DepositInConfig   `toml:"deposit_in"`
	DepositFrom DepositFromConfig `toml:"deposit_from"`
}

type DepositInConfig struct {
	Personal bool `toml:"personal"`
	Guild    bool `toml:"guild"`
	Pet      bool `toml:"pet"`
	Wardrobe bool `toml:"wardrobe"`
}

type DepositFromConfig struct {
	Bag     bool `toml:"bag"`
	Pockets bool `toml:"pockets"`
}

// ProtocolConfig 指向協定對照檔與定義檔的目錄（已安裝與隨附）。
type ProtocolConfig struct {
	MapDir                string `toml:"map_dir"`
	DefinitionsDir        string `toml:"definitions_dir"`
	BundledMapDir         string `toml:"bundled_map_dir"`
	BundledDefinitionsDir string `toml:"bundled_definitions_dir"`
	BaselineVersion       int    `toml:"baseline_version"`
	Requirements          string `toml:"requirements"`
}

type DatabaseConfig struct {
	Driver          string        `toml:"driver"` // "sqlite" or "postgres"
	DSN             string        `toml:"dsn"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type ScriptingConfig struct {
	Dir string `toml:"dir"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Hook.StartTime = time.Now().Unix()
	return cfg, nil
}

// Parse 以預設值為底解析 TOML 內容，並檢查欄位是否合理。
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver: unsupported %q", c.Database.Driver)
	}
	if c.Hook.TickRate <= 0 {
		return fmt.Errorf("hook.tick_rate must be positive")
	}
	if c.Banker.PageTimeout <= 0 {
		return fmt.Errorf("banker.page_timeout must be positive")
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Hook: HookConfig{
			BindAddress:      "127.0.0.1:7802",
			TickRate:         10 * time.Millisecond,
			InQueueSize:      128,
			OutQueueSize:     256,
			MaxFramesPerTick: 64,
			WriteTimeout:     10 * time.Second,
			ReadTimeout:      0, // hook sessions idle while the client is idle
		},
		Banker: BankerConfig{
			PageTimeout: time.Second,
			DepositIn: DepositInConfig{
				Personal: true,
				Pet:      true,
			},
			DepositFrom: DepositFromConfig{
				Bag: true,
			},
		},
		Protocol: ProtocolConfig{
			MapDir:                "client/data/map",
			DefinitionsDir:        "client/data/definitions",
			BundledMapDir:         "protocols/map",
			BundledDefinitionsDir: "protocols/defs",
			BaselineVersion:       372752,
			Requirements:          "data/yaml/protocol_list.yaml",
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "file:banker.db?_pragma=busy_timeout(5000)",
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Scripting: ScriptingConfig{
			Dir: "scripts",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
