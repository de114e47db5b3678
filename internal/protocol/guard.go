package protocol

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/l1jgo/banker/internal/banker"
	"github.com/l1jgo/banker/internal/data"
	"go.uber.org/zap"
)

// Options 描述協定相容性檢查需要的目錄與需求清單。
type Options struct {
	MapDir                string // 已安裝的 protocol.VERSION.map
	DefinitionsDir        string // 已安裝的 NAME.VERSION.def
	BundledMapDir         string
	BundledDefinitionsDir string
	Baseline              int // 可作為修補基底的最低對照檔版本
	Requirements          []data.ProtocolRequirement
}

// Report 是一次檢查的結果，供記錄與通知使用。
type Report struct {
	Version         int
	MissingNames    []string // 對照檔中缺少的名稱
	MissingDefs     []string // 缺少（或版本過舊）的定義檔
	RestoredDefs    []string
	LeftMissingDefs []string
	BaseMap         string // 修補所用的既有對照檔，空字串代表直接使用參考對照檔
	WrittenMap      string // 寫出的對照檔路徑
}

// Guard 是協定相容性守衛：在工作階段開始時檢查必要的協定名稱與定義檔，
// 缺少時嘗試自動修復。修復後仍保持停用，直到下一次檢查通過。
type Guard struct {
	opts Options
	log  *zap.Logger

	checked   bool
	disabled  bool
	manualFix bool
	active    *Map
	version   int
}

func NewGuard(opts Options, log *zap.Logger) *Guard {
	return &Guard{opts: opts, log: log, active: NewMap()}
}

// Err 回傳目前的閘門狀態：nil 表示允許轉移。
// 需要手動修復時優先回報 ErrManualFixRequired。
func (g *Guard) Err() error {
	switch {
	case g.manualFix:
		return banker.ErrManualFixRequired
	case g.disabled || !g.checked:
		return banker.ErrProtocolIncompatible
	default:
		return nil
	}
}

func (g *Guard) Disabled() bool          { return g.disabled || !g.checked }
func (g *Guard) ManualFixRequired() bool { return g.manualFix }

// Map returns the installed mapping loaded by the last Check.
func (g *Guard) Map() *Map { return g.active }

// Version returns the protocol version of the last Check.
func (g *Guard) Version() int { return g.version }

func (g *Guard) names() []string {
	out := make([]string, len(g.opts.Requirements))
	for i, r := range g.opts.Requirements {
		out[i] = r.Name
	}
	return out
}

// Check 以 version 為目前的協定版本重新檢查。每次掛勾連線 hello 時呼叫。
func (g *Guard) Check(version int) Report {
	g.checked = true
	g.disabled = false
	g.manualFix = false
	g.version = version

	rep := Report{Version: version}
	log := g.log.With(zap.Int("protocol_version", version))

	g.checkDefinitions(&rep, log)
	g.checkMap(&rep, log)

	if g.disabled {
		log.Warn("協定不相容，銀行功能停用",
			zap.Strings("missing_names", rep.MissingNames),
			zap.Strings("missing_defs", rep.MissingDefs),
			zap.Bool("manual_fix", g.manualFix),
		)
	} else {
		log.Info("協定檢查通過", zap.Int("names", len(g.opts.Requirements)))
	}
	return rep
}

// ── definitions ──────────────────────────────────────────────────

func (g *Guard) checkDefinitions(rep *Report, log *zap.Logger) {
	latest, err := LatestDefinitions(g.opts.DefinitionsDir)
	if err != nil {
		log.Error("讀取定義檔目錄失敗", zap.String("dir", g.opts.DefinitionsDir), zap.Error(err))
		latest = map[string]int{}
	}
	for _, r := range g.opts.Requirements {
		if v, ok := latest[r.Name]; !ok || v < r.MinVersion {
			rep.MissingDefs = append(rep.MissingDefs, r.Name)
		}
	}
	if len(rep.MissingDefs) == 0 {
		return
	}
	g.disabled = true
	log.Warn("缺少定義檔，嘗試修復", zap.Strings("names", rep.MissingDefs))

	bundled, err := listFiles(g.opts.BundledDefinitionsDir)
	if err != nil {
		log.Error("讀取隨附定義檔失敗", zap.String("dir", g.opts.BundledDefinitionsDir), zap.Error(err))
	}
	for _, name := range rep.MissingDefs {
		need := g.minVersion(name)
		restored := false
		for _, file := range bundled {
			fname, v, ok := ParseDefFileName(file)
			if fname != name {
				continue
			}
			src := filepath.Join(g.opts.BundledDefinitionsDir, file)
			dst := filepath.Join(g.opts.DefinitionsDir, file)
			if err := copyFile(src, dst); err != nil {
				log.Error("複製定義檔失敗", zap.String("src", src), zap.String("dst", dst), zap.Error(err))
				continue
			}
			log.Info("已複製定義檔", zap.String("src", src), zap.String("dst", dst))
			if ok && v >= need {
				restored = true
			}
		}
		if restored {
			rep.RestoredDefs = append(rep.RestoredDefs, name)
		} else {
			rep.LeftMissingDefs = append(rep.LeftMissingDefs, name)
		}
	}
	if len(rep.LeftMissingDefs) > 0 {
		g.manualFix = true
		log.Error("仍缺少定義檔，需要手動修復",
			zap.Strings("names", rep.LeftMissingDefs),
			zap.String("from", g.opts.BundledDefinitionsDir),
			zap.String("to", g.opts.DefinitionsDir),
		)
		return
	}
	log.Info("定義檔已修復，重新啟動遊戲與掛勾後生效")
}

func (g *Guard) minVersion(name string) int {
	for _, r := range g.opts.Requirements {
		if r.Name == name {
			return r.MinVersion
		}
	}
	return 0
}

// ── protocol map ─────────────────────────────────────────────────

func (g *Guard) checkMap(rep *Report, log *zap.Logger) {
	dest := filepath.Join(g.opts.MapDir, MapFileName(rep.Version))
	active, err := ReadMapFile(dest)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		active = NewMap()
	default:
		log.Error("讀取協定對照檔失敗", zap.String("path", dest), zap.Error(err))
		active = NewMap()
	}
	g.active = active

	rep.MissingNames = active.Missing(g.names())
	if len(rep.MissingNames) == 0 {
		return
	}
	g.disabled = true
	log.Warn("協定對照檔缺少名稱，嘗試修復", zap.Strings("names", rep.MissingNames))

	ref, err := g.referenceMap()
	if err != nil {
		g.manualFix = true
		log.Error("讀取參考對照檔失敗", zap.String("dir", g.opts.BundledMapDir), zap.Error(err))
		return
	}

	result := ref
	if basePath, ok := g.findBase(log); ok {
		base, err := ReadMapFile(basePath)
		if err != nil {
			log.Error("讀取既有對照檔失敗", zap.String("path", basePath), zap.Error(err))
		} else {
			rep.BaseMap = basePath
			result = patch(base, ref, rep.MissingNames, log)
		}
	}

	if unresolved := result.Missing(rep.MissingNames); len(unresolved) > 0 {
		g.manualFix = true
		log.Error("參考對照檔也缺少名稱", zap.Strings("names", unresolved))
	}

	if err := WriteMapFile(dest, result); err != nil {
		g.manualFix = true
		log.Error("無法修復協定對照檔，請手動處理",
			zap.String("path", dest),
			zap.String("hint", "copy a protocol map with version >= baseline and rename it to "+MapFileName(rep.Version)),
			zap.Error(err),
		)
		return
	}
	rep.WrittenMap = dest
	log.Info("協定對照檔已修復，重新啟動遊戲與掛勾後生效", zap.String("path", dest))
}

// referenceMap 讀取隨附目錄中字典序最後的對照檔。
func (g *Guard) referenceMap() (*Map, error) {
	files, err := listFiles(g.opts.BundledMapDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fs.ErrNotExist
	}
	return ReadMapFile(filepath.Join(g.opts.BundledMapDir, files[len(files)-1]))
}

// findBase 找出已安裝且版本不低於基準的最高版本對照檔。
func (g *Guard) findBase(log *zap.Logger) (string, bool) {
	files, err := listFiles(g.opts.MapDir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Error("讀取協定對照檔目錄失敗", zap.String("dir", g.opts.MapDir), zap.Error(err))
		}
		return "", false
	}
	best, found := 0, ""
	for _, f := range files {
		if !strings.HasSuffix(f, ".map") {
			continue
		}
		v, ok := ParseMapFileName(f)
		if !ok || v < g.opts.Baseline {
			continue
		}
		if found == "" || v > best {
			best, found = v, f
		}
	}
	if found == "" {
		return "", false
	}
	log.Info("找到既有協定對照檔", zap.String("file", found))
	return filepath.Join(g.opts.MapDir, found), true
}

// patch 以參考對照檔補上缺少或不一致的名稱，只處理 missing 中的名稱。
func patch(base, ref *Map, missing []string, log *zap.Logger) *Map {
	out := base.Clone()
	for _, name := range missing {
		want, ok := ref.Get(name)
		if !ok {
			continue
		}
		have, exists := out.Get(name)
		if exists && have == want {
			continue
		}
		if exists {
			log.Info("修正對照", zap.String("name", name), zap.Uint16("from", have), zap.Uint16("to", want))
		} else {
			log.Info("新增對照", zap.String("name", name), zap.Uint16("code", want))
		}
		out.Set(name, want)
	}
	return out
}
