package protocol

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/l1jgo/banker/internal/banker"
	"github.com/l1jgo/banker/internal/data"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const activeVersion = 380000

type layout struct {
	opts Options
}

func newLayout(t *testing.T, reqs ...data.ProtocolRequirement) *layout {
	t.Helper()
	root := t.TempDir()
	l := &layout{opts: Options{
		MapDir:                filepath.Join(root, "map"),
		DefinitionsDir:        filepath.Join(root, "defs"),
		BundledMapDir:         filepath.Join(root, "bundled", "map"),
		BundledDefinitionsDir: filepath.Join(root, "bundled", "defs"),
		Baseline:              372752,
		Requirements:          reqs,
	}}
	for _, d := range []string{l.opts.MapDir, l.opts.DefinitionsDir, l.opts.BundledMapDir, l.opts.BundledDefinitionsDir} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	return l
}

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func (l *layout) defs(t *testing.T, dir string, files ...string) {
	for _, f := range files {
		write(t, dir, f, "# "+f)
	}
}

func (l *layout) guard(t *testing.T) *Guard {
	return NewGuard(l.opts, zaptest.NewLogger(t))
}

func reqs(names ...string) []data.ProtocolRequirement {
	out := make([]data.ProtocolRequirement, len(names))
	for i, n := range names {
		out[i] = data.ProtocolRequirement{Name: n}
	}
	return out
}

func TestGuardUncheckedIsDisabled(t *testing.T) {
	g := NewGuard(Options{}, zaptest.NewLogger(t))
	require.ErrorIs(t, g.Err(), banker.ErrProtocolIncompatible)
	require.True(t, g.Disabled())
}

func TestGuardPassesWhenEverythingResolves(t *testing.T) {
	l := newLayout(t, reqs("A", "B")...)
	write(t, l.opts.MapDir, MapFileName(activeVersion), "A 10\nB 11\n")
	l.defs(t, l.opts.DefinitionsDir, "A.1.def", "B.2.def")

	g := l.guard(t)
	rep := g.Check(activeVersion)

	require.NoError(t, g.Err())
	require.Empty(t, rep.MissingNames)
	require.Empty(t, rep.MissingDefs)
	code, ok := g.Map().Get("B")
	require.True(t, ok)
	require.Equal(t, uint16(11), code)
}

func TestGuardPatchesHighestBaseMap(t *testing.T) {
	l := newLayout(t, reqs("A", "B")...)
	l.defs(t, l.opts.DefinitionsDir, "A.1.def", "B.1.def")
	write(t, l.opts.BundledMapDir, "protocol.370000.map", "A 1\nB 2\n")
	write(t, l.opts.BundledMapDir, "protocol.375000.map", "A 100\nB 200\nX 300\n")
	// below baseline: never used as base
	write(t, l.opts.MapDir, "protocol.300000.map", "A 9\n")
	write(t, l.opts.MapDir, "protocol.373000.map", "A 7\nZ 8\n")
	write(t, l.opts.MapDir, "protocol.374000.map", "A 100\nB 5\nY 6\n")

	g := l.guard(t)
	rep := g.Check(activeVersion)

	require.ElementsMatch(t, []string{"A", "B"}, rep.MissingNames)
	require.Equal(t, filepath.Join(l.opts.MapDir, "protocol.374000.map"), rep.BaseMap)
	require.ErrorIs(t, g.Err(), banker.ErrProtocolIncompatible, "stays disabled until the next check")
	require.False(t, g.ManualFixRequired())

	written, err := ReadMapFile(filepath.Join(l.opts.MapDir, MapFileName(activeVersion)))
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "Y"}, written.Names())
	b, _ := written.Get("B")
	require.Equal(t, uint16(200), b, "mismatched entry overwritten from reference")
	require.False(t, written.Has("X"), "only missing names are patched")

	g.Check(activeVersion)
	require.NoError(t, g.Err())
}

func TestGuardWritesReferenceWithoutBase(t *testing.T) {
	l := newLayout(t, reqs("A")...)
	l.defs(t, l.opts.DefinitionsDir, "A.1.def")
	write(t, l.opts.BundledMapDir, "protocol.375000.map", "A = 100\nX = 300\n")

	g := l.guard(t)
	rep := g.Check(activeVersion)
	require.Empty(t, rep.BaseMap)

	raw, err := os.ReadFile(rep.WrittenMap)
	require.NoError(t, err)
	require.Equal(t, "A 100\nX 300", string(raw))
}

func TestGuardWriteFailureNeedsManualFix(t *testing.T) {
	l := newLayout(t, reqs("A")...)
	l.defs(t, l.opts.DefinitionsDir, "A.1.def")
	write(t, l.opts.BundledMapDir, "protocol.375000.map", "A 100\n")
	// the destination path is occupied by a directory
	require.NoError(t, os.Mkdir(filepath.Join(l.opts.MapDir, MapFileName(activeVersion)), 0o755))

	g := l.guard(t)
	rep := g.Check(activeVersion)

	require.Empty(t, rep.WrittenMap)
	require.True(t, g.ManualFixRequired())
	require.ErrorIs(t, g.Err(), banker.ErrManualFixRequired)
}

func TestGuardMissingReferenceNeedsManualFix(t *testing.T) {
	l := newLayout(t, reqs("A")...)
	l.defs(t, l.opts.DefinitionsDir, "A.1.def")

	g := l.guard(t)
	g.Check(activeVersion)
	require.ErrorIs(t, g.Err(), banker.ErrManualFixRequired)
}

func TestGuardRestoresDefinitions(t *testing.T) {
	l := newLayout(t,
		data.ProtocolRequirement{Name: "C_PUT_WARE_ITEM", MinVersion: 3},
		data.ProtocolRequirement{Name: "S_ITEMLIST"},
		data.ProtocolRequirement{Name: "C_VIEW_WARE", MinVersion: 2},
	)
	write(t, l.opts.MapDir, MapFileName(activeVersion), "C_PUT_WARE_ITEM 1\nS_ITEMLIST 2\nC_VIEW_WARE 3\n")
	// installed but too old
	l.defs(t, l.opts.DefinitionsDir, "C_PUT_WARE_ITEM.2.def")
	l.defs(t, l.opts.BundledDefinitionsDir, "C_PUT_WARE_ITEM.3.def", "S_ITEMLIST.1.def", "S_ITEMLIST_EX.1.def")

	g := l.guard(t)
	rep := g.Check(activeVersion)

	require.Equal(t, []string{"C_PUT_WARE_ITEM", "S_ITEMLIST", "C_VIEW_WARE"}, rep.MissingDefs)
	require.Equal(t, []string{"C_PUT_WARE_ITEM", "S_ITEMLIST"}, rep.RestoredDefs)
	require.Equal(t, []string{"C_VIEW_WARE"}, rep.LeftMissingDefs)
	require.ErrorIs(t, g.Err(), banker.ErrManualFixRequired)

	latest, err := LatestDefinitions(l.opts.DefinitionsDir)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"C_PUT_WARE_ITEM": 3, "S_ITEMLIST": 1}, latest)
}

func TestParseMapFormats(t *testing.T) {
	m, skipped, err := ParseMap(strings.NewReader("  A 1\r\nB=2\n# comment\n\nC   =   3\nbroken\nD x\n"), true)
	require.NoError(t, err)
	require.Equal(t, 2, skipped)
	require.Equal(t, []string{"A", "B", "C"}, m.Names())

	m, _, err = ParseMap(strings.NewReader("10 A\n11 B\n"), false)
	require.NoError(t, err)
	a, _ := m.Get("A")
	require.Equal(t, uint16(10), a)
}

func TestFileNames(t *testing.T) {
	v, ok := ParseMapFileName("protocol.372752.map")
	require.True(t, ok)
	require.Equal(t, 372752, v)
	_, ok = ParseMapFileName("opcodes.372752.map")
	require.False(t, ok)

	name, ver, ok := ParseDefFileName("C_VIEW_WARE.2.def")
	require.True(t, ok)
	require.Equal(t, "C_VIEW_WARE", name)
	require.Equal(t, 2, ver)
	require.Equal(t, "C_VIEW_WARE.2.def", DefFileName(name, ver))
}
