package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newEngine(t *testing.T, dir string) *Engine {
	t.Helper()
	e, err := NewEngine(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestDepositDelayWithoutScript(t *testing.T) {
	e := newEngine(t, filepath.Join(t.TempDir(), "missing"))
	require.False(t, e.Has("deposit_delay"))
	_, ok := e.DepositDelay(true, 400)
	require.False(t, ok)
}

func TestDepositDelayFromScriptDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "banker"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "banker", "delay.lua"), []byte(`
function deposit_delay(ctx)
  if ctx.human then
    return ctx.base_ms * 2
  end
  return nil
end
`), 0o644))

	e := newEngine(t, dir)
	require.True(t, e.Has("deposit_delay"))

	ms, ok := e.DepositDelay(true, 350)
	require.True(t, ok)
	require.Equal(t, 700, ms)

	_, ok = e.DepositDelay(false, 80)
	require.False(t, ok)
}

func TestDepositDelayRejectsBadResults(t *testing.T) {
	e := newEngine(t, t.TempDir())

	require.NoError(t, e.LoadString(`function deposit_delay(ctx) return "soon" end`))
	_, ok := e.DepositDelay(false, 80)
	require.False(t, ok)

	require.NoError(t, e.LoadString(`function deposit_delay(ctx) return -5 end`))
	_, ok = e.DepositDelay(false, 80)
	require.False(t, ok)

	require.NoError(t, e.LoadString(`function deposit_delay(ctx) error("boom") end`))
	_, ok = e.DepositDelay(false, 80)
	require.False(t, ok)
}

func TestDepositDelayRejectsNonFiniteAndClampsLarge(t *testing.T) {
	e := newEngine(t, t.TempDir())

	for _, src := range []string{
		`function deposit_delay(ctx) return 1/0 end`,
		`function deposit_delay(ctx) return -1/0 end`,
		`function deposit_delay(ctx) return 0/0 end`,
	} {
		require.NoError(t, e.LoadString(src))
		_, ok := e.DepositDelay(true, 350)
		require.False(t, ok, src)
	}

	require.NoError(t, e.LoadString(`function deposit_delay(ctx) return 1e12 end`))
	ms, ok := e.DepositDelay(true, 350)
	require.True(t, ok)
	require.Equal(t, maxDepositDelayMs, ms)
}

func TestBrokenScriptFailsLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.lua"), []byte("function ("), 0o644))
	_, err := NewEngine(dir, zaptest.NewLogger(t))
	require.Error(t, err)
}
