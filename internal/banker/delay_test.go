package banker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRandomDelayRanges(t *testing.T) {
	d := NewRandomDelay(42)
	for i := 0; i < 500; i++ {
		fast := d.Next(false)
		require.GreaterOrEqual(t, fast, 50*time.Millisecond)
		require.Less(t, fast, 150*time.Millisecond)

		human := d.Next(true)
		require.GreaterOrEqual(t, human, 300*time.Millisecond)
		require.LessOrEqual(t, human, 500*time.Millisecond)
	}
}

func TestRandomDelaySeeded(t *testing.T) {
	a, b := NewRandomDelay(7), NewRandomDelay(7)
	for i := 0; i < 20; i++ {
		require.Equal(t, a.Next(i%2 == 0), b.Next(i%2 == 0))
	}
}

func TestScriptedDelayOverride(t *testing.T) {
	base := fixedDelay(80 * time.Millisecond)

	require.Equal(t, 80*time.Millisecond, ScriptedDelay{Base: base}.Next(false))

	var gotBase time.Duration
	d := ScriptedDelay{Base: base, Override: func(human bool, b time.Duration) (time.Duration, bool) {
		gotBase = b
		if human {
			return 0, false
		}
		return 5 * time.Millisecond, true
	}}
	require.Equal(t, 5*time.Millisecond, d.Next(false))
	require.Equal(t, 80*time.Millisecond, gotBase)
	require.Equal(t, 80*time.Millisecond, d.Next(true), "ok=false keeps the base delay")

	neg := ScriptedDelay{Base: base, Override: func(bool, time.Duration) (time.Duration, bool) {
		return -time.Second, true
	}}
	require.Equal(t, 80*time.Millisecond, neg.Next(false))
}
