package banker

import (
	"math/rand"
	"time"
)

// DelayPolicy 決定兩次送出之間的等待時間。
type DelayPolicy interface {
	Next(human bool) time.Duration
}

// RandomDelay 是內建延遲：
//   - fast: 50ms + U[0,100)ms
//   - human: 300ms + avg(6×U[0,1))×200ms，近似常態分佈，看起來較不機械
type RandomDelay struct {
	rng *rand.Rand
}

func NewRandomDelay(seed int64) *RandomDelay {
	return &RandomDelay{rng: rand.New(rand.NewSource(seed))}
}

func (d *RandomDelay) Next(human bool) time.Duration {
	if human {
		ms := 300 + int(d.gaussian()*200)
		return time.Duration(ms) * time.Millisecond
	}
	return time.Duration(50+d.rng.Intn(100)) * time.Millisecond
}

func (d *RandomDelay) gaussian() float64 {
	sum := 0.0
	for i := 0; i < 6; i++ {
		sum += d.rng.Float64()
	}
	return sum / 6
}

// DelayOverride 可由外部（Lua 腳本）取代內建延遲；ok=false 時沿用 base。
type DelayOverride func(human bool, base time.Duration) (d time.Duration, ok bool)

// ScriptedDelay wraps a base policy with an optional override.
type ScriptedDelay struct {
	Base     DelayPolicy
	Override DelayOverride
}

func (d ScriptedDelay) Next(human bool) time.Duration {
	base := d.Base.Next(human)
	if d.Override == nil {
		return base
	}
	if v, ok := d.Override(human, base); ok && v >= 0 {
		return v
	}
	return base
}
