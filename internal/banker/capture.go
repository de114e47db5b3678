package banker

// CaptureMode 是黑名單的被動擷取模式。任一時刻恰好一種模式生效。
type CaptureMode uint8

const (
	CaptureNone CaptureMode = iota
	CaptureAddNext
	CaptureRemoveNext
	CaptureAutoBoth
)

func (m CaptureMode) String() string {
	switch m {
	case CaptureAddNext:
		return "add-next"
	case CaptureRemoveNext:
		return "remove-next"
	case CaptureAutoBoth:
		return "auto-both"
	default:
		return "none"
	}
}

// Transfer is the direction of an observed transfer request.
type Transfer uint8

const (
	TransferDeposit Transfer = iota
	TransferRetrieve
)

func (t Transfer) String() string {
	if t == TransferRetrieve {
		return "retrieve"
	}
	return "deposit"
}

// CaptureEffect is what an observed transfer does to the blacklist.
type CaptureEffect uint8

const (
	EffectNone CaptureEffect = iota
	EffectAdd
	EffectRemove
)

// Toggle 回傳操作者發出 want 擷取指令後的模式：
// 與目前模式相同則關閉（回到 None），否則覆蓋目前模式。
func (m CaptureMode) Toggle(want CaptureMode) CaptureMode {
	if want == CaptureNone || m == want {
		return CaptureNone
	}
	return want
}

// Observe 套用擷取規則到一次觀察到的轉移請求，回傳新的模式與對黑名單的影響。
// AddNext 與 AutoBoth 的領出會加入黑名單；RemoveNext 與 AutoBoth 的存入會移出黑名單。
// 處理後除 AutoBoth 之外一律回到 None。
func (m CaptureMode) Observe(dir Transfer) (CaptureMode, CaptureEffect) {
	switch {
	case m == CaptureAddNext, m == CaptureAutoBoth && dir == TransferRetrieve:
		return m.after(), EffectAdd
	case m == CaptureRemoveNext, m == CaptureAutoBoth && dir == TransferDeposit:
		return m.after(), EffectRemove
	default:
		return m.after(), EffectNone
	}
}

func (m CaptureMode) after() CaptureMode {
	if m == CaptureAutoBoth {
		return m
	}
	return CaptureNone
}
