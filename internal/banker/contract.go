package banker

// ContractTracker 追蹤目前開啟的合約（UI 視窗）。
// 狀態機：Closed → Open(type) → Closed。依賴者以輪詢方式讀取，不會被推送。
type ContractTracker struct {
	open         bool
	contractType int32

	container    int32
	hasContainer bool
}

// Start 記錄一個發送給本地角色的合約開始事件。
func (t *ContractTracker) Start(contractType int32) {
	t.open = true
	t.contractType = contractType
}

// Cancel 關閉合約並清除容器類型。
func (t *ContractTracker) Cancel() {
	t.open = false
	t.contractType = 0
	t.container = 0
	t.hasContainer = false
}

func (t *ContractTracker) IsOpen() bool {
	return t.open
}

// Type returns the open contract's type tag, or 0 when closed.
func (t *ContractTracker) Type() int32 {
	return t.contractType
}

// IsBank reports whether the open contract is the bank-like container contract.
// Only this contract enables transfers.
func (t *ContractTracker) IsBank() bool {
	return t.open && t.contractType == BankContract
}

// SetContainer records the container type from the latest view.
func (t *ContractTracker) SetContainer(container int32) {
	t.container = container
	t.hasContainer = true
}

// Container returns the current container type.
func (t *ContractTracker) Container() (int32, bool) {
	return t.container, t.hasContainer
}
