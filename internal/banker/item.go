package banker

import "time"

// 合約與容器常數。容器類型值取自 S_VIEW_WARE_EX 的 container 欄位。
const (
	BankContract int32 = 26

	ContainerPersonal int32 = 1
	ContainerGuild    int32 = 3
	ContainerPet      int32 = 9
	ContainerWardrobe int32 = 12
)

// Layout of the carried inventory and of a bank tab.
const (
	PageSlots      int32 = 72  // slots per bank tab
	InventorySlots int32 = 120 // base bag capacity (pocket 0)
	PocketSlots    int32 = 80  // capacity of each extra pocket

	PageChangeTimeout = time.Second
)

// ContainerName returns the settings key of a container type, or "" for unknown types.
func ContainerName(container int32) string {
	switch container {
	case ContainerPersonal:
		return "personal"
	case ContainerGuild:
		return "guild"
	case ContainerPet:
		return "pet"
	case ContainerWardrobe:
		return "wardrobe"
	default:
		return ""
	}
}

// Item 是一個物品堆疊的快照值。快照整批替換，不會原地修改。
type Item struct {
	ID     int32  // 物品模板編號
	DbID   uint64 // 物品實例的永久編號
	Amount int32
	Pocket int32 // 0 = 主背包，>0 = 額外口袋
	Slot   int32
}

// LinearPosition 將 (pocket, slot) 攤平成單一序數：
// 主背包為 slot 本身；口袋 n 從 InventorySlots + (n-1)*PocketSlots 開始。
func (it Item) LinearPosition() int32 {
	base := int32(0)
	if it.Pocket > 0 {
		base = (it.Pocket-1)*PocketSlots + InventorySlots
	}
	return base + it.Slot
}

// ContainerView 是目前開啟容器單一分頁的快照（S_VIEW_WARE_EX）。
type ContainerView struct {
	Container   int32
	Action      byte
	Offset      int32
	NumUnlocked int32
	Money       uint64
	Items       []Item
}

// Tab returns the one-indexed display number of the view's tab.
func (v *ContainerView) Tab() int32 {
	return TabNumber(v.Offset)
}

// TabNumber converts a slot offset to its one-indexed tab number.
func TabNumber(offset int32) int32 {
	return offset/PageSlots + 1
}

// Source 是攜帶物品來源的位元組合。
type Source uint8

const (
	SourceBag Source = 1 << iota
	SourcePockets

	SourceNone Source = 0
	SourceBoth        = SourceBag | SourcePockets
)

func (s Source) String() string {
	switch s {
	case SourceBag:
		return "bag"
	case SourcePockets:
		return "pockets"
	case SourceBoth:
		return "bag+pockets"
	default:
		return "none"
	}
}
