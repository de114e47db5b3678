package banker

// SnapshotCache 保存最新的攜帶物品清單與目前容器分頁的快照。
// 每次收到事件整批替換；讀取端拿到的是複本。
type SnapshotCache struct {
	inventory []Item
	view      *ContainerView
}

// SetInventory replaces the carried-item source wholesale.
func (c *SnapshotCache) SetInventory(items []Item) {
	c.inventory = append([]Item(nil), items...)
}

// SetView replaces the active container snapshot wholesale.
func (c *SnapshotCache) SetView(v ContainerView) {
	v.Items = append([]Item(nil), v.Items...)
	c.view = &v
}

// View returns the active container snapshot, or nil if none was seen.
func (c *SnapshotCache) View() *ContainerView {
	return c.view
}

// ClearView drops the container snapshot.
func (c *SnapshotCache) ClearView() {
	c.view = nil
}

// Carried 依來源篩選攜帶物品，每次呼叫都重新計算。
// SourceNone 回傳空集合（對帳變成空操作，不是錯誤）。
func (c *SnapshotCache) Carried(src Source) []Item {
	out := make([]Item, 0, len(c.inventory))
	for _, it := range c.inventory {
		switch {
		case it.Pocket == 0 && src&SourceBag != 0:
		case it.Pocket > 0 && src&SourcePockets != 0:
		default:
			continue
		}
		out = append(out, it)
	}
	return out
}

// Stored returns a copy of the container tab's items.
func (c *SnapshotCache) Stored() []Item {
	if c.view == nil {
		return nil
	}
	return append([]Item(nil), c.view.Items...)
}
