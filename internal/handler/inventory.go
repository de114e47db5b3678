package handler

import (
	"github.com/l1jgo/banker/internal/banker"
	"github.com/l1jgo/banker/internal/net"
	"github.com/l1jgo/banker/internal/net/packet"
)

// HandleItemList processes S_ITEMLIST, the carried-inventory snapshot:
// H count, count×{Q dbid, D id, D amount, D pocket, D slot}.
func HandleItemList(sess *net.Session, r *packet.Reader, deps *Deps) {
	count := int(r.ReadH())
	items := make([]banker.Item, 0, count)
	for i := 0; i < count; i++ {
		it := banker.Item{DbID: r.ReadQ()}
		it.ID = r.ReadD()
		it.Amount = r.ReadD()
		it.Pocket = r.ReadD()
		it.Slot = r.ReadD()
		items = append(items, it)
	}
	if r.Short() {
		return
	}
	if a := agentOf(sess, deps); a != nil {
		a.Banker.OnInventory(items)
	}
}
