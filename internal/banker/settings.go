package banker

import (
	"time"

	"github.com/l1jgo/banker/internal/config"
)

// Settings 是單一掛勾工作階段的執行期設定。初始值來自 config，控制指令可在執行期切換。
// 切換不會寫回設定檔。
type Settings struct {
	Auto        bool
	SingleTab   bool
	Human       bool
	PageTimeout time.Duration
	DepositIn   map[int32]bool
	Sources     Source
}

func NewSettings(cfg config.BankerConfig) Settings {
	s := Settings{
		Auto:        cfg.Auto,
		SingleTab:   cfg.SingleTab,
		Human:       cfg.Human,
		PageTimeout: cfg.PageTimeout,
		DepositIn: map[int32]bool{
			ContainerPersonal: cfg.DepositIn.Personal,
			ContainerGuild:    cfg.DepositIn.Guild,
			ContainerPet:      cfg.DepositIn.Pet,
			ContainerWardrobe: cfg.DepositIn.Wardrobe,
		},
	}
	if s.PageTimeout <= 0 {
		s.PageTimeout = PageChangeTimeout
	}
	if cfg.DepositFrom.Bag {
		s.Sources |= SourceBag
	}
	if cfg.DepositFrom.Pockets {
		s.Sources |= SourcePockets
	}
	return s
}

// DepositAllowed reports whether depositing into the container type is permitted.
// Unknown container types are never permitted.
func (s *Settings) DepositAllowed(container int32) bool {
	return s.DepositIn[container]
}

// ToggleDepositIn flips the permission of a known container type.
func (s *Settings) ToggleDepositIn(container int32) (enabled bool, known bool) {
	if ContainerName(container) == "" {
		return false, false
	}
	s.DepositIn[container] = !s.DepositIn[container]
	return s.DepositIn[container], true
}

// ToggleSource flips one carry source and reports whether it is now enabled.
func (s *Settings) ToggleSource(src Source) bool {
	s.Sources ^= src
	return s.Sources&src != 0
}
