package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/l1jgo/banker/internal/config"
	"go.uber.org/zap"
)

// JournalEntry 是一筆已送出的存入請求（送出即記錄，不代表伺服器已接受）。
type JournalEntry struct {
	Profile   string
	SessionID uuid.UUID
	Container int32
	Offset    int32
	ItemID    int32
	DbID      uint64
	Amount    int32
	SentAt    time.Time
}

// Store is the persistence surface used by the agent.
type Store interface {
	LoadBlacklist(ctx context.Context, profile string) ([]int32, error)
	SaveBlacklist(ctx context.Context, profile string, ids []int32) error
	WriteJournal(ctx context.Context, entries []JournalEntry) error
	Driver() string
	Close()
}

// Open 依 cfg.Driver 開啟資料庫並執行遷移。
func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := NewDB(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if err := RunMigrations(ctx, db.Pool); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		return NewPgStore(db), nil
	case "sqlite":
		db, err := OpenSQLite(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := RunSQLiteMigrations(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		return NewSQLiteStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// ProfileBlacklist binds a Store to one profile so it can back a blacklist.
type ProfileBlacklist struct {
	Store   Store
	Profile string
}

func (p ProfileBlacklist) SaveBlacklist(ctx context.Context, ids []int32) error {
	return p.Store.SaveBlacklist(ctx, p.Profile, ids)
}
