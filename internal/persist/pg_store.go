package persist

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PgStore persists to PostgreSQL through pgx.
type PgStore struct {
	db *DB
}

func NewPgStore(db *DB) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Driver() string { return "postgres" }

func (s *PgStore) Close() { s.db.Close() }

// LoadBlacklist returns the profile's blacklisted item ids in ascending order.
func (s *PgStore) LoadBlacklist(ctx context.Context, profile string) ([]int32, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT item_id FROM blacklist_items WHERE profile = $1 ORDER BY item_id`, profile,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int32])
}

// SaveBlacklist 以整批取代的方式保存黑名單。
func (s *PgStore) SaveBlacklist(ctx context.Context, profile string, ids []int32) error {
	return pgx.BeginFunc(ctx, s.db.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM blacklist_items WHERE profile = $1`, profile); err != nil {
			return fmt.Errorf("clear blacklist: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		rows := make([][]any, len(ids))
		for i, id := range ids {
			rows[i] = []any{profile, id}
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"blacklist_items"},
			[]string{"profile", "item_id"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("copy blacklist: %w", err)
		}
		return nil
	})
}

// WriteJournal writes a batch of journal entries in a single transaction.
func (s *PgStore) WriteJournal(ctx context.Context, entries []JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			`INSERT INTO deposit_journal (profile, session_id, container, tab_offset, item_id, db_id, amount, sent_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.Profile, e.SessionID.String(), e.Container, e.Offset, e.ItemID, int64(e.DbID), e.Amount, e.SentAt,
		)
	}
	return pgx.BeginFunc(ctx, s.db.Pool, func(tx pgx.Tx) error {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("journal batch: %w", err)
		}
		return nil
	})
}
