package persist

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteStore persists to a local SQLite file (modernc.org/sqlite, no cgo).
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Driver() string { return "sqlite" }

func (s *SQLiteStore) Close() { s.db.Close() }

func (s *SQLiteStore) LoadBlacklist(ctx context.Context, profile string) ([]int32, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id FROM blacklist_items WHERE profile = ? ORDER BY item_id`, profile,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) SaveBlacklist(ctx context.Context, profile string, ids []int32) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM blacklist_items WHERE profile = ?`, profile); err != nil {
			return fmt.Errorf("clear blacklist: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO blacklist_items (profile, item_id) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, profile, id); err != nil {
				return fmt.Errorf("insert blacklist item %d: %w", id, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) WriteJournal(ctx context.Context, entries []JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO deposit_journal (profile, session_id, container, tab_offset, item_id, db_id, amount, sent_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx,
				e.Profile, e.SessionID.String(), e.Container, e.Offset, e.ItemID, int64(e.DbID), e.Amount,
				e.SentAt.UTC().Format(time.RFC3339Nano),
			); err != nil {
				return fmt.Errorf("insert journal: %w", err)
			}
		}
		return nil
	})
}

// CountJournal returns the number of journal rows of a profile.
func (s *SQLiteStore) CountJournal(ctx context.Context, profile string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM deposit_journal WHERE profile = ?`, profile).Scan(&n)
	return n, err
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
