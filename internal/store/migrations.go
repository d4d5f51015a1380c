package store

import (
	"fmt"

	"github.com/tmaeda/mailhub/internal/addr"
)

// baseline is the minimal schema every database starts from. Later columns
// arrive through guarded additive migrations so that databases created by
// older versions upgrade in place without data loss.
const baseline = `
CREATE TABLE IF NOT EXISTS messages (
	message_id  TEXT PRIMARY KEY,
	original_to TEXT NOT NULL DEFAULT '',
	subject     TEXT NOT NULL DEFAULT '',
	sender      TEXT NOT NULL DEFAULT '',
	date_disp   TEXT NOT NULL DEFAULT '',
	timestamp   DATETIME NOT NULL,
	raw_data    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS promo_rules (
	rule_id        INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_pattern TEXT NOT NULL UNIQUE,
	added_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	match_count    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS folders (
	folder_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	provider    TEXT NOT NULL,
	folder_name TEXT NOT NULL,
	folder_type TEXT NOT NULL DEFAULT 'custom',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(provider, folder_name)
);

CREATE TABLE IF NOT EXISTS deleted_messages (
	message_id  TEXT PRIMARY KEY,
	deleted_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	delete_mode TEXT NOT NULL DEFAULT 'local_only'
);

CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp);
`

// columnMigration adds one optional column when absent.
type columnMigration struct {
	table  string
	column string
	ddl    string
}

var columnMigrations = []columnMigration{
	{"messages", "provider", "ALTER TABLE messages ADD COLUMN provider TEXT"},
	{"messages", "read_flag", "ALTER TABLE messages ADD COLUMN read_flag INTEGER NOT NULL DEFAULT 0"},
	{"messages", "is_promo", "ALTER TABLE messages ADD COLUMN is_promo INTEGER NOT NULL DEFAULT 0"},
	{"messages", "folder", "ALTER TABLE messages ADD COLUMN folder TEXT DEFAULT NULL"},
	{"messages", "is_replied", "ALTER TABLE messages ADD COLUMN is_replied INTEGER NOT NULL DEFAULT 0"},
	{"messages", "is_deleted", "ALTER TABLE messages ADD COLUMN is_deleted INTEGER NOT NULL DEFAULT 0"},
	{"messages", "attachments", "ALTER TABLE messages ADD COLUMN attachments TEXT"},
	{"promo_rules", "target_folder", "ALTER TABLE promo_rules ADD COLUMN target_folder TEXT DEFAULT NULL"},
}

// migrate brings the schema up to date. Every step is additive and
// idempotent: fresh and already-migrated databases both pass untouched.
func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(baseline); err != nil {
		return fmt.Errorf("applying baseline schema: %w", err)
	}

	providerAdded := false
	for _, m := range columnMigrations {
		exists, err := s.columnExists(m.table, m.column)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := s.db.Exec(m.ddl); err != nil {
			return fmt.Errorf("adding column %s.%s: %w", m.table, m.column, err)
		}
		if m.table == "messages" && m.column == "provider" {
			providerAdded = true
		}
	}

	if providerAdded {
		if err := s.backfillProviders(); err != nil {
			return err
		}
	}

	// Rows written before address normalization was hardened may carry
	// decorated providers ("<example.com>"); re-derive those from the
	// stored recipient.
	if err := s.repairDecoratedProviders(); err != nil {
		return err
	}

	return nil
}

func (s *SQLiteStore) columnExists(table, column string) (bool, error) {
	var count int
	err := s.db.Get(&count,
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column)
	if err != nil {
		return false, fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	return count > 0, nil
}

// backfillProviders computes the provider column for all rows that predate
// it, from their stored recipient address.
func (s *SQLiteStore) backfillProviders() error {
	rows, err := s.db.Query("SELECT message_id, original_to FROM messages WHERE provider IS NULL")
	if err != nil {
		return fmt.Errorf("listing rows for provider backfill: %w", err)
	}
	defer rows.Close()

	type idProvider struct{ id, provider string }
	var updates []idProvider
	for rows.Next() {
		var id, originalTo string
		if err := rows.Scan(&id, &originalTo); err != nil {
			return fmt.Errorf("scanning backfill row: %w", err)
		}
		updates = append(updates, idProvider{id, addr.Provider(originalTo)})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, u := range updates {
		if _, err := s.db.Exec("UPDATE messages SET provider = ? WHERE message_id = ?", u.provider, u.id); err != nil {
			return fmt.Errorf("backfilling provider for %s: %w", u.id, err)
		}
	}
	return nil
}

// repairDecoratedProviders re-derives the provider for rows whose stored
// value still contains angle brackets.
func (s *SQLiteStore) repairDecoratedProviders() error {
	var dirty int
	err := s.db.Get(&dirty,
		"SELECT COUNT(*) FROM messages WHERE provider LIKE '%<%' OR provider LIKE '%>%'")
	if err != nil {
		return fmt.Errorf("checking for decorated providers: %w", err)
	}
	if dirty == 0 {
		return nil
	}

	rows, err := s.db.Query(
		"SELECT message_id, original_to FROM messages WHERE provider LIKE '%<%' OR provider LIKE '%>%'")
	if err != nil {
		return fmt.Errorf("listing decorated providers: %w", err)
	}
	defer rows.Close()

	type idProvider struct{ id, provider string }
	var updates []idProvider
	for rows.Next() {
		var id, originalTo string
		if err := rows.Scan(&id, &originalTo); err != nil {
			return fmt.Errorf("scanning decorated provider row: %w", err)
		}
		updates = append(updates, idProvider{id, addr.Provider(originalTo)})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, u := range updates {
		if _, err := s.db.Exec("UPDATE messages SET provider = ? WHERE message_id = ?", u.provider, u.id); err != nil {
			return fmt.Errorf("repairing provider for %s: %w", u.id, err)
		}
	}
	return nil
}
