package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmaeda/mailhub/internal/addr"
	"github.com/tmaeda/mailhub/internal/model"
)

// SaveMessages inserts a batch of fetched messages. For each message it
// derives the provider, applies promo classification, and serializes
// attachment metadata. Duplicate message ids and tombstoned ids are
// silently skipped; the return value counts rows actually inserted.
// The batch commits atomically.
func (s *SQLiteStore) SaveMessages(
	ctx context.Context,
	msgs []model.Message,
	classifier Classifier,
) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	tombstones, err := s.tombstoneSet(ctx)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT OR IGNORE INTO messages (
			message_id, original_to, subject, sender,
			date_disp, timestamp, raw_data, provider,
			read_flag, is_promo, is_replied, is_deleted,
			folder, attachments
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, 0, 0, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	newCount := 0
	for _, m := range msgs {
		if err := m.Validate(); err != nil {
			return newCount, fmt.Errorf("saving message batch: %w", err)
		}
		if _, gone := tombstones[m.MessageID]; gone {
			continue
		}

		provider := addr.Provider(m.OriginalTo)

		isPromo := false
		var targetFolder *string
		if classifier != nil {
			isPromo, targetFolder, err = classifier.Classify(ctx, m.Sender)
			if err != nil {
				return newCount, fmt.Errorf("classifying message %s: %w", m.MessageID, err)
			}
		}

		attachments, err := marshalAttachments(m.Attachments)
		if err != nil {
			return newCount, fmt.Errorf("marshaling attachments for %s: %w", m.MessageID, err)
		}

		res, err := stmt.ExecContext(ctx,
			m.MessageID, m.OriginalTo, m.Subject, m.Sender,
			m.DisplayDate, m.Timestamp.UTC(), m.RawContent, provider,
			boolToInt(isPromo), targetFolder, attachments,
		)
		if err != nil {
			return newCount, fmt.Errorf("inserting message %s: %w", m.MessageID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			newCount++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing message batch: %w", err)
	}
	return newCount, nil
}

// ReplaceSentMessage persists a message the system itself sent, replacing
// any prior row with the same id. This is the only overwrite path.
func (s *SQLiteStore) ReplaceSentMessage(ctx context.Context, msg model.Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("saving sent message: %w", err)
	}

	attachments, err := marshalAttachments(msg.Attachments)
	if err != nil {
		return fmt.Errorf("marshaling attachments for %s: %w", msg.MessageID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO messages (
			message_id, original_to, subject, sender,
			date_disp, timestamp, raw_data, provider,
			read_flag, is_promo, is_replied, is_deleted,
			folder, attachments
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, 0, 0, 0, ?, ?)`,
		msg.MessageID, msg.OriginalTo, msg.Subject, msg.Sender,
		msg.DisplayDate, msg.Timestamp.UTC(), msg.RawContent, msg.Provider,
		msg.Folder, attachments,
	)
	if err != nil {
		return fmt.Errorf("saving sent message %s: %w", msg.MessageID, err)
	}
	return nil
}

// GetMessage retrieves a single message by id, or nil when absent.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	row := s.db.QueryRowxContext(ctx, selectMessageColumns+" FROM messages WHERE message_id = ?", id)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting message %s: %w", id, err)
	}
	return &msg, nil
}

// MarkRead sets or clears the read flag for the given ids.
func (s *SQLiteStore) MarkRead(ctx context.Context, ids []string, read bool) error {
	return s.updateByIDs(ctx, "UPDATE messages SET read_flag = ? WHERE message_id IN (%s)",
		[]interface{}{boolToInt(read)}, ids, "marking read")
}

// MarkReplied sets the replied flag without moving the message.
func (s *SQLiteStore) MarkReplied(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE messages SET is_replied = 1 WHERE message_id = ?", id)
	if err != nil {
		return fmt.Errorf("marking %s replied: %w", id, err)
	}
	return nil
}

// MoveToFolder assigns the folder label for the given ids. A nil folder
// returns the messages to their default location. Promo and trash state
// are never altered here.
func (s *SQLiteStore) MoveToFolder(ctx context.Context, ids []string, folder *string) error {
	return s.updateByIDs(ctx, "UPDATE messages SET folder = ? WHERE message_id IN (%s)",
		[]interface{}{folder}, ids, "moving to folder")
}

// SetPromo moves messages into or out of promo state together with their
// folder assignment.
func (s *SQLiteStore) SetPromo(ctx context.Context, ids []string, promo bool, folder *string) error {
	return s.updateByIDs(ctx, "UPDATE messages SET is_promo = ?, folder = ? WHERE message_id IN (%s)",
		[]interface{}{boolToInt(promo), folder}, ids, "setting promo state")
}

// MoveToTrash assigns the trash token, leaving promo state untouched so a
// restore returns the message to its previous view.
func (s *SQLiteStore) MoveToTrash(ctx context.Context, ids []string) error {
	trash := model.FolderTrash
	return s.MoveToFolder(ctx, ids, &trash)
}

// RestoreFromTrash resets the folder to the default location for ids that
// are currently trashed.
func (s *SQLiteStore) RestoreFromTrash(ctx context.Context, ids []string) error {
	return s.updateByIDs(ctx,
		"UPDATE messages SET folder = NULL WHERE folder = ? AND message_id IN (%s)",
		[]interface{}{model.FolderTrash}, ids, "restoring from trash")
}

// RestoreTrashedByProvider restores every trashed message under a provider
// key (or the promo bucket) and returns how many were restored.
func (s *SQLiteStore) RestoreTrashedByProvider(ctx context.Context, provider string) (int, error) {
	var res sql.Result
	var err error
	if provider == model.ProviderPromo {
		res, err = s.db.ExecContext(ctx,
			"UPDATE messages SET folder = NULL WHERE is_promo = 1 AND folder = ?",
			model.FolderTrash)
	} else {
		res, err = s.db.ExecContext(ctx,
			"UPDATE messages SET folder = NULL WHERE provider = ? AND folder = ?",
			provider, model.FolderTrash)
	}
	if err != nil {
		return 0, fmt.Errorf("restoring trash for %s: %w", provider, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ListTrashedIDs returns the ids currently in the trash of a provider key
// (or the promo bucket).
func (s *SQLiteStore) ListTrashedIDs(ctx context.Context, provider string) ([]string, error) {
	var ids []string
	var err error
	if provider == model.ProviderPromo {
		err = s.db.SelectContext(ctx, &ids,
			"SELECT message_id FROM messages WHERE is_promo = 1 AND folder = ?",
			model.FolderTrash)
	} else {
		err = s.db.SelectContext(ctx, &ids,
			"SELECT message_id FROM messages WHERE provider = ? AND folder = ?",
			provider, model.FolderTrash)
	}
	if err != nil {
		return nil, fmt.Errorf("listing trash for %s: %w", provider, err)
	}
	return ids, nil
}

// PermanentlyDelete removes the message row and records a tombstone with
// the chosen mode, atomically. Remote-side deletion is the caller's
// concern and never part of this transaction.
func (s *SQLiteStore) PermanentlyDelete(ctx context.Context, id string, mode model.DeleteMode) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE message_id = ?", id); err != nil {
		return fmt.Errorf("deleting message %s: %w", id, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO deleted_messages (message_id, deleted_at, delete_mode)
		VALUES (?, ?, ?)`,
		id, time.Now().UTC(), string(mode))
	if err != nil {
		return fmt.Errorf("writing tombstone for %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete of %s: %w", id, err)
	}
	return nil
}

// ListTombstones returns all deletion tombstones, newest first.
func (s *SQLiteStore) ListTombstones(ctx context.Context) ([]model.Tombstone, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT message_id, deleted_at, delete_mode FROM deleted_messages ORDER BY deleted_at DESC")
	if err != nil {
		return nil, fmt.Errorf("querying tombstones: %w", err)
	}
	defer rows.Close()

	var tombstones []model.Tombstone
	for rows.Next() {
		var t model.Tombstone
		var mode string
		if err := rows.Scan(&t.MessageID, &t.DeletedAt, &mode); err != nil {
			return nil, fmt.Errorf("scanning tombstone row: %w", err)
		}
		t.Mode = model.DeleteMode(mode)
		tombstones = append(tombstones, t)
	}
	return tombstones, rows.Err()
}

// ClearTombstones removes every tombstone. Previously deleted messages may
// be re-imported by the next fetch. Explicit administrative action only.
func (s *SQLiteStore) ClearTombstones(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM deleted_messages")
	if err != nil {
		return 0, fmt.Errorf("clearing tombstones: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// KnownMessageIDs returns every id the sync engine must not fetch again:
// stored messages plus tombstoned deletions.
func (s *SQLiteStore) KnownMessageIDs(ctx context.Context) (map[string]struct{}, error) {
	known := make(map[string]struct{})

	for _, query := range []string{
		"SELECT message_id FROM messages",
		"SELECT message_id FROM deleted_messages",
	} {
		var ids []string
		if err := s.db.SelectContext(ctx, &ids, query); err != nil {
			return nil, fmt.Errorf("listing known message ids: %w", err)
		}
		for _, id := range ids {
			known[id] = struct{}{}
		}
	}
	return known, nil
}

// ListNonPromoSenders maps message id to sender for every message not yet
// in promo state. Used by bulk reclassification.
func (s *SQLiteStore) ListNonPromoSenders(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT message_id, sender FROM messages WHERE is_promo = 0")
	if err != nil {
		return nil, fmt.Errorf("listing non-promo senders: %w", err)
	}
	defer rows.Close()

	senders := make(map[string]string)
	for rows.Next() {
		var id, sender string
		if err := rows.Scan(&id, &sender); err != nil {
			return nil, fmt.Errorf("scanning sender row: %w", err)
		}
		senders[id] = sender
	}
	return senders, rows.Err()
}

// ListProviders returns the distinct provider keys present in the store.
func (s *SQLiteStore) ListProviders(ctx context.Context) ([]string, error) {
	var providers []string
	err := s.db.SelectContext(ctx, &providers,
		"SELECT DISTINCT provider FROM messages WHERE provider IS NOT NULL ORDER BY provider")
	if err != nil {
		return nil, fmt.Errorf("listing providers: %w", err)
	}
	return providers, nil
}

// MessageCount returns the total number of stored messages.
func (s *SQLiteStore) MessageCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM messages"); err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return count, nil
}

// NewestTimestamp returns the most recent stored message timestamp, or the
// zero time when the store is empty.
func (s *SQLiteStore) NewestTimestamp(ctx context.Context) (time.Time, error) {
	return s.boundaryTimestamp(ctx, "DESC")
}

// OldestTimestamp returns the oldest stored message timestamp, or the zero
// time when the store is empty.
func (s *SQLiteStore) OldestTimestamp(ctx context.Context) (time.Time, error) {
	return s.boundaryTimestamp(ctx, "ASC")
}

// boundaryTimestamp selects the declared timestamp column directly rather
// than MAX/MIN: the sqlite driver converts DATETIME columns to time.Time
// but hands aggregate expression results back as strings.
func (s *SQLiteStore) boundaryTimestamp(ctx context.Context, order string) (time.Time, error) {
	var ts time.Time
	err := s.db.GetContext(ctx, &ts,
		"SELECT timestamp FROM messages ORDER BY timestamp "+order+" LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("querying boundary timestamp: %w", err)
	}
	return ts, nil
}

func (s *SQLiteStore) tombstoneSet(ctx context.Context) (map[string]struct{}, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, "SELECT message_id FROM deleted_messages"); err != nil {
		return nil, fmt.Errorf("listing tombstones: %w", err)
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// updateByIDs runs an UPDATE with an IN clause over the given ids.
func (s *SQLiteStore) updateByIDs(
	ctx context.Context,
	queryFmt string,
	leading []interface{},
	ids []string,
	action string,
) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]interface{}, 0, len(leading)+len(ids))
	args = append(args, leading...)
	for _, id := range ids {
		args = append(args, id)
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(queryFmt, placeholders), args...); err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	return nil
}

const selectMessageColumns = `SELECT
	message_id, original_to, subject, sender, date_disp, timestamp,
	raw_data, provider, read_flag, is_promo, is_replied, is_deleted,
	folder, attachments`

// scanMessage scans a message row in selectMessageColumns order.
func scanMessage(row interface{ Scan(dest ...interface{}) error }) (model.Message, error) {
	var (
		m           model.Message
		provider    sql.NullString
		readInt     int
		promoInt    int
		repliedInt  int
		deletedInt  int
		folder      sql.NullString
		attachments sql.NullString
	)

	err := row.Scan(
		&m.MessageID, &m.OriginalTo, &m.Subject, &m.Sender, &m.DisplayDate,
		&m.Timestamp, &m.RawContent, &provider, &readInt, &promoInt,
		&repliedInt, &deletedInt, &folder, &attachments,
	)
	if err != nil {
		return model.Message{}, err
	}

	m.Provider = provider.String
	m.Read = readInt != 0
	m.Promo = promoInt != 0
	m.Replied = repliedInt != 0
	m.Deleted = deletedInt != 0
	if folder.Valid {
		f := folder.String
		m.Folder = &f
	}
	if attachments.Valid && attachments.String != "" {
		if err := json.Unmarshal([]byte(attachments.String), &m.Attachments); err != nil {
			return model.Message{}, fmt.Errorf("unmarshaling attachments: %w", err)
		}
	}

	return m, nil
}

// marshalAttachments serializes attachment metadata, with NULL standing
// for "no attachments" so the column filter stays cheap.
func marshalAttachments(attachments []model.Attachment) (interface{}, error) {
	if len(attachments) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(attachments)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
