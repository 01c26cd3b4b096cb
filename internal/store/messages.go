// ABOUTME: Message relation operations: append, count, and paginated retrieval
// ABOUTME: List queries join a read-time snapshot of each message's author

package store

import (
	"context"
	"database/sql"
)

// AppendMessage inserts a message with a store-assigned timestamp.
// The text must be non-empty; that check belongs to the caller.
func (s *SQLiteStore) AppendMessage(ctx context.Context, userID int64, text string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (user_id, message_text) VALUES (?, ?)
	`, userID, text)
	if err != nil {
		return storageError("inserting message", err)
	}

	s.logger.Debug("message appended", "user_id", userID)
	return nil
}

// CountMessages returns the total message count. Failures surface as a
// storage error, never as a sentinel count.
func (s *SQLiteStore) CountMessages(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count); err != nil {
		return 0, storageError("counting messages", err)
	}
	return count, nil
}

const messageAuthorColumns = `
	m.id, m.user_id, m.message_text, m.timestamp,
	u.login, u.first_name, u.last_name, u.is_online
`

// ListRecentMessages returns at most limit messages: the most recent ones,
// presented in chronological order. Each message carries a snapshot of its
// author's login, name and presence as of read time, not send time.
func (s *SQLiteStore) ListRecentMessages(ctx context.Context, limit int) ([]*MessageWithAuthor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageAuthorColumns+`
		FROM (
			SELECT id, user_id, message_text, timestamp
			FROM messages
			ORDER BY id DESC
			LIMIT ?
		) m
		LEFT JOIN users u ON m.user_id = u.id
		ORDER BY m.id ASC
	`, limit)
	if err != nil {
		return nil, storageError("querying recent messages", err)
	}
	return scanMessagesWithAuthor(rows)
}

// ListMessagesAfter returns all messages with id strictly greater than
// afterID, in chronological order, with read-time author snapshots.
func (s *SQLiteStore) ListMessagesAfter(ctx context.Context, afterID int64) ([]*MessageWithAuthor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageAuthorColumns+`
		FROM messages m
		LEFT JOIN users u ON m.user_id = u.id
		WHERE m.id > ?
		ORDER BY m.id ASC
	`, afterID)
	if err != nil {
		return nil, storageError("querying messages after id", err)
	}
	return scanMessagesWithAuthor(rows)
}

func scanMessagesWithAuthor(rows *sql.Rows) ([]*MessageWithAuthor, error) {
	defer func() { _ = rows.Close() }()

	var messages []*MessageWithAuthor
	for rows.Next() {
		var m MessageWithAuthor
		var login, firstName, lastName sql.NullString
		var isOnline sql.NullBool

		// The driver materializes DATETIME columns as time.Time.
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.Text, &m.Timestamp,
			&login, &firstName, &lastName, &isOnline,
		); err != nil {
			return nil, storageError("scanning message row", err)
		}
		m.Timestamp = m.Timestamp.UTC()

		m.Author = User{
			ID:        m.UserID,
			Login:     login.String,
			FirstName: firstName.String,
			LastName:  lastName.String,
			IsOnline:  isOnline.Bool,
		}

		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("iterating message rows", err)
	}
	return messages, nil
}
