package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ouatt10/Troc-Scolaire-Backend/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	first_name TEXT NOT NULL DEFAULT '',
	last_name  TEXT NOT NULL DEFAULT '',
	avatar     TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_key TEXT NOT NULL,
	sender_id        TEXT NOT NULL,
	recipient_id     TEXT NOT NULL,
	body             TEXT NOT NULL,
	kind             TEXT NOT NULL DEFAULT 'text',
	is_read          BOOLEAN NOT NULL DEFAULT 0,
	sent_at          INTEGER NOT NULL,
	read_at          INTEGER,
	listing_id       TEXT
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_key, sent_at DESC);
CREATE INDEX IF NOT EXISTS idx_messages_participants ON messages(sender_id, recipient_id);
CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(recipient_id, is_read);
`

// SQLiteStore implements store.Store for SQLite.
// Timestamps are stored as UTC unix nanoseconds so ordering is numeric.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// New opens the database at dbPath and applies the schema.
// Use ":memory:" for an ephemeral store.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection; it also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func storageErr(op string, err error) error {
	return &store.StorageError{Op: op, Err: err}
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// ==== UserStore implementation ====

// UpsertUser creates or replaces a user's public attributes.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *store.User) error {
	if user == nil || user.ID == "" {
		return &store.ValidationError{Field: "ID", Reason: "is required"}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}

	query := `
		INSERT INTO users (id, first_name, last_name, avatar, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name  = excluded.last_name,
			avatar     = excluded.avatar
	`
	_, err := s.db.ExecContext(ctx, query, user.ID, user.FirstName, user.LastName, user.Avatar, toNanos(user.CreatedAt))
	if err != nil {
		return storageErr("upsert user", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*store.User, error) {
	query := `
		SELECT id, first_name, last_name, avatar, created_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	var createdAt int64
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Avatar,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
		}
		return nil, storageErr("query user", err)
	}
	user.CreatedAt = fromNanos(createdAt)

	return &user, nil
}

// ==== MessageStore implementation ====

const selectMessage = `
	SELECT m.id, m.conversation_key, m.sender_id, m.recipient_id, m.body, m.kind,
	       m.is_read, m.sent_at, m.read_at, m.listing_id,
	       COALESCE(su.first_name, ''), COALESCE(su.last_name, ''), COALESCE(su.avatar, ''),
	       COALESCE(ru.first_name, ''), COALESCE(ru.last_name, ''), COALESCE(ru.avatar, '')
	FROM messages m
	LEFT JOIN users su ON su.id = m.sender_id
	LEFT JOIN users ru ON ru.id = m.recipient_id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var msg store.Message
	var sentAt int64
	var readAt sql.NullInt64
	var listingID sql.NullString
	err := row.Scan(
		&msg.ID,
		&msg.ConversationKey,
		&msg.SenderID,
		&msg.RecipientID,
		&msg.Body,
		&msg.Kind,
		&msg.Read,
		&sentAt,
		&readAt,
		&listingID,
		&msg.Sender.FirstName,
		&msg.Sender.LastName,
		&msg.Sender.Avatar,
		&msg.Recipient.FirstName,
		&msg.Recipient.LastName,
		&msg.Recipient.Avatar,
	)
	if err != nil {
		return nil, err
	}

	msg.SentAt = fromNanos(sentAt)
	if readAt.Valid {
		t := fromNanos(readAt.Int64)
		msg.ReadAt = &t
	}
	if listingID.Valid {
		msg.ListingID = &listingID.String
	}
	msg.Sender.ID = msg.SenderID
	msg.Recipient.ID = msg.RecipientID

	return &msg, nil
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]*store.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("query messages", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, storageErr("scan message", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate messages", err)
	}

	return messages, nil
}

// CreateMessage validates and persists msg.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *store.Message) error {
	if err := store.PrepareMessage(msg); err != nil {
		return err
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = s.now()
	}
	msg.SentAt = msg.SentAt.UTC()
	msg.Read = false
	msg.ReadAt = nil

	query := `
		INSERT INTO messages (conversation_key, sender_id, recipient_id, body, kind, is_read, sent_at, listing_id)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		msg.ConversationKey,
		msg.SenderID,
		msg.RecipientID,
		msg.Body,
		string(msg.Kind),
		toNanos(msg.SentAt),
		msg.ListingID,
	)
	if err != nil {
		return storageErr("insert message", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return storageErr("get last insert id", err)
	}

	saved, err := s.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	*msg = *saved
	return nil
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*store.Message, error) {
	msg, err := scanMessage(s.db.QueryRowContext(ctx, selectMessage+` WHERE m.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
		}
		return nil, storageErr("query message", err)
	}
	return msg, nil
}

// ListByConversation returns one page of a conversation in chronological order.
func (s *SQLiteStore) ListByConversation(ctx context.Context, conversationKey string, page, pageSize int) ([]*store.Message, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = store.DefaultPageSize
	}
	pageSize = min(pageSize, store.MaxPageSize)

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_key = ?`, conversationKey,
	).Scan(&total)
	if err != nil {
		return nil, 0, storageErr("count messages", err)
	}
	// Pages past the end, including offsets that would overflow, are empty.
	if page-1 > math.MaxInt/pageSize || (page-1)*pageSize >= total {
		return []*store.Message{}, total, nil
	}

	query := selectMessage + `
		WHERE m.conversation_key = ?
		ORDER BY m.sent_at DESC, m.id DESC
		LIMIT ? OFFSET ?
	`
	messages, err := s.queryMessages(ctx, query, conversationKey, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}

	// Reverse to get chronological order
	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, total, nil
}

// ListForUser returns all messages involving userID, newest first.
func (s *SQLiteStore) ListForUser(ctx context.Context, userID string) ([]*store.Message, error) {
	query := selectMessage + `
		WHERE m.sender_id = ? OR m.recipient_id = ?
		ORDER BY m.sent_at DESC, m.id DESC
	`
	return s.queryMessages(ctx, query, userID, userID)
}

// MarkConversationRead flags unread messages addressed to readerID as read.
// The single UPDATE keeps the transition atomic per matching row set.
func (s *SQLiteStore) MarkConversationRead(ctx context.Context, conversationKey, readerID string, at time.Time) (int64, error) {
	if at.IsZero() {
		at = s.now()
	}

	query := `
		UPDATE messages
		SET is_read = 1, read_at = ?
		WHERE conversation_key = ? AND recipient_id = ? AND is_read = 0
	`
	result, err := s.db.ExecContext(ctx, query, toNanos(at), conversationKey, readerID)
	if err != nil {
		return 0, storageErr("mark read", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, storageErr("rows affected", err)
	}
	return n, nil
}

// CountUnread counts unread messages addressed to userID.
func (s *SQLiteStore) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE recipient_id = ? AND is_read = 0`, userID,
	).Scan(&count)
	if err != nil {
		return 0, storageErr("count unread", err)
	}
	return count, nil
}
