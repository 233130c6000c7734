// Package store persists conversation history and lead records in SQLite.
// It is the only component that touches the database; everything else goes
// through domain.ConversationStore.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"chatfunnel/internal/domain"

	_ "modernc.org/sqlite"
)

// lastMessagePreviewLen bounds the conversation metadata preview.
const lastMessagePreviewLen = 120

// SQLiteStore implements domain.ConversationStore using SQLite. A single
// connection serializes writes, so concurrent appends to one conversation
// interleave without corrupting the message log.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		key             TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		channel         TEXT NOT NULL,
		username        TEXT,
		last_message    TEXT,
		last_message_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS messages (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_key TEXT NOT NULL,
		text             TEXT NOT NULL,
		is_bot           INTEGER NOT NULL DEFAULT 0,
		channel          TEXT NOT NULL,
		username         TEXT,
		created_at       DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conv ON messages(conversation_key, created_at);

	CREATE TABLE IF NOT EXISTS leads (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		channel     TEXT NOT NULL,
		username    TEXT,
		email       TEXT,
		phone       TEXT,
		captured_at DATETIME NOT NULL,
		lead_source TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'new',
		context     TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_leads_captured ON leads(captured_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// AppendMessage appends one turn. The message log is append-only; nothing
// ever rewrites it.
func (s *SQLiteStore) AppendMessage(ctx context.Context, key string, msg domain.StoredMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_key, text, is_bot, channel, username, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		key, msg.Text, msg.IsBot, string(msg.Channel), msg.Username, msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// RecentMessages returns the last limit turns, oldest first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, key string, limit int) ([]domain.StoredMessage, error) {
	if limit <= 0 {
		limit = 10
	}

	// Last N by insertion order, then reversed to chronological.
	rows, err := s.db.QueryContext(ctx,
		`SELECT text, is_bot, channel, username, created_at
		 FROM messages WHERE conversation_key = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, key, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.StoredMessage
	for rows.Next() {
		var m domain.StoredMessage
		var username sql.NullString
		var channel string
		if err := rows.Scan(&m.Text, &m.IsBot, &channel, &username, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Channel = domain.Channel(channel)
		m.Username = username.String
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// UpsertConversation merges meta into the conversation row: empty usernames
// never overwrite a known one, preview and timestamp always refresh.
func (s *SQLiteStore) UpsertConversation(ctx context.Context, key string, meta domain.ConversationMeta) error {
	if meta.LastMessageAt.IsZero() {
		meta.LastMessageAt = time.Now()
	}
	preview := meta.LastMessage
	if len(preview) > lastMessagePreviewLen {
		preview = preview[:lastMessagePreviewLen]
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (key, user_id, channel, username, last_message, last_message_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			username        = COALESCE(NULLIF(excluded.username, ''), conversations.username),
			last_message    = excluded.last_message,
			last_message_at = excluded.last_message_at`,
		key, meta.UserID, string(meta.Channel), meta.Username, preview, meta.LastMessageAt,
	)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	return nil
}

// SaveLead writes a new lead row. Leads are never updated or deduplicated;
// every qualifying message produces its own record.
func (s *SQLiteStore) SaveLead(ctx context.Context, lead domain.Lead) error {
	if lead.CapturedAt.IsZero() {
		lead.CapturedAt = time.Now()
	}
	if lead.Status == "" {
		lead.Status = domain.LeadStatusNew
	}

	var contextJSON []byte
	if len(lead.Context) > 0 {
		var err error
		contextJSON, err = json.Marshal(lead.Context)
		if err != nil {
			return fmt.Errorf("marshal lead context: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, user_id, channel, username, email, phone, captured_at, lead_source, status, context)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.UserID, string(lead.Channel), lead.Username,
		nullable(lead.Email), nullable(lead.Phone),
		lead.CapturedAt, lead.Source, lead.Status, nullable(string(contextJSON)),
	)
	if err != nil {
		return fmt.Errorf("save lead: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
