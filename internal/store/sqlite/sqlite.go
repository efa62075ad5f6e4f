package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// Schema creates the messages table. seq keeps insertion order independent
// of timestamps.
const Schema = `
CREATE TABLE IF NOT EXISTS messages (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT    NOT NULL,
	text       TEXT    NOT NULL,
	sender     TEXT    NOT NULL,
	ts         INTEGER NOT NULL,
	color      TEXT    NOT NULL DEFAULT '',
	likes      INTEGER NOT NULL DEFAULT 0,
	dislikes   INTEGER NOT NULL DEFAULT 0,
	owner      TEXT    NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(ts);
`

// SQLiteStore implements store.MessageLog on SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dsn and applies the schema.
// ":memory:" keeps everything in process memory.
func New(dsn string) (*SQLiteStore, error) {
	return NewWithSetup(dsn, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup opens the database and runs setup instead of the default schema.
// Useful for tests that need a hand-crafted table.
func NewWithSetup(dsn string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", withParams(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func withParams(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_journal_mode=WAL&_busy_timeout=5000"
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append inserts msg after every existing row.
func (s *SQLiteStore) Append(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (id, text, sender, ts, color, likes, dislikes, owner)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.Text, msg.Sender, msg.Timestamp, msg.Color, msg.Likes, msg.Dislikes, msg.Owner,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// Since returns messages with ts greater than the given value, oldest first.
func (s *SQLiteStore) Since(ctx context.Context, ts int64) ([]store.Message, error) {
	query := `
		SELECT id, text, sender, ts, color, likes, dislikes, owner
		FROM messages
		WHERE ts > ?
		ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, ts)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]store.Message, 0)
	for rows.Next() {
		var m store.Message
		if err := rows.Scan(&m.ID, &m.Text, &m.Sender, &m.Timestamp, &m.Color, &m.Likes, &m.Dislikes, &m.Owner); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// ValidateAll reports whether no stored row violates the message shape.
func (s *SQLiteStore) ValidateAll(ctx context.Context) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE id = '' OR text = '' OR ts <= 0 OR likes < 0 OR dislikes < 0
	`
	var bad int
	if err := s.db.QueryRowContext(ctx, query).Scan(&bad); err != nil {
		return false, fmt.Errorf("validate messages: %w", err)
	}
	return bad == 0, nil
}

// Len returns the number of stored messages.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}
