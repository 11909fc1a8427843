package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/andyleap/donna/internal/models"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	chat_id INTEGER PRIMARY KEY,
	username TEXT,
	first_name TEXT,
	last_name TEXT,
	calendar_tokens TEXT,
	calendar_connected INTEGER NOT NULL DEFAULT 0,
	conversation_id TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStorage keeps user records in a single SQLite table.
type SQLiteStorage struct {
	db *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens (and if needed creates) the database at path.
func OpenSQLite(path string) (*SQLiteStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create users table: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStorage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT chat_id, username, first_name, last_name, calendar_tokens, calendar_connected, conversation_id, created_at, updated_at
FROM users
WHERE chat_id = ?
`, userID)

	var (
		user           models.User
		username       sql.NullString
		firstName      sql.NullString
		lastName       sql.NullString
		tokens         sql.NullString
		conversationID sql.NullString
		createdAt      int64
		updatedAt      int64
	)
	err := row.Scan(
		&user.ID,
		&username,
		&firstName,
		&lastName,
		&tokens,
		&user.CalendarConnected,
		&conversationID,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	user.Username = username.String
	user.FirstName = firstName.String
	user.LastName = lastName.String
	user.ConversationID = conversationID.String
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	if tokens.Valid && tokens.String != "" {
		var cred models.Credential
		if err := json.Unmarshal([]byte(tokens.String), &cred); err != nil {
			return nil, fmt.Errorf("unmarshal calendar tokens: %w", err)
		}
		user.Credential = &cred
	}

	return &user, nil
}

func (s *SQLiteStorage) SaveUser(ctx context.Context, user *models.User) error {
	var tokens sql.NullString
	if user.Credential != nil {
		data, err := json.Marshal(user.Credential)
		if err != nil {
			return fmt.Errorf("marshal calendar tokens: %w", err)
		}
		tokens = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (
	chat_id, username, first_name, last_name, calendar_tokens, calendar_connected, conversation_id, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(chat_id) DO UPDATE SET
	username = excluded.username,
	first_name = excluded.first_name,
	last_name = excluded.last_name,
	calendar_tokens = excluded.calendar_tokens,
	calendar_connected = excluded.calendar_connected,
	conversation_id = excluded.conversation_id,
	updated_at = excluded.updated_at
`,
		user.ID,
		nullString(user.Username),
		nullString(user.FirstName),
		nullString(user.LastName),
		tokens,
		user.CalendarConnected,
		nullString(user.ConversationID),
		toMillis(user.CreatedAt),
		toMillis(user.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) UserExists(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE chat_id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return true, nil
}

func (s *SQLiteStorage) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
