package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ezralim/compere/internal/observability"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("store: not found")

// Session represents a conversation session
type Session struct {
	ID         string    `json:"id"`
	SessionKey string    `json:"session_key"`
	UserID     string    `json:"user_id,omitempty"`
	LastMsgID  string    `json:"last_msg_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Message represents a single persisted conversation message
type Message struct {
	ID             string                 `json:"id"`
	SessionID      string                 `json:"session_id"`
	Role           string                 `json:"role"`
	Content        string                 `json:"content"`
	Name           string                 `json:"name,omitempty"`
	InputTokens    int64                  `json:"input_tokens,omitempty"`
	OutputTokens   int64                  `json:"output_tokens,omitempty"`
	ResponseTime   float64                `json:"response_time,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	IdempotencyKey string                 `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// Persona represents a stored user persona with its profile JSON
type Persona struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Profile   []byte    `json:"profile"`
	Tags      string    `json:"tags,omitempty"` // comma-separated
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists sessions, messages and personas in SQLite
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Config holds store configuration
type Config struct {
	Path          string
	BusyTimeoutMs int
	Logger        zerolog.Logger
}

// New opens the database and initializes the schema
func New(cfg Config) (*Store, error) {
	observability.EnsureRegistered()

	if cfg.Path == "" {
		return nil, errors.New("database path is required")
	}
	if cfg.BusyTimeoutMs <= 0 {
		cfg.BusyTimeoutMs = 5000
	}

	joiner := "?"
	if strings.Contains(cfg.Path, "?") {
		joiner = "&"
	}
	dsn := fmt.Sprintf("%s%s_foreign_keys=on&_busy_timeout=%d", cfg.Path, joiner, cfg.BusyTimeoutMs)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; keep the pool at one
	// so every query sees the same schema.
	if strings.Contains(cfg.Path, ":memory:") {
		db.SetMaxOpenConns(1)
	} else {
		// Enable WAL mode for better concurrency
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	s := &Store{
		db:     db,
		logger: cfg.Logger,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Info().Str("path", cfg.Path).Msg("Store initialized")
	return s, nil
}

// initSchema creates database tables
func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			session_key TEXT NOT NULL UNIQUE,
			user_id TEXT,
			last_msg_id TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			name TEXT,
			input_tokens INTEGER,
			output_tokens INTEGER,
			response_time REAL,
			metadata TEXT,
			idempotency_key TEXT,
			created_at INTEGER NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_messages_session_time ON messages(session_id, created_at);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_idempotency
			ON messages(session_id, idempotency_key)
			WHERE idempotency_key IS NOT NULL;

		CREATE TABLE IF NOT EXISTS personas (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			profile TEXT NOT NULL,
			tags TEXT,
			is_default INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE(user_id, name)
		);
		CREATE INDEX IF NOT EXISTS idx_personas_user_default ON personas(user_id, is_default);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// nullable maps an empty string to NULL
func nullable(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func nullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func nullFloat64(v float64) sql.NullFloat64 {
	if v == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
