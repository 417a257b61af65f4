package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ezralim/compere/internal/observability"
	"github.com/ezralim/compere/internal/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// GetOrCreateSession finds the session bound to the given key, creating it if
// missing. The user binding is set at creation time and never updated here.
func (s *Store) GetOrCreateSession(ctx context.Context, sessionKey, userID string) (*Session, error) {
	if sessionKey == "" {
		return nil, errors.New("session key is required")
	}

	ctx, span := tracing.StartSpan(
		ctx,
		"compere.store",
		"store.session_get_or_create",
		attribute.String("session_key", sessionKey),
	)
	defer span.End()

	start := time.Now()
	success := false
	defer func() { observability.RecordStoreOp("session_get_or_create", time.Since(start), success) }()

	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO sessions (id, session_key, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), sessionKey, nullable(userID), now.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	sess, err := s.SessionByKey(ctx, sessionKey)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	success = true
	return sess, nil
}

// SessionByKey returns the session bound to the given key, or ErrNotFound.
func (s *Store) SessionByKey(ctx context.Context, sessionKey string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_key, user_id, last_msg_id, created_at, updated_at
		FROM sessions WHERE session_key = ?`, sessionKey)

	return scanSession(row)
}

// SessionByID returns the session with the given primary key, or ErrNotFound.
func (s *Store) SessionByID(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_key, user_id, last_msg_id, created_at, updated_at
		FROM sessions WHERE id = ?`, id)

	return scanSession(row)
}

func scanSession(row *sql.Row) (*Session, error) {
	var (
		sess               Session
		userID, lastMsgID  sql.NullString
		createdAt, updated int64
	)
	err := row.Scan(&sess.ID, &sess.SessionKey, &userID, &lastMsgID, &createdAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	sess.UserID = userID.String
	sess.LastMsgID = lastMsgID.String
	sess.CreatedAt = time.Unix(0, createdAt)
	sess.UpdatedAt = time.Unix(0, updated)
	return &sess, nil
}

// AppendMessage inserts a message and advances the session's last-message
// pointer in one transaction. When the message carries an idempotency key
// that was already written for the session, the existing row is returned
// unchanged instead of a duplicate.
func (s *Store) AppendMessage(ctx context.Context, msg Message) (*Message, error) {
	if msg.SessionID == "" {
		return nil, errors.New("session id is required")
	}
	if msg.Role == "" {
		return nil, errors.New("role is required")
	}

	ctx, span := tracing.StartSpan(
		ctx,
		"compere.store",
		"store.message_append",
		attribute.String("role", msg.Role),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, s.logger)
	start := time.Now()
	success := false
	defer func() { observability.RecordStoreOp("message_append", time.Since(start), success) }()

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	var metadata sql.NullString
	if len(msg.Metadata) > 0 {
		data, err := json.Marshal(msg.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO messages
			(id, session_id, role, content, name, input_tokens, output_tokens,
			 response_time, metadata, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, nullable(msg.Name),
		nullInt64(msg.InputTokens), nullInt64(msg.OutputTokens), nullFloat64(msg.ResponseTime),
		metadata, nullable(msg.IdempotencyKey), msg.CreatedAt.UnixNano(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		if msg.IdempotencyKey == "" {
			return nil, fmt.Errorf("message insert ignored without idempotency key")
		}
		// The idempotency key already has a row for this session; a retried
		// turn must not write twice.
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		existing, err := s.messageByIdempotencyKey(ctx, msg.SessionID, msg.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		logger.Debug().
			Str("idempotency_key", msg.IdempotencyKey).
			Str("message_id", existing.ID).
			Msg("Duplicate message write deduplicated")
		success = true
		return existing, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET last_msg_id = ?, updated_at = ? WHERE id = ?`,
		msg.ID, time.Now().UnixNano(), msg.SessionID,
	); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to update session pointer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	success = true
	return &msg, nil
}

func (s *Store) messageByIdempotencyKey(ctx context.Context, sessionID, key string) (*Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, name, input_tokens, output_tokens,
		       response_time, metadata, idempotency_key, created_at
		FROM messages WHERE session_id = ? AND idempotency_key = ?`, sessionID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query message: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}
	return &msgs[0], nil
}

// LastMessages returns up to limit most recent messages for a session in
// chronological order (oldest first).
func (s *Store) LastMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}

	ctx, span := tracing.StartSpan(
		ctx,
		"compere.store",
		"store.messages_last",
		attribute.Int("limit", limit),
	)
	defer span.End()

	start := time.Now()
	success := false
	defer func() { observability.RecordStoreOp("messages_last", time.Since(start), success) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, name, input_tokens, output_tokens,
		       response_time, metadata, idempotency_key, created_at
		FROM messages WHERE session_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Newest-first from the query; reverse into chronological order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	success = true
	return msgs, nil
}

// MessagesBySession returns every message of a session in chronological order.
func (s *Store) MessagesBySession(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, name, input_tokens, output_tokens,
		       response_time, metadata, idempotency_key, created_at
		FROM messages WHERE session_id = ?
		ORDER BY created_at ASC, rowid ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var msgs []Message
	for rows.Next() {
		var (
			msg                     Message
			name, metadata, idemKey sql.NullString
			inTokens, outTokens     sql.NullInt64
			responseTime            sql.NullFloat64
			createdAt               int64
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &name,
			&inTokens, &outTokens, &responseTime, &metadata, &idemKey, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Name = name.String
		msg.InputTokens = inTokens.Int64
		msg.OutputTokens = outTokens.Int64
		msg.ResponseTime = responseTime.Float64
		msg.IdempotencyKey = idemKey.String
		msg.CreatedAt = time.Unix(0, createdAt)
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &msg.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
