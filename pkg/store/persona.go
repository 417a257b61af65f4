package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ezralim/compere/internal/observability"
	"github.com/google/uuid"
)

// PersonaUpdate holds optional persona fields to change; nil leaves a field as is
type PersonaUpdate struct {
	Name      *string
	Tags      *string
	Profile   []byte
	IsDefault *bool
}

// CreatePersona inserts a persona for a user. Names are unique per user.
func (s *Store) CreatePersona(ctx context.Context, p Persona) (*Persona, error) {
	if p.UserID == "" {
		return nil, errors.New("user id is required")
	}
	if p.Name == "" {
		return nil, errors.New("persona name is required")
	}
	if len(p.Profile) == 0 {
		return nil, errors.New("profile is required")
	}

	start := time.Now()
	success := false
	defer func() { observability.RecordStoreOp("persona_create", time.Since(start), success) }()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO personas (id, user_id, name, profile, tags, is_default, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Name, string(p.Profile), nullable(p.Tags), p.IsDefault,
		now.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create persona: %w", err)
	}

	success = true
	return &p, nil
}

// PersonaByID returns the persona with the given ID, or ErrNotFound.
func (s *Store) PersonaByID(ctx context.Context, id string) (*Persona, error) {
	start := time.Now()
	success := false
	defer func() { observability.RecordStoreOp("persona_get", time.Since(start), success) }()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, profile, tags, is_default, created_at, updated_at
		FROM personas WHERE id = ?`, id)

	p, err := scanPersona(row)
	if err != nil {
		return nil, err
	}

	success = true
	return p, nil
}

// PersonasByUser returns all personas belonging to a user.
func (s *Store) PersonasByUser(ctx context.Context, userID string) ([]Persona, error) {
	start := time.Now()
	success := false
	defer func() { observability.RecordStoreOp("persona_list", time.Since(start), success) }()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, profile, tags, is_default, created_at, updated_at
		FROM personas WHERE user_id = ?
		ORDER BY created_at ASC, rowid ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query personas: %w", err)
	}
	defer rows.Close()

	var personas []Persona
	for rows.Next() {
		p, err := scanPersonaRow(rows)
		if err != nil {
			return nil, err
		}
		personas = append(personas, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	success = true
	return personas, nil
}

// DefaultPersona returns the user's default persona, or ErrNotFound.
func (s *Store) DefaultPersona(ctx context.Context, userID string) (*Persona, error) {
	start := time.Now()
	success := false
	defer func() { observability.RecordStoreOp("persona_default", time.Since(start), success) }()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, profile, tags, is_default, created_at, updated_at
		FROM personas WHERE user_id = ? AND is_default = 1
		ORDER BY updated_at DESC LIMIT 1`, userID)

	p, err := scanPersona(row)
	if err != nil {
		return nil, err
	}

	success = true
	return p, nil
}

// UpdatePersona applies the non-nil fields of upd to a persona.
func (s *Store) UpdatePersona(ctx context.Context, id string, upd PersonaUpdate) (*Persona, error) {
	start := time.Now()
	success := false
	defer func() { observability.RecordStoreOp("persona_update", time.Since(start), success) }()

	current, err := s.PersonaByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		current.Name = *upd.Name
	}
	if upd.Tags != nil {
		current.Tags = *upd.Tags
	}
	if upd.Profile != nil {
		current.Profile = upd.Profile
	}
	if upd.IsDefault != nil {
		current.IsDefault = *upd.IsDefault
	}
	current.UpdatedAt = time.Now()

	_, err = s.db.ExecContext(ctx, `
		UPDATE personas SET name = ?, tags = ?, profile = ?, is_default = ?, updated_at = ?
		WHERE id = ?`,
		current.Name, nullable(current.Tags), string(current.Profile), current.IsDefault,
		current.UpdatedAt.UnixNano(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update persona: %w", err)
	}

	success = true
	return current, nil
}

// SetDefaultPersona makes the given persona the user's only default. All other
// personas of the user are cleared first, in one transaction.
func (s *Store) SetDefaultPersona(ctx context.Context, userID, personaID string) error {
	start := time.Now()
	success := false
	defer func() { observability.RecordStoreOp("persona_set_default", time.Since(start), success) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixNano()
	if _, err := tx.ExecContext(ctx, `
		UPDATE personas SET is_default = 0, updated_at = ? WHERE user_id = ? AND is_default = 1`,
		now, userID,
	); err != nil {
		return fmt.Errorf("failed to clear default personas: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE personas SET is_default = 1, updated_at = ? WHERE id = ? AND user_id = ?`,
		now, personaID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to set default persona: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	success = true
	return nil
}

// DeletePersona removes a persona.
func (s *Store) DeletePersona(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM personas WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete persona: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPersona(row *sql.Row) (*Persona, error) {
	p, err := scanPersonaRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan persona: %w", err)
	}
	return p, nil
}

func scanPersonaRow(row rowScanner) (*Persona, error) {
	var (
		p                  Persona
		profile            string
		tags               sql.NullString
		createdAt, updated int64
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &profile, &tags, &p.IsDefault,
		&createdAt, &updated); err != nil {
		return nil, err
	}
	p.Profile = []byte(profile)
	p.Tags = tags.String
	p.CreatedAt = time.Unix(0, createdAt)
	p.UpdatedAt = time.Unix(0, updated)
	return &p, nil
}
