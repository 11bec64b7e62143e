package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/crm/internal/types"
)

const contactColumns = `id, phone, email, name, tags, fields, created_at, last_updated`

// CreateContact inserts a contact, assigning an id and timestamps when unset
func (s *SQLiteStorage) CreateContact(ctx context.Context, c *types.Contact) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid contact: %w", err)
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.LastUpdated.IsZero() {
		c.LastUpdated = c.CreatedAt
	}

	tags, err := encodeJSON(c.Tags, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	fields, err := encodeJSON(c.Fields, "{}")
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contacts (`+contactColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Phone, c.Email, c.Name, tags, fields, c.CreatedAt.UTC(), c.LastUpdated.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert contact %s: %w", c.ID, err)
	}
	return nil
}

// GetContact retrieves a contact by id
func (s *SQLiteStorage) GetContact(ctx context.Context, id string) (*types.Contact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id)
	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("contact %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact %s: %w", id, err)
	}
	return c, nil
}

// ListContacts returns every contact, most recently created first
func (s *SQLiteStorage) ListContacts(ctx context.Context) ([]*types.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		ORDER BY created_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var contacts []*types.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}
	return contacts, nil
}

// UpdateContact replaces the mergeable fields of a contact with the patch
func (s *SQLiteStorage) UpdateContact(ctx context.Context, id string, patch *types.ContactPatch) error {
	tags, err := encodeJSON(patch.Tags, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	fields, err := encodeJSON(patch.Fields, "{}")
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}
	lastUpdated := patch.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now()
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE contacts
		SET name = ?, email = ?, phone = ?, tags = ?, fields = ?, last_updated = ?
		WHERE id = ?
	`, patch.Name, patch.Email, patch.Phone, tags, fields, lastUpdated.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update contact %s: %w", id, err)
	}
	if err := checkAffected(result, types.ErrNotFound); err != nil {
		return fmt.Errorf("contact %s: %w", id, err)
	}
	return nil
}

// DeleteContact removes a contact. Cards pointing at it are left alone.
func (s *SQLiteStorage) DeleteContact(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete contact %s: %w", id, err)
	}
	if err := checkAffected(result, types.ErrNotFound); err != nil {
		return fmt.Errorf("contact %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*types.Contact, error) {
	var c types.Contact
	var tags, fields string
	if err := row.Scan(&c.ID, &c.Phone, &c.Email, &c.Name, &tags, &fields, &c.CreatedAt, &c.LastUpdated); err != nil {
		return nil, err
	}
	if err := decodeJSON("tags", tags, &c.Tags); err != nil {
		return nil, err
	}
	if err := decodeJSON("fields", fields, &c.Fields); err != nil {
		return nil, err
	}
	if len(c.Tags) == 0 {
		c.Tags = nil
	}
	if len(c.Fields) == 0 {
		c.Fields = nil
	}
	return &c, nil
}
