package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/steveyegge/crm/internal/types"
)

const contactColumns = `id, phone, email, name, tags, fields, created_at, last_updated`

// CreateContact inserts a contact, assigning an id and timestamps when unset
func (p *PostgresStorage) CreateContact(ctx context.Context, c *types.Contact) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid contact: %w", err)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.LastUpdated.IsZero() {
		c.LastUpdated = c.CreatedAt
	}

	tags, fields, err := marshalProfile(c.Tags, c.Fields)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO contacts (`+contactColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.Phone, c.Email, c.Name, tags, fields, c.CreatedAt, c.LastUpdated)
	if isUniqueViolation(err) {
		return fmt.Errorf("contact %s already exists", c.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert contact %s: %w", c.ID, err)
	}
	return nil
}

// GetContact retrieves a contact by id
func (p *PostgresStorage) GetContact(ctx context.Context, id string) (*types.Contact, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id)
	c, err := scanContact(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("contact %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact %s: %w", id, err)
	}
	return c, nil
}

// ListContacts returns every contact, most recently created first
func (p *PostgresStorage) ListContacts(ctx context.Context) ([]*types.Contact, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		ORDER BY created_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

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
func (p *PostgresStorage) UpdateContact(ctx context.Context, id string, patch *types.ContactPatch) error {
	tags, fields, err := marshalProfile(patch.Tags, patch.Fields)
	if err != nil {
		return err
	}
	lastUpdated := patch.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now()
	}

	tag, err := p.pool.Exec(ctx, `
		UPDATE contacts
		SET name = $1, email = $2, phone = $3, tags = $4, fields = $5, last_updated = $6
		WHERE id = $7
	`, patch.Name, patch.Email, patch.Phone, tags, fields, lastUpdated, id)
	if err != nil {
		return fmt.Errorf("failed to update contact %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contact %s: %w", id, types.ErrNotFound)
	}
	return nil
}

// DeleteContact removes a contact. Cards pointing at it are left alone.
func (p *PostgresStorage) DeleteContact(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete contact %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contact %s: %w", id, types.ErrNotFound)
	}
	return nil
}

func marshalProfile(tags []string, fields map[string]string) ([]byte, []byte, error) {
	if tags == nil {
		tags = []string{}
	}
	if fields == nil {
		fields = map[string]string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal fields: %w", err)
	}
	return tagsJSON, fieldsJSON, nil
}

func scanContact(row pgx.Row) (*types.Contact, error) {
	var c types.Contact
	var tags, fields []byte
	if err := row.Scan(&c.ID, &c.Phone, &c.Email, &c.Name, &tags, &fields, &c.CreatedAt, &c.LastUpdated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tags, &c.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	if err := json.Unmarshal(fields, &c.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	if len(c.Tags) == 0 {
		c.Tags = nil
	}
	if len(c.Fields) == 0 {
		c.Fields = nil
	}
	return &c, nil
}
