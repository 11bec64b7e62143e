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

const cardColumns = `id, thread_id, contact_id, contact_number, contact_name, email,
	messages, notes, check_ins, payment_methods, created_at, updated_at`

type cardJSON struct {
	messages, notes, checkIns, paymentMethods string
}

func encodeCardLists(messages []types.Message, notes, checkIns, payments []types.Entry) (cardJSON, error) {
	var out cardJSON
	var err error
	if out.messages, err = encodeJSON(messages, "[]"); err != nil {
		return out, fmt.Errorf("failed to marshal messages: %w", err)
	}
	if out.notes, err = encodeJSON(notes, "[]"); err != nil {
		return out, fmt.Errorf("failed to marshal notes: %w", err)
	}
	if out.checkIns, err = encodeJSON(checkIns, "[]"); err != nil {
		return out, fmt.Errorf("failed to marshal check-ins: %w", err)
	}
	if out.paymentMethods, err = encodeJSON(payments, "[]"); err != nil {
		return out, fmt.Errorf("failed to marshal payment methods: %w", err)
	}
	return out, nil
}

// CreateCard inserts a conversation card, assigning an id and timestamps when unset
func (s *SQLiteStorage) CreateCard(ctx context.Context, card *types.ConversationCard) error {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	if err := card.Validate(); err != nil {
		return fmt.Errorf("invalid card: %w", err)
	}
	now := time.Now().UTC()
	if card.CreatedAt.IsZero() {
		card.CreatedAt = now
	}
	if card.UpdatedAt.IsZero() {
		card.UpdatedAt = card.CreatedAt
	}

	lists, err := encodeCardLists(card.Messages, card.Notes, card.CheckIns, card.PaymentMethods)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		card.ID, card.ThreadID, card.ContactID, card.ContactNumber, card.ContactName, card.Email,
		lists.messages, lists.notes, lists.checkIns, lists.paymentMethods,
		card.CreatedAt.UTC(), card.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
	}
	return nil
}

// GetCard retrieves a card by id
func (s *SQLiteStorage) GetCard(ctx context.Context, id string) (*types.ConversationCard, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("card %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card %s: %w", id, err)
	}
	return card, nil
}

// ListCardsAcrossThreads returns every card regardless of thread, oldest first
func (s *SQLiteStorage) ListCardsAcrossThreads(ctx context.Context) ([]*types.ConversationCard, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cards []*types.ConversationCard
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cards: %w", err)
	}
	return cards, nil
}

// UpdateCard writes a merge result onto a card
func (s *SQLiteStorage) UpdateCard(ctx context.Context, id string, patch *types.CardPatch) error {
	lists, err := encodeCardLists(patch.Messages, patch.Notes, patch.CheckIns, patch.PaymentMethods)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE cards
		SET contact_id = ?, contact_name = ?, email = ?,
		    messages = ?, notes = ?, check_ins = ?, payment_methods = ?,
		    updated_at = ?
		WHERE id = ?
	`,
		patch.ContactID, patch.ContactName, patch.Email,
		lists.messages, lists.notes, lists.checkIns, lists.paymentMethods,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update card %s: %w", id, err)
	}
	if err := checkAffected(result, types.ErrNotFound); err != nil {
		return fmt.Errorf("card %s: %w", id, err)
	}
	return nil
}

// DeleteCard removes a card
func (s *SQLiteStorage) DeleteCard(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	if err := checkAffected(result, types.ErrNotFound); err != nil {
		return fmt.Errorf("card %s: %w", id, err)
	}
	return nil
}

func scanCard(row rowScanner) (*types.ConversationCard, error) {
	var card types.ConversationCard
	var lists cardJSON
	if err := row.Scan(
		&card.ID, &card.ThreadID, &card.ContactID, &card.ContactNumber, &card.ContactName, &card.Email,
		&lists.messages, &lists.notes, &lists.checkIns, &lists.paymentMethods,
		&card.CreatedAt, &card.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := decodeJSON("messages", lists.messages, &card.Messages); err != nil {
		return nil, err
	}
	if err := decodeJSON("notes", lists.notes, &card.Notes); err != nil {
		return nil, err
	}
	if err := decodeJSON("check_ins", lists.checkIns, &card.CheckIns); err != nil {
		return nil, err
	}
	if err := decodeJSON("payment_methods", lists.paymentMethods, &card.PaymentMethods); err != nil {
		return nil, err
	}
	return &card, nil
}
