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

const cardColumns = `id, thread_id, contact_id, contact_number, contact_name, email,
	messages, notes, check_ins, payment_methods, created_at, updated_at`

// cardLists holds the JSONB-encoded list columns of a card
type cardLists struct {
	messages, notes, checkIns, paymentMethods []byte
}

func marshalCardLists(messages []types.Message, notes, checkIns, payments []types.Entry) (cardLists, error) {
	var out cardLists
	var err error
	if messages == nil {
		messages = []types.Message{}
	}
	if out.messages, err = json.Marshal(messages); err != nil {
		return out, fmt.Errorf("failed to marshal messages: %w", err)
	}
	if out.notes, err = marshalEntries(notes); err != nil {
		return out, fmt.Errorf("failed to marshal notes: %w", err)
	}
	if out.checkIns, err = marshalEntries(checkIns); err != nil {
		return out, fmt.Errorf("failed to marshal check-ins: %w", err)
	}
	if out.paymentMethods, err = marshalEntries(payments); err != nil {
		return out, fmt.Errorf("failed to marshal payment methods: %w", err)
	}
	return out, nil
}

func marshalEntries(entries []types.Entry) ([]byte, error) {
	if entries == nil {
		entries = []types.Entry{}
	}
	return json.Marshal(entries)
}

// CreateCard inserts a conversation card, assigning an id and timestamps when unset
func (p *PostgresStorage) CreateCard(ctx context.Context, card *types.ConversationCard) error {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	if err := card.Validate(); err != nil {
		return fmt.Errorf("invalid card: %w", err)
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = time.Now().UTC()
	}
	if card.UpdatedAt.IsZero() {
		card.UpdatedAt = card.CreatedAt
	}

	lists, err := marshalCardLists(card.Messages, card.Notes, card.CheckIns, card.PaymentMethods)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO cards (`+cardColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		card.ID, card.ThreadID, card.ContactID, card.ContactNumber, card.ContactName, card.Email,
		lists.messages, lists.notes, lists.checkIns, lists.paymentMethods,
		card.CreatedAt, card.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("card %s already exists", card.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
	}
	return nil
}

// GetCard retrieves a card by id
func (p *PostgresStorage) GetCard(ctx context.Context, id string) (*types.ConversationCard, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = $1`, id)
	card, err := scanCard(row)
	if isNoRows(err) {
		return nil, fmt.Errorf("card %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card %s: %w", id, err)
	}
	return card, nil
}

// ListCardsAcrossThreads returns every card regardless of thread, oldest first
func (p *PostgresStorage) ListCardsAcrossThreads(ctx context.Context) ([]*types.ConversationCard, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+cardColumns+`
		FROM cards
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

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
func (p *PostgresStorage) UpdateCard(ctx context.Context, id string, patch *types.CardPatch) error {
	lists, err := marshalCardLists(patch.Messages, patch.Notes, patch.CheckIns, patch.PaymentMethods)
	if err != nil {
		return err
	}

	tag, err := p.pool.Exec(ctx, `
		UPDATE cards
		SET contact_id = $1, contact_name = $2, email = $3,
		    messages = $4, notes = $5, check_ins = $6, payment_methods = $7,
		    updated_at = NOW()
		WHERE id = $8
	`,
		patch.ContactID, patch.ContactName, patch.Email,
		lists.messages, lists.notes, lists.checkIns, lists.paymentMethods,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update card %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("card %s: %w", id, types.ErrNotFound)
	}
	return nil
}

// DeleteCard removes a card
func (p *PostgresStorage) DeleteCard(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("card %s: %w", id, types.ErrNotFound)
	}
	return nil
}

func scanCard(row pgx.Row) (*types.ConversationCard, error) {
	var card types.ConversationCard
	var lists cardLists
	if err := row.Scan(
		&card.ID, &card.ThreadID, &card.ContactID, &card.ContactNumber, &card.ContactName, &card.Email,
		&lists.messages, &lists.notes, &lists.checkIns, &lists.paymentMethods,
		&card.CreatedAt, &card.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(lists.messages, &card.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	if err := json.Unmarshal(lists.notes, &card.Notes); err != nil {
		return nil, fmt.Errorf("failed to decode notes: %w", err)
	}
	if err := json.Unmarshal(lists.checkIns, &card.CheckIns); err != nil {
		return nil, fmt.Errorf("failed to decode check_ins: %w", err)
	}
	if err := json.Unmarshal(lists.paymentMethods, &card.PaymentMethods); err != nil {
		return nil, fmt.Errorf("failed to decode payment_methods: %w", err)
	}
	return &card, nil
}
