package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/steveyegge/crm/internal/types"
)

// CreateContact inserts a contact, assigning an id and timestamps when unset
func (s *MongoStorage) CreateContact(ctx context.Context, c *types.Contact) error {
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
	if _, err := s.contacts.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("contact %s already exists", c.ID)
		}
		return fmt.Errorf("failed to insert contact %s: %w", c.ID, err)
	}
	return nil
}

// GetContact retrieves a contact by id
func (s *MongoStorage) GetContact(ctx context.Context, id string) (*types.Contact, error) {
	var c types.Contact
	err := s.contacts.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&c)
	if isNoDocuments(err) {
		return nil, fmt.Errorf("contact %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact %s: %w", id, err)
	}
	return &c, nil
}

// ListContacts returns every contact, most recently created first
func (s *MongoStorage) ListContacts(ctx context.Context) ([]*types.Contact, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := s.contacts.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	var contacts []*types.Contact
	if err := cursor.All(ctx, &contacts); err != nil {
		return nil, fmt.Errorf("failed to decode contacts: %w", err)
	}
	return contacts, nil
}

// UpdateContact replaces the mergeable fields of a contact with the patch
func (s *MongoStorage) UpdateContact(ctx context.Context, id string, patch *types.ContactPatch) error {
	lastUpdated := patch.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now()
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "name", Value: patch.Name},
		{Key: "email", Value: patch.Email},
		{Key: "phone", Value: patch.Phone},
		{Key: "tags", Value: patch.Tags},
		{Key: "fields", Value: patch.Fields},
		{Key: "last_updated", Value: lastUpdated},
	}}}

	result, err := s.contacts.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update)
	if err != nil {
		return fmt.Errorf("failed to update contact %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("contact %s: %w", id, types.ErrNotFound)
	}
	return nil
}

// DeleteContact removes a contact. Cards pointing at it are left alone.
func (s *MongoStorage) DeleteContact(ctx context.Context, id string) error {
	result, err := s.contacts.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("failed to delete contact %s: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("contact %s: %w", id, types.ErrNotFound)
	}
	return nil
}

// CreateCard inserts a conversation card, assigning an id and timestamps when unset
func (s *MongoStorage) CreateCard(ctx context.Context, card *types.ConversationCard) error {
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
	if _, err := s.cards.InsertOne(ctx, card); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("card %s already exists", card.ID)
		}
		return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
	}
	return nil
}

// GetCard retrieves a card by id
func (s *MongoStorage) GetCard(ctx context.Context, id string) (*types.ConversationCard, error) {
	var card types.ConversationCard
	err := s.cards.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&card)
	if isNoDocuments(err) {
		return nil, fmt.Errorf("card %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card %s: %w", id, err)
	}
	return &card, nil
}

// ListCardsAcrossThreads returns every card regardless of thread, oldest first
func (s *MongoStorage) ListCardsAcrossThreads(ctx context.Context) ([]*types.ConversationCard, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.cards.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	var cards []*types.ConversationCard
	if err := cursor.All(ctx, &cards); err != nil {
		return nil, fmt.Errorf("failed to decode cards: %w", err)
	}
	return cards, nil
}

// UpdateCard writes a merge result onto a card
func (s *MongoStorage) UpdateCard(ctx context.Context, id string, patch *types.CardPatch) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "contact_id", Value: patch.ContactID},
		{Key: "contact_name", Value: patch.ContactName},
		{Key: "email", Value: patch.Email},
		{Key: "messages", Value: patch.Messages},
		{Key: "notes", Value: patch.Notes},
		{Key: "check_ins", Value: patch.CheckIns},
		{Key: "payment_methods", Value: patch.PaymentMethods},
		{Key: "updated_at", Value: time.Now().UTC()},
	}}}

	result, err := s.cards.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update)
	if err != nil {
		return fmt.Errorf("failed to update card %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("card %s: %w", id, types.ErrNotFound)
	}
	return nil
}

// DeleteCard removes a card
func (s *MongoStorage) DeleteCard(ctx context.Context, id string) error {
	result, err := s.cards.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("card %s: %w", id, types.ErrNotFound)
	}
	return nil
}
