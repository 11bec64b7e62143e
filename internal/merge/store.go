package merge

import (
	"context"

	"github.com/steveyegge/crm/internal/events"
	"github.com/steveyegge/crm/internal/types"
)

// Store is the document store the engine reads and writes. Contacts and
// cards live in separate collections with no transaction spanning both.
// GetContact returns types.ErrNotFound for a missing contact.
type Store interface {
	ListContacts(ctx context.Context) ([]*types.Contact, error)
	GetContact(ctx context.Context, id string) (*types.Contact, error)
	UpdateContact(ctx context.Context, id string, patch *types.ContactPatch) error
	DeleteContact(ctx context.Context, id string) error
	ListCardsAcrossThreads(ctx context.Context) ([]*types.ConversationCard, error)
	UpdateCard(ctx context.Context, id string, patch *types.CardPatch) error
	DeleteCard(ctx context.Context, id string) error
}

// EventRecorder persists merge history
type EventRecorder interface {
	StoreMergeEvent(ctx context.Context, event *events.MergeEvent) error
}
