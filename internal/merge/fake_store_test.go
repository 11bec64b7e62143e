package merge

import (
	"context"
	"fmt"
	"sync"

	"github.com/steveyegge/crm/internal/events"
	"github.com/steveyegge/crm/internal/types"
)

// fakeStore is an in-memory Store with per-operation failure injection.
type fakeStore struct {
	mu       sync.Mutex
	contacts []*types.Contact
	cards    []*types.ConversationCard
	events   []*events.MergeEvent
	fail     map[string]error // "op:id" -> error
	calls    []string
}

func newFakeStore(contacts []*types.Contact, cards []*types.ConversationCard) *fakeStore {
	return &fakeStore{contacts: contacts, cards: cards, fail: make(map[string]error)}
}

func (s *fakeStore) failOn(op, id string, err error) {
	s.fail[op+":"+id] = err
}

func (s *fakeStore) check(op, id string) error {
	s.calls = append(s.calls, op+":"+id)
	return s.fail[op+":"+id]
}

func (s *fakeStore) ListContacts(ctx context.Context) ([]*types.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list_contacts", ""); err != nil {
		return nil, err
	}
	return append([]*types.Contact(nil), s.contacts...), nil
}

func (s *fakeStore) GetContact(ctx context.Context, id string) (*types.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("get_contact", id); err != nil {
		return nil, err
	}
	for _, c := range s.contacts {
		if c.ID == id {
			return c.Clone(), nil
		}
	}
	return nil, fmt.Errorf("contact %s: %w", id, types.ErrNotFound)
}

func (s *fakeStore) UpdateContact(ctx context.Context, id string, patch *types.ContactPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("update_contact", id); err != nil {
		return err
	}
	for i, c := range s.contacts {
		if c.ID == id {
			s.contacts[i] = patch.Apply(c)
			return nil
		}
	}
	return fmt.Errorf("contact %s: %w", id, types.ErrNotFound)
}

func (s *fakeStore) DeleteContact(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("delete_contact", id); err != nil {
		return err
	}
	for i, c := range s.contacts {
		if c.ID == id {
			s.contacts = append(s.contacts[:i], s.contacts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("contact %s: %w", id, types.ErrNotFound)
}

func (s *fakeStore) ListCardsAcrossThreads(ctx context.Context) ([]*types.ConversationCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list_cards", ""); err != nil {
		return nil, err
	}
	return append([]*types.ConversationCard(nil), s.cards...), nil
}

func (s *fakeStore) UpdateCard(ctx context.Context, id string, patch *types.CardPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("update_card", id); err != nil {
		return err
	}
	for i, c := range s.cards {
		if c.ID == id {
			s.cards[i] = patch.Apply(c)
			return nil
		}
	}
	return fmt.Errorf("card %s: %w", id, types.ErrNotFound)
}

func (s *fakeStore) DeleteCard(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("delete_card", id); err != nil {
		return err
	}
	for i, c := range s.cards {
		if c.ID == id {
			s.cards = append(s.cards[:i], s.cards[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("card %s: %w", id, types.ErrNotFound)
}

func (s *fakeStore) StoreMergeEvent(ctx context.Context, ev *events.MergeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("store_event", string(ev.Type)); err != nil {
		return err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *fakeStore) contact(id string) *types.Contact {
	for _, c := range s.contacts {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *fakeStore) card(id string) *types.ConversationCard {
	for _, c := range s.cards {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *fakeStore) eventTypes() []events.EventType {
	var out []events.EventType
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}
