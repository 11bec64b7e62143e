package merge

import (
	"fmt"

	"github.com/steveyegge/crm/internal/deduplication"
	"github.com/steveyegge/crm/internal/types"
)

// SurvivorPolicy picks the conversation card that keeps the merged history.
// Choose returns an index into cards, which is never empty.
type SurvivorPolicy interface {
	Name() string
	Choose(cards []*types.ConversationCard, survivor *types.Contact) int
}

// MostMessages keeps the card with the longest message history.
// Ties go to the earliest card in input order.
type MostMessages struct{}

func (MostMessages) Name() string { return deduplication.SurvivorMostMessages }

func (MostMessages) Choose(cards []*types.ConversationCard, _ *types.Contact) int {
	best := 0
	for i, c := range cards {
		if len(c.Messages) > len(cards[best].Messages) {
			best = i
		}
	}
	return best
}

// LinkedToPrimary keeps the card already linked to the surviving contact,
// falling back to MostMessages when none is (or when several are, among those).
type LinkedToPrimary struct{}

func (LinkedToPrimary) Name() string { return deduplication.SurvivorLinkedToPrimary }

func (LinkedToPrimary) Choose(cards []*types.ConversationCard, survivor *types.Contact) int {
	best := -1
	for i, c := range cards {
		if survivor == nil || c.ContactID != survivor.ID {
			continue
		}
		if best < 0 || len(c.Messages) > len(cards[best].Messages) {
			best = i
		}
	}
	if best < 0 {
		return MostMessages{}.Choose(cards, survivor)
	}
	return best
}

// MostRecent keeps the most recently updated card. Ties go to input order.
type MostRecent struct{}

func (MostRecent) Name() string { return deduplication.SurvivorMostRecent }

func (MostRecent) Choose(cards []*types.ConversationCard, _ *types.Contact) int {
	best := 0
	for i, c := range cards {
		if c.UpdatedAt.After(cards[best].UpdatedAt) {
			best = i
		}
	}
	return best
}

// SurvivorPolicyByName returns the policy for a config name
func SurvivorPolicyByName(name string) (SurvivorPolicy, error) {
	switch name {
	case "", deduplication.SurvivorMostMessages:
		return MostMessages{}, nil
	case deduplication.SurvivorLinkedToPrimary:
		return LinkedToPrimary{}, nil
	case deduplication.SurvivorMostRecent:
		return MostRecent{}, nil
	}
	return nil, fmt.Errorf("unknown card survivor policy %q", name)
}
