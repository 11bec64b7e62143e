package deduplication

import (
	"github.com/steveyegge/crm/internal/identity"
	"github.com/steveyegge/crm/internal/types"
)

// MatchStrategy is one detection pass. Strategies run in order over the same
// working set; contacts claimed by an earlier pass are marked processed and
// skipped by later ones.
type MatchStrategy interface {
	// Name identifies the strategy on emitted groups
	Name() types.MatchStrategy

	// Mergeable is false for passes that find anomalies rather than
	// duplicate people. Their groups are reported but never merged.
	Mergeable() bool

	// Key returns the match key for a contact. "" means the contact cannot
	// match under this strategy.
	Key(c *types.Contact) string

	// Find returns groups of indices into contacts. Each group has at least
	// two members, members are in scan order, and no processed index is
	// returned.
	Find(contacts []*types.Contact, processed []bool) [][]int
}

// bucketFind groups unprocessed contacts by key. Groups are ordered by the
// scan position of their first member.
func bucketFind(contacts []*types.Contact, processed []bool, key func(*types.Contact) string) [][]int {
	buckets := make(map[string][]int)
	var order []string
	for i, c := range contacts {
		if processed[i] || c == nil {
			continue
		}
		k := key(c)
		if k == "" {
			continue
		}
		if _, ok := buckets[k]; !ok {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], i)
	}

	var groups [][]int
	for _, k := range order {
		if members := buckets[k]; len(members) > 1 {
			groups = append(groups, members)
		}
	}
	return groups
}

// IDCollisionStrategy finds the same storage id fetched more than once.
// That is a listing artifact, not two people, so its groups are not mergeable.
type IDCollisionStrategy struct{}

func (IDCollisionStrategy) Name() types.MatchStrategy { return types.MatchIDCollision }
func (IDCollisionStrategy) Mergeable() bool           { return false }
func (IDCollisionStrategy) Key(c *types.Contact) string {
	return c.ID
}

func (s IDCollisionStrategy) Find(contacts []*types.Contact, processed []bool) [][]int {
	return bucketFind(contacts, processed, s.Key)
}

// PhoneStrategy groups contacts whose normalized phones are equivalent:
// identical, or identical in their last 10 digits.
type PhoneStrategy struct{}

func (PhoneStrategy) Name() types.MatchStrategy { return types.MatchPhone }
func (PhoneStrategy) Mergeable() bool           { return true }
func (PhoneStrategy) Key(c *types.Contact) string {
	return identity.PhoneKeyOf(c.Phone)
}

func (s PhoneStrategy) Find(contacts []*types.Contact, processed []bool) [][]int {
	return bucketFind(contacts, processed, s.Key)
}

// EmailStrategy groups contacts with the same normalized email address.
type EmailStrategy struct{}

func (EmailStrategy) Name() types.MatchStrategy { return types.MatchEmail }
func (EmailStrategy) Mergeable() bool           { return true }
func (EmailStrategy) Key(c *types.Contact) string {
	return identity.NormalizeEmail(c.Email)
}

func (s EmailStrategy) Find(contacts []*types.Contact, processed []bool) [][]int {
	return bucketFind(contacts, processed, s.Key)
}

// StrategyFor returns the implementation for a strategy name
func StrategyFor(name types.MatchStrategy) (MatchStrategy, bool) {
	switch name {
	case types.MatchIDCollision:
		return IDCollisionStrategy{}, true
	case types.MatchPhone:
		return PhoneStrategy{}, true
	case types.MatchEmail:
		return EmailStrategy{}, true
	}
	return nil, false
}
