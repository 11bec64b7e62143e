package merge

import (
	"sort"

	"github.com/steveyegge/crm/internal/identity"
	"github.com/steveyegge/crm/internal/types"
)

// CardMergeResult is the card half of a merge plan.
// An empty result (no matched cards) means the group has no conversation.
type CardMergeResult struct {
	Matched         []*types.ConversationCard `json:"-"`
	SurvivingCardID string                    `json:"surviving_card_id,omitempty"`
	Patch           *types.CardPatch          `json:"patch,omitempty"`
	CardsToDelete   []string                  `json:"cards_to_delete,omitempty"`
}

// Empty reports whether no card belongs to the group
func (r *CardMergeResult) Empty() bool {
	return r == nil || len(r.Matched) == 0
}

// MatchCards returns the cards that belong to a group, in input order.
// A card whose ContactID names a member belongs to the group outright.
// Otherwise its normalized ContactNumber must equal a member's normalized
// phone or that phone's last 10 digits.
func MatchCards(group types.DuplicateGroup, cards []*types.ConversationCard) []*types.ConversationCard {
	ids := make(map[string]bool, group.Len())
	phones := identity.NewPhoneSet()
	for _, c := range group.Contacts {
		ids[c.ID] = true
		phones.Add(c.Phone)
	}

	var matched []*types.ConversationCard
	for _, card := range cards {
		if card == nil {
			continue
		}
		if card.ContactID != "" && ids[card.ContactID] {
			matched = append(matched, card)
			continue
		}
		if phones.Contains(card.ContactNumber) {
			matched = append(matched, card)
		}
	}
	return matched
}

// Reconcile merges the cards belonging to a group into one surviving card.
// survivor is the contact as it will look after the merge; its id, name and
// email are written onto the surviving card.
func Reconcile(group types.DuplicateGroup, survivor *types.Contact, cards []*types.ConversationCard, policy SurvivorPolicy) *CardMergeResult {
	matched := MatchCards(group, cards)
	if len(matched) == 0 {
		return &CardMergeResult{}
	}
	if policy == nil {
		policy = MostMessages{}
	}

	keep := matched[policy.Choose(matched, survivor)]

	patch := &types.CardPatch{
		ContactID:   survivor.ID,
		ContactName: survivor.Name,
		Email:       survivor.Email,
	}
	var msgs [][]types.Message
	var notes, checkIns, payments [][]types.Entry
	for _, c := range matched {
		msgs = append(msgs, c.Messages)
		notes = append(notes, c.Notes)
		checkIns = append(checkIns, c.CheckIns)
		payments = append(payments, c.PaymentMethods)
	}
	patch.Messages = MergeMessages(msgs...)
	patch.Notes = MergeEntries(notes...)
	patch.CheckIns = MergeEntries(checkIns...)
	patch.PaymentMethods = MergeEntries(payments...)

	result := &CardMergeResult{
		Matched:         matched,
		SurvivingCardID: keep.ID,
		Patch:           patch,
	}
	for _, c := range matched {
		if c.ID != keep.ID {
			result.CardsToDelete = append(result.CardsToDelete, c.ID)
		}
	}
	return result
}

// MergeMessages concatenates message lists, drops repeats of the same
// sender, text and timestamp, and sorts ascending by timestamp. The sort is
// stable so messages with equal timestamps keep their input order.
func MergeMessages(lists ...[]types.Message) []types.Message {
	seen := make(map[string]bool)
	out := []types.Message{}
	for _, list := range lists {
		for _, m := range list {
			k := m.DedupKey()
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return types.MillisOf(out[i].Timestamp) < types.MillisOf(out[j].Timestamp)
	})
	return out
}

// MergeEntries deduplicates entries by Entry.Key. On a collision the later
// entry replaces the earlier one in the earlier one's position.
func MergeEntries(lists ...[]types.Entry) []types.Entry {
	pos := make(map[string]int)
	out := []types.Entry{}
	for _, list := range lists {
		for _, e := range list {
			if e == nil {
				continue
			}
			k := e.Key()
			if i, ok := pos[k]; ok {
				out[i] = e
				continue
			}
			pos[k] = len(out)
			out = append(out, e)
		}
	}
	return out
}
