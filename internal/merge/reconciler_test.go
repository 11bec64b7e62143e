package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/crm/internal/types"
)

func msg(sender, text string, millis int64) types.Message {
	return types.Message{Sender: sender, Text: text, Timestamp: types.Timestamp{Millis: millis}}
}

func TestMatchCards(t *testing.T) {
	g := group(
		&types.Contact{ID: "a", Phone: "+1 212 555 0100"},
		&types.Contact{ID: "b", Phone: ""},
	)
	cards := []*types.ConversationCard{
		{ID: "by-id", ContactID: "b", ContactNumber: "999"},
		{ID: "by-full-phone", ContactNumber: "12125550100"},
		{ID: "by-last10", ContactNumber: "(212) 555-0100"},
		{ID: "other-contact", ContactID: "z", ContactNumber: "2125550100"},
		{ID: "no-phone", ContactNumber: ""},
		{ID: "unrelated", ContactNumber: "3105550100"},
	}

	matched := MatchCards(g, cards)

	var ids []string
	for _, c := range matched {
		ids = append(ids, c.ID)
	}
	// other-contact falls through to the phone check
	assert.Equal(t, []string{"by-id", "by-full-phone", "by-last10", "other-contact"}, ids)
}

func TestMatchCardsCountryCodeNumber(t *testing.T) {
	g := group(
		&types.Contact{ID: "c1", Phone: "2125550100"},
		&types.Contact{ID: "c2", Phone: "(212) 555-0100"},
	)
	cards := []*types.ConversationCard{
		{ID: "k1", ContactID: "c1", Messages: []types.Message{msg("them", "hi", 100)}},
		{ID: "k2", ContactNumber: "+1 212 555 0100", Messages: []types.Message{msg("me", "hello", 200)}},
	}

	matched := MatchCards(g, cards)
	require.Len(t, matched, 2)

	result := Reconcile(g, &types.Contact{ID: "c1"}, cards, MostMessages{})
	assert.Equal(t, "k1", result.SurvivingCardID)
	assert.Equal(t, []string{"k2"}, result.CardsToDelete)
	assert.Len(t, result.Patch.Messages, 2)
}

func TestReconcileDedupsAndSortsMessages(t *testing.T) {
	g := group(&types.Contact{ID: "a"}, &types.Contact{ID: "b"})
	survivor := &types.Contact{ID: "a", Name: "Ann", Email: "ann@example.com"}
	cards := []*types.ConversationCard{
		{ID: "card-b", ContactID: "b", Messages: []types.Message{msg("me", "hello", 3000), msg("them", "hi", 1000)}},
		{ID: "card-a", ContactID: "a", Messages: []types.Message{msg("them", "hi", 1000), msg("me", "bye", 2000), msg("me", "later", 500)}},
	}

	result := Reconcile(g, survivor, cards, MostMessages{})

	require.False(t, result.Empty())
	assert.Equal(t, "card-a", result.SurvivingCardID)
	assert.Equal(t, []string{"card-b"}, result.CardsToDelete)
	require.Len(t, result.Patch.Messages, 4)
	for i := 1; i < len(result.Patch.Messages); i++ {
		assert.LessOrEqual(t,
			result.Patch.Messages[i-1].Timestamp.ToMillis(),
			result.Patch.Messages[i].Timestamp.ToMillis())
	}
	assert.Equal(t, "a", result.Patch.ContactID)
	assert.Equal(t, "Ann", result.Patch.ContactName)
	assert.Equal(t, "ann@example.com", result.Patch.Email)
}

func TestReconcileOrderIndependentOfCardOrder(t *testing.T) {
	g := group(&types.Contact{ID: "a"}, &types.Contact{ID: "b"})
	c1 := &types.ConversationCard{ID: "1", ContactID: "a", Messages: []types.Message{msg("x", "3", 30), msg("x", "1", 10)}}
	c2 := &types.ConversationCard{ID: "2", ContactID: "b", Messages: []types.Message{msg("x", "2", 20)}}

	forward := Reconcile(g, g.Contacts[0], []*types.ConversationCard{c1, c2}, nil)
	backward := Reconcile(g, g.Contacts[0], []*types.ConversationCard{c2, c1}, nil)

	assert.Equal(t, forward.Patch.Messages, backward.Patch.Messages)
}

func TestReconcileNoCards(t *testing.T) {
	g := group(&types.Contact{ID: "a", Phone: "2125550100"}, &types.Contact{ID: "b"})
	result := Reconcile(g, g.Contacts[0], []*types.ConversationCard{{ID: "x", ContactID: "z"}}, MostMessages{})

	assert.True(t, result.Empty())
	assert.Empty(t, result.SurvivingCardID)
	assert.Nil(t, result.Patch)
}

func TestReconcileIsIdempotent(t *testing.T) {
	g := group(&types.Contact{ID: "a"}, &types.Contact{ID: "b"})
	cards := []*types.ConversationCard{
		{ID: "1", ContactID: "a", Messages: []types.Message{msg("x", "hi", 1)}, Notes: []types.Entry{{"id": "n1", "text": "a"}}},
		{ID: "2", ContactID: "b", Messages: []types.Message{msg("x", "yo", 2)}, Notes: []types.Entry{{"text": "plain"}}},
	}
	first := Reconcile(g, g.Contacts[0], cards, nil)

	merged := first.Patch.Apply(cards[0])
	second := Reconcile(g, g.Contacts[0], []*types.ConversationCard{merged}, nil)

	assert.Equal(t, first.Patch.Messages, second.Patch.Messages)
	assert.Equal(t, first.Patch.Notes, second.Patch.Notes)
	assert.Empty(t, second.CardsToDelete)
}

func TestMergeEntriesLastWriteWinsInFirstPosition(t *testing.T) {
	a := []types.Entry{{"id": "n1", "text": "old"}, {"text": "no id"}}
	b := []types.Entry{{"id": "n2", "text": "other"}, {"id": "n1", "text": "new"}, {"text": "no id"}}

	got := MergeEntries(a, b)

	require.Len(t, got, 3)
	assert.Equal(t, "new", got[0]["text"])
	assert.Equal(t, "no id", got[1]["text"])
	assert.Equal(t, "n2", got[2]["id"])
}

func TestMergeMessagesKeepsDistinctTimestamps(t *testing.T) {
	got := MergeMessages(
		[]types.Message{msg("me", "ok", 1000)},
		[]types.Message{msg("me", "ok", 1000), msg("me", "ok", 2000)},
	)
	assert.Len(t, got, 2)
}

func TestSurvivorPolicies(t *testing.T) {
	now := time.Now()
	survivor := &types.Contact{ID: "a"}
	cards := []*types.ConversationCard{
		{ID: "0", ContactID: "b", Messages: make([]types.Message, 2), UpdatedAt: now.Add(-time.Hour)},
		{ID: "1", ContactID: "a", Messages: make([]types.Message, 1), UpdatedAt: now},
		{ID: "2", ContactID: "b", Messages: make([]types.Message, 2), UpdatedAt: now.Add(-2 * time.Hour)},
	}

	assert.Equal(t, 0, MostMessages{}.Choose(cards, survivor), "ties go to input order")
	assert.Equal(t, 1, LinkedToPrimary{}.Choose(cards, survivor))
	assert.Equal(t, 0, LinkedToPrimary{}.Choose(cards, &types.Contact{ID: "nobody"}))
	assert.Equal(t, 1, MostRecent{}.Choose(cards, survivor))
}

func TestSurvivorPolicyByName(t *testing.T) {
	for _, name := range []string{"", "most-messages", "linked-to-primary", "most-recent"} {
		p, err := SurvivorPolicyByName(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, p.Name())
	}
	_, err := SurvivorPolicyByName("oldest")
	assert.Error(t, err)
}
