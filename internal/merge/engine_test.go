package merge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/crm/internal/deduplication"
	"github.com/steveyegge/crm/internal/events"
	"github.com/steveyegge/crm/internal/types"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, store *fakeStore) *Engine {
	t.Helper()
	e, err := NewEngine(store, deduplication.DefaultConfig(),
		WithEventRecorder(store),
		WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return e
}

func scenarioStore() *fakeStore {
	return newFakeStore(
		[]*types.Contact{
			{ID: "c1", Phone: "+12125550100", Email: ""},
			{ID: "c2", Phone: "2125550100", Email: "b@y.com", Tags: []string{"lead"}},
		},
		[]*types.ConversationCard{
			{ID: "card1", ContactID: "c1", Messages: []types.Message{msg("them", "m1", 100), msg("me", "m3", 300), msg("them", "m5", 500)}},
			{ID: "card2", ContactID: "c2", Messages: []types.Message{msg("me", "m4", 400), msg("them", "m2", 200)}},
		},
	)
}

func TestEndToEndMerge(t *testing.T) {
	store := scenarioStore()
	engine := newTestEngine(t, store)

	contacts, err := store.ListContacts(context.Background())
	require.NoError(t, err)
	groups := engine.Detect(contacts)
	require.Len(t, groups, 1)
	require.Equal(t, 2, groups[0].Len())

	outcome, err := engine.Merge(context.Background(), groups[0], "c1")
	require.NoError(t, err)
	assert.Equal(t, StatusMerged, outcome.Status)
	assert.Equal(t, "card1", outcome.SurvivingCardID)

	c1 := store.contact("c1")
	require.NotNil(t, c1)
	assert.Equal(t, "b@y.com", c1.Email)
	assert.Equal(t, []string{"lead"}, c1.Tags)
	assert.Equal(t, fixedNow, c1.LastUpdated)
	assert.Nil(t, store.contact("c2"))

	card := store.card("card1")
	require.NotNil(t, card)
	require.Len(t, card.Messages, 5)
	for i, want := range []string{"m1", "m2", "m3", "m4", "m5"} {
		assert.Equal(t, want, card.Messages[i].Text)
	}
	assert.Equal(t, "c1", card.ContactID)
	assert.Equal(t, "b@y.com", card.Email)
	assert.Nil(t, store.card("card2"))

	assert.Equal(t, []events.EventType{events.EventTypeMergeStarted, events.EventTypeMergeCompleted}, store.eventTypes())

	// detection after the merge finds nothing left
	contacts, err = store.ListContacts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, engine.Detect(contacts))
}

func TestPrepareDoesNotWrite(t *testing.T) {
	store := scenarioStore()
	engine := newTestEngine(t, store)
	groups := engine.Detect(store.contacts)
	require.Len(t, groups, 1)

	plan, err := engine.Prepare(context.Background(), groups[0], "c2")
	require.NoError(t, err)

	assert.Equal(t, "c2", plan.SurvivingContactID)
	assert.Equal(t, []string{"c1"}, plan.ContactsToDelete)
	assert.Equal(t, "card1", plan.SurvivingCardID)
	assert.Equal(t, "b@y.com", plan.Result.Email)
	assert.NoError(t, plan.Validate())
	assert.Equal(t, []string{"list_cards:"}, store.calls)
}

func TestPreparedPlanGoesStale(t *testing.T) {
	ctx := context.Background()
	store := scenarioStore()
	engine := newTestEngine(t, store)
	groups := engine.Detect(store.contacts)
	require.Len(t, groups, 1)

	plan, err := engine.Prepare(ctx, groups[0], "c1")
	require.NoError(t, err)
	again, err := engine.Prepare(ctx, groups[0], "c1")
	require.NoError(t, err)
	assert.True(t, plan.Equivalent(again), "nothing changed")

	// a message lands on the losing card after planning
	card2 := store.card("card2")
	card2.Messages = append(card2.Messages, msg("them", "m6", 600))

	fresh, err := engine.Prepare(ctx, groups[0], "c1")
	require.NoError(t, err)
	assert.False(t, plan.Equivalent(fresh))
	assert.Len(t, plan.CardPatch.Messages, 5)
	require.Len(t, fresh.CardPatch.Messages, 6)

	_, err = engine.Execute(ctx, fresh)
	require.NoError(t, err)
	survivor := store.card("card1")
	require.NotNil(t, survivor)
	assert.Len(t, survivor.Messages, 6)
	assert.Equal(t, "m6", survivor.Messages[5].Text)
	assert.Nil(t, store.card("card2"))
}

func TestMergePlanEquivalent(t *testing.T) {
	base := func() *MergePlan {
		return &MergePlan{
			MemberIDs:          []string{"c1", "c2"},
			SurvivingContactID: "c1",
			ContactPatch:       &types.ContactPatch{Name: "Ann", LastUpdated: fixedNow},
			ContactsToDelete:   []string{"c2"},
		}
	}

	later := base()
	later.ContactPatch.LastUpdated = fixedNow.Add(time.Minute)
	assert.True(t, base().Equivalent(later))

	grown := base()
	grown.MemberIDs = append(grown.MemberIDs, "c3")
	assert.False(t, base().Equivalent(grown))

	renamed := base()
	renamed.ContactPatch.Name = "Ann Lee"
	assert.False(t, base().Equivalent(renamed))

	assert.False(t, base().Equivalent(nil))
}

func TestMergePlanningErrorHasNoSideEffects(t *testing.T) {
	store := scenarioStore()
	engine := newTestEngine(t, store)
	groups := engine.Detect(store.contacts)

	_, err := engine.Merge(context.Background(), groups[0], "nobody")

	var pe *PlanningError
	require.True(t, errors.As(err, &pe))
	assert.True(t, errors.Is(err, ErrPrimaryNotFound))
	assert.Empty(t, store.calls)
	assert.Empty(t, store.events)
}

func TestMergeRecordsCleanupWarnings(t *testing.T) {
	store := scenarioStore()
	store.failOn("delete_contact", "c2", errors.New("locked"))
	engine := newTestEngine(t, store)
	groups := engine.Detect(store.contacts)

	outcome, err := engine.Merge(context.Background(), groups[0], "c1")

	require.NoError(t, err)
	assert.Equal(t, StatusMergedWithWarnings, outcome.Status)
	assert.Error(t, outcome.Err())
	assert.Equal(t, []events.EventType{
		events.EventTypeMergeStarted,
		events.EventTypeMergeCleanupWarning,
		events.EventTypeMergeCompleted,
	}, store.eventTypes())
	assert.Equal(t, events.SeverityWarning, store.events[2].Severity)
}

func TestMergeEventFailureDoesNotFailMerge(t *testing.T) {
	store := scenarioStore()
	store.failOn("store_event", string(events.EventTypeMergeStarted), errors.New("disk full"))
	engine := newTestEngine(t, store)
	groups := engine.Detect(store.contacts)

	outcome, err := engine.Merge(context.Background(), groups[0], "c1")

	require.NoError(t, err)
	assert.Equal(t, StatusMerged, outcome.Status)
}

func TestReconcileCardsRetryAfterCardFailure(t *testing.T) {
	store := scenarioStore()
	store.failOn("update_card", "card1", errors.New("conflict"))
	engine := newTestEngine(t, store)
	groups := engine.Detect(store.contacts)

	_, err := engine.Merge(context.Background(), groups[0], "c1")
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	require.True(t, stepErr.Retryable())
	assert.Contains(t, store.eventTypes(), events.EventTypeMergeFailed)
	assert.Nil(t, store.contact("c2"))
	require.Len(t, store.cards, 2)

	delete(store.fail, "update_card:card1")
	cm, outcome, err := engine.ReconcileCards(context.Background(), "c1", "c2")

	require.NoError(t, err)
	assert.Equal(t, "card1", cm.SurvivingCardID)
	assert.Equal(t, 1, outcome.CardsDeleted)
	require.Len(t, store.cards, 1)
	assert.Len(t, store.cards[0].Messages, 5)
	assert.Contains(t, store.eventTypes(), events.EventTypeCardsReconciled)
}

func TestReconcileCardsMissingContact(t *testing.T) {
	engine := newTestEngine(t, scenarioStore())

	_, _, err := engine.ReconcileCards(context.Background(), "ghost")

	assert.True(t, errors.Is(err, ErrPrimaryVanished))
}

func TestDetectStoredReportsCollisions(t *testing.T) {
	store := scenarioStore()
	store.contacts = append(store.contacts, store.contacts[0])
	engine := newTestEngine(t, store)

	result, err := engine.DetectStored(context.Background())

	require.NoError(t, err)
	assert.Len(t, result.IDCollisions, 1)
	assert.Empty(t, result.Groups)
	assert.Equal(t, []events.EventType{events.EventTypeIDCollisionDetected, events.EventTypeDetectionCompleted}, store.eventTypes())
}

func TestScanRecordsNothing(t *testing.T) {
	store := scenarioStore()
	store.contacts = append(store.contacts, &types.Contact{ID: "c3", Email: "z@y.com"}, &types.Contact{ID: "c3", Email: "z@y.com"})
	engine := newTestEngine(t, store)

	result, err := engine.Scan(context.Background())

	require.NoError(t, err)
	assert.Len(t, result.Groups, 1)
	assert.Len(t, result.IDCollisions, 1)
	assert.Empty(t, store.events)
	assert.Equal(t, []string{"list_contacts:"}, store.calls)
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	cfg := deduplication.DefaultConfig()
	cfg.CardSurvivor = "oldest"

	_, err := NewEngine(newFakeStore(nil, nil), cfg)
	assert.Error(t, err)

	_, err = NewEngine(nil, deduplication.DefaultConfig())
	assert.Error(t, err)
}
