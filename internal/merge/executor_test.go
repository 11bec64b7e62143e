package merge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/crm/internal/types"
)

func testPlan() *MergePlan {
	return &MergePlan{
		GroupKey:           "2125550100",
		SurvivingContactID: "a",
		ContactPatch:       &types.ContactPatch{Name: "Ann", Tags: []string{"vip"}},
		ContactsToDelete:   []string{"b", "c"},
		SurvivingCardID:    "card-a",
		CardPatch:          &types.CardPatch{ContactID: "a", ContactName: "Ann"},
		CardsToDelete:      []string{"card-b"},
	}
}

func testStore() *fakeStore {
	return newFakeStore(
		[]*types.Contact{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		[]*types.ConversationCard{{ID: "card-a"}, {ID: "card-b"}},
	)
}

func TestExecuteHappyPath(t *testing.T) {
	store := testStore()
	outcome, err := NewExecutor(store, 0).Execute(context.Background(), testPlan())

	require.NoError(t, err)
	assert.Equal(t, StatusMerged, outcome.Status)
	assert.Equal(t, 3, outcome.ContactsMerged)
	assert.Equal(t, 2, outcome.ContactsDeleted)
	assert.Equal(t, 2, outcome.CardsMerged)
	assert.Equal(t, 1, outcome.CardsDeleted)
	assert.NoError(t, outcome.Err())

	assert.Equal(t, "Ann", store.contact("a").Name)
	assert.False(t, store.contact("a").LastUpdated.IsZero())
	assert.Nil(t, store.contact("b"))
	assert.Equal(t, "a", store.card("card-a").ContactID)
	assert.Nil(t, store.card("card-b"))
	assert.Equal(t, []string{
		"get_contact:a", "update_contact:a", "delete_contact:b", "delete_contact:c",
		"update_card:card-a", "delete_card:card-b",
	}, store.calls)
}

func TestExecutePrimaryVanished(t *testing.T) {
	store := testStore()
	store.contacts = store.contacts[1:]

	outcome, err := NewExecutor(store, 0).Execute(context.Background(), testPlan())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPrimaryVanished))
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, StepVerifyPrimary, outcome.FailedStep)
	assert.Equal(t, []string{"get_contact:a"}, store.calls, "no writes after a vanished primary")
}

func TestExecuteCancelledBeforeStart(t *testing.T) {
	store := testStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := NewExecutor(store, 0).Execute(ctx, testPlan())

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Empty(t, store.calls)
}

func TestExecuteUpdateContactFailureAborts(t *testing.T) {
	store := testStore()
	store.failOn("update_contact", "a", errors.New("write rejected"))

	outcome, err := NewExecutor(store, 0).Execute(context.Background(), testPlan())

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepUpdateContact, stepErr.Step)
	assert.False(t, stepErr.Retryable())
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.NotNil(t, store.contact("b"), "losers survive when the survivor write fails")
}

func TestExecuteDeleteFailuresAreWarnings(t *testing.T) {
	store := testStore()
	store.failOn("delete_contact", "b", errors.New("permission denied"))
	store.failOn("delete_card", "card-b", errors.New("timeout"))

	outcome, err := NewExecutor(store, 0).Execute(context.Background(), testPlan())

	require.NoError(t, err)
	assert.Equal(t, StatusMergedWithWarnings, outcome.Status)
	assert.Equal(t, 1, outcome.ContactsDeleted)
	assert.Equal(t, 0, outcome.CardsDeleted)
	require.Len(t, outcome.Warnings, 2)
	assert.Equal(t, CleanupFailure{Kind: "contact", ID: "b", Error: "permission denied"}, outcome.Warnings[0])
	assert.Nil(t, store.contact("c"), "one failed delete does not stop the others")

	var partial *PartialCleanupError
	require.True(t, errors.As(outcome.Err(), &partial))
	assert.Len(t, partial.Failures, 2)
	assert.Contains(t, partial.Error(), "contact b")
}

func TestExecuteCardUpdateFailureKeepsLoserCards(t *testing.T) {
	store := testStore()
	store.failOn("update_card", "card-a", errors.New("conflict"))

	outcome, err := NewExecutor(store, 0).Execute(context.Background(), testPlan())

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepUpdateCard, stepErr.Step)
	assert.True(t, stepErr.Retryable())
	assert.Equal(t, 2, outcome.ContactsDeleted)
	assert.NotNil(t, store.card("card-b"), "card deletes are skipped after a failed card update")
}

func TestExecuteWithoutCards(t *testing.T) {
	store := testStore()
	plan := testPlan()
	plan.SurvivingCardID = ""
	plan.CardPatch = nil
	plan.CardsToDelete = nil

	outcome, err := NewExecutor(store, 0).Execute(context.Background(), plan)

	require.NoError(t, err)
	assert.Equal(t, 0, outcome.CardsMerged)
	assert.Len(t, store.cards, 2)
}

func TestExecuteThrottled(t *testing.T) {
	store := testStore()
	outcome, err := NewExecutor(store, 1000).Execute(context.Background(), testPlan())

	require.NoError(t, err)
	assert.Equal(t, StatusMerged, outcome.Status)
}

func TestMergePlanValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *MergePlan)
		wantErr string
	}{
		{name: "valid", mutate: func(p *MergePlan) {}},
		{name: "no survivor", mutate: func(p *MergePlan) { p.SurvivingContactID = "" }, wantErr: "surviving_contact_id"},
		{name: "survivor deleted", mutate: func(p *MergePlan) { p.ContactsToDelete = []string{"a"} }, wantErr: "surviving contact"},
		{name: "card deletes without survivor", mutate: func(p *MergePlan) { p.SurvivingCardID = "" }, wantErr: "without a surviving card"},
		{name: "survivor card deleted", mutate: func(p *MergePlan) { p.CardsToDelete = []string{"card-a"} }, wantErr: "surviving card"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPlan()
			tt.mutate(p)
			err := p.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
