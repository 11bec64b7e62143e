package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/crm/internal/events"
	"github.com/steveyegge/crm/internal/storage/migrations"
	"github.com/steveyegge/crm/internal/types"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".crm", "test.db")
	s, err := New(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewAppliesMigrations(t *testing.T) {
	s := newTestStorage(t)

	version, err := migrations.SQLiteVersion(context.Background(), s.db)
	require.NoError(t, err)
	assert.Equal(t, migrations.NewManager(schemaMigrations...).Latest(), version)

	// reopening an existing file is a no-op migration
	s2, err := New(context.Background(), s.Path())
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestContactCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	c := &types.Contact{
		Phone:  "+1 212 555 0100",
		Name:   "Ann",
		Tags:   []string{"vip"},
		Fields: map[string]string{"company": "Acme"},
	}
	require.NoError(t, s.CreateContact(ctx, c))
	require.NotEmpty(t, c.ID)
	assert.False(t, c.CreatedAt.IsZero())

	got, err := s.GetContact(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)
	assert.Equal(t, []string{"vip"}, got.Tags)
	assert.Equal(t, "Acme", got.Field("company"))

	updatedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err = s.UpdateContact(ctx, c.ID, &types.ContactPatch{
		Name:        "Ann Lee",
		Phone:       c.Phone,
		Email:       "ann@example.com",
		Tags:        []string{"vip", "lead"},
		Fields:      map[string]string{"company": "Acme", "city": "NYC"},
		LastUpdated: updatedAt,
	})
	require.NoError(t, err)

	got, err = s.GetContact(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", got.Name)
	assert.Equal(t, "ann@example.com", got.Email)
	assert.Equal(t, []string{"vip", "lead"}, got.Tags)
	assert.Equal(t, "NYC", got.Field("city"))
	assert.True(t, updatedAt.Equal(got.LastUpdated))

	require.NoError(t, s.DeleteContact(ctx, c.ID))
	_, err = s.GetContact(ctx, c.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestContactMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	assert.ErrorIs(t, s.UpdateContact(ctx, "nope", &types.ContactPatch{}), types.ErrNotFound)
	assert.ErrorIs(t, s.DeleteContact(ctx, "nope"), types.ErrNotFound)
	assert.ErrorIs(t, s.DeleteCard(ctx, "nope"), types.ErrNotFound)
	assert.ErrorIs(t, s.UpdateCard(ctx, "nope", &types.CardPatch{}), types.ErrNotFound)
}

func TestListContactsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, s.CreateContact(ctx, &types.Contact{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)}))
	}

	contacts, err := s.ListContacts(ctx)
	require.NoError(t, err)
	require.Len(t, contacts, 3)
	assert.Equal(t, "new", contacts[0].ID)
	assert.Equal(t, "mid", contacts[1].ID)
	assert.Equal(t, "old", contacts[2].ID)
}

func TestCardRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	card := &types.ConversationCard{
		ThreadID:      "thread-1",
		ContactID:     "c1",
		ContactNumber: "2125550100",
		Messages: []types.Message{
			{Sender: "ann", Text: "hi", Timestamp: types.Timestamp{Millis: 1000}},
		},
		Notes: []types.Entry{{"id": "n1", "text": "called back"}},
	}
	require.NoError(t, s.CreateCard(ctx, card))

	got, err := s.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, "thread-1", got.ThreadID)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, int64(1000), got.Messages[0].Timestamp.ToMillis())
	require.Len(t, got.Notes, 1)
	assert.Equal(t, "n1", got.Notes[0].ID())
	assert.Empty(t, got.CheckIns)

	err = s.UpdateCard(ctx, card.ID, &types.CardPatch{
		ContactID: "c2",
		Messages: []types.Message{
			{Sender: "ann", Text: "hi", Timestamp: types.Timestamp{Millis: 1000}},
			{Sender: "bob", Text: "hello", Timestamp: types.Timestamp{Millis: 2000}},
		},
		CheckIns: []types.Entry{{"id": "k1"}},
	})
	require.NoError(t, err)

	cards, err := s.ListCardsAcrossThreads(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "c2", cards[0].ContactID)
	assert.Len(t, cards[0].Messages, 2)
	assert.Len(t, cards[0].CheckIns, 1)
	assert.Empty(t, cards[0].Notes)

	require.NoError(t, s.DeleteCard(ctx, card.ID))
	_, err = s.GetCard(ctx, card.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestMergeEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	now := time.Now().UTC()

	old, err := events.NewMergeFailedEvent("c1", "k", "card update failed", events.MergeFailedData{Step: "update_card", Retryable: true})
	require.NoError(t, err)
	old.Timestamp = now.Add(-48 * time.Hour)

	recent, err := events.NewMergeCompletedEvent("c1", "k", "merged", events.MergeCompletedData{Status: "merged", ContactsMerged: 2})
	require.NoError(t, err)
	recent.Timestamp = now.Add(-time.Hour)

	other := events.NewMergeEvent(events.EventTypeDetectionCompleted, "", "", events.SeverityInfo, "detected", nil)
	other.Timestamp = now

	for _, e := range []*events.MergeEvent{old, recent, other} {
		require.NoError(t, s.StoreMergeEvent(ctx, e))
	}

	all, err := s.GetMergeEvents(ctx, events.EventFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, other.ID, all[0].ID)
	assert.Equal(t, old.ID, all[2].ID)

	byContact, err := s.GetMergeEvents(ctx, events.EventFilter{ContactID: "c1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, byContact, 1)
	assert.Equal(t, recent.ID, byContact[0].ID)

	data, err := byContact[0].GetMergeCompletedData()
	require.NoError(t, err)
	assert.Equal(t, 2, data.ContactsMerged)

	failed, err := s.GetMergeEvents(ctx, events.EventFilter{Severity: events.SeverityError})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, events.EventTypeMergeFailed, failed[0].Type)
}

func TestPruneMergeEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	now := time.Now().UTC()

	for i, sev := range []events.EventSeverity{events.SeverityInfo, events.SeverityError, events.SeverityInfo} {
		e := events.NewMergeEvent(events.EventTypeMergeCompleted, "c1", "k", sev, "m", nil)
		e.Timestamp = now.Add(-time.Duration(72-i) * time.Hour)
		require.NoError(t, s.StoreMergeEvent(ctx, e))
	}
	fresh := events.NewMergeEvent(events.EventTypeMergeCompleted, "c1", "k", events.SeverityInfo, "m", nil)
	fresh.Timestamp = now
	require.NoError(t, s.StoreMergeEvent(ctx, fresh))

	n, err := s.PruneMergeEvents(ctx, now.Add(-24*time.Hour), events.SeverityInfo, events.SeverityWarning)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.PruneMergeEvents(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	remaining, err := s.GetMergeEvents(ctx, events.EventFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, fresh.ID, remaining[0].ID)
}
