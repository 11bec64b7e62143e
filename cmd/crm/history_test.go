package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/crm/internal/config"
	"github.com/steveyegge/crm/internal/events"
)

func TestPruneHistoryKeepsErrorsLonger(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC()

	add := func(severity events.EventSeverity, age time.Duration) *events.MergeEvent {
		e := events.NewMergeEvent(events.EventTypeMergeCompleted, "c1", "k", severity, "m", nil)
		e.Timestamp = now.Add(-age)
		require.NoError(t, s.StoreMergeEvent(ctx, e))
		return e
	}
	day := 24 * time.Hour
	add(events.SeverityInfo, 100*day)
	keptError := add(events.SeverityError, 100*day)
	add(events.SeverityError, 400*day)
	fresh := add(events.SeverityInfo, time.Hour)

	n, err := pruneHistory(ctx, s, config.DefaultHistoryConfig(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	remaining, err := s.GetMergeEvents(ctx, events.EventFilter{})
	require.NoError(t, err)
	ids := map[string]bool{}
	var pruned *events.MergeEvent
	for _, e := range remaining {
		ids[e.ID] = true
		if e.Type == events.EventTypeHistoryPruned {
			pruned = e
		}
	}
	assert.Len(t, remaining, 3)
	assert.True(t, ids[keptError.ID])
	assert.True(t, ids[fresh.ID])
	require.NotNil(t, pruned)
	assert.Equal(t, 2, getIntField(pruned.Data, "events_deleted", 0))
}

func TestPruneHistoryNothingToDo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n, err := pruneHistory(ctx, s, config.DefaultHistoryConfig(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	remaining, err := s.GetMergeEvents(ctx, events.EventFilter{})
	require.NoError(t, err)
	assert.Empty(t, remaining, "no prune event is recorded when nothing was deleted")
}

func TestFormerMemberIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ids, err := formerMemberIDs(ctx, s, "c1")
	require.NoError(t, err)
	assert.Empty(t, ids)

	older, err := events.NewMergeStartedEvent("c1", "k", "m", events.MergeStartedData{MemberIDs: []string{"c1", "old"}})
	require.NoError(t, err)
	older.Timestamp = time.Now().Add(-time.Hour)
	require.NoError(t, s.StoreMergeEvent(ctx, older))

	latest, err := events.NewMergeStartedEvent("c1", "k", "m", events.MergeStartedData{MemberIDs: []string{"c1", "c2", "c3"}})
	require.NoError(t, err)
	require.NoError(t, s.StoreMergeEvent(ctx, latest))

	ids, err = formerMemberIDs(ctx, s, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2", "c3"}, ids)
}
