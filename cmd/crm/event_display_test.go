package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/steveyegge/crm/internal/events"
)

func TestExtractEventMetadata(t *testing.T) {
	tests := []struct {
		name      string
		eventType events.EventType
		contactID string
		data      map[string]interface{}
		expected  string
	}{
		{
			name:      "merge completed from json",
			eventType: events.EventTypeMergeCompleted,
			data: map[string]interface{}{
				"status":             "merged",
				"contacts_merged":    float64(3),
				"cards_merged":       float64(2),
				"processing_time_ms": float64(1500),
			},
			expected: "merged | 3 contacts | 2 cards | 1.5s",
		},
		{
			name:      "merge completed from bson",
			eventType: events.EventTypeMergeCompleted,
			data: map[string]interface{}{
				"status":             "merged_with_warnings",
				"contacts_merged":    int32(2),
				"cards_merged":       int64(1),
				"processing_time_ms": int64(40),
			},
			expected: "merged_with_warnings | 2 contacts | 1 cards | 40ms",
		},
		{
			name:      "retryable failure names the retry command",
			eventType: events.EventTypeMergeFailed,
			contactID: "c1",
			data:      map[string]interface{}{"step": "update_card", "retryable": true},
			expected:  "update_card | retry: crm reconcile-cards c1",
		},
		{
			name:      "merge started counts members",
			eventType: events.EventTypeMergeStarted,
			data: map[string]interface{}{
				"strategy":        "phone-match",
				"member_ids":      []interface{}{"a", "b", "c"},
				"cards_to_delete": []interface{}{"k2"},
			},
			expected: "phone-match | 3 members | 1 cards to fold",
		},
		{
			name:      "missing fields fall back to defaults",
			eventType: events.EventTypeDetectionCompleted,
			data:      map[string]interface{}{},
			expected:  "0 contacts | 0 groups | 0 collisions | 0ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := events.NewMergeEvent(tt.eventType, tt.contactID, "", events.SeverityInfo, "m", tt.data)
			assert.Equal(t, tt.expected, extractEventMetadata(event))
		})
	}
}

func TestGetEventEmoji(t *testing.T) {
	warn := events.NewMergeEvent(events.EventTypeMergeCompleted, "c1", "", events.SeverityInfo, "m",
		map[string]interface{}{"status": "merged_with_warnings"})
	assert.Equal(t, "⚠️", getEventEmoji(warn))

	ok := events.NewMergeEvent(events.EventTypeMergeCompleted, "c1", "", events.SeverityInfo, "m",
		map[string]interface{}{"status": "merged"})
	assert.Equal(t, "✅", getEventEmoji(ok))

	unknown := events.NewMergeEvent("something_else", "", "", events.SeverityError, "m", nil)
	assert.Equal(t, "❌", getEventEmoji(unknown))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
	assert.Equal(t, "...", truncateString("abcdef", 2))
}

func TestJoinFieldsSkipsEmpty(t *testing.T) {
	assert.Equal(t, "a | c", joinFields([]string{"a", "", "c"}))
	assert.Equal(t, "", joinFields([]string{"", ""}))
}
