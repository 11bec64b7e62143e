package events

import (
	"context"
	"time"
)

// EventType represents the type of event recorded during detection and merging.
type EventType string

const (
	// EventTypeMergeStarted indicates a merge plan was computed and execution began
	EventTypeMergeStarted EventType = "merge_started"
	// EventTypeMergeCompleted indicates a merge finished (possibly with cleanup warnings)
	EventTypeMergeCompleted EventType = "merge_completed"
	// EventTypeMergeCleanupWarning indicates a loser contact or card could not be deleted
	EventTypeMergeCleanupWarning EventType = "merge_cleanup_warning"
	// EventTypeMergeFailed indicates a merge aborted before completing
	EventTypeMergeFailed EventType = "merge_failed"
	// EventTypeCardsReconciled indicates cards were reconciled outside a merge (retry path)
	EventTypeCardsReconciled EventType = "cards_reconciled"
	// EventTypeDetectionCompleted indicates a detection run finished
	EventTypeDetectionCompleted EventType = "detection_completed"
	// EventTypeIDCollisionDetected indicates the same id was listed more than once
	EventTypeIDCollisionDetected EventType = "id_collision_detected"
	// EventTypeHistoryPruned indicates old merge events were deleted
	EventTypeHistoryPruned EventType = "history_pruned"
)

// IsValid checks if the event type is known
func (t EventType) IsValid() bool {
	switch t {
	case EventTypeMergeStarted, EventTypeMergeCompleted, EventTypeMergeCleanupWarning,
		EventTypeMergeFailed, EventTypeCardsReconciled, EventTypeDetectionCompleted,
		EventTypeIDCollisionDetected, EventTypeHistoryPruned:
		return true
	}
	return false
}

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	// SeverityInfo indicates informational events
	SeverityInfo EventSeverity = "info"
	// SeverityWarning indicates potentially problematic events
	SeverityWarning EventSeverity = "warning"
	// SeverityError indicates error events
	SeverityError EventSeverity = "error"
)

// MergeEvent is an entry in the merge history. Events are the audit trail
// for merges: which contacts were collapsed, which failed to clean up, and
// what needs a retry.
type MergeEvent struct {
	// ID is the unique identifier for this event
	ID string `json:"id" bson:"_id"`
	// Type is the type of event
	Type EventType `json:"type" bson:"type"`
	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	// ContactID is the surviving (or primary) contact the event concerns
	ContactID string `json:"contact_id,omitempty" bson:"contact_id,omitempty"`
	// GroupKey is the match key of the duplicate group
	GroupKey string `json:"group_key,omitempty" bson:"group_key,omitempty"`
	// Severity is the severity level of this event
	Severity EventSeverity `json:"severity" bson:"severity"`
	// Message is a human-readable description of the event
	Message string `json:"message" bson:"message"`
	// Data contains structured, type-specific data (must be JSON-serializable)
	Data map[string]interface{} `json:"data,omitempty" bson:"data,omitempty"`
}

// MergeStartedData contains structured data for merge start events.
type MergeStartedData struct {
	// Strategy is the match strategy that produced the group
	Strategy string `json:"strategy"`
	// MemberIDs are the contact ids in the group
	MemberIDs []string `json:"member_ids"`
	// ContactsToDelete are the losing contact ids
	ContactsToDelete []string `json:"contacts_to_delete"`
	// SurvivingCardID is the card that will hold the merged history
	SurvivingCardID string `json:"surviving_card_id,omitempty"`
	// CardsToDelete are the losing card ids
	CardsToDelete []string `json:"cards_to_delete,omitempty"`
	// DryRun is set when the plan was only previewed
	DryRun bool `json:"dry_run,omitempty"`
}

// MergeCompletedData contains structured data for merge completion events.
type MergeCompletedData struct {
	// Status is merged or merged_with_warnings
	Status string `json:"status"`
	// ContactsMerged is the number of contacts folded into the survivor
	ContactsMerged int `json:"contacts_merged"`
	// ContactsDeleted is the number of loser contacts actually deleted
	ContactsDeleted int `json:"contacts_deleted"`
	// CardsMerged is the number of cards folded into the surviving card
	CardsMerged int `json:"cards_merged"`
	// CardsDeleted is the number of loser cards actually deleted
	CardsDeleted int `json:"cards_deleted"`
	// SurvivingCardID is the card holding the merged history
	SurvivingCardID string `json:"surviving_card_id,omitempty"`
	// WarningCount is the number of cleanup failures
	WarningCount int `json:"warning_count"`
	// ProcessingTimeMs is the time taken for execution in milliseconds
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// MergeCleanupWarningData contains structured data for a failed cleanup delete.
type MergeCleanupWarningData struct {
	// Kind is "contact" or "card"
	Kind string `json:"kind"`
	// TargetID is the document that could not be deleted
	TargetID string `json:"target_id"`
	// Error is the delete error message
	Error string `json:"error"`
}

// MergeFailedData contains structured data for merge failure events.
type MergeFailedData struct {
	// Step is the executor step that failed
	Step string `json:"step"`
	// Error is the failure message
	Error string `json:"error"`
	// Retryable is set when the merge can be resumed with reconcile-cards
	Retryable bool `json:"retryable"`
}

// DetectionCompletedData contains structured data for detection runs.
type DetectionCompletedData struct {
	// TotalContacts is the number of contacts scanned
	TotalContacts int `json:"total_contacts"`
	// GroupCount is the number of mergeable groups found
	GroupCount int `json:"group_count"`
	// DuplicateContacts is the number of contacts in mergeable groups
	DuplicateContacts int `json:"duplicate_contacts"`
	// IDCollisionCount is the number of colliding ids
	IDCollisionCount int `json:"id_collision_count"`
	// ProcessingTimeMs is the time taken for detection in milliseconds
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// HistoryPrunedData contains structured data for history prune events.
type HistoryPrunedData struct {
	// EventsDeleted is the number of events removed
	EventsDeleted int `json:"events_deleted"`
	// Before is the cutoff used
	Before time.Time `json:"before"`
}

// EventStore defines the interface for storing and retrieving merge events.
type EventStore interface {
	// StoreMergeEvent stores a new event
	StoreMergeEvent(ctx context.Context, event *MergeEvent) error

	// GetMergeEvents retrieves events matching the given filter, newest first
	GetMergeEvents(ctx context.Context, filter EventFilter) ([]*MergeEvent, error)

	// PruneMergeEvents deletes events older than before and returns the count.
	// With severities given, only events of those severities are deleted.
	PruneMergeEvents(ctx context.Context, before time.Time, severities ...EventSeverity) (int, error)
}

// EventFilter defines criteria for filtering events.
type EventFilter struct {
	// ContactID filters events by contact
	ContactID string
	// Type filters events by event type
	Type EventType
	// Severity filters events by severity level
	Severity EventSeverity
	// AfterTime filters events that occurred after this time
	AfterTime time.Time
	// BeforeTime filters events that occurred before this time
	BeforeTime time.Time
	// Limit limits the number of events returned
	Limit int
}

// Matches reports whether an event satisfies the filter. Backends that
// cannot push a filter down to the query use it after loading.
func (f EventFilter) Matches(e *MergeEvent) bool {
	if f.ContactID != "" && e.ContactID != f.ContactID {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if !f.AfterTime.IsZero() && !e.Timestamp.After(f.AfterTime) {
		return false
	}
	if !f.BeforeTime.IsZero() && !e.Timestamp.Before(f.BeforeTime) {
		return false
	}
	return true
}
