package events

import (
	"time"

	"github.com/google/uuid"
)

// NewMergeEvent creates a MergeEvent with free-form data.
func NewMergeEvent(eventType EventType, contactID, groupKey string, severity EventSeverity, message string, data map[string]interface{}) *MergeEvent {
	if data == nil {
		data = make(map[string]interface{})
	}
	return &MergeEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		ContactID: contactID,
		GroupKey:  groupKey,
		Severity:  severity,
		Message:   message,
		Data:      data,
	}
}

// NewMergeStartedEvent creates a merge_started event with type-safe data.
func NewMergeStartedEvent(contactID, groupKey, message string, data MergeStartedData) (*MergeEvent, error) {
	event := NewMergeEvent(EventTypeMergeStarted, contactID, groupKey, SeverityInfo, message, nil)
	if err := event.SetMergeStartedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewMergeCompletedEvent creates a merge_completed event with type-safe data.
// Merges that left cleanup warnings are recorded with warning severity.
func NewMergeCompletedEvent(contactID, groupKey, message string, data MergeCompletedData) (*MergeEvent, error) {
	severity := SeverityInfo
	if data.WarningCount > 0 {
		severity = SeverityWarning
	}
	event := NewMergeEvent(EventTypeMergeCompleted, contactID, groupKey, severity, message, nil)
	if err := event.SetMergeCompletedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewMergeCleanupWarningEvent creates a merge_cleanup_warning event.
func NewMergeCleanupWarningEvent(contactID, groupKey, message string, data MergeCleanupWarningData) (*MergeEvent, error) {
	event := NewMergeEvent(EventTypeMergeCleanupWarning, contactID, groupKey, SeverityWarning, message, nil)
	if err := event.SetMergeCleanupWarningData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewMergeFailedEvent creates a merge_failed event.
func NewMergeFailedEvent(contactID, groupKey, message string, data MergeFailedData) (*MergeEvent, error) {
	event := NewMergeEvent(EventTypeMergeFailed, contactID, groupKey, SeverityError, message, nil)
	if err := event.SetMergeFailedData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewDetectionCompletedEvent creates a detection_completed event.
func NewDetectionCompletedEvent(message string, data DetectionCompletedData) (*MergeEvent, error) {
	event := NewMergeEvent(EventTypeDetectionCompleted, "", "", SeverityInfo, message, nil)
	if err := event.SetDetectionCompletedData(data); err != nil {
		return nil, err
	}
	return event, nil
}
