package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/steveyegge/crm/internal/events"
)

// displayMergeEvent prints a single history event in a two-line format
func displayMergeEvent(event *events.MergeEvent) {
	emoji := getEventEmoji(event)
	severityColor := getSeverityColor(event.Severity)

	timestamp := event.Timestamp.Local().Format("2006-01-02 15:04:05")

	contact := event.ContactID
	if contact == "" {
		contact = "-"
	}
	contactID := color.New(color.FgGreen).Sprint(contact)
	eventType := color.New(color.FgMagenta).Sprint(event.Type)

	maxMessageLen := 70 - len(contact) - len(string(event.Type))
	message := truncateString(event.Message, maxMessageLen)

	fmt.Printf("%s [%s] %s %s: %s\n",
		emoji,
		timestamp,
		contactID,
		eventType,
		severityColor.Sprint(message),
	)

	if metadata := extractEventMetadata(event); metadata != "" {
		gray := color.New(color.FgHiBlack)
		fmt.Printf("  %s\n", gray.Sprint(metadata))
	} else {
		fmt.Println()
	}
}

// getEventEmoji returns the emoji for an event type, falling back to severity
func getEventEmoji(event *events.MergeEvent) string {
	switch event.Type {
	case events.EventTypeMergeStarted:
		return "🔀"
	case events.EventTypeMergeCompleted:
		if getStringField(event.Data, "status", "") == "merged_with_warnings" {
			return "⚠️"
		}
		return "✅"
	case events.EventTypeMergeCleanupWarning:
		return "🧹"
	case events.EventTypeMergeFailed:
		return "❌"
	case events.EventTypeCardsReconciled:
		return "🗂️"
	case events.EventTypeDetectionCompleted:
		return "🔍"
	case events.EventTypeIDCollisionDetected:
		return "👯"
	case events.EventTypeHistoryPruned:
		return "✂️"
	}

	switch event.Severity {
	case events.SeverityWarning:
		return "⚠️"
	case events.SeverityError:
		return "❌"
	default:
		return "ℹ️"
	}
}

// getSeverityColor returns the color for a severity level
func getSeverityColor(severity events.EventSeverity) *color.Color {
	switch severity {
	case events.SeverityInfo:
		return color.New(color.FgCyan)
	case events.SeverityWarning:
		return color.New(color.FgYellow)
	case events.SeverityError:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgWhite)
	}
}

// extractEventMetadata picks a few key data fields per event type and joins
// them into one line
func extractEventMetadata(event *events.MergeEvent) string {
	var fields []string

	switch event.Type {
	case events.EventTypeMergeStarted:
		// strategy | members | cards to delete
		strategy := getStringField(event.Data, "strategy", "")
		members := fmt.Sprintf("%d members", getListLen(event.Data, "member_ids"))
		cards := fmt.Sprintf("%d cards to fold", getListLen(event.Data, "cards_to_delete"))
		dryRun := ""
		if getBoolField(event.Data, "dry_run", false) {
			dryRun = "dry run"
		}
		fields = []string{strategy, members, cards, dryRun}

	case events.EventTypeMergeCompleted:
		// status | contacts | cards | duration
		status := getStringField(event.Data, "status", "merged")
		contacts := fmt.Sprintf("%d contacts", getIntField(event.Data, "contacts_merged", 0))
		cards := fmt.Sprintf("%d cards", getIntField(event.Data, "cards_merged", 0))
		duration := formatDurationMs(getIntField(event.Data, "processing_time_ms", 0))
		fields = []string{status, contacts, cards, duration}

	case events.EventTypeMergeCleanupWarning:
		// kind | target | error
		kind := getStringField(event.Data, "kind", "unknown")
		target := truncateString(getStringField(event.Data, "target_id", ""), 36)
		errMsg := truncateString(getStringField(event.Data, "error", ""), 30)
		fields = []string{kind, target, errMsg}

	case events.EventTypeMergeFailed:
		// step | retryable
		step := getStringField(event.Data, "step", "unknown")
		retry := "not retryable"
		if getBoolField(event.Data, "retryable", false) {
			retry = "retry: crm reconcile-cards " + event.ContactID
		}
		fields = []string{step, retry}

	case events.EventTypeCardsReconciled:
		// surviving card | merged | deleted
		card := truncateString(getStringField(event.Data, "surviving_card_id", ""), 36)
		merged := fmt.Sprintf("%d merged", getIntField(event.Data, "cards_merged", 0))
		deleted := fmt.Sprintf("%d deleted", getIntField(event.Data, "cards_deleted", 0))
		fields = []string{card, merged, deleted}

	case events.EventTypeDetectionCompleted:
		// contacts | groups | collisions | duration
		contacts := fmt.Sprintf("%d contacts", getIntField(event.Data, "total_contacts", 0))
		groups := fmt.Sprintf("%d groups", getIntField(event.Data, "group_count", 0))
		collisions := fmt.Sprintf("%d collisions", getIntField(event.Data, "id_collision_count", 0))
		duration := formatDurationMs(getIntField(event.Data, "processing_time_ms", 0))
		fields = []string{contacts, groups, collisions, duration}

	case events.EventTypeIDCollisionDetected:
		fields = []string{fmt.Sprintf("listed %d times", getIntField(event.Data, "count", 0))}

	case events.EventTypeHistoryPruned:
		fields = []string{fmt.Sprintf("%d events", getIntField(event.Data, "events_deleted", 0))}
	}

	return joinFields(fields)
}

func getStringField(data map[string]interface{}, key, defaultValue string) string {
	if val, ok := data[key].(string); ok {
		return val
	}
	return defaultValue
}

// getIntField reads a number that may have been decoded from JSON (float64)
// or BSON (int32, int64)
func getIntField(data map[string]interface{}, key string, defaultValue int) int {
	switch val := data[key].(type) {
	case int:
		return val
	case int32:
		return int(val)
	case int64:
		return int(val)
	case float64:
		return int(val)
	}
	return defaultValue
}

func getBoolField(data map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := data[key].(bool); ok {
		return val
	}
	return defaultValue
}

func getListLen(data map[string]interface{}, key string) int {
	switch val := data[key].(type) {
	case []interface{}:
		return len(val)
	case []string:
		return len(val)
	}
	return 0
}

// formatDurationMs formats milliseconds into a human-readable duration
func formatDurationMs(ms int) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%.1fm", float64(ms)/60000)
}

// joinFields joins non-empty metadata fields with " | "
func joinFields(fields []string) string {
	nonEmpty := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			nonEmpty = append(nonEmpty, f)
		}
	}
	return strings.Join(nonEmpty, " | ")
}

// truncateString truncates a string to maxLen, adding "..." if needed
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
