package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/crm/internal/config"
	"github.com/steveyegge/crm/internal/events"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the merge history",
	Long: `Show recorded merge events, newest first.

Examples:
  crm history                        # last 20 events
  crm history --contact c-123        # events for one surviving contact
  crm history --type merge_failed    # failed merges only
  crm history --severity error -n 100`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		contactID, _ := cmd.Flags().GetString("contact")
		eventType, _ := cmd.Flags().GetString("type")
		severity, _ := cmd.Flags().GetString("severity")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		filter := events.EventFilter{
			ContactID: contactID,
			Type:      events.EventType(eventType),
			Severity:  events.EventSeverity(severity),
			Limit:     limit,
		}
		if filter.Type != "" && !filter.Type.IsValid() {
			exitOnError(fmt.Errorf("unknown event type %q", eventType))
		}

		eventList, err := store.GetMergeEvents(context.Background(), filter)
		exitOnError(err)

		if jsonOutput {
			if eventList == nil {
				eventList = []*events.MergeEvent{}
			}
			printJSON(eventList)
			return
		}

		if len(eventList) == 0 {
			fmt.Println("No merge history found")
			return
		}

		// oldest at the top, like a log
		for i := len(eventList) - 1; i >= 0; i-- {
			displayMergeEvent(eventList[i])
		}
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete merge history past its retention",
	Long: `Delete merge events older than the configured retention.

Info and warning events are kept for history.retention_days; failed-merge
events are kept for history.retention_error_days so pending retries stay
visible longer.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		deleted, err := pruneHistory(context.Background(), store, cfg.History, time.Now())
		exitOnError(err)

		fmt.Printf("%s Pruned %d merge event(s) %s\n", green("✓"), deleted,
			gray(fmt.Sprintf("(retention %dd, errors %dd)", cfg.History.RetentionDays, cfg.History.RetentionErrorDays)))
	},
}

// pruneHistory enforces the retention policy and records a history_pruned
// event when anything was deleted
func pruneHistory(ctx context.Context, es events.EventStore, hc config.HistoryConfig, now time.Time) (int, error) {
	passes := hc.PrunePasses(now)
	total := 0
	for _, pass := range passes {
		n, err := es.PruneMergeEvents(ctx, pass.Before, pass.Severities...)
		total += n
		if err != nil {
			return total, err
		}
	}

	if total > 0 {
		ev := events.NewMergeEvent(events.EventTypeHistoryPruned, "", "", events.SeverityInfo,
			fmt.Sprintf("pruned %d merge event(s)", total), nil)
		if err := ev.SetHistoryPrunedData(events.HistoryPrunedData{EventsDeleted: total, Before: passes[0].Before}); err == nil {
			if err := es.StoreMergeEvent(ctx, ev); err != nil {
				return total, fmt.Errorf("failed to record prune: %w", err)
			}
		}
	}
	return total, nil
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of events to show (0 for all)")
	historyCmd.Flags().String("contact", "", "Only events for this contact")
	historyCmd.Flags().String("type", "", "Only events of this type")
	historyCmd.Flags().String("severity", "", "Only events of this severity (info, warning, error)")
	historyCmd.Flags().Bool("json", false, "Output as JSON")
	historyCmd.AddCommand(historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}
