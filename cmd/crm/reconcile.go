package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/crm/internal/events"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile-cards <contact-id>",
	Short: "Finish a merge whose card step failed",
	Long: `Merge every conversation card that belongs to <contact-id> into one.

Use this after a merge reported a failed update_card step: the contacts were
merged but their cards were not, and the cards of the merged-away contacts
still point at the old ids. Those ids are read from the last merge_started
event for the contact unless --former is given.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		contactID := args[0]
		former, _ := cmd.Flags().GetStringSlice("former")

		err := withMergeLock("reconcile-cards", func() error {
			ctx, cancel := mergeContext()
			defer cancel()

			if len(former) == 0 {
				ids, err := formerMemberIDs(ctx, store, contactID)
				if err != nil {
					return err
				}
				former = ids
			}

			cm, outcome, err := engine.ReconcileCards(ctx, contactID, former...)
			if err != nil {
				printOutcome(outcome, err)
				return errReported
			}
			if cm.Empty() {
				fmt.Printf("%s No conversation cards belong to %s\n", green("✓"), cyan(contactID))
				return nil
			}
			if len(cm.Matched) == 1 {
				fmt.Printf("%s Card %s already holds the whole history, relinked to %s\n",
					green("✓"), cyan(cm.SurvivingCardID), cyan(contactID))
				return nil
			}
			printOutcome(outcome, nil)
			return nil
		})
		exitOnError(err)
	},
}

// formerMemberIDs returns the group members of the last merge into contactID
func formerMemberIDs(ctx context.Context, es events.EventStore, contactID string) ([]string, error) {
	started, err := es.GetMergeEvents(ctx, events.EventFilter{
		ContactID: contactID,
		Type:      events.EventTypeMergeStarted,
		Limit:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read merge history: %w", err)
	}
	if len(started) == 0 {
		return nil, nil
	}
	data, err := started[0].GetMergeStartedData()
	if err != nil {
		return nil, err
	}
	return data.MemberIDs, nil
}

func init() {
	reconcileCmd.Flags().StringSlice("former", nil, "Ids of the contacts merged into this one (default: from merge history)")
	rootCmd.AddCommand(reconcileCmd)
}
