package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/crm/internal/merge"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <primary-id>",
	Short: "Merge the duplicate group containing a contact",
	Long: `Merge every contact in the duplicate group that contains <primary-id>
into that contact, and fold the group's conversation cards into one.

The primary keeps its own values; empty fields are filled from the other
members, tags are unioned. Cards are merged by message content and the
losing contacts and cards are deleted.

Use --dry-run to see the merged contact as a diff and the card counts
without writing anything.

Examples:
  crm merge c-123 --dry-run
  crm merge c-123 --yes`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		primaryID := args[0]
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		yes, _ := cmd.Flags().GetBool("yes")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		if dryRun {
			ctx, cancel := mergeContext()
			defer cancel()
			plan, err := prepareMerge(ctx, primaryID)
			exitOnError(err)
			if jsonOutput {
				printJSON(plan)
				return
			}
			printPlan(plan)
			return
		}

		if jsonOutput && !yes {
			exitOnError(fmt.Errorf("--json requires --yes or --dry-run"))
		}

		err := withMergeLock("merge", func() error {
			plan, err := planMerge(primaryID)
			if err != nil {
				return err
			}
			if !jsonOutput {
				printPlan(plan)
				fmt.Println()
			}
			for !yes {
				ok, err := confirm("Apply this merge?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Aborted.")
					return nil
				}
				// cards may have been synced while the prompt was open
				fresh, err := planMerge(primaryID)
				if err != nil {
					return err
				}
				stale := !fresh.Equivalent(plan)
				plan = fresh
				if !stale {
					break
				}
				fmt.Printf("\n%s The group changed since this plan was shown:\n\n", yellow("⚠"))
				printPlan(plan)
				fmt.Println()
			}

			// the prompt does not count against the merge timeout
			ctx, cancel := mergeContext()
			defer cancel()
			outcome, err := engine.Execute(ctx, plan)
			if jsonOutput {
				printJSON(outcome)
				return err
			}
			if !printOutcome(outcome, err) {
				return errReported
			}
			return nil
		})
		exitOnError(err)
	},
}

// mergeContext bounds one merge by dedup.merge_timeout
func mergeContext() (context.Context, context.CancelFunc) {
	if cfg.Dedup.MergeTimeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), cfg.Dedup.MergeTimeout)
}

// planMerge prepares the merge of primaryID under its own merge timeout
func planMerge(primaryID string) (*merge.MergePlan, error) {
	ctx, cancel := mergeContext()
	defer cancel()
	return prepareMerge(ctx, primaryID)
}

// prepareMerge finds the group holding primaryID and plans its merge.
// Nothing is written, not even detection history.
func prepareMerge(ctx context.Context, primaryID string) (*merge.MergePlan, error) {
	result, err := engine.Scan(ctx)
	if err != nil {
		return nil, err
	}
	group, ok := result.GroupFor(primaryID)
	if !ok {
		return nil, fmt.Errorf("contact %s is not in any duplicate group (run 'crm detect')", primaryID)
	}
	return engine.Prepare(ctx, group, primaryID)
}

func init() {
	mergeCmd.Flags().Bool("dry-run", false, "Show the merge plan without writing")
	mergeCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	mergeCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(mergeCmd)
}
