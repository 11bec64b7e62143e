package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/crm/internal/merge"
	"github.com/steveyegge/crm/internal/types"
)

// Primary selection modes for unattended syncs
const (
	primaryNewest = "newest"
	primaryOldest = "oldest"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Merge every duplicate group without prompting",
	Long: `Merge all duplicate groups one after another. Meant for scheduled runs.

The surviving contact of each group is picked by creation time (--primary).
Detection is re-run after every merge. A group that fails is not retried
in the same run; it is reported and the sync moves on.

With history.prune_after_sync set, old merge history is pruned afterwards.

Exit codes:
  0 - every group merged (possibly with cleanup warnings)
  1 - one or more merges failed`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		mode, _ := cmd.Flags().GetString("primary")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		if mode != primaryNewest && mode != primaryOldest {
			exitOnError(fmt.Errorf("--primary must be %s or %s, got %q", primaryNewest, primaryOldest, mode))
		}

		if dryRun {
			exitOnError(previewSync(mode, jsonOutput))
			return
		}

		var report *syncReport
		err := withMergeLock("sync", func() error {
			var err error
			report, err = runSync(mode, !jsonOutput)
			return err
		})
		exitOnError(err)

		if cfg.History.PruneAfterSync {
			pruned, err := pruneHistory(context.Background(), store, cfg.History, time.Now())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: history prune failed: %v\n", err)
			}
			report.EventsPruned = pruned
		}

		if jsonOutput {
			printJSON(report)
		} else {
			fmt.Printf("\n%s\n", strings.Repeat("─", 60))
			fmt.Printf("Sync finished: %d merged, %d with warnings, %d failed", report.Merged, report.WithWarnings, report.Failed)
			if report.EventsPruned > 0 {
				fmt.Printf(", %d history event(s) pruned", report.EventsPruned)
			}
			fmt.Println()
		}
		if report.Failed > 0 {
			exitOnError(errReported)
		}
	},
}

// syncResult is one attempted merge
type syncResult struct {
	Strategy  types.MatchStrategy `json:"strategy"`
	GroupKey  string              `json:"group_key"`
	PrimaryID string              `json:"primary_id"`
	Status    string              `json:"status"`
	Error     string              `json:"error,omitempty"`
	Retryable bool                `json:"retryable,omitempty"`
}

// syncReport summarizes a sync run
type syncReport struct {
	Merged       int          `json:"merged"`
	WithWarnings int          `json:"with_warnings"`
	Failed       int          `json:"failed"`
	EventsPruned int          `json:"events_pruned,omitempty"`
	Results      []syncResult `json:"results"`
}

func (r *syncReport) add(res syncResult) {
	switch res.Status {
	case merge.StatusMerged:
		r.Merged++
	case merge.StatusMergedWithWarnings:
		r.WithWarnings++
	default:
		r.Failed++
	}
	r.Results = append(r.Results, res)
}

// runSync merges groups until detection finds none that were not already
// attempted in this run
func runSync(mode string, verbose bool) (*syncReport, error) {
	report := &syncReport{Results: []syncResult{}}
	attempted := make(map[string]bool)

	for {
		result, err := engine.DetectStored(context.Background())
		if err != nil {
			return report, err
		}

		var group types.DuplicateGroup
		found := false
		for _, g := range result.Groups {
			if !attempted[groupID(g)] {
				group, found = g, true
				break
			}
		}
		if !found {
			return report, nil
		}
		attempted[groupID(group)] = true

		primary := choosePrimary(group, mode)
		if verbose {
			fmt.Printf("%s %s %s → %s\n", cyan("→"), group.Strategy, group.Key, primary.ID)
		}

		ctx, cancel := mergeContext()
		outcome, err := engine.Merge(ctx, group, primary.ID)
		cancel()

		res := syncResult{Strategy: group.Strategy, GroupKey: group.Key, PrimaryID: primary.ID, Status: merge.StatusFailed}
		if outcome != nil && err == nil {
			res.Status = outcome.Status
		}
		if err != nil {
			res.Error = err.Error()
			res.Retryable = isRetryable(err)
		}
		report.add(res)

		if verbose {
			printOutcome(outcome, err)
		}
	}
}

// previewSync prints the plan for every group without writing
func previewSync(mode string, jsonOutput bool) error {
	ctx, cancel := mergeContext()
	defer cancel()

	result, err := engine.Scan(ctx)
	if err != nil {
		return err
	}

	plans := make([]*merge.MergePlan, 0, len(result.Groups))
	for _, g := range result.Groups {
		plan, err := engine.Prepare(ctx, g, choosePrimary(g, mode).ID)
		if err != nil {
			return err
		}
		plans = append(plans, plan)
	}

	if jsonOutput {
		printJSON(plans)
		return nil
	}
	if len(plans) == 0 {
		fmt.Printf("%s No duplicates among %d contacts\n", green("✓"), result.Stats.TotalContacts)
		return nil
	}
	for _, plan := range plans {
		printPlan(plan)
		fmt.Println()
	}
	fmt.Printf("%d group(s) would be merged %s\n", len(plans), gray("(dry run, nothing written)"))
	return nil
}

// choosePrimary picks the surviving contact by creation time. Ties go to
// the earlier member in group order.
func choosePrimary(group types.DuplicateGroup, mode string) *types.Contact {
	best := group.Contacts[0]
	for _, c := range group.Contacts[1:] {
		switch mode {
		case primaryOldest:
			if c.CreatedAt.Before(best.CreatedAt) {
				best = c
			}
		default:
			if c.CreatedAt.After(best.CreatedAt) {
				best = c
			}
		}
	}
	return best
}

func init() {
	syncCmd.Flags().Bool("dry-run", false, "Show the merge plans without writing")
	syncCmd.Flags().String("primary", primaryNewest, "Surviving contact per group: newest or oldest")
	syncCmd.Flags().Bool("json", false, "Output a JSON report")
	rootCmd.AddCommand(syncCmd)
}
