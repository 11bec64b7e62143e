package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/steveyegge/crm/internal/deduplication"
	"github.com/steveyegge/crm/internal/merge"
	"github.com/steveyegge/crm/internal/types"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// formatContact renders a contact on one line
func formatContact(c *types.Contact) string {
	parts := []string{cyan(c.ID)}
	if c.Name != "" {
		parts = append(parts, c.Name)
	}
	if c.Phone != "" {
		parts = append(parts, c.Phone)
	}
	if c.Email != "" {
		parts = append(parts, c.Email)
	}
	parts = append(parts, gray("created "+c.CreatedAt.Local().Format("2006-01-02 15:04")))
	return strings.Join(parts, "  ")
}

// printGroup prints one duplicate group with numbered members
func printGroup(i int, g types.DuplicateGroup) {
	fmt.Printf("%s %s %s %s\n", bold(fmt.Sprintf("[%d]", i)), g.Strategy, cyan(g.Key), gray(fmt.Sprintf("(%d contacts)", g.Len())))
	for j, c := range g.Contacts {
		fmt.Printf("    %d. %s\n", j+1, formatContact(c))
	}
}

// printDetection prints groups and id-collision anomalies
func printDetection(result *deduplication.DetectionResult) {
	if len(result.IDCollisions) > 0 {
		fmt.Printf("%s %d contact id(s) listed more than once, excluded from merging:\n", yellow("⚠"), len(result.IDCollisions))
		for _, c := range result.IDCollisions {
			fmt.Printf("    %s listed %d times\n", cyan(c.ID), c.Count)
		}
		fmt.Println()
	}

	if len(result.Groups) == 0 {
		fmt.Printf("%s No duplicates among %d contacts\n", green("✓"), result.Stats.TotalContacts)
		return
	}

	for i, g := range result.Groups {
		printGroup(i+1, g)
	}
	fmt.Printf("\n%d duplicate group(s), %d contacts involved, %d scanned %s\n",
		result.Stats.GroupCount, result.Stats.DuplicateContacts, result.Stats.TotalContacts,
		gray(fmt.Sprintf("(%dms)", result.Stats.ProcessingTimeMs)))
}

// contactDiff returns a unified diff of a contact before and after a merge
func contactDiff(before, after *types.Contact) (string, error) {
	a, err := json.MarshalIndent(before, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal contact: %w", err)
	}
	b, err := json.MarshalIndent(after, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal merged contact: %w", err)
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a) + "\n"),
		B:        difflib.SplitLines(string(b) + "\n"),
		FromFile: before.ID + " (current)",
		ToFile:   before.ID + " (merged)",
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}

// colorDiff colors added and removed lines
func colorDiff(diff string) string {
	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = bold(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = green(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = red(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = cyan(line)
		}
	}
	return strings.Join(lines, "\n")
}

// printPlan prints what a merge would write without writing it
func printPlan(plan *merge.MergePlan) {
	fmt.Printf("%s Merge %d contact(s) into %s %s\n", cyan("→"), len(plan.MemberIDs), cyan(plan.SurvivingContactID),
		gray(fmt.Sprintf("(%s %s)", plan.Strategy, plan.GroupKey)))

	if len(plan.ContactsToDelete) > 0 {
		fmt.Printf("  Contacts to delete: %s\n", strings.Join(plan.ContactsToDelete, ", "))
	}

	if diff, err := contactDiff(plan.Primary, plan.Result); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	} else if diff == "" {
		fmt.Printf("  %s\n", gray("surviving contact unchanged"))
	} else {
		fmt.Println()
		fmt.Println(colorDiff(strings.TrimRight(diff, "\n")))
		fmt.Println()
	}

	if plan.Cards.Empty() {
		fmt.Printf("  %s\n", gray("no conversation cards"))
		return
	}
	messages := 0
	for _, c := range plan.Cards.Matched {
		messages += len(c.Messages)
	}
	fmt.Printf("  Cards: %d matched, surviving %s, %d to delete\n",
		len(plan.Cards.Matched), cyan(plan.SurvivingCardID), len(plan.CardsToDelete))
	fmt.Printf("  Messages: %d before, %d after dedup\n", messages, len(plan.CardPatch.Messages))
	fmt.Printf("  Notes: %d  Check-ins: %d  Payment methods: %d\n",
		len(plan.CardPatch.Notes), len(plan.CardPatch.CheckIns), len(plan.CardPatch.PaymentMethods))
}

// printOutcome reports the result of a merge. It returns false when the
// merge failed.
func printOutcome(outcome *merge.MergeOutcome, err error) bool {
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			fmt.Printf("%s Merge interrupted: outcome unknown, re-run detect\n", red("✗"))
		case errors.Is(err, merge.ErrPrimaryVanished):
			fmt.Printf("%s Primary contact no longer exists, nothing was written. Re-run detect.\n", red("✗"))
		default:
			fmt.Printf("%s Merge failed: %v\n", red("✗"), err)
		}
		if isRetryable(err) && outcome != nil {
			fmt.Printf("  Contacts were merged but cards were not. Finish with:\n")
			fmt.Printf("    %s\n", cyan("crm reconcile-cards "+outcome.SurvivingContactID))
		}
		return false
	}

	fmt.Printf("%s Merged %d contact(s) into %s", green("✓"), outcome.ContactsMerged, cyan(outcome.SurvivingContactID))
	if outcome.SurvivingCardID != "" {
		fmt.Printf(", %d card(s) into %s", outcome.CardsMerged, cyan(outcome.SurvivingCardID))
	}
	fmt.Printf(" %s\n", gray(outcome.Duration.Round(time.Millisecond).String()))

	if outcome.Status == merge.StatusMergedWithWarnings {
		fmt.Printf("%s %d leftover document(s) could not be deleted and will show up in the next detect:\n",
			yellow("⚠"), len(outcome.Warnings))
		for _, w := range outcome.Warnings {
			fmt.Printf("    %s %s: %s\n", w.Kind, w.ID, w.Error)
		}
	}
	return true
}

// isRetryable reports whether a failed merge can be finished with reconcile-cards
func isRetryable(err error) bool {
	var stepErr *merge.StepError
	return errors.As(err, &stepErr) && stepErr.Retryable()
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	exitOnError(err)
	fmt.Println(string(out))
}
