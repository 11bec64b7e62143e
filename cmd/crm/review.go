package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/steveyegge/crm/internal/merge"
	"github.com/steveyegge/crm/internal/types"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Step through duplicate groups and confirm each merge",
	Long: `Interactively review duplicate groups one at a time.

For each group pick the contact that survives by its number, preview a merge
with "p <n>", skip the group with "s" or quit with "q". Detection is re-run
after every merge, so the next group always reflects the current store.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		err := withMergeLock("review", func() error {
			r := &reviewSession{skipped: make(map[string]bool)}
			return r.run(context.Background())
		})
		exitOnError(err)
	},
}

// reviewSession holds the state of one interactive review
type reviewSession struct {
	rl      *readline.Instance
	skipped map[string]bool
	merged  int
	failed  int
}

func groupID(g types.DuplicateGroup) string {
	return string(g.Strategy) + ":" + g.Key
}

func (r *reviewSession) run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("review> "),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer func() { _ = rl.Close() }()
	r.rl = rl

	fmt.Printf("%s\n\n", gray("Enter a number to merge into that contact, p <n> to preview, s to skip, q to quit."))

	for {
		group, remaining, err := r.nextGroup(ctx)
		if err != nil {
			return err
		}
		if remaining == 0 {
			break
		}

		fmt.Printf("%s\n", gray(fmt.Sprintf("%d group(s) left", remaining)))
		printGroup(1, group)

		done, err := r.prompt(ctx, group)
		if err != nil {
			return err
		}
		if done {
			break
		}
		fmt.Println()
	}

	fmt.Printf("\n%s Review finished: %d merged, %d skipped, %d failed\n",
		green("✓"), r.merged, len(r.skipped)-r.failed, r.failed)
	return nil
}

// nextGroup re-runs detection and returns the first group not yet skipped
func (r *reviewSession) nextGroup(ctx context.Context) (types.DuplicateGroup, int, error) {
	result, err := engine.DetectStored(ctx)
	if err != nil {
		return types.DuplicateGroup{}, 0, err
	}
	var pending []types.DuplicateGroup
	for _, g := range result.Groups {
		if !r.skipped[groupID(g)] {
			pending = append(pending, g)
		}
	}
	if len(pending) == 0 {
		return types.DuplicateGroup{}, 0, nil
	}
	return pending[0], len(pending), nil
}

// prompt reads commands for one group until it is merged, skipped or the
// user quits. done reports a quit.
func (r *reviewSession) prompt(ctx context.Context, group types.DuplicateGroup) (done bool, err error) {
	for {
		line, err := r.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return true, nil
			}
			return true, err
		}

		fields := strings.Fields(strings.ToLower(line))
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "q", "quit", "exit":
			return true, nil
		case "s", "skip":
			r.skipped[groupID(group)] = true
			return false, nil
		case "h", "help", "?":
			fmt.Println("  <n>      merge the group into member n")
			fmt.Println("  p <n>    preview the merge into member n")
			fmt.Println("  s        skip this group")
			fmt.Println("  q        quit")
		case "p", "preview":
			if len(fields) < 2 {
				fmt.Println("usage: p <n>")
				continue
			}
			primary, err := pickMember(group, fields[1])
			if err != nil {
				fmt.Printf("%s %v\n", red("✗"), err)
				continue
			}
			plan, err := engine.Prepare(ctx, group, primary.ID)
			if err != nil {
				fmt.Printf("%s %v\n", red("✗"), err)
				continue
			}
			printPlan(plan)
		default:
			primary, err := pickMember(group, fields[0])
			if err != nil {
				fmt.Printf("%s %v (h for help)\n", red("✗"), err)
				continue
			}
			r.merge(group, primary.ID)
			return false, nil
		}
	}
}

func (r *reviewSession) merge(group types.DuplicateGroup, primaryID string) {
	ctx, cancel := mergeContext()
	defer cancel()

	outcome, err := engine.Merge(ctx, group, primaryID)
	if printOutcome(outcome, err) {
		r.merged++
		return
	}
	// a group that keeps failing would otherwise come straight back
	r.failed++
	r.skipped[groupID(group)] = true
	var planErr *merge.PlanningError
	if errors.As(err, &planErr) {
		fmt.Printf("  %s\n", gray("nothing was written"))
	}
}

// pickMember resolves a 1-based member number
func pickMember(group types.DuplicateGroup, arg string) (*types.Contact, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > group.Len() {
		return nil, fmt.Errorf("pick a member between 1 and %d", group.Len())
	}
	return group.Contacts[n-1], nil
}

// confirm asks a yes/no question, defaulting to no
func confirm(question string) (bool, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          question + " [y/N] ",
		InterruptPrompt: "^C",
		EOFPrompt:       "no",
	})
	if err != nil {
		return false, fmt.Errorf("failed to create readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	line, err := rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}
