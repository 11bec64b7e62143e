package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/crm/internal/merge"
	"github.com/steveyegge/crm/internal/storage"
	"github.com/steveyegge/crm/internal/types"
)

// orphanCheckConcurrency bounds concurrent contact lookups in doctor
const orphanCheckConcurrency = 8

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the contact store for merge leftovers",
	Long: `Run consistency checks over contacts and conversation cards.

This command checks for:
- Contact ids listed more than once
- Duplicate groups still waiting to be merged
- Cards pointing at a contact that no longer exists
- Contacts with more than one card (an unfinished card merge)
- Cards not linked to any contact

Exit codes:
  0 - All checks passed
  1 - Warnings or failures that merges can clean up
  2 - Critical failures (store unreadable, id collisions)`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		ctx := context.Background()

		var warnings, failures, criticalFailures []string

		fmt.Printf("Running crm health checks...\n\n")

		// Check 1: store
		fmt.Printf("%s Contact store\n", cyan("→"))
		backend := cfg.Storage.Backend
		if backend == "" {
			backend = storage.BackendSQLite
		}
		if backend == storage.BackendSQLite {
			fmt.Printf("  %s %s database: %s\n", green("✓"), backend, dbPath)
		} else {
			fmt.Printf("  %s %s backend\n", green("✓"), backend)
		}

		contacts, err := store.ListContacts(ctx)
		if err != nil {
			criticalFailures = append(criticalFailures, fmt.Sprintf("Cannot list contacts: %v", err))
			fmt.Printf("  %s Cannot list contacts\n", red("✗"))
		}
		cards, err := store.ListCardsAcrossThreads(ctx)
		if err != nil {
			criticalFailures = append(criticalFailures, fmt.Sprintf("Cannot list cards: %v", err))
			fmt.Printf("  %s Cannot list cards\n", red("✗"))
		}
		if len(criticalFailures) > 0 {
			printDoctorSummary(warnings, failures, criticalFailures)
		}
		fmt.Printf("  %s %d contacts, %d cards\n", green("✓"), len(contacts), len(cards))

		// Check 2: duplicates
		fmt.Printf("%s Duplicate contacts\n", cyan("→"))
		result := engine.Run(contacts)
		for _, c := range result.IDCollisions {
			criticalFailures = append(criticalFailures, fmt.Sprintf("Contact id %s is listed %d times", c.ID, c.Count))
		}
		if len(result.IDCollisions) > 0 {
			fmt.Printf("  %s %d contact id(s) listed more than once\n", red("✗"), len(result.IDCollisions))
		}
		if len(result.Groups) == 0 {
			fmt.Printf("  %s No duplicate groups\n", green("✓"))
		} else {
			fmt.Printf("  %s %d duplicate group(s) pending\n", yellow("⚠"), len(result.Groups))
			warnings = append(warnings, fmt.Sprintf("%d duplicate group(s) pending, run 'crm sync' or 'crm review'", len(result.Groups)))
			if verbose {
				for _, g := range result.Groups {
					fmt.Printf("    %s %s (%d contacts)\n", g.Strategy, g.Key, g.Len())
				}
			}
		}

		// Check 3: orphaned cards
		fmt.Printf("%s Card links\n", cyan("→"))
		orphans, err := findOrphanCards(ctx, store, cards)
		if err != nil {
			failures = append(failures, fmt.Sprintf("Orphan check failed: %v", err))
			fmt.Printf("  %s Orphan check failed\n", red("✗"))
		} else if len(orphans) == 0 {
			fmt.Printf("  %s Every linked card points at an existing contact\n", green("✓"))
		} else {
			fmt.Printf("  %s %d card(s) point at missing contacts\n", red("✗"), len(orphans))
			for _, c := range orphans {
				failures = append(failures, fmt.Sprintf("Card %s points at missing contact %s", c.ID, c.ContactID))
			}
		}

		unlinked := 0
		for _, c := range cards {
			if c.ContactID == "" {
				unlinked++
			}
		}
		if unlinked > 0 {
			fmt.Printf("  %s %d card(s) not linked to a contact\n", yellow("⚠"), unlinked)
			warnings = append(warnings, fmt.Sprintf("%d card(s) not linked to a contact", unlinked))
		}

		// Check 4: split conversations
		fmt.Printf("%s Conversations\n", cyan("→"))
		split := splitConversations(cards)
		if len(split) == 0 {
			fmt.Printf("  %s One card per contact\n", green("✓"))
		} else {
			fmt.Printf("  %s %d contact(s) have more than one card\n", yellow("⚠"), len(split))
			for _, contactID := range sortedKeys(split) {
				warnings = append(warnings, fmt.Sprintf("Contact %s has %d cards, run 'crm reconcile-cards %s'",
					contactID, len(split[contactID]), contactID))
				if verbose {
					fmt.Printf("    %s: %s\n", contactID, strings.Join(split[contactID], ", "))
				}
			}
		}

		printDoctorSummary(warnings, failures, criticalFailures)
	},
}

// findOrphanCards returns cards whose ContactID names a contact that does
// not exist. Each distinct contact is looked up once, concurrently.
func findOrphanCards(ctx context.Context, s merge.Store, cards []*types.ConversationCard) ([]*types.ConversationCard, error) {
	byContact := make(map[string][]*types.ConversationCard)
	for _, c := range cards {
		if c.ContactID != "" {
			byContact[c.ContactID] = append(byContact[c.ContactID], c)
		}
	}

	var mu sync.Mutex
	missing := make(map[string]bool)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(orphanCheckConcurrency)
	for contactID := range byContact {
		contactID := contactID
		g.Go(func() error {
			_, err := s.GetContact(gCtx, contactID)
			if errors.Is(err, types.ErrNotFound) {
				mu.Lock()
				missing[contactID] = true
				mu.Unlock()
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var orphans []*types.ConversationCard
	for _, c := range cards {
		if missing[c.ContactID] {
			orphans = append(orphans, c)
		}
	}
	return orphans, nil
}

// splitConversations maps each contact with more than one card to its card ids
func splitConversations(cards []*types.ConversationCard) map[string][]string {
	byContact := make(map[string][]string)
	for _, c := range cards {
		if c.ContactID != "" {
			byContact[c.ContactID] = append(byContact[c.ContactID], c.ID)
		}
	}
	for id, ids := range byContact {
		if len(ids) < 2 {
			delete(byContact, id)
		}
	}
	return byContact
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// printDoctorSummary prints the findings and exits with the doctor exit code
func printDoctorSummary(warnings, failures, criticalFailures []string) {
	fmt.Printf("\n%s\n", strings.Repeat("─", 60))

	if len(criticalFailures)+len(failures)+len(warnings) == 0 {
		fmt.Printf("%s All checks passed!\n", green("✓"))
		return
	}

	if len(criticalFailures) > 0 {
		fmt.Printf("\n%s Critical failures (%d):\n", red("✗"), len(criticalFailures))
		for _, failure := range criticalFailures {
			fmt.Printf("  • %s\n", failure)
		}
	}
	if len(failures) > 0 {
		fmt.Printf("\n%s Failures (%d):\n", red("✗"), len(failures))
		for _, failure := range failures {
			fmt.Printf("  • %s\n", failure)
		}
	}
	if len(warnings) > 0 {
		fmt.Printf("\n%s Warnings (%d):\n", yellow("⚠"), len(warnings))
		for _, warning := range warnings {
			fmt.Printf("  • %s\n", warning)
		}
	}

	code := 1
	if len(criticalFailures) > 0 {
		code = 2
	}
	_ = store.Close()
	os.Exit(code)
}

func init() {
	doctorCmd.Flags().BoolP("verbose", "v", false, "Show the groups and cards behind each finding")
	rootCmd.AddCommand(doctorCmd)
}
