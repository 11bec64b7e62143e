package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/crm/internal/storage"
	"github.com/steveyegge/crm/internal/types"
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "List, show and import contacts",
}

var contactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contacts, most recently created first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		limit, _ := cmd.Flags().GetInt("limit")

		contacts, err := store.ListContacts(context.Background())
		exitOnError(err)
		total := len(contacts)
		if limit > 0 && len(contacts) > limit {
			contacts = contacts[:limit]
		}

		if jsonOutput {
			if contacts == nil {
				contacts = []*types.Contact{}
			}
			printJSON(contacts)
			return
		}

		if total == 0 {
			fmt.Println("No contacts")
			return
		}
		for _, c := range contacts {
			fmt.Println(formatContact(c))
		}
		if len(contacts) < total {
			fmt.Printf("%s\n", gray(fmt.Sprintf("... %d more (use --limit 0 for all)", total-len(contacts))))
		}
	},
}

// contactDetail is a contact with the cards linked to it
type contactDetail struct {
	*types.Contact
	Cards []*types.ConversationCard `json:"cards"`
}

var contactsShowCmd = &cobra.Command{
	Use:   "show <contact-id>",
	Short: "Show a contact and its conversation cards",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		ctx := context.Background()

		contact, err := store.GetContact(ctx, args[0])
		exitOnError(err)
		cards, err := store.ListCardsAcrossThreads(ctx)
		exitOnError(err)

		detail := contactDetail{Contact: contact, Cards: []*types.ConversationCard{}}
		for _, c := range cards {
			if c.ContactID == contact.ID {
				detail.Cards = append(detail.Cards, c)
			}
		}

		if jsonOutput {
			printJSON(detail)
			return
		}

		fmt.Printf("%s %s\n", bold("Contact"), cyan(contact.ID))
		printField("Name", contact.Name)
		printField("Phone", contact.Phone)
		printField("Email", contact.Email)
		if len(contact.Tags) > 0 {
			printField("Tags", fmt.Sprintf("%v", contact.Tags))
		}
		for k, v := range contact.Fields {
			printField(k, v)
		}
		printField("Created", contact.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		printField("Updated", contact.LastUpdated.Local().Format("2006-01-02 15:04:05"))

		fmt.Printf("\n%s (%d)\n", bold("Cards"), len(detail.Cards))
		for _, c := range detail.Cards {
			fmt.Printf("  %s thread %s: %d messages, %d notes, %d check-ins, %d payment methods\n",
				cyan(c.ID), c.ThreadID, len(c.Messages), len(c.Notes), len(c.CheckIns), len(c.PaymentMethods))
		}
	},
}

func printField(name, value string) {
	if value == "" {
		return
	}
	fmt.Printf("  %-10s %s\n", name+":", value)
}

// importFile is the JSON document accepted by contacts import
type importFile struct {
	Contacts []*types.Contact          `json:"contacts"`
	Cards    []*types.ConversationCard `json:"cards"`
}

var contactsImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Import contacts and conversation cards from a JSON file",
	Long: `Import contacts and cards from a JSON document of the form:

  {
    "contacts": [{"id": "c1", "name": "Ann", "phone": "+1 212 555 0100"}],
    "cards":    [{"thread_id": "t1", "contact_id": "c1", "messages": []}]
  }

Missing ids are generated. Existing ids are rejected by the store.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		exitOnError(err)

		contacts, cards, err := importDocuments(context.Background(), store, data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s imported %d contact(s) and %d card(s) before failing\n", yellow("⚠"), contacts, cards)
		}
		exitOnError(err)

		fmt.Printf("%s Imported %d contact(s) and %d card(s)\n", green("✓"), contacts, cards)
	},
}

// importDocuments parses data and creates its contacts, then its cards.
// It stops at the first store error and returns the counts created so far.
func importDocuments(ctx context.Context, s storage.Storage, data []byte) (contacts, cards int, err error) {
	var doc importFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, 0, fmt.Errorf("failed to parse import file: %w", err)
	}

	for _, c := range doc.Contacts {
		if err := s.CreateContact(ctx, c); err != nil {
			return contacts, cards, err
		}
		contacts++
	}
	for _, c := range doc.Cards {
		if err := s.CreateCard(ctx, c); err != nil {
			return contacts, cards, err
		}
		cards++
	}
	return contacts, cards, nil
}

func init() {
	contactsListCmd.Flags().Bool("json", false, "Output as JSON")
	contactsListCmd.Flags().IntP("limit", "n", 50, "Maximum number of contacts to show (0 for all)")
	contactsShowCmd.Flags().Bool("json", false, "Output as JSON")

	contactsCmd.AddCommand(contactsListCmd)
	contactsCmd.AddCommand(contactsShowCmd)
	contactsCmd.AddCommand(contactsImportCmd)
	rootCmd.AddCommand(contactsCmd)
}
