package main

import (
	"context"

	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "List duplicate contact groups",
	Long: `Scan every contact and print the groups that would be merged.

Detection never writes contacts or cards. A detection_completed event is
recorded in the merge history. Contacts whose id is listed more than once
are reported separately and never merged.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		result, err := engine.DetectStored(context.Background())
		exitOnError(err)

		if jsonOutput {
			printJSON(result)
			return
		}
		printDetection(result)
	},
}

func init() {
	detectCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(detectCmd)
}
