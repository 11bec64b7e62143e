package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after layering defaults, the config file, .env
and CRM_* environment variables. Passwords are masked.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipStoreAnnotation: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(cfg.String())
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
