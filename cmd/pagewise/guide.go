package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/pagewise/internal/prompt"
)

var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Print the user guide",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), prompt.UserGuide)
		return err
	},
}
