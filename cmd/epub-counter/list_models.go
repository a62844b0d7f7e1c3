package main

import (
	"github.com/spf13/cobra"

	"github.com/epub-counter/api/internal/report"
)

func newListModelsCmd() *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "list-models",
		Short: "List available Hugging Face tokenizer models",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			report.WriteModels(cmd.OutOrStdout(), search)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Filter models by name, description or architecture")
	return cmd
}
