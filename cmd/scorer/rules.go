package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coaching-health-scorer/internal/rules"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect rule tables",
	}
	cmd.AddCommand(newRulesValidateCmd())
	return cmd
}

func newRulesValidateCmd() *cobra.Command {
	var naqPath, microPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check rule tables against their schema and question catalog",
		Long: `Validates NAQ and micronutrient rule tables. Without flags the embedded
tables are checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			naq, err := rules.LoadNAQ(naqPath)
			if err != nil {
				return fmt.Errorf("NAQ rules: %w", err)
			}
			fmt.Fprintf(out, "NAQ rules OK: %d sections, %d questions, digest %s\n",
				len(naq.Sections), naq.CatalogSize(), naq.Digest)

			micro, err := rules.LoadMicronutrients(microPath)
			if err != nil {
				return fmt.Errorf("micronutrient rules: %w", err)
			}
			fmt.Fprintf(out, "Micronutrient rules OK: %d nutrients, %d questions, digest %s\n",
				len(micro.Nutrients), len(micro.Questions), micro.Digest)
			return nil
		},
	}
	cmd.Flags().StringVar(&naqPath, "naq", "", "NAQ rule file")
	cmd.Flags().StringVar(&microPath, "micronutrients", "", "micronutrient rule file")
	return cmd
}
