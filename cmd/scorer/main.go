// Package main implements the scorer CLI: offline scoring of answer files, rule table validation
// and moving result runs between SQLite and PostgreSQL databases.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/coaching-health-scorer/internal/config"
	"github.com/coaching-health-scorer/internal/domain"
)

type rootOptions struct {
	logLevel string
	logger   *logrus.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "scorer",
		Short:        "Score health assessments without a running server",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.logger = config.NewLogger(domain.LoggingConfig{Level: opts.logLevel, Format: "text", Output: "stderr"})
		},
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newNAQCmd(opts),
		newMicronutrientsCmd(opts),
		newRulesCmd(),
		newExportCmd(opts),
		newImportCmd(opts),
	)
	return root
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}
