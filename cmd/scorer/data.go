package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/coaching-health-scorer/internal/store"
)

// openStore opens a PostgreSQL store for postgres:// URLs and a SQLite file otherwise.
func openStore(db string, logger *logrus.Logger) (store.Store, error) {
	if strings.HasPrefix(db, "postgres://") || strings.HasPrefix(db, "postgresql://") {
		return store.NewPostgresStoreFromURL(db, logger)
	}
	return store.NewSQLiteStore(db, logger)
}

func newExportCmd(root *rootOptions) *cobra.Command {
	var dbPath, outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export submissions and result runs to JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(dbPath, root.logger)
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("creating export file: %w", err)
				}
				defer f.Close()
				out = f
			}
			return st.ExportJSON(context.Background(), out)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path or postgres:// URL")
	cmd.Flags().StringVar(&outPath, "out", "", "output file (defaults to stdout)")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func newImportCmd(root *rootOptions) *cobra.Command {
	var dbPath, inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import an export file, skipping records already present",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(inPath)
			if err != nil {
				return fmt.Errorf("opening import file: %w", err)
			}
			defer f.Close()

			st, err := openStore(dbPath, root.logger)
			if err != nil {
				return err
			}
			defer st.Close()

			imported, skipped, err := st.ImportJSON(context.Background(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records, skipped %d\n", imported, skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path or postgres:// URL")
	cmd.Flags().StringVar(&inPath, "in", "", "export file to read")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
