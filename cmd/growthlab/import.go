package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/galindolala1990/growthlab-ther-sub000/internal/csvimport"
	"github.com/galindolala1990/growthlab-ther-sub000/internal/store"
)

func newImportCmd(g *globalOptions) *cobra.Command {
	var csvFile string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import features from a CSV file into the configured store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.load(cmd)
			if err != nil {
				return err
			}
			features, err := csvimport.ParseFile(csvFile)
			if err != nil {
				return fmt.Errorf("error parsing CSV file: %w", err)
			}

			s, err := store.Open(cmd.Context(), cfg.Store, store.WithLogger(logger))
			if err != nil {
				return err
			}
			defer func() {
				if err := s.Close(); err != nil {
					logger.Warn("closing store", slog.String("error", err.Error()))
				}
			}()

			res, err := csvimport.Import(cmd.Context(), s, features, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d features from %s (%d created, %d updated)\n",
				res.Created+res.Updated, csvFile, res.Created, res.Updated)
			return nil
		},
	}
	cmd.Flags().StringVar(&csvFile, "csv", "", "CSV file with features (required)")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}
