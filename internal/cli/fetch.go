package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"symptomrag/internal/app"
	"symptomrag/internal/fetch"
)

func newFetchCmd(r *runner) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the prebuilt document store",
		Long: `Download a prebuilt sqlite store from vector_store.sqlite.archive_url.

The archive is a zip of a store directory made by "symptomrag build", e.g.:
  (cd symptom_db && zip ../symptom_db.zip disease_symptoms.db)

--force replaces only the configured collection's database.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := r.logger(false)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			fetched, err := app.FetchStore(cmd.Context(), r.cfg, fetch.New(logger.Named("fetch")), force)
			if err != nil {
				return err
			}
			dir := r.cfg.VectorStore.SQLite.Dir
			if !fetched {
				fmt.Fprintf(r.stdout, "Store already present in %s (use --force to download again).\n", dir)
				return nil
			}
			fmt.Fprintf(r.stdout, "Store downloaded to %s.\n", dir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing store")
	return cmd
}
