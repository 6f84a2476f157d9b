package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"symptomrag/internal/app"
	"symptomrag/internal/service"
	"symptomrag/internal/watch"
)

func newBuildCmd(r *runner) *cobra.Command {
	var (
		dataFile string
		watchIt  bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Index the disease/symptom table into the document store",
		Long: `Build turns every disease of the table into one or more documents and
replaces the contents of the configured collection with them.

Examples:

  symptomrag build
  symptomrag build --data data/symptoms.xlsx
  symptomrag build --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := r.logger(false)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			if dataFile == "" {
				dataFile = r.cfg.Corpus.DataFile
			}
			ctx := cmd.Context()

			res := r.open(ctx, r.cfg, logger, app.Options{Build: true})
			defer res.Close()
			svc := res.Service()
			if err := svc.Ready(); err != nil {
				return err
			}

			build := func(ctx context.Context) error {
				report, err := svc.Ingest(ctx, dataFile)
				if err != nil {
					return err
				}
				printReport(r, res.Config.VectorStore.Collection, report)
				return nil
			}
			if err := build(ctx); err != nil {
				if !watchIt {
					return err
				}
				fmt.Fprintf(r.stderr, "build failed: %v\n", err)
			}
			if !watchIt {
				return nil
			}

			w, err := watch.New(0, logger.Named("watch"))
			if err != nil {
				return err
			}
			defer w.Close()
			fmt.Fprintf(r.stdout, "Watching %s for changes (ctrl+c to stop)\n", dataFile)
			return w.Run(ctx, dataFile, build)
		},
	}
	cmd.Flags().StringVar(&dataFile, "data", "", "table to index (CSV or XLSX; default corpus.data_file)")
	cmd.Flags().BoolVar(&watchIt, "watch", false, "rebuild whenever the table changes")
	return cmd
}

func printReport(r *runner, collection string, report service.IngestReport) {
	fmt.Fprintf(r.stdout, "Indexed %d documents in %d batches; collection %q now holds %d documents.\n",
		report.Documents, report.Batches, collection, report.Count)
}
