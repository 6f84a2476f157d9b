package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"symptomrag/internal/app"
	"symptomrag/internal/vectorstore/sqlite"
)

func newStatusCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the document store and chat model status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := r.logger(false)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			cfg := r.cfg
			vs := cfg.VectorStore

			fmt.Fprintf(r.stdout, "store:      %s\n", vs.Type)
			fmt.Fprintf(r.stdout, "collection: %s\n", vs.Collection)
			fmt.Fprintf(r.stdout, "embedder:   %s\n", cfg.Embedder.Type)

			if vs.Type == "sqlite" && !sqlite.Exists(vs.SQLite.Dir, vs.Collection) {
				fmt.Fprintf(r.stdout, "documents:  unavailable (%v)\n", app.ErrStoreNotBuilt)
				return nil
			}
			res := r.open(cmd.Context(), cfg, logger, app.Options{})
			defer res.Close()

			n, err := res.Service().Count(cmd.Context())
			if err != nil {
				fmt.Fprintf(r.stdout, "documents:  unavailable (%v)\n", err)
			} else {
				fmt.Fprintf(r.stdout, "documents:  %d\n", n)
			}
			if res.ChatErr != nil {
				fmt.Fprintf(r.stdout, "chat:       unavailable (%v)\n", res.ChatErr)
			} else {
				fmt.Fprintf(r.stdout, "chat:       %s\n", res.Chat.ModelName())
			}
			return nil
		},
	}
}
