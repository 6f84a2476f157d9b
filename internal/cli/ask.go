package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"symptomrag/internal/app"
)

func newAskCmd(r *runner) *cobra.Command {
	var (
		topK    int
		sources bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one symptom question",
		Long: `Ask retrieves the most similar diseases for the question and asks the
chat model to answer from them. With --sources only the retrieved documents
are printed and no chat model is needed.

Examples:

  symptomrag ask "I have a fever and a sore throat"
  symptomrag ask -k 3 --sources "itchy rash"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := r.logger(false)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			ctx := cmd.Context()
			question := strings.Join(args, " ")

			res := r.open(ctx, r.cfg, logger, app.Options{})
			defer res.Close()
			svc := res.Service()

			if sources {
				results, err := svc.Retrieve(ctx, question, topK)
				if err != nil {
					return err
				}
				for i, sr := range results {
					fmt.Fprintf(r.stdout, "%d. %s (score %.3f)\n   %s\n", i+1, sr.Document.ID, sr.Score, sr.Document.Text)
				}
				return nil
			}
			answer, err := svc.Answer(ctx, question, nil, topK)
			if err != nil {
				return err
			}
			fmt.Fprintln(r.stdout, answer)
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of documents to retrieve (1-10; default retrieval.top_k)")
	cmd.Flags().BoolVar(&sources, "sources", false, "print the retrieved documents instead of asking the chat model")
	return cmd
}
