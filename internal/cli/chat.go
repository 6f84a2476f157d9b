package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"symptomrag/internal/app"
	"symptomrag/internal/tui"
)

func newChatCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive symptom chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := r.logger(true)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			ctx := cmd.Context()

			res := r.open(ctx, r.cfg, logger, app.Options{})
			defer res.Close()
			svc := res.Service()
			if err := svc.Ready(); err != nil {
				return err
			}
			if res.ChatErr != nil {
				return res.ChatErr
			}
			count, err := svc.Count(ctx)
			if err != nil {
				fmt.Fprintf(r.stderr, "warning: %v\n", err)
			}

			m := tui.New(ctx, svc, tui.Info{
				Documents: count,
				Model:     svc.ChatModelName(),
				TopK:      svc.DefaultTopK(),
			}, logger.Named("tui"))
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithInput(r.stdin), tea.WithOutput(r.stdout)).Run()
			return err
		},
	}
}
