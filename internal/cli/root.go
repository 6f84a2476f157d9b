// Package cli implements the symptomrag command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"symptomrag/internal/app"
	"symptomrag/internal/config"
	"symptomrag/internal/logging"
)

// runner carries the state shared by all commands.
type runner struct {
	configPath string
	verbose    bool
	cfg        *config.AppConfig
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer

	// open provisions resources; replaced in tests.
	open func(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger, opts app.Options) *app.Resources
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(os.Stdin, os.Stdout, os.Stderr)
}

func NewRootCommandWithIO(in io.Reader, out, errOut io.Writer) *cobra.Command {
	return newRootCommand(in, out, errOut)
}

func newRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	r := &runner{stdin: in, stdout: out, stderr: errOut, open: app.Open}

	cmd := &cobra.Command{
		Use:           "symptomrag",
		Short:         "Symptom checker backed by a disease/symptom knowledge base",
		Long:          "symptomrag indexes a disease/symptom table into a document store and answers symptom questions with retrieval-augmented chat.\nThis is not medical advice. For educational purposes only.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return r.loadConfig()
		},
	}
	cmd.PersistentFlags().StringVar(&r.configPath, "config", "", "path to YAML config (default ./config.yaml or ~/.config/symptomrag/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&r.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newBuildCmd(r),
		newChatCmd(r),
		newAskCmd(r),
		newFetchCmd(r),
		newStatusCmd(r),
	)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd
}

func (r *runner) loadConfig() error {
	var (
		cfg *config.AppConfig
		err error
	)
	if r.configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(r.configPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	r.cfg = cfg
	return nil
}

// logger builds the command logger. Terminal UIs never log to the screen.
func (r *runner) logger(tui bool) (*zap.Logger, error) {
	if tui {
		return logging.NewForTerminalUI(r.cfg.Log, r.verbose)
	}
	if r.cfg.Log.File != "" {
		return logging.New(r.cfg.Log, r.verbose)
	}
	return logging.NewConsole(r.stderr, r.cfg.Log, r.verbose)
}
