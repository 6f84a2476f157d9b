package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"symptomrag/internal/cli"
	"symptomrag/internal/domain"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if hint := hintFor(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		os.Exit(1)
	}
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "The document store is unavailable. Run `symptomrag fetch` or `symptomrag build`, then try again."
	case errors.Is(err, domain.ErrChatUnavailable):
		return "The chat model is unavailable. Check that your API key is set (see openai.api_key_env) or retry later."
	case errors.Is(err, domain.ErrMalformedRow), errors.Is(err, domain.ErrMissingHeader), errors.Is(err, domain.ErrDuplicateID):
		return "The input table is not a valid disease/symptom table."
	}
	return ""
}
