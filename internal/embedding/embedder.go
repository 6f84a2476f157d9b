// Package embedding selects the text embedder configured for the store.
package embedding

import (
	"fmt"
	"time"

	"symptomrag/internal/config"
	"symptomrag/internal/domain"
	"symptomrag/internal/embedding/openai"
	"symptomrag/internal/embedding/tfidf"
)

// New builds the embedder named by cfg.Embedder.Type.
func New(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "tfidf":
		return tfidf.NewEmbedder(), nil
	case "openai", "":
		client, err := openai.NewClient(openai.Config{
			BaseURL:           cfg.OpenAI.BaseURL,
			APIKey:            cfg.OpenAI.APIKey(),
			Model:             cfg.OpenAI.EmbedModel,
			Timeout:           time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			RequestsPerMinute: cfg.OpenAI.RequestsPerMinute,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}
