package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symptomrag/internal/config"
)

func TestNew(t *testing.T) {
	t.Run("tfidf", func(t *testing.T) {
		cfg := config.Default()
		cfg.Embedder.Type = "tfidf"
		emb, err := New(cfg)
		require.NoError(t, err)
		assert.Equal(t, "tfidf", emb.Name())
	})

	t.Run("openai with key", func(t *testing.T) {
		t.Setenv("SYMPTOMRAG_EMBED_KEY", "sk-test")
		cfg := config.Default()
		cfg.OpenAI.APIKeyEnv = "SYMPTOMRAG_EMBED_KEY"
		emb, err := New(cfg)
		require.NoError(t, err)
		assert.Equal(t, "openai", emb.Name())
	})

	t.Run("openai without key", func(t *testing.T) {
		cfg := config.Default()
		cfg.OpenAI.APIKeyEnv = "SYMPTOMRAG_MISSING_KEY"
		_, err := New(cfg)
		assert.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := config.Default()
		cfg.Embedder.Type = "word2vec"
		_, err := New(cfg)
		assert.Error(t, err)
	})
}
