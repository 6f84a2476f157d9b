package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"symptomrag/internal/domain"
)

var _ domain.Collection = (*Collection)(nil)

// Collection adapts an Embedder and a Storage to the text-level
// domain.Collection contract.
type Collection struct {
	name     string
	embedder domain.Embedder
	storage  Storage
	logger   *zap.Logger
}

// NewCollection combines an embedder with a vector storage.
func NewCollection(name string, embedder domain.Embedder, storage Storage, logger *zap.Logger) *Collection {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collection{name: name, embedder: embedder, storage: storage, logger: logger}
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Prepare hands the whole corpus to embedders that need it (TF-IDF).
func (c *Collection) Prepare(corpus []string) error {
	return c.embedder.Prepare(corpus)
}

// Add embeds docs and stores them.
func (c *Collection) Add(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vectors, err := c.embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding documents: %w", err)
	}
	if err := c.storage.Init(ctx, len(vectors[0])); err != nil {
		return err
	}
	if err := c.storage.Upsert(ctx, docs, vectors); err != nil {
		return fmt.Errorf("storing documents: %w", err)
	}
	c.logger.Debug("documents added", zap.String("collection", c.name), zap.Int("count", len(docs)))
	return nil
}

// Query embeds text and returns the topK most similar documents.
func (c *Collection) Query(ctx context.Context, text string, topK int) ([]domain.SearchResult, error) {
	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	res, err := c.storage.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	return res, nil
}

// Count returns the number of stored documents.
func (c *Collection) Count(ctx context.Context) (int, error) { return c.storage.Count(ctx) }

// Reset removes every stored document.
func (c *Collection) Reset(ctx context.Context) error { return c.storage.Clear(ctx) }

// Close releases the underlying storage.
func (c *Collection) Close() error { return c.storage.Close() }

func (c *Collection) embed(ctx context.Context, texts []string) ([][]float64, error) {
	if be, ok := c.embedder.(domain.BatchEmbedder); ok {
		vecs, err := be.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(texts) {
			return nil, errors.New("embedder returned wrong number of vectors")
		}
		return vecs, nil
	}
	vecs := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := c.embedder.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}
