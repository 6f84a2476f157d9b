// Package chroma implements domain.Collection on a Chroma server, which
// embeds documents itself through an OpenAI embedding function.
package chroma

import (
	"context"
	"errors"
	"fmt"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	chromaopenai "github.com/amikos-tech/chroma-go/pkg/embeddings/openai"
	"go.uber.org/zap"

	"symptomrag/internal/domain"
)

var _ domain.Collection = (*Collection)(nil)

type Config struct {
	URL        string
	Collection string
	APIKey     string
	EmbedModel string
}

// Collection talks to one Chroma collection.
type Collection struct {
	client chroma.Client
	ef     embeddings.EmbeddingFunction
	name   string
	coll   chroma.Collection
	logger *zap.Logger
}

// Open connects to the server and gets or creates the collection.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Collection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIKey == "" {
		return nil, errors.New("chroma: OpenAI API key is required for the embedding function")
	}
	opts := []chromaopenai.Option{}
	if cfg.EmbedModel != "" {
		opts = append(opts, chromaopenai.WithModel(chromaopenai.EmbeddingModel(cfg.EmbedModel)))
	}
	ef, err := chromaopenai.NewOpenAIEmbeddingFunction(cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("chroma: creating embedding function: %w", err)
	}
	client, err := chroma.NewHTTPClient(chroma.WithBaseURL(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("chroma: creating client: %w", err)
	}
	c := &Collection{client: client, ef: ef, name: cfg.Collection, logger: logger}
	if err := c.open(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return c, nil
}

func (c *Collection) open(ctx context.Context) error {
	coll, err := c.client.GetOrCreateCollection(ctx, c.name, chroma.WithEmbeddingFunctionCreate(c.ef))
	if err != nil {
		return fmt.Errorf("chroma: opening collection %q: %w", c.name, err)
	}
	c.coll = coll
	return nil
}

func (c *Collection) Name() string { return c.name }

func (c *Collection) Add(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	ids := make([]chroma.DocumentID, len(docs))
	texts := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = chroma.DocumentID(d.ID)
		texts[i] = d.Text
	}
	if err := c.coll.Add(ctx, chroma.WithIDs(ids...), chroma.WithTexts(texts...)); err != nil {
		return fmt.Errorf("chroma: adding documents: %w", err)
	}
	c.logger.Debug("documents added", zap.String("collection", c.name), zap.Int("count", len(docs)))
	return nil
}

func (c *Collection) Query(ctx context.Context, text string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	res, err := c.coll.Query(ctx, chroma.WithQueryTexts(text), chroma.WithNResults(topK))
	if err != nil {
		return nil, fmt.Errorf("chroma: querying: %w", err)
	}
	idGroups := res.GetIDGroups()
	docGroups := res.GetDocumentsGroups()
	distGroups := res.GetDistancesGroups()
	if len(idGroups) == 0 || len(docGroups) == 0 {
		return nil, nil
	}
	ids := make([]string, len(idGroups[0]))
	for i, id := range idGroups[0] {
		ids[i] = string(id)
	}
	texts := make([]string, len(docGroups[0]))
	for i, d := range docGroups[0] {
		texts[i] = d.ContentString()
	}
	var distances []float64
	if len(distGroups) > 0 {
		for _, d := range distGroups[0] {
			distances = append(distances, float64(d))
		}
	}
	return toResults(ids, texts, distances), nil
}

// toResults zips query columns into results. Chroma returns distances
// (smaller is closer), mapped to a similarity in (0, 1].
func toResults(ids, texts []string, distances []float64) []domain.SearchResult {
	n := min(len(ids), len(texts))
	out := make([]domain.SearchResult, n)
	for i := 0; i < n; i++ {
		out[i] = domain.SearchResult{Document: domain.Document{ID: ids[i], Text: texts[i]}}
		if i < len(distances) {
			out[i].Score = 1 / (1 + distances[i])
		}
	}
	return out
}

func (c *Collection) Count(ctx context.Context) (int, error) {
	n, err := c.coll.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("chroma: counting: %w", err)
	}
	return n, nil
}

// Reset deletes the collection on the server and creates it empty.
func (c *Collection) Reset(ctx context.Context) error {
	if err := c.client.DeleteCollection(ctx, c.name); err != nil {
		c.logger.Debug("delete collection failed", zap.String("collection", c.name), zap.Error(err))
	}
	return c.open(ctx)
}

func (c *Collection) Close() error { return c.client.Close() }
