// Package service wires the corpus builder, the document collection and
// the chat model into indexing and question answering.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"symptomrag/internal/config"
	"symptomrag/internal/corpus"
	"symptomrag/internal/domain"
)

// DefaultBatchSize is the number of documents sent to the collection per Add.
const DefaultBatchSize = 100

// ErrEmptyQuestion is returned for blank questions.
var ErrEmptyQuestion = errors.New("empty question")

// IngestReport summarizes one indexing run.
type IngestReport struct {
	Documents int
	Batches   int
	// Count is the collection size after indexing.
	Count int
}

// Options tune a RAGService. Zero values select defaults.
type Options struct {
	BatchSize int
	TopK      int
	// StoreErr explains a nil collection.
	StoreErr error
	Logger   *zap.Logger
}

// RAGService answers questions from the disease/symptom collection. A nil
// collection or chat model puts it in a degraded state where the affected
// operations fail with domain.ErrStoreUnavailable or domain.ErrChatUnavailable.
type RAGService struct {
	builder    *corpus.Builder
	collection domain.Collection
	chat       domain.ChatModel
	batchSize  int
	topK       int
	storeErr   error
	logger     *zap.Logger
}

func NewRAGService(builder *corpus.Builder, collection domain.Collection, chat domain.ChatModel, opts Options) *RAGService {
	if builder == nil {
		builder = corpus.New()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.TopK == 0 {
		opts.TopK = config.DefaultTopK
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &RAGService{
		builder:    builder,
		collection: collection,
		chat:       chat,
		batchSize:  opts.BatchSize,
		topK:       config.ClampTopK(opts.TopK),
		storeErr:   opts.StoreErr,
		logger:     opts.Logger,
	}
}

// DefaultTopK is the retrieval depth used when callers pass zero.
func (s *RAGService) DefaultTopK() int { return s.topK }

// ChatModelName returns the chat model id, or "" when none is configured.
func (s *RAGService) ChatModelName() string {
	if s.chat == nil {
		return ""
	}
	return s.chat.ModelName()
}

// Ready reports why queries would be refused, or nil.
func (s *RAGService) Ready() error {
	if s.collection == nil {
		if s.storeErr != nil {
			return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, s.storeErr)
		}
		return domain.ErrStoreUnavailable
	}
	return nil
}

// Ingest rebuilds the collection from the table at path. Structural errors
// in the table and embedder preparation failures abort before anything is
// written.
func (s *RAGService) Ingest(ctx context.Context, path string) (IngestReport, error) {
	if err := s.Ready(); err != nil {
		return IngestReport{}, err
	}
	docs, err := s.builder.BuildFile(path)
	if err != nil {
		return IngestReport{}, fmt.Errorf("building corpus from %s: %w", path, err)
	}
	texts, _ := corpus.Columns(docs)
	if p, ok := s.collection.(domain.Preparer); ok && len(texts) > 0 {
		if err := p.Prepare(texts); err != nil {
			return IngestReport{}, fmt.Errorf("preparing embedder: %w", err)
		}
	}
	if err := s.collection.Reset(ctx); err != nil {
		return IngestReport{}, fmt.Errorf("resetting collection: %w", err)
	}

	report := IngestReport{Documents: len(docs)}
	for start := 0; start < len(docs); start += s.batchSize {
		end := min(start+s.batchSize, len(docs))
		if err := s.collection.Add(ctx, docs[start:end]); err != nil {
			return report, fmt.Errorf("adding batch %d: %w", report.Batches+1, err)
		}
		report.Batches++
		s.logger.Debug("batch indexed", zap.Int("batch", report.Batches), zap.Int("documents", end-start))
	}

	report.Count, err = s.collection.Count(ctx)
	if err != nil {
		return report, fmt.Errorf("counting collection: %w", err)
	}
	s.logger.Info("collection built",
		zap.String("collection", s.collection.Name()),
		zap.Int("documents", report.Documents),
		zap.Int("batches", report.Batches),
		zap.Int("count", report.Count))
	return report, nil
}

// Retrieve returns the topK documents most similar to query. topK is
// clamped to the supported range; zero selects the default.
func (s *RAGService) Retrieve(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuestion
	}
	if topK == 0 {
		topK = s.topK
	}
	res, err := s.collection.Query(ctx, query, config.ClampTopK(topK))
	if err != nil {
		return nil, fmt.Errorf("retrieving documents: %w", err)
	}
	return res, nil
}

// Reply is an answer together with the documents it was grounded on.
type Reply struct {
	Text    string
	Sources []domain.SearchResult
}

// Answer retrieves context for query and asks the chat model, passing the
// prior conversation in history. It keeps no state between calls.
func (s *RAGService) Answer(ctx context.Context, query string, history []domain.Message, topK int) (string, error) {
	reply, err := s.Ask(ctx, query, history, topK)
	if err != nil {
		return "", err
	}
	return reply.Text, nil
}

// Ask is Answer that also returns the retrieved documents.
func (s *RAGService) Ask(ctx context.Context, query string, history []domain.Message, topK int) (Reply, error) {
	if s.chat == nil {
		return Reply{}, domain.ErrChatUnavailable
	}
	results, err := s.Retrieve(ctx, query, topK)
	if err != nil {
		return Reply{}, err
	}
	msgs := BuildMessages(history, BuildContext(results), strings.TrimSpace(query))
	s.logger.Debug("asking chat model",
		zap.String("model", s.chat.ModelName()),
		zap.Int("documents", len(results)),
		zap.Int("history", len(history)))
	text, err := s.chat.Complete(ctx, msgs)
	if err != nil {
		return Reply{}, fmt.Errorf("chat completion: %w", err)
	}
	return Reply{Text: strings.TrimSpace(text), Sources: results}, nil
}

// Count returns the number of documents in the collection.
func (s *RAGService) Count(ctx context.Context) (int, error) {
	if err := s.Ready(); err != nil {
		return 0, err
	}
	return s.collection.Count(ctx)
}
