// Package app builds the long-lived resources shared by the commands: the
// document collection, the chat model and the service on top of them.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"symptomrag/internal/config"
	"symptomrag/internal/corpus"
	"symptomrag/internal/domain"
	"symptomrag/internal/embedding"
	"symptomrag/internal/fetch"
	llmopenai "symptomrag/internal/llm/openai"
	"symptomrag/internal/service"
	"symptomrag/internal/vectorstore"
	"symptomrag/internal/vectorstore/chroma"
	"symptomrag/internal/vectorstore/memory"
	"symptomrag/internal/vectorstore/qdrant"
	"symptomrag/internal/vectorstore/sqlite"
)

// ErrStoreNotBuilt is the degraded-state cause when no local store exists.
var ErrStoreNotBuilt = errors.New("local store not found; run `symptomrag build` or `symptomrag fetch`")

// Options control how Open provisions the store.
type Options struct {
	// Build opens the store for rebuilding: no archive fetch and no
	// in-memory population.
	Build   bool
	Fetcher *fetch.Fetcher
}

// Resources are built once per process and shared by reference. A nil
// Collection means the store is unavailable and StoreErr says why; a nil
// Chat is explained by ChatErr.
type Resources struct {
	Config     *config.AppConfig
	Logger     *zap.Logger
	Builder    *corpus.Builder
	Collection domain.Collection
	StoreErr   error
	Chat       domain.ChatModel
	ChatErr    error

	service *service.RAGService
}

// Open provisions the configured store and chat model. Store and chat
// failures are recorded on Resources rather than returned.
func Open(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger, opts Options) *Resources {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Fetcher == nil {
		opts.Fetcher = fetch.New(logger)
	}
	r := &Resources{
		Config: cfg,
		Logger: logger,
		Builder: corpus.New(
			corpus.WithMaxChunkSize(cfg.Corpus.MaxChunkSize),
			corpus.WithPresentIndicator(cfg.Corpus.PresentIndicator),
			corpus.WithLogger(logger.Named("corpus")),
		),
	}
	r.Collection, r.StoreErr = openCollection(ctx, cfg, logger, opts)
	if r.StoreErr != nil {
		logger.Warn("document store unavailable", zap.String("store", cfg.VectorStore.Type), zap.Error(r.StoreErr))
	}
	r.Chat, r.ChatErr = openChat(cfg, logger)
	if r.ChatErr != nil {
		logger.Debug("chat model unavailable", zap.Error(r.ChatErr))
	}

	if r.Collection != nil && cfg.VectorStore.Type == "memory" && !opts.Build {
		if _, err := r.Service().Ingest(ctx, cfg.Corpus.DataFile); err != nil {
			logger.Warn("populating memory store failed", zap.Error(err))
			_ = r.Collection.Close()
			r.Collection, r.StoreErr, r.service = nil, err, nil
		}
	}
	return r
}

// Service returns the RAG service bound to these resources.
func (r *Resources) Service() *service.RAGService {
	if r.service == nil {
		r.service = service.NewRAGService(r.Builder, r.Collection, r.Chat, service.Options{
			BatchSize: r.Config.Corpus.BatchSize,
			TopK:      r.Config.Retrieval.TopK,
			StoreErr:  r.StoreErr,
			Logger:    r.Logger.Named("service"),
		})
	}
	return r.service
}

// Close releases the collection.
func (r *Resources) Close() error {
	if r.Collection == nil {
		return nil
	}
	return r.Collection.Close()
}

// FetchStore downloads the prebuilt sqlite store. Unless force is set, an
// existing store is kept. Force replaces only the configured collection's
// database; other collections in the directory are untouched.
func FetchStore(ctx context.Context, cfg *config.AppConfig, fetcher *fetch.Fetcher, force bool) (bool, error) {
	sc := cfg.VectorStore.SQLite
	if cfg.VectorStore.Type != "sqlite" || sc == nil {
		return false, fmt.Errorf("fetch is only supported for the sqlite store, configured %q", cfg.VectorStore.Type)
	}
	if sc.ArchiveURL == "" {
		return false, errors.New("no archive URL configured (vector_store.sqlite.archive_url)")
	}
	if sqlite.Exists(sc.Dir, cfg.VectorStore.Collection) && !force {
		return false, nil
	}
	path := sqlite.Path(sc.Dir, cfg.VectorStore.Collection)
	if force {
		for _, p := range []string{path, path + "-wal", path + "-shm"} {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				return false, fmt.Errorf("removing %s: %w", p, err)
			}
		}
	}
	_, statErr := os.Stat(sc.Dir)
	existed := statErr == nil
	if err := fetcher.Archive(ctx, sc.ArchiveURL, sc.Dir); err != nil {
		return false, err
	}
	if !sqlite.Exists(sc.Dir, cfg.VectorStore.Collection) {
		if !existed {
			_ = os.RemoveAll(sc.Dir)
		}
		return false, fmt.Errorf("archive does not contain %s", path)
	}
	return true, nil
}

func openCollection(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger, opts Options) (domain.Collection, error) {
	vs := cfg.VectorStore
	logger = logger.Named("store")
	switch vs.Type {
	case "chroma":
		coll, err := chroma.Open(ctx, chroma.Config{
			URL:        vs.Chroma.URL,
			Collection: vs.Collection,
			APIKey:     cfg.OpenAI.APIKey(),
			EmbedModel: cfg.OpenAI.EmbedModel,
		}, logger)
		if err != nil {
			return nil, err
		}
		return coll, nil
	case "memory":
		return newCollection(cfg, memory.NewStorage(), logger)
	case "qdrant":
		timeout := time.Duration(vs.Qdrant.TimeoutSecs) * time.Second
		return newCollection(cfg, qdrant.NewStorage(qdrant.Config{
			URL:        vs.Qdrant.URL,
			APIKey:     vs.Qdrant.APIKey,
			Collection: vs.Collection,
			Timeout:    timeout,
		}), logger)
	case "sqlite":
		return openSQLite(ctx, cfg, logger, opts)
	default:
		return nil, fmt.Errorf("unknown vector store: %q", vs.Type)
	}
}

func openSQLite(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger, opts Options) (domain.Collection, error) {
	sc := cfg.VectorStore.SQLite
	if !opts.Build && !sqlite.Exists(sc.Dir, cfg.VectorStore.Collection) {
		if sc.ArchiveURL == "" {
			return nil, ErrStoreNotBuilt
		}
		if _, err := FetchStore(ctx, cfg, opts.Fetcher, false); err != nil {
			return nil, fmt.Errorf("fetching prebuilt store: %w", err)
		}
	}
	embedder, err := embedding.New(cfg)
	if err != nil {
		return nil, err
	}
	storage, err := sqlite.NewStorage(sc.Dir, cfg.VectorStore.Collection)
	if err != nil {
		return nil, err
	}
	return vectorstore.NewCollection(cfg.VectorStore.Collection, embedder, storage, logger), nil
}

func newCollection(cfg *config.AppConfig, storage vectorstore.Storage, logger *zap.Logger) (domain.Collection, error) {
	embedder, err := embedding.New(cfg)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}
	return vectorstore.NewCollection(cfg.VectorStore.Collection, embedder, storage, logger), nil
}

func openChat(cfg *config.AppConfig, logger *zap.Logger) (domain.ChatModel, error) {
	key := cfg.OpenAI.APIKey()
	if key == "" {
		return nil, fmt.Errorf("%w: %s is not set", domain.ErrChatUnavailable, cfg.OpenAI.APIKeyEnv)
	}
	client, err := llmopenai.NewClient(llmopenai.Config{
		APIKey:  key,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.ChatModel,
		Timeout: time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
		Logger:  logger.Named("chat"),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrChatUnavailable, err)
	}
	return client, nil
}
