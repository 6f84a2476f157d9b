package domain

import "context"

// Chat roles understood by the chat-completion service.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Document is one retrievable passage produced by the corpus builder.
// ID is unique within one build.
type Document struct {
	ID   string
	Text string
}

// SearchResult represents a matching document with a relevance score.
type SearchResult struct {
	Document Document
	Score    float64
}

// Message is a single conversation turn.
type Message struct {
	Role    string
	Content string
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// BatchEmbedder is implemented by embedders that can embed many texts in one call.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// Collection is the similarity-search collaborator: it accepts batches of
// documents and answers text queries with the most similar documents first.
type Collection interface {
	Name() string
	Add(ctx context.Context, docs []Document) error
	Query(ctx context.Context, text string, topK int) ([]SearchResult, error)
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
	Close() error
}

// Preparer is implemented by collections whose embedder must see the whole
// corpus before the first Add.
type Preparer interface {
	Prepare(corpus []string) error
}

// ChatModel is the chat-completion collaborator.
type ChatModel interface {
	ModelName() string
	Complete(ctx context.Context, messages []Message) (string, error)
}
