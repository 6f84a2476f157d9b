// Package vectorstore stores document embeddings and answers similarity queries.
package vectorstore

import (
	"context"

	"symptomrag/internal/domain"
)

// Storage persists vectors and supports similarity search.
type Storage interface {
	// Init fixes the vector dimension. It fails if the storage already
	// holds vectors of another dimension.
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, docs []domain.Document, vectors [][]float64) error
	// Search returns up to topK documents, most similar first.
	Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error)
	Count(ctx context.Context) (int, error)
	// Clear removes all documents and forgets the dimension.
	Clear(ctx context.Context) error
	Close() error
}
