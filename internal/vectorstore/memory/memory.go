package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"symptomrag/internal/domain"
	"symptomrag/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)

// Storage is an in-memory vector store using brute-force cosine similarity.
// Upserting an existing id replaces its text and vector.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	index     map[string]int
	docs      []domain.Document
	vectors   [][]float64
}

func NewStorage() *Storage { return &Storage{index: make(map[string]int)} }

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension && len(s.docs) > 0 {
		return fmt.Errorf("dimension mismatch: store has %d, got %d", s.dimension, dimension)
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(_ context.Context, docs []domain.Document, vectors [][]float64) error {
	if len(docs) != len(vectors) {
		return errors.New("documents and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	for i, d := range docs {
		if j, ok := s.index[d.ID]; ok {
			s.docs[j] = d
			s.vectors[j] = vectors[i]
			continue
		}
		s.index[d.ID] = len(s.docs)
		s.docs = append(s.docs, d)
		s.vectors = append(s.vectors, vectors[i])
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	results := make([]domain.SearchResult, len(s.vectors))
	for i := range s.vectors {
		results[i] = domain.SearchResult{Document: s.docs[i], Score: vectorstore.Cosine(s.vectors[i], vector)}
	}
	return vectorstore.TopK(results, topK), nil
}

func (s *Storage) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func (s *Storage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = 0
	s.index = make(map[string]int)
	s.docs = nil
	s.vectors = nil
	return nil
}

func (s *Storage) Close() error { return nil }
