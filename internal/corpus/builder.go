// Package corpus turns an entity/feature table into retrievable text passages.
package corpus

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"symptomrag/internal/domain"
)

// DefaultMaxChunkSize is the default maximum number of characters per document.
const DefaultMaxChunkSize = 6000

// DefaultPresentIndicator is the cell value that marks a feature as present.
const DefaultPresentIndicator = "1"

// Builder synthesizes one sentence per table row and groups them into
// per-entity documents, splitting documents longer than the chunk size.
type Builder struct {
	maxChunkSize int
	present      string
	logger       *zap.Logger
}

// Option configures the builder.
type Option func(*Builder)

// WithMaxChunkSize sets the maximum document length in characters.
func WithMaxChunkSize(size int) Option {
	return func(b *Builder) {
		if size > 0 {
			b.maxChunkSize = size
		}
	}
}

// WithPresentIndicator sets the indicator value meaning "present".
func WithPresentIndicator(v string) Option {
	return func(b *Builder) {
		if v != "" {
			b.present = v
		}
	}
}

// WithLogger sets the logger used for build progress.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a builder with the given options.
func New(opts ...Option) *Builder {
	b := &Builder{
		maxChunkSize: DefaultMaxChunkSize,
		present:      DefaultPresentIndicator,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// MaxChunkSize returns the configured chunk size.
func (b *Builder) MaxChunkSize() int { return b.maxChunkSize }

// BuildFile loads the table at path and builds its documents.
func (b *Builder) BuildFile(path string) ([]domain.Document, error) {
	t, err := Load(path)
	if err != nil {
		return nil, err
	}
	return b.Build(t)
}

// Build returns documents in entity first-encountered order, chunks of one
// entity in split order. It fails without partial output on any misaligned
// row or id collision.
func (b *Builder) Build(t *Table) ([]domain.Document, error) {
	if t == nil || len(t.Header) == 0 {
		return nil, domain.ErrMissingHeader
	}
	features := t.Features()

	var order []string
	sentences := make(map[string][]string)
	skipped := 0
	for i, row := range t.Rows {
		// header is line 1
		line := i + 2
		if len(row) == 0 {
			return nil, fmt.Errorf("%w: row %d is empty", domain.ErrMalformedRow, line)
		}
		indicators := row[1:]
		if len(indicators) != len(features) {
			return nil, fmt.Errorf("%w: row %d has %d indicators, header has %d features",
				domain.ErrMalformedRow, line, len(indicators), len(features))
		}
		entity := strings.TrimSpace(row[0])
		if entity == "" {
			return nil, fmt.Errorf("%w: row %d has an empty entity name", domain.ErrMalformedRow, line)
		}

		var present []string
		for j, v := range indicators {
			if v == b.present {
				present = append(present, features[j])
			}
		}
		if len(present) == 0 {
			skipped++
			continue
		}
		if _, ok := sentences[entity]; !ok {
			order = append(order, entity)
		}
		sentences[entity] = append(sentences[entity], Sentence(entity, present))
	}

	var docs []domain.Document
	seen := make(map[string]struct{})
	split := 0
	for _, entity := range order {
		full := strings.Join(sentences[entity], "\n")
		chunks := Split(full, b.maxChunkSize)
		if len(chunks) > 1 {
			split++
			b.logger.Debug("document too long, splitting at newlines",
				zap.String("entity", entity),
				zap.Int("chars", len([]rune(full))),
				zap.Int("chunks", len(chunks)))
		}
		for n, text := range chunks {
			id := entity
			if len(chunks) > 1 {
				id = entity + "-" + strconv.Itoa(n+1)
			}
			if _, dup := seen[id]; dup {
				return nil, fmt.Errorf("%w: %q", domain.ErrDuplicateID, id)
			}
			seen[id] = struct{}{}
			docs = append(docs, domain.Document{ID: id, Text: text})
		}
	}

	b.logger.Info("corpus built",
		zap.Int("rows", len(t.Rows)),
		zap.Int("skipped_rows", skipped),
		zap.Int("entities", len(order)),
		zap.Int("split_entities", split),
		zap.Int("documents", len(docs)))
	return docs, nil
}

// Sentence renders one row as natural language.
func Sentence(entity string, features []string) string {
	return entity + " can present with symptoms such as " + strings.Join(features, ", ") + "."
}

// Split cuts text into pieces of at most maxChars characters. Text that fits
// is returned whole. Otherwise every window, the last one included, is cut
// just before its last newline; a window without a newline is taken whole.
// Leading whitespace of the remainder is dropped.
func Split(text string, maxChars int) []string {
	rs := []rune(text)
	if maxChars <= 0 || len(rs) <= maxChars {
		return []string{text}
	}
	var chunks []string
	for len(rs) > 0 {
		window := rs[:min(len(rs), maxChars)]
		cut := lastNewline(window)
		if cut <= 0 {
			cut = len(window)
		}
		chunks = append(chunks, string(rs[:cut]))
		rs = trimLeftSpace(rs[cut:])
	}
	return chunks
}

// Columns returns the parallel text and id sequences of docs.
func Columns(docs []domain.Document) (texts, ids []string) {
	texts = make([]string, len(docs))
	ids = make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
		ids[i] = d.ID
	}
	return texts, ids
}

func lastNewline(rs []rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == '\n' {
			return i
		}
	}
	return -1
}

func trimLeftSpace(rs []rune) []rune {
	i := 0
	for i < len(rs) && unicode.IsSpace(rs[i]) {
		i++
	}
	return rs[i:]
}
