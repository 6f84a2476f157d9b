package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symptomrag/internal/corpus"
	"symptomrag/internal/domain"
)

type fakeCollection struct {
	docs       []domain.Document
	batches    [][]domain.Document
	prepared   []string
	resets     int
	queries    []int
	results    []domain.SearchResult
	queryErr   error
	addErr     error
	prepareErr error
}

func (f *fakeCollection) Name() string { return "fake" }

func (f *fakeCollection) Prepare(corpus []string) error {
	if f.prepareErr != nil {
		return f.prepareErr
	}
	f.prepared = corpus
	return nil
}

func (f *fakeCollection) Add(_ context.Context, docs []domain.Document) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.batches = append(f.batches, docs)
	f.docs = append(f.docs, docs...)
	return nil
}

func (f *fakeCollection) Query(_ context.Context, _ string, topK int) ([]domain.SearchResult, error) {
	f.queries = append(f.queries, topK)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.results, nil
}

func (f *fakeCollection) Count(context.Context) (int, error) { return len(f.docs), nil }

func (f *fakeCollection) Reset(context.Context) error {
	f.resets++
	f.docs = nil
	return nil
}

func (f *fakeCollection) Close() error { return nil }

type fakeChat struct {
	got   []domain.Message
	reply string
	err   error
}

func (f *fakeChat) ModelName() string { return "fake-model" }

func (f *fakeChat) Complete(_ context.Context, msgs []domain.Message) (string, error) {
	f.got = msgs
	return f.reply, f.err
}

func writeTable(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "symptoms.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngest_BatchesAndReports(t *testing.T) {
	var b strings.Builder
	b.WriteString("diseases,fever\n")
	for i := 0; i < 5; i++ {
		b.WriteString("d" + string(rune('a'+i)) + ",1\n")
	}
	coll := &fakeCollection{docs: []domain.Document{{ID: "stale"}}}
	svc := NewRAGService(nil, coll, nil, Options{BatchSize: 2})

	report, err := svc.Ingest(context.Background(), writeTable(t, b.String()))
	require.NoError(t, err)
	assert.Equal(t, IngestReport{Documents: 5, Batches: 3, Count: 5}, report)
	assert.Equal(t, 1, coll.resets)
	assert.Len(t, coll.batches[2], 1)
	assert.Len(t, coll.prepared, 5)
	assert.Equal(t, "da", coll.docs[0].ID)
}

func TestIngest_MalformedTableWritesNothing(t *testing.T) {
	coll := &fakeCollection{docs: []domain.Document{{ID: "kept"}}}
	svc := NewRAGService(nil, coll, nil, Options{})

	_, err := svc.Ingest(context.Background(), writeTable(t, "diseases,fever,cough\nFlu,1\n"))
	assert.ErrorIs(t, err, domain.ErrMalformedRow)
	assert.Zero(t, coll.resets)
	assert.Len(t, coll.docs, 1)
}

func TestIngest_PrepareFailureKeepsStore(t *testing.T) {
	coll := &fakeCollection{
		docs:       []domain.Document{{ID: "kept"}},
		prepareErr: errors.New("no tokens"),
	}
	svc := NewRAGService(corpus.New(), coll, nil, Options{})

	_, err := svc.Ingest(context.Background(), writeTable(t, "diseases,fever\nFlu,1\n"))
	assert.ErrorContains(t, err, "no tokens")
	assert.Zero(t, coll.resets)
	assert.Len(t, coll.docs, 1)
}

func TestIngest_AddFailure(t *testing.T) {
	coll := &fakeCollection{addErr: errors.New("boom")}
	svc := NewRAGService(corpus.New(), coll, nil, Options{})
	_, err := svc.Ingest(context.Background(), writeTable(t, "diseases,fever\nFlu,1\n"))
	assert.ErrorContains(t, err, "boom")
}

func TestAnswer_AssemblesPrompt(t *testing.T) {
	coll := &fakeCollection{results: []domain.SearchResult{
		{Document: domain.Document{ID: "Flu", Text: "Flu can present with symptoms such as fever."}},
		{Document: domain.Document{ID: "Cold", Text: "Cold can present with symptoms such as cough."}},
	}}
	chat := &fakeChat{reply: "  Possibly flu.  "}
	svc := NewRAGService(nil, coll, chat, Options{})
	history := []domain.Message{
		{Role: domain.RoleUser, Content: "hello"},
		{Role: domain.RoleAssistant, Content: "hi"},
	}

	reply, err := svc.Answer(context.Background(), " I have a fever ", history, 3)
	require.NoError(t, err)
	assert.Equal(t, "Possibly flu.", reply)
	assert.Equal(t, []int{3}, coll.queries)

	require.Len(t, chat.got, 4)
	assert.Equal(t, domain.Message{Role: domain.RoleSystem, Content: SystemPrompt}, chat.got[0])
	assert.Equal(t, history, chat.got[1:3])
	assert.Equal(t, domain.Message{
		Role: domain.RoleUser,
		Content: "Context:\nFlu can present with symptoms such as fever.\n" +
			"Cold can present with symptoms such as cough.\n\nQuestion: I have a fever",
	}, chat.got[3])
}

func TestRetrieve_ClampsTopK(t *testing.T) {
	coll := &fakeCollection{}
	svc := NewRAGService(nil, coll, nil, Options{TopK: 7})
	ctx := context.Background()

	for _, k := range []int{0, -3, 50, 4} {
		_, err := svc.Retrieve(ctx, "fever", k)
		require.NoError(t, err)
	}
	assert.Equal(t, []int{7, 1, 10, 4}, coll.queries)
	assert.Equal(t, 7, svc.DefaultTopK())
}

func TestRetrieve_EmptyQuestion(t *testing.T) {
	svc := NewRAGService(nil, &fakeCollection{}, nil, Options{})
	_, err := svc.Retrieve(context.Background(), "   ", 3)
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestDegradedStore(t *testing.T) {
	cause := errors.New("download failed")
	svc := NewRAGService(nil, nil, &fakeChat{}, Options{StoreErr: cause})
	ctx := context.Background()

	err := svc.Ready()
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorContains(t, err, "download failed")

	_, err = svc.Answer(ctx, "fever", nil, 5)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	_, err = svc.Count(ctx)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	_, err = svc.Ingest(ctx, "unused.csv")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestAnswer_NoChatModel(t *testing.T) {
	coll := &fakeCollection{}
	svc := NewRAGService(nil, coll, nil, Options{})
	_, err := svc.Answer(context.Background(), "fever", nil, 5)
	assert.ErrorIs(t, err, domain.ErrChatUnavailable)
	assert.Empty(t, coll.queries)
	assert.Empty(t, svc.ChatModelName())
}

func TestAnswer_ChatErrorIsWrapped(t *testing.T) {
	chat := &fakeChat{err: domain.ErrChatUnavailable}
	svc := NewRAGService(nil, &fakeCollection{}, chat, Options{})
	_, err := svc.Answer(context.Background(), "fever", nil, 5)
	assert.ErrorIs(t, err, domain.ErrChatUnavailable)
	assert.Equal(t, "fake-model", svc.ChatModelName())
}

func TestAsk_ReturnsSources(t *testing.T) {
	results := []domain.SearchResult{{Document: domain.Document{ID: "Flu", Text: "fever"}, Score: 0.9}}
	svc := NewRAGService(nil, &fakeCollection{results: results}, &fakeChat{reply: "flu"}, Options{})
	reply, err := svc.Ask(context.Background(), "fever", nil, 1)
	require.NoError(t, err)
	assert.Equal(t, Reply{Text: "flu", Sources: results}, reply)
}
