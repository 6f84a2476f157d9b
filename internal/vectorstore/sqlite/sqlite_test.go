package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symptomrag/internal/domain"
)

func setupTestStorage(t *testing.T) (*Storage, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStorage(dir, "disease_symptoms")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func TestStorage_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	s, dir := setupTestStorage(t)
	assert.True(t, Exists(dir, "disease_symptoms"))
	assert.False(t, Exists(dir, "other"))

	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Upsert(ctx,
		[]domain.Document{{ID: "Flu", Text: "fever"}, {ID: "Asthma", Text: "wheezing"}},
		[][]float64{{1, 0}, {0, 1}}))
	require.NoError(t, s.Close())

	reopened, err := NewStorage(dir, "disease_symptoms")
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := reopened.Search(ctx, []float64{0.1, 1}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, domain.Document{ID: "Asthma", Text: "wheezing"}, res[0].Document)
	assert.InDelta(t, 0.995, res[0].Score, 0.001)

	assert.NoError(t, reopened.Init(ctx, 2))
	assert.Error(t, reopened.Init(ctx, 3))
}

func TestStorage_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestStorage(t)
	require.NoError(t, s.Init(ctx, 1))
	require.NoError(t, s.Upsert(ctx, []domain.Document{{ID: "a", Text: "old"}}, [][]float64{{1}}))
	require.NoError(t, s.Upsert(ctx, []domain.Document{{ID: "a", Text: "new"}}, [][]float64{{1}}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	res, err := s.Search(ctx, []float64{1}, 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "new", res[0].Document.Text)
}

func TestStorage_ClearAllowsNewDimension(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestStorage(t)
	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Upsert(ctx, []domain.Document{{ID: "a", Text: "x"}}, [][]float64{{1, 2}}))
	assert.Error(t, s.Upsert(ctx, []domain.Document{{ID: "b", Text: "y"}}, [][]float64{{1}}))

	require.NoError(t, s.Clear(ctx))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, s.Init(ctx, 3))
}

func TestVectorEncoding(t *testing.T) {
	v := []float64{0.5, -1, 0.25}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
	assert.Empty(t, decodeVector(nil))
}
