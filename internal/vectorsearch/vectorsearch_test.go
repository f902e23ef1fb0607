package vectorsearch_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/echovault/internal/model"
	"github.com/go-ports/echovault/internal/storage"
	"github.com/go-ports/echovault/internal/vectorsearch"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("openTestStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCosine(t *testing.T) {
	c := qt.New(t)
	c.Assert(vectorsearch.Cosine([]float32{1, 0}, []float32{1, 0}), qt.Equals, 1.0)
	c.Assert(vectorsearch.Cosine([]float32{1, 0}, []float32{0, 1}), qt.Equals, 0.0)
	c.Assert(vectorsearch.Cosine([]float32{1, 0}, []float32{}), qt.Equals, 0.0)
	c.Assert(vectorsearch.Cosine(nil, nil), qt.Equals, 0.0)
}

func TestSearch_EmptyQueryReturnsNoResults(t *testing.T) {
	c := qt.New(t)
	s := openTestStore(t)
	eng := vectorsearch.New(s)

	hits, err := eng.Search(context.Background(), nil, vectorsearch.DefaultThreshold, 5)
	c.Assert(err, qt.IsNil)
	c.Assert(hits, qt.HasLen, 0)
}

func TestSearch_NoIndexYetReturnsEmpty(t *testing.T) {
	c := qt.New(t)
	s := openTestStore(t)
	eng := vectorsearch.New(s)

	hits, err := eng.Search(context.Background(), []float32{1, 0, 0}, vectorsearch.DefaultThreshold, 5)
	c.Assert(err, qt.IsNil)
	c.Assert(hits, qt.HasLen, 0)
}

func TestSearch_FindsNeighborAboveThreshold(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := openTestStore(t)
	eng := vectorsearch.New(s)

	now := time.Now().UTC()
	mem := &model.Memory{ID: "id-1", Kind: model.KindEpisodic, Content: "x", Importance: 0.5, CreatedAt: now, LastAccessedAt: now}
	rowid, err := s.InsertMemory(ctx, mem)
	c.Assert(err, qt.IsNil)
	c.Assert(s.UpsertEmbedding(ctx, rowid, []float32{1, 0, 0}), qt.IsNil)

	hits, err := eng.Search(ctx, []float32{1, 0, 0}, vectorsearch.DefaultThreshold, 5)
	c.Assert(err, qt.IsNil)
	c.Assert(hits, qt.HasLen, 1)
	c.Assert(hits[0].Memory.ID, qt.Equals, "id-1")
	c.Assert(hits[0].Similarity > 0.9, qt.IsTrue)
}

func TestSearchStrict_DimensionMismatch(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := openTestStore(t)
	eng := vectorsearch.New(s)

	now := time.Now().UTC()
	mem := &model.Memory{ID: "id-1", Kind: model.KindEpisodic, Content: "x", Importance: 0.5, CreatedAt: now, LastAccessedAt: now}
	rowid, err := s.InsertMemory(ctx, mem)
	c.Assert(err, qt.IsNil)
	c.Assert(s.UpsertEmbedding(ctx, rowid, []float32{1, 0, 0}), qt.IsNil)

	_, err = eng.SearchStrict(ctx, []float32{1, 0}, vectorsearch.DefaultThreshold, 5)
	c.Assert(err, qt.ErrorIs, vectorsearch.ErrDimensionMismatch)
}
