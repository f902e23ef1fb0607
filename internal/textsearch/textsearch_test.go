package textsearch_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/echovault/internal/model"
	"github.com/go-ports/echovault/internal/storage"
	"github.com/go-ports/echovault/internal/textsearch"
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

func insertMem(t *testing.T, s *storage.Store, id, content string, tags []string, kind model.Kind) {
	t.Helper()
	now := time.Now().UTC()
	mem := &model.Memory{
		ID: id, Kind: kind, Content: content, Importance: 0.5,
		Tags: tags, CreatedAt: now, LastAccessedAt: now,
	}
	_, err := s.InsertMemory(context.Background(), mem)
	if err != nil {
		t.Fatalf("insertMem: %v", err)
	}
}

func TestSearch_NormalizesTopScoreToOne(t *testing.T) {
	c := qt.New(t)
	s := openTestStore(t)
	insertMem(t, s, "id-1", "the quick brown fox jumps over the lazy dog", nil, model.KindEpisodic)
	insertMem(t, s, "id-2", "a dog barks", nil, model.KindEpisodic)

	eng := textsearch.New(s)
	hits, err := eng.Search(context.Background(), "dog", textsearch.Filter{}, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(len(hits) > 0, qt.IsTrue)
	c.Assert(hits[0].Score, qt.Equals, 1.0)
}

func TestSearch_FilterByTagAndPinned(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := openTestStore(t)

	insertMem(t, s, "id-1", "deploy service alpha", []string{"ops"}, model.KindEpisodic)
	insertMem(t, s, "id-2", "deploy service beta", []string{"dev"}, model.KindEpisodic)
	c.Assert(s.SetPinned(ctx, "id-2", true), qt.IsNil)

	eng := textsearch.New(s)

	hits, err := eng.Search(ctx, "deploy", textsearch.Filter{Tag: "ops"}, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(hits, qt.HasLen, 1)
	c.Assert(hits[0].Memory.ID, qt.Equals, "id-1")

	hits, err = eng.Search(ctx, "deploy", textsearch.Filter{PinnedOnly: true}, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(hits, qt.HasLen, 1)
	c.Assert(hits[0].Memory.ID, qt.Equals, "id-2")
}

func TestSearch_KindFilter(t *testing.T) {
	c := qt.New(t)
	s := openTestStore(t)
	insertMem(t, s, "id-1", "working note about testing", nil, model.KindWorking)
	insertMem(t, s, "id-2", "episodic note about testing", nil, model.KindEpisodic)

	eng := textsearch.New(s)
	hits, err := eng.Search(context.Background(), "testing", textsearch.Filter{Kind: model.KindWorking}, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(hits, qt.HasLen, 1)
	c.Assert(hits[0].Memory.ID, qt.Equals, "id-1")
}
