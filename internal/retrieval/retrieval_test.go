package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kotaehq/kotae/internal/chunker"
	"github.com/kotaehq/kotae/internal/docmeta"
	"github.com/kotaehq/kotae/internal/embedding"
	"github.com/kotaehq/kotae/internal/kvstore"
	"github.com/kotaehq/kotae/internal/pipeline"
)

type fixture struct {
	retriever *Retriever
	pipeline  *pipeline.Pipeline
	docs      *docmeta.Service
	vectorDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := kvstore.NewSQLiteStore(filepath.Join(dir, "kv.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	docs := docmeta.NewService(store)
	emb := embedding.NewMockEmbedder(8)
	ch, err := chunker.NewChunker(50, 10)
	if err != nil {
		t.Fatal(err)
	}
	vectorDir := filepath.Join(dir, "vectors")
	p, err := pipeline.New(docs, ch, emb, filepath.Join(dir, "uploads"), vectorDir, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{
		retriever: NewRetriever(docs, emb, vectorDir, zap.NewNop()),
		pipeline:  p,
		docs:      docs,
		vectorDir: vectorDir,
	}
}

func (f *fixture) ingest(t *testing.T, name, content string) string {
	t.Helper()
	meta, err := f.pipeline.Ingest(context.Background(), name, strings.NewReader(content))
	if err != nil {
		t.Fatalf("ingest %s: %v", name, err)
	}
	return meta.DocID
}

func TestSearchAll_MergesAcrossDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ingest(t, "cats.txt", "cats sleep most of the day and hunt at night")
	f.ingest(t, "dogs.txt", "dogs are loyal companions that need daily walks")
	f.pipeline.Wait()

	results, err := f.retriever.SearchAll(ctx, "cats sleep most of the day and hunt at night", 5)
	if err != nil {
		t.Fatalf("SearchAll: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score < results[i-1].Score {
			t.Errorf("scores not ascending: %v", results)
		}
	}
	// The mock embedder is deterministic, so the exact query text wins.
	if results[0].Metadata.Source != "cats.txt" {
		t.Errorf("best hit = %+v", results[0])
	}
}

func TestSearchAll_SkipsIncompleteDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ingest(t, "ok.txt", "searchable content lives here")
	f.ingest(t, "broken.txt", "") // fails in the pipeline
	f.pipeline.Wait()

	results, err := f.retriever.SearchAll(ctx, "content", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Metadata.Source != "ok.txt" {
		t.Errorf("results = %+v", results)
	}
}

func TestSearchAll_SkipsMissingIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kept := f.ingest(t, "kept.txt", "this index stays on disk")
	lost := f.ingest(t, "lost.txt", "this index gets removed out of band")
	f.pipeline.Wait()

	// Remove one index dir behind the metadata's back.
	if err := os.RemoveAll(filepath.Join(f.vectorDir, lost)); err != nil {
		t.Fatal(err)
	}

	results, err := f.retriever.SearchAll(ctx, "index", 10)
	if err != nil {
		t.Fatalf("one bad store must not fail the search: %v", err)
	}
	if len(results) != 1 || results[0].Metadata.DocID != kept {
		t.Errorf("results = %+v", results)
	}
}

func TestSearchAll_EmptyCorpus(t *testing.T) {
	f := newFixture(t)
	results, err := f.retriever.SearchAll(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("empty corpus is not an error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %+v", results)
	}
}

func TestSearchAll_KLimitsMerged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ingest(t, "a.txt", strings.Repeat("first document text body. ", 20))
	f.ingest(t, "b.txt", strings.Repeat("second document text body. ", 20))
	f.pipeline.Wait()

	results, err := f.retriever.SearchAll(ctx, "document text", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Errorf("k=3 returned %d results", len(results))
	}
}
