package vectorstore

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kotaehq/kotae/internal/models"
)

func meta(docID string, page int) models.ChunkMetadata {
	return models.ChunkMetadata{Source: "f.pdf", Page: page, DocID: docID}
}

func buildIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := New(
		[]string{"alpha", "beta", "gamma"},
		[][]float32{{0, 0}, {1, 0}, {5, 5}},
		[]models.ChunkMetadata{meta("d1", 1), meta("d1", 1), meta("d1", 2)},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ix
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, nil, nil); err == nil {
		t.Error("empty index should be rejected")
	}
	if _, err := New([]string{"a"}, [][]float32{{1}, {2}}, []models.ChunkMetadata{{}}); err == nil {
		t.Error("length mismatch should be rejected")
	}
	if _, err := New([]string{"a", "b"}, [][]float32{{1, 2}, {1}}, []models.ChunkMetadata{{}, {}}); err == nil {
		t.Error("dimension mismatch should be rejected")
	}
}

func TestSimilaritySearchWithScore_Ordering(t *testing.T) {
	ix := buildIndex(t)
	results, err := ix.SimilaritySearchWithScore([]float32{0.1, 0}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score < results[i-1].Score {
			t.Errorf("scores not ascending at %d: %v", i, results)
		}
	}
	if results[0].Content != "alpha" {
		t.Errorf("nearest should be alpha, got %q", results[0].Content)
	}
}

func TestSimilaritySearchWithScore_KBound(t *testing.T) {
	ix := buildIndex(t)
	results, err := ix.SimilaritySearchWithScore([]float32{0, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Errorf("k larger than index: got %d results, want 3", len(results))
	}
	results, _ = ix.SimilaritySearchWithScore([]float32{0, 0}, 2)
	if len(results) != 2 {
		t.Errorf("k=2: got %d results", len(results))
	}
}

func TestSimilaritySearchWithScore_DimensionMismatch(t *testing.T) {
	ix := buildIndex(t)
	if _, err := ix.SimilaritySearchWithScore([]float32{1}, 2); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "doc_1")
	ix := buildIndex(t)
	if err := ix.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !Exists(dir) {
		t.Fatal("Exists should be true after save")
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Size() != 3 || loaded.Dimensions() != 2 {
		t.Errorf("loaded size=%d dims=%d", loaded.Size(), loaded.Dimensions())
	}
	results, err := loaded.SimilaritySearchWithScore([]float32{5, 5}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Content != "gamma" || results[0].Metadata.Page != 2 {
		t.Errorf("round trip lost data: %+v", results[0])
	}
}

func TestAddTexts_ThenSavePersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "doc_2")
	ix := buildIndex(t)
	if err := ix.Save(dir); err != nil {
		t.Fatal(err)
	}
	if err := ix.AddTexts([]string{"delta"}, [][]float32{{2, 2}}, []models.ChunkMetadata{meta("d1", 3)}); err != nil {
		t.Fatalf("AddTexts: %v", err)
	}

	// In-memory only until saved
	loaded, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 3 {
		t.Errorf("unsaved addition leaked to disk: size=%d", loaded.Size())
	}

	if err := ix.Save(dir); err != nil {
		t.Fatal(err)
	}
	loaded, err = Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 4 {
		t.Errorf("after save: size=%d, want 4", loaded.Size())
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, indexFileName), []byte("xx"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, chunksFileName), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(dir)
	if !errors.Is(err, ErrIndexCorrupt) {
		t.Errorf("expected ErrIndexCorrupt, got %v", err)
	}
}

func TestLoad_CountExceedsFileSize(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "doc")
	ix := buildIndex(t)
	if err := ix.Save(dir); err != nil {
		t.Fatal(err)
	}
	// Overwrite the count header with a value far beyond what the file holds.
	// Load must reject it without attempting the implied allocation.
	path := filepath.Join(dir, indexFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	binary.LittleEndian.PutUint32(data[4:8], ^uint32(0))
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	_, err = Load(dir)
	if !errors.Is(err, ErrIndexCorrupt) {
		t.Errorf("expected ErrIndexCorrupt on oversized count, got %v", err)
	}
}

func TestLoad_ChunkVectorMismatch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "doc")
	ix := buildIndex(t)
	if err := ix.Save(dir); err != nil {
		t.Fatal(err)
	}
	// Truncate chunks.json to a single record
	if err := os.WriteFile(filepath.Join(dir, chunksFileName), []byte(`[{"content":"alpha","metadata":{}}]`), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(dir)
	if !errors.Is(err, ErrIndexCorrupt) {
		t.Errorf("expected ErrIndexCorrupt on count mismatch, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "doc")
	ix := buildIndex(t)
	if err := ix.Save(dir); err != nil {
		t.Fatal(err)
	}
	if err := Delete(dir); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if Exists(dir) {
		t.Error("directory should be gone")
	}
	// Deleting again is fine
	if err := Delete(dir); err != nil {
		t.Errorf("Delete of missing dir: %v", err)
	}
}
