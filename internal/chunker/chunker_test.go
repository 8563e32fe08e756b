package chunker

import (
	"strings"
	"testing"

	"github.com/kotaehq/kotae/internal/models"
)

func page(text string, n int) models.PageText {
	return models.PageText{Source: "test.pdf", Page: n, Text: text}
}

func TestNewChunker_InvalidConfig(t *testing.T) {
	if _, err := NewChunker(0, 0); err == nil {
		t.Error("zero size should be rejected")
	}
	if _, err := NewChunker(10, 10); err == nil {
		t.Error("overlap == size should be rejected")
	}
	if _, err := NewChunker(10, 15); err == nil {
		t.Error("overlap > size should be rejected")
	}
	if _, err := NewChunker(10, -1); err == nil {
		t.Error("negative overlap should be rejected")
	}
}

func TestChunker_SizeBound(t *testing.T) {
	c, err := NewChunker(10, 3)
	if err != nil {
		t.Fatal(err)
	}
	chunks := c.Chunk("d1", []models.PageText{page(strings.Repeat("x", 57), 1)})
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, ch := range chunks {
		if n := len([]rune(ch.Text)); n > 10 {
			t.Errorf("chunk %d length %d exceeds size", i, n)
		}
		if ch.Metadata.DocID != "d1" || ch.Metadata.Page != 1 {
			t.Errorf("chunk %d metadata: %+v", i, ch.Metadata)
		}
	}
}

func TestChunker_Overlap(t *testing.T) {
	c, _ := NewChunker(10, 3)
	text := "abcdefghijklmnopqrstuvwxyz0123456789"
	chunks := c.Chunk("d", []models.PageText{page(text, 1)})
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		cur := []rune(chunks[i].Text)
		if len(prev) == 10 && len(cur) >= 3 {
			tail := string(prev[len(prev)-3:])
			head := string(cur[:3])
			if tail != head {
				t.Errorf("chunks %d/%d overlap mismatch: %q vs %q", i-1, i, tail, head)
			}
		}
	}
}

// Lossless coverage: concatenating each chunk minus the part it shares with its
// predecessor reconstructs the original page text.
func TestChunker_LosslessCoverage(t *testing.T) {
	c, _ := NewChunker(10, 3)
	text := "The quick brown fox jumps over the lazy dog and keeps on running."
	chunks := c.Chunk("d", []models.PageText{page(text, 1)})

	var b strings.Builder
	for i, ch := range chunks {
		runes := []rune(ch.Text)
		if i == 0 {
			b.WriteString(ch.Text)
			continue
		}
		b.WriteString(string(runes[3:]))
	}
	if b.String() != text {
		t.Errorf("reconstructed text mismatch:\n got %q\nwant %q", b.String(), text)
	}
}

func TestChunker_PageOrderDeterministic(t *testing.T) {
	c, _ := NewChunker(5, 1)
	pages := []models.PageText{page("aaaa bbbb", 1), page("cccc dddd", 2)}
	first := c.Chunk("d", pages)
	second := c.Chunk("d", pages)
	if len(first) != len(second) {
		t.Fatalf("non-deterministic chunk count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Text != second[i].Text {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
	// Page 1 chunks come before page 2 chunks.
	sawPage2 := false
	for i, ch := range first {
		if ch.Metadata.Page == 2 {
			sawPage2 = true
		}
		if sawPage2 && ch.Metadata.Page == 1 {
			t.Errorf("chunk %d: page 1 after page 2", i)
		}
	}
}

func TestChunker_EmptyPage(t *testing.T) {
	c, _ := NewChunker(5, 1)
	if chunks := c.Chunk("d", []models.PageText{page("", 1)}); chunks != nil {
		t.Errorf("empty page should yield no chunks, got %v", chunks)
	}
}

// Spec scenario: 2500-char page, size 1000, overlap 200 -> 3-4 chunks per page.
func TestChunker_ScenarioTwoPages(t *testing.T) {
	c, err := NewChunker(1000, 200)
	if err != nil {
		t.Fatal(err)
	}
	pages := []models.PageText{
		page(strings.Repeat("a", 2500), 1),
		page(strings.Repeat("b", 2500), 2),
	}
	chunks := c.Chunk("d", pages)
	perPage := make(map[int]int)
	for _, ch := range chunks {
		perPage[ch.Metadata.Page]++
	}
	for p, n := range perPage {
		if n < 3 || n > 4 {
			t.Errorf("page %d: got %d chunks, want 3-4", p, n)
		}
	}
}
