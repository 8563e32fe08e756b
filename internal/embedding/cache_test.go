package embedding

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if _, ok := c.Get("a"); ok {
		t.Error("empty cache should miss")
	}
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	if v, ok := c.Get("a"); !ok || v[0] != 1 {
		t.Errorf("get a: %v %v", v, ok)
	}
	// "a" was just used, so inserting "c" evicts "b"
	c.Set("c", []float32{3})
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should still be cached")
	}
}

func TestEmbeddingCache_Update(t *testing.T) {
	c := NewEmbeddingCache(2)
	c.Set("a", []float32{1})
	c.Set("a", []float32{9})
	if v, _ := c.Get("a"); v[0] != 9 {
		t.Errorf("expected updated value, got %v", v)
	}
}

// Reads promote entries in the shared recency list, so concurrent Gets are
// writes too. Run with -race.
func TestEmbeddingCache_ConcurrentAccess(t *testing.T) {
	c := NewEmbeddingCache(64)
	for i := 0; i < 32; i++ {
		c.Set(fmt.Sprintf("text-%d", i), []float32{float32(i)})
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				key := fmt.Sprintf("text-%d", i%32)
				if v, ok := c.Get(key); ok && int(v[0]) != i%32 {
					t.Errorf("corrupted value for %s: %v", key, v)
					return
				}
				if i%100 == 0 {
					c.Set(fmt.Sprintf("text-%d-%d", g, i), []float32{1})
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 64 {
		t.Errorf("cache exceeded capacity: %d", c.Len())
	}
	for i := 0; i < 32; i++ {
		key := fmt.Sprintf("text-%d", i)
		if v, ok := c.Get(key); ok && int(v[0]) != i {
			t.Errorf("value for %s changed: %v", key, v)
		}
	}
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(8)
	v1, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	v2, _ := e.Embed(context.Background(), "hello")
	if len(v1) != 8 {
		t.Fatalf("dimensions: got %d", len(v1))
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("embedding not deterministic at %d", i)
		}
	}
	v3, _ := e.Embed(context.Background(), "other")
	same := true
	for i := range v1 {
		if v1[i] != v3[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts should embed differently")
	}
}

func TestMockEmbedder_BatchOrder(t *testing.T) {
	e := NewMockEmbedder(4)
	texts := []string{"one", "two", "three"}
	batch, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != len(texts) {
		t.Fatalf("batch length: got %d", len(batch))
	}
	for i, text := range texts {
		single, _ := e.Embed(context.Background(), text)
		for j := range single {
			if batch[i][j] != single[j] {
				t.Fatalf("batch[%d] does not match single embed", i)
			}
		}
	}
}
