package vectorstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/kotaehq/kotae/internal/models"
)

// On-disk layout of one document's index directory:
//
//	index.bin   dimensions (uint32), count (uint32), then count*dimensions
//	            float32 values, all little-endian
//	chunks.json array of {content, metadata}, same order as the vectors
const (
	indexFileName  = "index.bin"
	chunksFileName = "chunks.json"
)

type chunkRecord struct {
	Content  string               `json:"content"`
	Metadata models.ChunkMetadata `json:"metadata"`
}

// Save persists the index into dir, creating it if needed. The vectors file is
// written first so a directory with chunks.json always has its index.bin.
func (ix *Index) Save(dir string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, indexFileName))
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(ix.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(ix.vectors))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, vec := range ix.vectors {
		if _, err := f.Write(float32SliceToBytes(vec)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}

	records := make([]chunkRecord, len(ix.contents))
	for i := range ix.contents {
		records[i] = chunkRecord{Content: ix.contents[i], Metadata: ix.metadatas[i]}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal chunks: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, chunksFileName), data, 0644); err != nil {
		return fmt.Errorf("write chunks: %w", err)
	}
	return nil
}

// Load reads a persisted index from dir. Returns ErrIndexNotFound when the
// directory or either file is missing, and ErrIndexCorrupt when the files exist
// but cannot be decoded or disagree with each other.
func Load(dir string) (*Index, error) {
	f, err := os.Open(filepath.Join(dir, indexFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, dir)
		}
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("%w: read dimensions: %v", ErrIndexCorrupt, err)
	}
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero dimensions", ErrIndexCorrupt)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: read count: %v", ErrIndexCorrupt, err)
	}
	// Check the declared count against the actual file size before allocating,
	// so a corrupt header cannot trigger a huge allocation.
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat index file: %w", err)
	}
	const headerSize = 8
	if maxVectors := (info.Size() - headerSize) / (int64(dim) * 4); int64(n) > maxVectors {
		return nil, fmt.Errorf("%w: count %d exceeds file size", ErrIndexCorrupt, n)
	}
	vectors := make([][]float32, 0, n)
	buf := make([]byte, int(dim)*4)
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, fmt.Errorf("%w: read vector %d: %v", ErrIndexCorrupt, i, err)
		}
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}

	data, err := os.ReadFile(filepath.Join(dir, chunksFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, dir)
		}
		return nil, fmt.Errorf("read chunks: %w", err)
	}
	var records []chunkRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: decode chunks: %v", ErrIndexCorrupt, err)
	}
	if len(records) != len(vectors) {
		return nil, fmt.Errorf("%w: %d chunks for %d vectors", ErrIndexCorrupt, len(records), len(vectors))
	}

	ix := &Index{
		dimensions: int(dim),
		contents:   make([]string, len(records)),
		metadatas:  make([]models.ChunkMetadata, len(records)),
		vectors:    vectors,
	}
	for i, r := range records {
		ix.contents[i] = r.Content
		ix.metadatas[i] = r.Metadata
	}
	return ix, nil
}

// Exists reports whether dir holds a readable index (both files present).
func Exists(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, indexFileName)); err != nil {
		return false
	}
	if _, err := os.Stat(filepath.Join(dir, chunksFileName)); err != nil {
		return false
	}
	return true
}

// Delete removes a document's index directory recursively. Missing directories
// are not an error.
func Delete(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete index dir: %w", err)
	}
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
