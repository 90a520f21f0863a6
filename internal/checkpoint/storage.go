// internal/checkpoint/storage.go
package checkpoint

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Storage persists checkpoints to disk. File contents go into a
// content-addressed pool keyed by SHA-256, compressed with zstd, so
// repeated checkpoints of the same file cost nothing extra. Metadata
// (including the hash list) is plain JSON.
type Storage struct {
	baseDir string
	mu      sync.RWMutex
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewStorage creates a checkpoint storage rooted at baseDir
func NewStorage(baseDir string, compressionLevel int) *Storage {
	encoder, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
	decoder, _ := zstd.NewReader(nil)

	return &Storage{
		baseDir: baseDir,
		encoder: encoder,
		decoder: decoder,
	}
}

func (s *Storage) checkpointDir(id string) string {
	return filepath.Join(s.baseDir, "checkpoints", id)
}

func (s *Storage) contentPoolDir() string {
	return filepath.Join(s.baseDir, "content_pool")
}

// storedFile is the on-disk metadata for one file snapshot
type storedFile struct {
	Path    string `json:"path"`
	Hash    string `json:"hash,omitempty"`
	Existed bool   `json:"existed"`
}

// storedCheckpoint is the on-disk metadata document
type storedCheckpoint struct {
	Checkpoint
	StoredFiles []storedFile `json:"stored_files"`
}

// Save persists a checkpoint: metadata JSON plus pooled contents
func (s *Storage) Save(cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.checkpointDir(cp.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	if err := os.MkdirAll(s.contentPoolDir(), 0755); err != nil {
		return fmt.Errorf("create content pool: %w", err)
	}

	doc := storedCheckpoint{Checkpoint: *cp}
	doc.Files = nil // contents live in the pool, not the metadata

	for _, f := range cp.Files {
		sf := storedFile{Path: f.Path, Existed: f.Existed}
		if f.Existed {
			sf.Hash = HashContent(f.Content)
			if err := s.poolWrite(sf.Hash, f.Content); err != nil {
				return fmt.Errorf("pool %s: %w", f.Path, err)
			}
		}
		doc.StoredFiles = append(doc.StoredFiles, sf)
	}

	metadata, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "metadata.json"), metadata, 0644)
}

// poolWrite stores content by hash unless it is already pooled
func (s *Storage) poolWrite(hash, content string) error {
	path := filepath.Join(s.contentPoolDir(), hash)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	compressed := s.encoder.EncodeAll([]byte(content), nil)
	return os.WriteFile(path, compressed, 0644)
}

// Load reads a checkpoint back, rehydrating file contents from the pool
func (s *Storage) Load(id string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metadata, err := os.ReadFile(filepath.Join(s.checkpointDir(id), "metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var doc storedCheckpoint
	if err := json.Unmarshal(metadata, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}

	cp := doc.Checkpoint
	cp.Files = make([]FileSnapshot, 0, len(doc.StoredFiles))
	for _, sf := range doc.StoredFiles {
		snap := FileSnapshot{Path: sf.Path, Existed: sf.Existed, Hash: sf.Hash}
		if sf.Existed {
			content, err := s.poolRead(sf.Hash)
			if err != nil {
				return nil, fmt.Errorf("pool read %s: %w", sf.Path, err)
			}
			snap.Content = content
		}
		cp.Files = append(cp.Files, snap)
	}
	return &cp, nil
}

func (s *Storage) poolRead(hash string) (string, error) {
	compressed, err := os.ReadFile(filepath.Join(s.contentPoolDir(), hash))
	if err != nil {
		return "", err
	}
	data, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return "", fmt.Errorf("decompress: %w", err)
	}
	return string(data), nil
}

// List returns all persisted checkpoints without file contents
func (s *Storage) List() ([]Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(s.baseDir, "checkpoints"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var checkpoints []Checkpoint
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		metadata, err := os.ReadFile(filepath.Join(s.baseDir, "checkpoints", entry.Name(), "metadata.json"))
		if err != nil {
			continue
		}
		var doc storedCheckpoint
		if json.Unmarshal(metadata, &doc) == nil {
			checkpoints = append(checkpoints, doc.Checkpoint)
		}
	}
	return checkpoints, nil
}

// Has reports whether a checkpoint is present on disk
func (s *Storage) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := os.Stat(s.checkpointDir(id))
	return err == nil
}

// Delete removes a checkpoint's metadata. Pooled contents are left in
// place; other checkpoints may reference the same hashes.
func (s *Storage) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.RemoveAll(s.checkpointDir(id))
}

// HashContent returns the SHA-256 hex digest of content
func HashContent(content string) string {
	h := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", h)
}
