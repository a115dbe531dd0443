package evidence

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Sentinel errors for store operations.
var (
	// ErrIndexOutOfRange is returned when a chunk index does not resolve.
	ErrIndexOutOfRange = errors.New("chunk index out of range")

	// ErrEmptyStore is returned when the chunk file holds no valid chunks.
	ErrEmptyStore = errors.New("chunk store is empty")
)

// maxScanTokenSize bounds a single chunk-file line (1MB).
const maxScanTokenSize = 1024 * 1024

// Store is the read-only source of truth mapping a chunk index to its text
// and metadata. Indices are dense, zero-based and assigned in file order at
// load time; they are never reused or renumbered.
//
// The chunk file is loaded lazily on first access and cached for the process
// lifetime. Loading is guarded by sync.Once, so a Store is safe for
// concurrent readers.
type Store struct {
	path   string
	logger *zap.Logger

	once    sync.Once
	chunks  []Chunk
	loadErr error
}

// NewStore creates a store backed by a newline-delimited JSON chunk file.
// The file is not touched until the first read.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}
}

// load reads the chunk file once. Malformed lines are skipped with a warning,
// never fatal; indices are assigned to surviving lines in file order.
func (s *Store) load() error {
	s.once.Do(func() {
		f, err := os.Open(s.path)
		if err != nil {
			s.loadErr = fmt.Errorf("opening chunk file %s: %w", s.path, err)
			return
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), maxScanTokenSize)

		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			var c Chunk
			if err := json.Unmarshal([]byte(line), &c); err != nil {
				s.logger.Warn("skipping malformed chunk line",
					zap.String("path", s.path),
					zap.Int("line", lineNum),
					zap.Error(err),
				)
				continue
			}
			s.chunks = append(s.chunks, c)
		}

		if err := scanner.Err(); err != nil {
			s.loadErr = fmt.Errorf("reading chunk file %s: %w", s.path, err)
			return
		}

		s.logger.Info("evidence store loaded",
			zap.String("path", s.path),
			zap.Int("chunks", len(s.chunks)),
		)
	})
	return s.loadErr
}

// Get returns the chunk at the given store index.
func (s *Store) Get(idx int) (Chunk, error) {
	if err := s.load(); err != nil {
		return Chunk{}, err
	}
	if idx < 0 || idx >= len(s.chunks) {
		return Chunk{}, fmt.Errorf("%w: %d (0..%d)", ErrIndexOutOfRange, idx, len(s.chunks)-1)
	}
	return s.chunks[idx], nil
}

// Len returns the number of chunks in the store.
func (s *Store) Len() (int, error) {
	if err := s.load(); err != nil {
		return 0, err
	}
	return len(s.chunks), nil
}

// All returns every chunk in store order. The returned slice is shared;
// callers must not mutate it.
func (s *Store) All() ([]Chunk, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	if len(s.chunks) == 0 {
		return nil, ErrEmptyStore
	}
	return s.chunks, nil
}

// WriteChunks appends chunks to a newline-delimited JSON file, creating it if
// needed. Used by the ingest command; stores opened on the file afterwards
// see the appended chunks at the tail indices.
func WriteChunks(path string, chunks []Chunk) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening chunk file %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, c := range chunks {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("encoding chunk: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing chunk file: %w", err)
	}
	return nil
}
