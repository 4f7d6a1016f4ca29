// Package cache memoizes compile results on disk, keyed by the hash of
// their inputs, so a repeated invocation over unchanged source skips
// lexing, parsing, and code generation entirely.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
	json "github.com/goccy/go-json"

	"github.com/Mirrrek/nitrogen/compiler"
)

// Key identifies one cache entry: the exact inputs to compiler.Compile.
type Key struct {
	Filename string
	Source   string
	Target   string
}

// Hash returns the hex-encoded sha256 digest of the key's inputs.
func (k Key) Hash() string {
	h := sha256.New()
	h.Write([]byte(k.Filename))
	h.Write([]byte{0})
	h.Write([]byte(k.Source))
	h.Write([]byte{0})
	h.Write([]byte(k.Target))
	return hex.EncodeToString(h.Sum(nil))
}

// entry is the CBOR envelope written for each stored compile: the resolved
// artifact plus every diagnostic emitted while producing it.
type entry struct {
	Code        []byte              `cbor:"code"`
	Diagnostics []compiler.Diagnostic `cbor:"diagnostics"`
}

// indexRecord is one row of the JSON index file mapping a hash to its
// on-disk envelope.
type indexRecord struct {
	Hash string `json:"hash"`
	Path string `json:"path"`
}

// Store is an on-disk compile cache rooted at a directory.
type Store struct {
	dir string
	mu  sync.Mutex
}

// Open returns a Store rooted at dir, creating it if necessary.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cache: cannot create %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, "index.json")
}

func (s *Store) entryPath(hash string) string {
	return filepath.Join(s.dir, hash+".cbor")
}

func (s *Store) loadIndex() ([]indexRecord, error) {
	data, err := os.ReadFile(s.indexPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var records []indexRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("cache: corrupt index: %w", err)
	}
	return records, nil
}

func (s *Store) saveIndex(records []indexRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return os.WriteFile(s.indexPath(), data, 0644)
}

// Lookup returns a previously cached artifact and diagnostics for key, if
// present. The second return value is false on a cache miss.
func (s *Store) Lookup(key Key) (*compiler.Artifact, []compiler.Diagnostic, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := key.Hash()
	data, err := os.ReadFile(s.entryPath(hash))
	if err != nil {
		return nil, nil, false
	}

	var e entry
	if err := cbor.Unmarshal(data, &e); err != nil {
		return nil, nil, false
	}
	return &compiler.Artifact{Code: e.Code}, e.Diagnostics, true
}

// Store writes key's artifact and diagnostics to disk and records the
// entry in the index.
func (s *Store) Store(key Key, artifact *compiler.Artifact, diagnostics []compiler.Diagnostic) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := key.Hash()
	data, err := cbor.Marshal(entry{Code: artifact.Code, Diagnostics: diagnostics})
	if err != nil {
		return fmt.Errorf("cache: encode entry: %w", err)
	}
	if err := os.WriteFile(s.entryPath(hash), data, 0644); err != nil {
		return fmt.Errorf("cache: write entry: %w", err)
	}

	records, err := s.loadIndex()
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.Hash == hash {
			return nil
		}
	}
	records = append(records, indexRecord{Hash: hash, Path: s.entryPath(hash)})
	return s.saveIndex(records)
}
