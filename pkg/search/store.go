// Copyright 2025 SmartAPI MCP Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package search

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Cache file names inside the cache directory. IDsFile is written last and
// commits the other two.
const (
	IDsFile          = "api_ids.json"
	DescriptionsFile = "api_descriptions.json"
	IndexFile        = "semantic_index.bin"
)

const cacheFileMode os.FileMode = 0o644

// Entry is one indexed API with the text its vector was built from.
type Entry struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// IndexState is a built index together with the selection and embedding
// model it was built for. Entries are in index order; ids whose description
// failed are absent.
type IndexState struct {
	Requested []string
	Model     string
	Entries   []Entry
	Index     *FlatIndex
}

// Matches reports whether s was built by model for ids, ignoring order and
// duplicates of ids.
func (s *IndexState) Matches(model string, ids []string) bool {
	return s != nil && s.Model == model && sameIDs(s.Requested, ids)
}

// Descriptions maps id to description.
func (s *IndexState) Descriptions() map[string]string {
	out := make(map[string]string, len(s.Entries))
	for _, e := range s.Entries {
		out[e.ID] = e.Description
	}
	return out
}

func sameIDs(a, b []string) bool {
	return slices.Equal(normalizeIDs(a), normalizeIDs(b))
}

func normalizeIDs(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// commitRecord is the content of IDsFile. It pins the checksums of the
// descriptions and index files it was written with.
type commitRecord struct {
	IDs          []string `json:"ids"`
	Model        string   `json:"model"`
	Dim          int      `json:"dim"`
	Descriptions string   `json:"descriptions_sha256"`
	Index        string   `json:"index_sha256"`
}

// Store persists an IndexState as three files in one directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir. The directory is created on Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the cache directory.
func (s *Store) Dir() string { return s.dir }

// Load reads the persisted state. A missing commit record yields an error
// wrapping fs.ErrNotExist. Files that do not match the record, or entries
// outside the recorded selection, are rejected.
func (s *Store) Load() (*IndexState, error) {
	var rec commitRecord
	if err := readJSON(filepath.Join(s.dir, IDsFile), &rec); err != nil {
		return nil, err
	}

	descData, err := readVerified(filepath.Join(s.dir, DescriptionsFile), rec.Descriptions)
	if err != nil {
		return nil, err
	}
	indexData, err := readVerified(filepath.Join(s.dir, IndexFile), rec.Index)
	if err != nil {
		return nil, err
	}

	state := IndexState{Requested: rec.IDs, Model: rec.Model}
	if err := json.Unmarshal(descData, &state.Entries); err != nil {
		return nil, fmt.Errorf("cache: decode %s: %w", DescriptionsFile, err)
	}
	if state.Index, err = ReadFlatIndex(bytes.NewReader(indexData)); err != nil {
		return nil, err
	}
	if state.Index.Dim() != rec.Dim {
		return nil, fmt.Errorf("cache: index has dimension %d, record says %d", state.Index.Dim(), rec.Dim)
	}
	if state.Index.Len() != len(state.Entries) {
		return nil, fmt.Errorf("cache: index holds %d vectors for %d descriptions", state.Index.Len(), len(state.Entries))
	}
	for _, e := range state.Entries {
		if !slices.Contains(rec.IDs, e.ID) {
			return nil, fmt.Errorf("cache: entry %q is not part of the cached selection", e.ID)
		}
	}
	return &state, nil
}

// Save writes every file of state atomically, descriptions and index first
// and the commit record last.
func (s *Store) Save(state *IndexState) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	descData, err := json.Marshal(state.Entries)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", DescriptionsFile, err)
	}
	var buf bytes.Buffer
	if _, err := state.Index.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}

	if err := writeAtomic(filepath.Join(s.dir, DescriptionsFile), descData, cacheFileMode); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(s.dir, IndexFile), buf.Bytes(), cacheFileMode); err != nil {
		return err
	}
	rec := commitRecord{
		IDs:          state.Requested,
		Model:        state.Model,
		Dim:          state.Index.Dim(),
		Descriptions: checksum(descData),
		Index:        checksum(buf.Bytes()),
	}
	recData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", IDsFile, err)
	}
	return writeAtomic(filepath.Join(s.dir, IDsFile), recData, cacheFileMode)
}

// Discard removes the commit record so the next Load misses.
func (s *Store) Discard() error {
	err := os.Remove(filepath.Join(s.dir, IDsFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func readVerified(path, want string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if checksum(data) != want {
		return nil, fmt.Errorf("cache: %s does not match its commit record", filepath.Base(path))
	}
	return data, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cache: decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeAtomic writes data to a temporary file in the target directory,
// applies perm and renames it into place.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set cache file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}

// Cache holds the most recently built IndexState in memory, backed by an
// optional Store. The zero value is an empty memory-only cache.
type Cache struct {
	mu     sync.Mutex
	state  *IndexState
	store  *Store
	logger hclog.Logger
}

// NewCache returns a Cache persisting through store, which may be nil.
func NewCache(store *Store, logger hclog.Logger) *Cache {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Cache{store: store, logger: logger}
}

// GetOrBuild returns the state built by model for ids from memory, then from
// the store, and otherwise calls build and persists its result. Only one
// build runs at a time. A failed persist is logged and the built state still
// returned.
func (c *Cache) GetOrBuild(model string, ids []string, build func() (*IndexState, error)) (*IndexState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Matches(model, ids) {
		return c.state, nil
	}
	if c.store != nil {
		state, err := c.store.Load()
		switch {
		case err == nil && state.Matches(model, ids):
			c.logger.Debug("loaded search index from cache", "dir", c.store.Dir(), "apis", len(state.Entries))
			c.state = state
			return state, nil
		case err == nil:
			c.logger.Debug("cached search index was built for a different selection or model", "dir", c.store.Dir())
		case !errors.Is(err, fs.ErrNotExist):
			c.logger.Warn("ignoring unreadable search index cache", "dir", c.store.Dir(), "error", err)
		}
	}

	state, err := build()
	if err != nil {
		return nil, err
	}
	if c.store != nil {
		if err := c.store.Save(state); err != nil {
			c.logger.Warn("failed to persist search index", "dir", c.store.Dir(), "error", err)
		}
	}
	c.state = state
	return state, nil
}

// Invalidate drops the state held in memory and discards the persisted one.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = nil
	if c.store != nil {
		if err := c.store.Discard(); err != nil {
			c.logger.Warn("failed to discard search index cache", "dir", c.store.Dir(), "error", err)
		}
	}
}

// State returns the state currently held in memory, or nil.
func (c *Cache) State() *IndexState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
