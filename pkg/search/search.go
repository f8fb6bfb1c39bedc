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

// Package search finds SmartAPI ids relevant to a free-text query, by
// embedding similarity when an embedding provider is configured and by a
// fixed keyword-category table otherwise.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/biothings/smartapi-mcp/pkg/core"
	"github.com/biothings/smartapi-mcp/pkg/metrics"
)

// DefaultLimit is the number of semantic matches returned when none is requested.
const DefaultLimit = 5

const defaultConcurrency = 8

// Backend is the search capability chosen at startup.
type Backend string

const (
	BackendEmbedding       Backend = "embedding"
	BackendCategoryKeyword Backend = "category_keyword"
)

// Method names the strategy that produced a Result.
type Method string

const (
	MethodSemantic Method = "semantic_search"
	MethodCategory Method = "category_routing"
)

// Describer supplies the searchable text and title of an API.
type Describer interface {
	Describe(ctx context.Context, id string) (string, error)
	Title(ctx context.Context, id string) (string, error)
}

// Options configures a Searcher.
type Options struct {
	// Encoder enables the embedding backend. Nil selects category routing.
	Encoder Encoder
	// Cache keeps the built index. Nil uses a memory-only cache.
	Cache *Cache
	// Concurrency bounds parallel description lookups.
	Concurrency int
	Metrics     *metrics.Recorder
	Logger      hclog.Logger
}

// Searcher answers queries over a selection of API ids.
type Searcher struct {
	describer   Describer
	encoder     Encoder
	cache       *Cache
	concurrency int
	metrics     *metrics.Recorder
	logger      hclog.Logger
}

// Match is one semantic hit.
type Match struct {
	ID          string  `json:"id"`
	Score       float32 `json:"score"`
	Description string  `json:"description"`
}

// Result is the outcome of Search. Matches is set for semantic results and
// Categories for category routing; category results carry no scores.
type Result struct {
	Method     Method          `json:"method"`
	Matches    []Match         `json:"matches,omitempty"`
	Categories []CategoryGroup `json:"categories,omitempty"`
	TotalFound int             `json:"total_found"`
}

// New creates a Searcher.
func New(describer Describer, opts Options) *Searcher {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("search")
	if opts.Cache == nil {
		opts.Cache = NewCache(nil, logger)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Searcher{
		describer:   describer,
		encoder:     opts.Encoder,
		cache:       opts.Cache,
		concurrency: opts.Concurrency,
		metrics:     opts.Metrics,
		logger:      logger,
	}
}

// Backend reports which search capability is active.
func (s *Searcher) Backend() Backend {
	if s.encoder != nil {
		return BackendEmbedding
	}
	return BackendCategoryKeyword
}

// Search returns the APIs among ids relevant to query. With the embedding
// backend up to limit ranked matches are returned; any failure of that path,
// or an empty result, falls back to category routing. Search never fails.
func (s *Searcher) Search(ctx context.Context, query string, ids []string, limit int) Result {
	if limit <= 0 {
		limit = DefaultLimit
	}

	if s.encoder != nil {
		matches, err := s.semantic(ctx, query, ids, limit)
		switch {
		case err != nil:
			s.logger.Warn("semantic search failed, falling back to category routing", "error", err)
		case len(matches) > 0:
			s.metrics.Search(string(MethodSemantic))
			return Result{Method: MethodSemantic, Matches: matches, TotalFound: len(matches)}
		}
	}

	result := Result{Method: MethodCategory}
	if len(MatchCategories(query)) > 0 {
		result.Categories = routeByCategory(query, s.entries(ctx, ids))
	}
	for _, g := range result.Categories {
		result.TotalFound += len(g.IDs)
	}
	s.metrics.Search(string(MethodCategory))
	return result
}

// BuildIndex returns the embedding index for ids, reusing the cached one when
// it was built for the same set of ids. It fails with
// core.ErrNoDescriptionsAvailable when no id could be described.
func (s *Searcher) BuildIndex(ctx context.Context, ids []string) (*IndexState, error) {
	if s.encoder == nil {
		return nil, errors.New("no embedding provider configured")
	}
	model := encoderModel(s.encoder)
	return s.cache.GetOrBuild(model, ids, func() (*IndexState, error) {
		entries := s.entries(ctx, ids)
		if len(entries) == 0 {
			return nil, core.ErrNoDescriptionsAvailable
		}
		texts := make([]string, len(entries))
		for i, e := range entries {
			texts[i] = e.Description
		}
		vectors, err := s.encoder.Encode(ctx, texts)
		if err != nil {
			return nil, err
		}
		index, err := NewFlatIndex(vectors)
		if err != nil {
			return nil, err
		}
		s.logger.Info("built semantic index", "apis", len(entries), "requested", len(ids), "dim", index.Dim())
		return &IndexState{Requested: ids, Model: model, Entries: entries, Index: index}, nil
	})
}

func (s *Searcher) semantic(ctx context.Context, query string, ids []string, limit int) ([]Match, error) {
	state, err := s.BuildIndex(ctx, ids)
	if err != nil {
		return nil, err
	}
	vectors, err := s.encoder.Encode(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	hits, err := state.Index.Search(vectors[0], limit)
	if errors.Is(err, ErrDimensionMismatch) {
		s.logger.Warn("cached search index does not fit the embedding model, rebuilding", "error", err)
		s.cache.Invalidate()
		if state, err = s.BuildIndex(ctx, ids); err != nil {
			return nil, err
		}
		hits, err = state.Index.Search(vectors[0], limit)
	}
	if err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		if h.Position < 0 || h.Position >= len(state.Entries) {
			continue
		}
		e := state.Entries[h.Position]
		matches = append(matches, Match{ID: e.ID, Score: h.Score, Description: e.Description})
	}
	return matches, nil
}

// entries describes ids concurrently, keeping their order and skipping
// every id that cannot be described.
func (s *Searcher) entries(ctx context.Context, ids []string) []Entry {
	described := make([]*Entry, len(ids))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			text, err := s.describer.Describe(ctx, id)
			if err != nil {
				s.logger.Warn("failed to load API spec", "id", id, "error", err)
				return nil
			}
			if text == "" {
				text = id
			}
			described[i] = &Entry{ID: id, Description: text}
			return nil
		})
	}
	_ = g.Wait()

	entries := make([]Entry, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, e := range described {
		if e != nil && !seen[e.ID] {
			seen[e.ID] = true
			entries = append(entries, *e)
		}
	}
	return entries
}

// Summary renders r for the search tool.
func (r Result) Summary() string {
	if r.Method == MethodSemantic {
		top := make([]string, 0, 3)
		for _, m := range r.Matches {
			if len(top) == 3 {
				break
			}
			top = append(top, m.ID)
		}
		return fmt.Sprintf("Semantic search found %d relevant APIs: [%s]", r.TotalFound, strings.Join(top, ", "))
	}

	groups := r.Categories
	if len(groups) > 3 {
		groups = groups[:3]
	}
	names := make([]string, 0, len(groups))
	var samples []string
	for _, g := range groups {
		names = append(names, g.Category)
		samples = append(samples, g.IDs[:min(2, len(g.IDs))]...)
	}
	return fmt.Sprintf("Found %d APIs via category routing. Categories: [%s]. Sample IDs: [%s]",
		r.TotalFound, strings.Join(names, ", "), strings.Join(samples, ", "))
}
