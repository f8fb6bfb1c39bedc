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
	"context"
	"fmt"
)

// DebugEntry is one search hit annotated with the API title.
type DebugEntry struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Category string   `json:"category,omitempty"`
	Score    *float32 `json:"score,omitempty"`
}

// DebugResult is the annotated form of a Result.
type DebugResult struct {
	Method     Method       `json:"method"`
	TotalFound int          `json:"total_found"`
	Results    []DebugEntry `json:"results"`
}

// Debug runs Search and annotates every hit with its title. Category
// results list at most limit ids per category.
func (s *Searcher) Debug(ctx context.Context, query string, ids []string, limit int) DebugResult {
	if limit <= 0 {
		limit = DefaultLimit
	}
	result := s.Search(ctx, query, ids, limit)
	out := DebugResult{Method: result.Method, TotalFound: result.TotalFound, Results: []DebugEntry{}}

	for _, m := range result.Matches {
		score := m.Score
		out.Results = append(out.Results, DebugEntry{ID: m.ID, Title: s.title(ctx, m.ID), Score: &score})
	}
	for _, g := range result.Categories {
		for _, id := range g.IDs[:min(limit, len(g.IDs))] {
			out.Results = append(out.Results, DebugEntry{ID: id, Title: s.title(ctx, id), Category: g.Category})
		}
	}
	return out
}

func (s *Searcher) title(ctx context.Context, id string) string {
	title, err := s.describer.Title(ctx, id)
	if err != nil {
		return fmt.Sprintf("<failed to load spec: %v>", err)
	}
	return title
}
