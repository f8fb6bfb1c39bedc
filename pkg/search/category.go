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

import "strings"

// Category groups APIs by keywords found in their descriptions.
type Category struct {
	Name     string
	Keywords []string
}

// Categories is the fixed routing table used when no embedding backend is
// available or semantic search finds nothing.
var Categories = []Category{
	{Name: "bioinformatics", Keywords: []string{"gene", "protein", "genomic", "genome", "sequence", "variant", "mutation", "pathway", "bio"}},
	{Name: "clinical", Keywords: []string{"clinical", "patient", "phenotype", "disease", "trial"}},
	{Name: "literature", Keywords: []string{"literature", "publication", "paper", "abstract"}},
}

// Matches reports whether text contains any keyword, ignoring case.
func (c Category) Matches(text string) bool {
	text = strings.ToLower(text)
	for _, k := range c.Keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// MatchCategories returns the categories query refers to, in table order.
func MatchCategories(query string) []Category {
	var matched []Category
	for _, c := range Categories {
		if c.Matches(query) {
			matched = append(matched, c)
		}
	}
	return matched
}

// CategoryGroup is the membership of one matched category.
type CategoryGroup struct {
	Category string   `json:"category"`
	IDs      []string `json:"ids"`
}

// routeByCategory buckets entries into the categories matched by query.
// Categories without members are omitted. An API may appear in several groups.
func routeByCategory(query string, entries []Entry) []CategoryGroup {
	matched := MatchCategories(query)
	if len(matched) == 0 {
		return nil
	}
	var groups []CategoryGroup
	for _, c := range matched {
		var ids []string
		for _, e := range entries {
			if c.Matches(e.Description) {
				ids = append(ids, e.ID)
			}
		}
		if len(ids) > 0 {
			groups = append(groups, CategoryGroup{Category: c.Name, IDs: ids})
		}
	}
	return groups
}
