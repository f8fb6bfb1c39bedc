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

// Package selection resolves the CLI selection inputs into the final list of
// SmartAPI ids to serve.
package selection

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/biothings/smartapi-mcp/pkg/core"
)

// QueryClient runs a registry query and returns the matching ids.
type QueryClient interface {
	QueryIDs(ctx context.Context, q string) ([]string, error)
}

// Request holds the raw selection inputs. Empty fields are absent.
type Request struct {
	// APISet names a predefined set. APISetGiven marks an explicitly
	// requested set so that an empty name is reported as unknown.
	APISet      string
	APISetGiven bool

	ID      string
	IDs     []string
	Query   string
	Exclude []string
}

// Resolver turns a Request into ids.
type Resolver struct {
	client QueryClient
	logger hclog.Logger
}

// NewResolver creates a Resolver querying the registry through client.
func NewResolver(client QueryClient, logger hclog.Logger) *Resolver {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Resolver{client: client, logger: logger.Named("selection")}
}

// Resolve applies, from weakest to strongest, the predefined set, the query,
// the id list and the single id. Only the strongest present source supplies
// ids; the registry is queried only when a query is that source.
// Duplicates are dropped keeping first-seen order, then the exclusion list
// is subtracted. An explicit exclusion list replaces the set's default one.
//
// The result may be empty when exclusion removes every id.
func (r *Resolver) Resolve(ctx context.Context, req Request) ([]string, error) {
	var set APISet
	if req.APISet != "" || req.APISetGiven {
		var err error
		if set, err = LookupSet(req.APISet); err != nil {
			return nil, err
		}
	}

	var ids []string
	switch {
	case req.ID != "":
		ids = []string{req.ID}
	case len(req.IDs) > 0:
		ids = req.IDs
	case req.Query != "":
		live, err := r.query(ctx, req.Query)
		if err != nil {
			return nil, err
		}
		ids = live
	default:
		ids = set.IDs
		if set.Query != "" {
			live, err := r.query(ctx, set.Query)
			if err != nil {
				return nil, err
			}
			ids = append(ids, live...)
		}
	}

	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, core.ErrNoAPIsSelected
	}

	exclude := set.Exclude
	if len(req.Exclude) > 0 {
		exclude = req.Exclude
	}
	selected := subtract(ids, exclude)
	r.logger.Debug("resolved selection", "set", set.Name, "selected", len(selected), "excluded", len(ids)-len(selected))
	return selected, nil
}

func (r *Resolver) query(ctx context.Context, q string) ([]string, error) {
	if r.client == nil {
		return nil, fmt.Errorf("query %q: no registry client configured", q)
	}
	ids, err := r.client.QueryIDs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query registry: %w", err)
	}
	r.logger.Info("registry query resolved", "query", q, "ids", len(ids))
	return ids, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func subtract(ids, exclude []string) []string {
	if len(exclude) == 0 {
		return ids
	}
	drop := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		drop[id] = struct{}{}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
