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

package loader

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/biothings/smartapi-mcp/pkg/core"
	"github.com/biothings/smartapi-mcp/pkg/merge"
	"github.com/biothings/smartapi-mcp/pkg/metrics"
)

// Tool names exposed by the router and progressive servers.
const (
	SearchToolName = "search_smartapi"
	LoadToolName   = "load_tools_batch"
)

// batchLoader grows server with the tools of APIs loaded on request.
// Batches run one at a time.
type batchLoader struct {
	server    *core.ServerInstance
	selection []string
	name      string
	capacity  int
	strategy  Strategy
	builder   Builder
	metrics   *metrics.Recorder
	logger    hclog.Logger

	mu         sync.Mutex
	loaded     map[string]bool
	namespaces map[string]string
}

func (l *Loader) newBatchLoader(server *core.ServerInstance, selection []string, name string, strategy Strategy) *batchLoader {
	return &batchLoader{
		server:     server,
		selection:  selection,
		name:       name,
		capacity:   l.opts.Capacity,
		strategy:   strategy,
		builder:    l.builder,
		metrics:    l.opts.Metrics,
		logger:     l.logger.With("server", server.Name()),
		loaded:     make(map[string]bool),
		namespaces: make(map[string]string),
	}
}

// Load builds up to capacity of apiIDs, merges the ones that succeeded and
// adds their entries to the server. With defaultToSelection an empty request
// loads the first capacity ids of the selection. The returned text is meant
// for the calling model.
func (b *batchLoader) Load(ctx context.Context, apiIDs []string, defaultToSelection bool) (string, error) {
	batch := apiIDs
	if len(batch) == 0 && defaultToSelection {
		batch = b.selection
	}
	batch = batch[:min(b.capacity, len(batch))]
	if len(batch) == 0 {
		return "No API IDs provided to load.", nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var pending, skipped []string
	seen := make(map[string]bool, len(batch))
	for _, id := range batch {
		switch {
		case seen[id]:
		case b.loaded[id]:
			skipped = append(skipped, id)
		default:
			pending = append(pending, id)
		}
		seen[id] = true
	}
	if len(pending) == 0 {
		return fmt.Sprintf("No new APIs to load. Already loaded: [%s]", strings.Join(skipped, ", ")), nil
	}

	var instances []*core.ServerInstance
	var ids []string
	batchNamespaces := make(map[string]string)
	for _, outcome := range b.builder.BuildEach(ctx, pending) {
		if outcome.Err != nil {
			b.logger.Warn("failed to load SmartAPI", "id", outcome.ID, "error", outcome.Err)
			continue
		}
		instance := outcome.Instance
		if len(instance.Tools()) == 0 {
			b.logger.Warn("skipping API without tools", "id", outcome.ID, "name", instance.Name())
			continue
		}
		prefix := merge.SanitizeNamespace(instance.Name())
		if owner, ok := b.namespaces[prefix]; ok {
			b.logger.Warn("skipping API whose namespace is already loaded", "id", outcome.ID, "namespace", prefix, "loaded_by", owner)
			continue
		}
		if owner, ok := batchNamespaces[prefix]; ok {
			b.logger.Warn("skipping API whose namespace collides within the batch", "id", outcome.ID, "namespace", prefix, "kept", owner)
			continue
		}
		batchNamespaces[prefix] = outcome.ID
		instances = append(instances, instance)
		ids = append(ids, outcome.ID)
	}
	if len(instances) == 0 {
		return "No tools loaded.", nil
	}

	merged, err := merge.Merge(instances, b.name+"-batch")
	if err != nil {
		return "", err
	}
	tools := merged.Tools()
	if err := b.server.Add(core.Update{Tools: tools, Prompts: merged.Prompts(), Resources: merged.Resources()}); err != nil {
		return "", err
	}

	for _, id := range ids {
		b.loaded[id] = true
	}
	for prefix, id := range batchNamespaces {
		b.namespaces[prefix] = id
	}
	b.metrics.BatchLoad(string(b.strategy))
	b.metrics.ToolsLoaded(len(tools))
	b.logger.Info("loaded API batch", "apis", len(instances), "tools", len(tools), "ids", ids)

	return fmt.Sprintf("Loaded %d APIs with %d tools.", len(instances), len(tools)), nil
}

// tool returns the load_tools_batch entry. A router requires api_ids.
func (b *batchLoader) tool(description string, requireIDs bool) core.ToolEntry {
	idsOpts := []mcp.PropertyOption{
		mcp.Description("SmartAPI ids to load"),
		mcp.Items(map[string]any{"type": "string"}),
	}
	if requireIDs {
		idsOpts = append(idsOpts, mcp.Required())
	}
	defaultToSelection := !requireIDs

	return core.ToolEntry{
		Tool: mcp.NewTool(LoadToolName,
			mcp.WithDescription(description),
			mcp.WithArray("api_ids", idsOpts...),
		),
		Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			text, err := b.Load(ctx, stringSlice(request.GetArguments()["api_ids"]), defaultToSelection)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("failed to load tools: %v", err)), nil
			}
			return mcp.NewToolResultText(text), nil
		},
		OriginalName: LoadToolName,
	}
}

func searchTool(searcher Searcher, ids []string) core.ToolEntry {
	description := fmt.Sprintf("Intelligently search across %d SmartAPIs by category or semantic query. "+
		"Use this first to discover relevant APIs before loading specific tools.", len(ids))

	return core.ToolEntry{
		Tool: mcp.NewTool(SearchToolName,
			mcp.WithDescription(description),
			mcp.WithString("query", mcp.Required(), mcp.Description("What the API should be able to do")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of semantic matches"), mcp.DefaultNumber(5)),
		),
		Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := request.GetArguments()
			query, _ := args["query"].(string)
			if strings.TrimSpace(query) == "" {
				return mcp.NewToolResultError("query is required"), nil
			}
			limit := 5
			if v, ok := args["limit"].(float64); ok && v > 0 {
				limit = int(v)
			}
			return mcp.NewToolResultText(searcher.Search(ctx, query, ids, limit).Summary()), nil
		},
		OriginalName: SearchToolName,
	}
}

// stringSlice accepts a JSON array of strings or a comma-separated string.
func stringSlice(v any) []string {
	var out []string
	switch vv := v.(type) {
	case []any:
		for _, item := range vv {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range vv {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(vv, ",") {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}
