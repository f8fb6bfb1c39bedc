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

// Package loader decides how a selection of APIs is exposed: merged in full,
// or behind a small server whose tools load APIs in bounded batches.
package loader

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/biothings/smartapi-mcp/pkg/builder"
	"github.com/biothings/smartapi-mcp/pkg/core"
	"github.com/biothings/smartapi-mcp/pkg/merge"
	"github.com/biothings/smartapi-mcp/pkg/metrics"
	"github.com/biothings/smartapi-mcp/pkg/search"
)

// Strategy is the way a selection is served.
type Strategy string

const (
	StrategyFull        Strategy = "full"
	StrategyProgressive Strategy = "progressive"
	StrategyRouter      Strategy = "router"
)

// Defaults for Options.
const (
	DefaultCapacity             = 10
	DefaultRouterThreshold      = 50
	DefaultProgressiveThreshold = 10
)

// Builder builds server instances for API ids.
type Builder interface {
	BuildAll(ctx context.Context, ids []string) ([]*core.ServerInstance, error)
	BuildEach(ctx context.Context, ids []string) []builder.Outcome
}

// Searcher finds APIs relevant to a query.
type Searcher interface {
	Search(ctx context.Context, query string, ids []string, limit int) search.Result
}

// Options configures a Loader. Zero values select the defaults.
type Options struct {
	// Capacity is the most APIs one batch may load.
	Capacity int
	// RoutingEnabled allows the router strategy.
	RoutingEnabled bool
	// RouterThreshold is the smallest selection served by the router.
	RouterThreshold int
	// ProgressiveThreshold is the smallest selection served progressively.
	ProgressiveThreshold int
	Version              string
	Metrics              *metrics.Recorder
	Logger               hclog.Logger
}

// Result is the server chosen for a selection.
type Result struct {
	Strategy Strategy
	Server   *core.ServerInstance
}

// Loader serves a selection of APIs with the strategy its size calls for.
type Loader struct {
	builder  Builder
	searcher Searcher
	opts     Options
	logger   hclog.Logger
}

// New creates a Loader. searcher may be nil when routing is disabled.
func New(b Builder, searcher Searcher, opts Options) *Loader {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.RouterThreshold <= 0 {
		opts.RouterThreshold = DefaultRouterThreshold
	}
	if opts.ProgressiveThreshold <= 0 {
		opts.ProgressiveThreshold = DefaultProgressiveThreshold
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Loader{
		builder:  b,
		searcher: searcher,
		opts:     opts,
		logger:   logger.Named("loader"),
	}
}

// Strategy returns the strategy for a selection of n APIs.
func (l *Loader) Strategy(n int) Strategy {
	switch {
	case l.opts.RoutingEnabled && l.searcher != nil && n >= l.opts.RouterThreshold:
		return StrategyRouter
	case n >= l.opts.ProgressiveThreshold:
		return StrategyProgressive
	default:
		return StrategyFull
	}
}

// Load returns the server for ids, named after name.
//
// Small selections are built concurrently and merged; any failure is
// returned. Larger selections get a progressive server, and with routing
// enabled the largest get a router server that can also search. Both start
// with only their own tools and grow as batches are loaded.
func (l *Loader) Load(ctx context.Context, ids []string, name string) (*Result, error) {
	if len(ids) == 0 {
		return nil, core.ErrNoAPIsSelected
	}
	if name == "" {
		name = merge.DefaultName
	}

	strategy := l.Strategy(len(ids))
	l.logger.Info("loading APIs", "apis", len(ids), "strategy", strategy, "capacity", l.opts.Capacity)

	switch strategy {
	case StrategyRouter:
		server, err := l.routerServer(ids, name)
		if err != nil {
			return nil, err
		}
		return &Result{Strategy: strategy, Server: server}, nil
	case StrategyProgressive:
		server, err := l.progressiveServer(ids, name)
		if err != nil {
			return nil, err
		}
		return &Result{Strategy: strategy, Server: server}, nil
	}

	instances, err := l.builder.BuildAll(ctx, ids)
	if err != nil {
		return nil, err
	}
	aggregate, err := merge.Merge(instances, name)
	if err != nil {
		return nil, err
	}
	l.opts.Metrics.ToolsLoaded(len(aggregate.Tools()))
	return &Result{Strategy: strategy, Server: aggregate}, nil
}

func (l *Loader) routerServer(ids []string, name string) (*core.ServerInstance, error) {
	server := core.NewServerInstance(name+"-router", l.opts.Version)
	batches := l.newBatchLoader(server, ids, name, StrategyRouter)
	tools := []core.ToolEntry{
		searchTool(l.searcher, ids),
		batches.tool(fmt.Sprintf("Load SmartAPI tools in batches of %d after search. Provide API IDs to load their tools.", l.opts.Capacity), true),
	}
	if err := server.AddTools(tools...); err != nil {
		return nil, fmt.Errorf("router server: %w", err)
	}
	return server, nil
}

func (l *Loader) progressiveServer(ids []string, name string) (*core.ServerInstance, error) {
	server := core.NewServerInstance(name+"-progressive", l.opts.Version)
	batches := l.newBatchLoader(server, ids, name, StrategyProgressive)
	tool := batches.tool(fmt.Sprintf("Load SmartAPI tools in batches of %d to manage context usage. Provide API IDs to load their tools.", l.opts.Capacity), false)
	if err := server.AddTools(tool); err != nil {
		return nil, fmt.Errorf("progressive server: %w", err)
	}
	return server, nil
}
