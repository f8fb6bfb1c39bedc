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

package internal

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/biothings/smartapi-mcp/pkg/builder"
	"github.com/biothings/smartapi-mcp/pkg/config"
	"github.com/biothings/smartapi-mcp/pkg/core"
	"github.com/biothings/smartapi-mcp/pkg/loader"
	"github.com/biothings/smartapi-mcp/pkg/metrics"
	"github.com/biothings/smartapi-mcp/pkg/search"
	"github.com/biothings/smartapi-mcp/pkg/selection"
	"github.com/biothings/smartapi-mcp/pkg/smartapi"
	"github.com/biothings/smartapi-mcp/pkg/sources/openapi"
)

// App wires the registry, builders, loader and search for one run.
type App struct {
	cfg     config.Config
	version string
	logger  hclog.Logger

	registry *prometheus.Registry
	selector *selection.Resolver
	searcher *search.Searcher
	loader   *loader.Loader
	factory  ServerFactory
}

// Option customises an App.
type Option func(*App)

// WithServerFactory replaces the production transports.
func WithServerFactory(f ServerFactory) Option {
	return func(a *App) { a.factory = f }
}

// NewApp validates cfg and builds every component. The search backend is
// chosen here: embeddings when an embedding URL is configured, category
// routing otherwise.
func NewApp(cfg config.Config, version string, logger hclog.Logger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger = loggerOrNull(logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(registry)

	client := smartapi.NewClient(cfg.RegistryURL, cfg.Timeout, logger)
	resolver := smartapi.NewResolver(client, logger)
	generator := openapi.NewGenerator(openapi.Options{
		Timeout: cfg.Timeout,
		DevMode: cfg.DevMode,
		Logger:  logger,
	})
	b := builder.New(resolver, generator, builder.Options{
		Concurrency: cfg.Concurrency,
		Metrics:     recorder,
		Logger:      logger,
	})

	searchOpts := search.Options{
		Concurrency: cfg.Concurrency,
		Metrics:     recorder,
		Logger:      logger,
	}
	if cfg.EmbeddingURL != "" {
		encoder, err := search.NewHTTPEncoder(cfg.EmbeddingURL, cfg.EmbeddingModel, cfg.Timeout)
		if err != nil {
			logger.Warn("embedding backend unavailable, using category routing", "error", err)
		} else {
			searchOpts.Encoder = encoder
		}
	}
	if cfg.CacheDir != "" {
		searchOpts.Cache = search.NewCache(search.NewStore(cfg.CacheDir), logger)
	}
	searcher := search.New(resolver, searchOpts)

	app := &App{
		cfg:      cfg,
		version:  version,
		logger:   logger,
		registry: registry,
		selector: selection.NewResolver(client, logger),
		searcher: searcher,
		loader: loader.New(b, searcher, loader.Options{
			Capacity:       cfg.MaxTools,
			RoutingEnabled: cfg.Routing,
			Version:        version,
			Metrics:        recorder,
			Logger:         logger,
		}),
		factory: &ProductionServerFactory{
			HandlerOptions: HandlerOptions{Gatherer: registry, CORSOrigins: cfg.CORSOrigins},
			Logger:         logger,
		},
	}
	for _, opt := range opts {
		opt(app)
	}
	return app, nil
}

// Select resolves the configured selection into API ids.
func (a *App) Select(ctx context.Context) ([]string, error) {
	ids, err := a.selector.Resolve(ctx, a.cfg.SelectionRequest())
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		a.logger.Warn("all selected APIs were excluded")
		return nil, core.ErrNoAPIsSelected
	}
	return ids, nil
}

// Load selects and loads the configured APIs.
func (a *App) Load(ctx context.Context) ([]string, *loader.Result, error) {
	ids, err := a.Select(ctx)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Info("selected APIs", "count", len(ids))

	result, err := a.loader.Load(ctx, ids, a.cfg.ServerName)
	if err != nil {
		return nil, nil, err
	}

	summary := result.Server.Summary()
	a.logger.Info(fmt.Sprintf("Server components: %d prompts, %d tools, %d resources",
		summary.Prompts, summary.Tools, summary.Resources), "strategy", result.Strategy)
	if summary.Tools == 0 && summary.Resources == 0 {
		a.logger.Warn("no tools or resources registered")
	}
	return ids, result, nil
}

// Run loads the selection and serves it until ctx is done. With a manifest
// path configured the manifest is written instead.
func (a *App) Run(ctx context.Context) error {
	ids, result, err := a.Load(ctx)
	if err != nil {
		return err
	}

	if a.cfg.Manifest != "" {
		if err := SaveManifest(a.cfg.Manifest, NewManifest(result, ids, a.version)); err != nil {
			return err
		}
		a.logger.Info("manifest written, exiting", "path", a.cfg.Manifest)
		return nil
	}

	err = StartServerWithFactory(ctx, result.Server, a.cfg.Transport, a.cfg.Addr(), a.version, a.factory, a.logger)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Debug selects the configured APIs and reports how query is routed.
func (a *App) Debug(ctx context.Context, query string, limit int) (search.DebugResult, error) {
	ids, err := a.Select(ctx)
	if err != nil {
		return search.DebugResult{}, err
	}
	return a.searcher.Debug(ctx, query, ids, limit), nil
}

// Registry returns the Prometheus registry of the app.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}
