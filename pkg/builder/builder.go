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

// Package builder turns SmartAPI ids into populated server instances.
package builder

import (
	"context"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/biothings/smartapi-mcp/pkg/core"
	"github.com/biothings/smartapi-mcp/pkg/metrics"
	"github.com/biothings/smartapi-mcp/pkg/smartapi"
)

// DefaultConcurrency bounds how many APIs are built at once.
const DefaultConcurrency = 8

// SpecResolver loads the description of a registered API.
type SpecResolver interface {
	Resolve(ctx context.Context, id string) (*smartapi.APIDescription, error)
}

// Generator turns a description bound to an endpoint into a server instance.
type Generator interface {
	FromOpenAPI(desc *smartapi.APIDescription, endpoint core.Endpoint) (*core.ServerInstance, error)
}

// Options configures a Builder.
type Options struct {
	// Concurrency ceiling for BuildAll and BuildEach. Zero selects DefaultConcurrency.
	Concurrency int
	Metrics     *metrics.Recorder
	Logger      hclog.Logger
}

// Builder builds one server instance per API id.
type Builder struct {
	resolver    SpecResolver
	generator   Generator
	concurrency int
	metrics     *metrics.Recorder
	logger      hclog.Logger
}

// Outcome is the result of building one id with BuildEach.
type Outcome struct {
	ID       string
	Instance *core.ServerInstance
	Err      error
}

// New creates a Builder.
func New(resolver SpecResolver, generator Generator, opts Options) *Builder {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Builder{
		resolver:    resolver,
		generator:   generator,
		concurrency: opts.Concurrency,
		metrics:     opts.Metrics,
		logger:      logger.Named("builder"),
	}
}

// Build resolves the description of id, picks its base endpoint and
// generates the server instance. Errors are returned unchanged.
func (b *Builder) Build(ctx context.Context, id string) (*core.ServerInstance, error) {
	instance, err := b.build(ctx, id)
	b.metrics.Build(err)
	return instance, err
}

func (b *Builder) build(ctx context.Context, id string) (*core.ServerInstance, error) {
	desc, err := b.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	endpoint, err := smartapi.ResolveBaseURL(desc)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("resolved base URL", "id", id, "url", endpoint.URL)

	instance, err := b.generator.FromOpenAPI(desc, endpoint)
	if err != nil {
		return nil, err
	}
	b.logger.Info("built API server", "id", id, "name", instance.Name(), "tools", len(instance.Tools()))
	return instance, nil
}

// BuildAll builds every id concurrently and returns the instances in the
// order of ids. The first failure cancels the remaining builds and is returned.
func (b *Builder) BuildAll(ctx context.Context, ids []string) ([]*core.ServerInstance, error) {
	instances := make([]*core.ServerInstance, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			instance, err := b.Build(ctx, id)
			if err != nil {
				return err
			}
			instances[i] = instance
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return instances, nil
}

// BuildEach builds every id concurrently and reports each result
// independently, in the order of ids. Failures are logged with their id.
func (b *Builder) BuildEach(ctx context.Context, ids []string) []Outcome {
	outcomes := make([]Outcome, len(ids))
	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			instance, err := b.Build(ctx, id)
			if err != nil {
				b.logger.Warn("failed to build API server", "id", id, "error", err)
			}
			outcomes[i] = Outcome{ID: id, Instance: instance, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
