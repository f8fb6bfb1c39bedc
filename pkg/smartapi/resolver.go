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

package smartapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/pb33f/libopenapi"
	"github.com/pb33f/libopenapi/datamodel"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
	"golang.org/x/sync/singleflight"

	"github.com/biothings/smartapi-mcp/pkg/core"
)

// DocumentFetcher returns the raw OpenAPI document for a registry identifier.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, id string) ([]byte, error)
}

// APIDescription is the parsed form of one registry entry.
type APIDescription struct {
	ID          string
	Title       string
	Version     string
	Summary     string
	Description string
	Servers     []core.Endpoint

	// Document is the libopenapi V3 model. Never nil for a resolved description.
	Document *libopenapi.DocumentModel[v3.Document]
	// Raw holds the document bytes as served by the registry.
	Raw []byte
	// Validated is false when building the model reported errors.
	Validated bool
}

// DisplayName returns the title, or the identifier when the document has none.
func (d *APIDescription) DisplayName() string {
	if d.Title != "" {
		return d.Title
	}
	return d.ID
}

// SearchText joins title, summary and description with single spaces,
// skipping empty parts. It falls back to the identifier.
func (d *APIDescription) SearchText() string {
	var parts []string
	for _, p := range []string{d.Title, d.Summary, d.Description} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return d.ID
	}
	return strings.Join(parts, " ")
}

// Resolver turns identifiers into APIDescriptions. Successful resolutions are
// memoised for the lifetime of the resolver; failures are not.
type Resolver struct {
	fetcher DocumentFetcher
	logger  hclog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]*APIDescription
}

// NewResolver creates a resolver backed by fetcher.
func NewResolver(fetcher DocumentFetcher, logger hclog.Logger) *Resolver {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Resolver{
		fetcher: fetcher,
		logger:  logger.Named("resolver"),
		cache:   make(map[string]*APIDescription),
	}
}

// Resolve returns the description for id. Concurrent calls for the same id
// share a single registry round trip. The shared fetch is detached from the
// caller's cancellation so one abandoned caller does not fail the others.
func (r *Resolver) Resolve(ctx context.Context, id string) (*APIDescription, error) {
	r.mu.RLock()
	desc, ok := r.cache[id]
	r.mu.RUnlock()
	if ok {
		return desc, nil
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(id, func() (any, error) {
		return r.fetch(fetchCtx, id)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*APIDescription), nil
	}
}

func (r *Resolver) fetch(ctx context.Context, id string) (*APIDescription, error) {
	raw, err := r.fetcher.FetchDocument(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrSpecUnavailable) {
			return nil, err
		}
		return nil, &core.SpecUnavailableError{ID: id, Err: err}
	}
	desc, err := r.parse(id, raw)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.cache[id] = desc
	r.mu.Unlock()
	return desc, nil
}

// Describe returns the search text for id.
func (r *Resolver) Describe(ctx context.Context, id string) (string, error) {
	desc, err := r.Resolve(ctx, id)
	if err != nil {
		return "", err
	}
	return desc.SearchText(), nil
}

// Title returns the display name for id.
func (r *Resolver) Title(ctx context.Context, id string) (string, error) {
	desc, err := r.Resolve(ctx, id)
	if err != nil {
		return "", err
	}
	return desc.Title, nil
}

func (r *Resolver) parse(id string, raw []byte) (*APIDescription, error) {
	config := datamodel.NewDocumentConfiguration()
	config.AllowRemoteReferences = true
	config.AllowFileReferences = false

	document, err := libopenapi.NewDocumentWithConfiguration(raw, config)
	if err != nil {
		return nil, &core.SpecUnavailableError{ID: id, Err: fmt.Errorf("parse document: %w", err)}
	}

	docModel, modelErrs := document.BuildV3Model()
	if docModel == nil {
		return nil, &core.SpecUnavailableError{ID: id, Err: fmt.Errorf("build model: %w", errors.Join(modelErrs...))}
	}

	validated := len(modelErrs) == 0
	if !validated {
		r.logger.Warn("OpenAPI specification validation failed, but continuing anyway",
			"id", id, "errors", len(modelErrs), "first", modelErrs[0])
	}

	desc := &APIDescription{
		ID:        id,
		Document:  docModel,
		Raw:       raw,
		Validated: validated,
	}
	if info := docModel.Model.Info; info != nil {
		desc.Title = info.Title
		desc.Version = info.Version
		desc.Summary = info.Summary
		desc.Description = info.Description
	}
	for _, s := range docModel.Model.Servers {
		if s == nil {
			continue
		}
		desc.Servers = append(desc.Servers, core.Endpoint{URL: s.URL, Description: s.Description})
	}

	r.logger.Debug("resolved API", "id", id, "title", desc.Title, "servers", len(desc.Servers))
	return desc, nil
}
