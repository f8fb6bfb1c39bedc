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

// Package openapi turns a parsed OpenAPI document into MCP tools that call the API.
package openapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/biothings/smartapi-mcp/pkg/core"
	"github.com/biothings/smartapi-mcp/pkg/smartapi"
)

// DefaultTimeout bounds a single upstream API call.
const DefaultTimeout = 30 * time.Second

// OverviewPromptName is the per-API prompt describing the generated tools.
const OverviewPromptName = "api_overview"

// Options configures a Generator.
type Options struct {
	// Timeout for upstream API calls. Zero selects DefaultTimeout.
	Timeout time.Duration
	// DevMode suppresses base URL security warnings.
	DevMode bool
	// Samples appends mock request/response payloads to tool descriptions.
	Samples bool
	Logger  hclog.Logger
}

// Generator builds ServerInstances from OpenAPI descriptions.
type Generator struct {
	opts    Options
	logger  hclog.Logger
	adapter *adapter
}

// NewGenerator creates a Generator.
func NewGenerator(opts Options) *Generator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("openapi")
	return &Generator{
		opts:    opts,
		logger:  logger,
		adapter: newAdapter(opts.Samples, logger),
	}
}

// FromOpenAPI creates one tool per operation of desc, bound to endpoint,
// plus an overview prompt and a resource serving the raw document.
// The instance is named after the API title.
func (g *Generator) FromOpenAPI(desc *smartapi.APIDescription, endpoint core.Endpoint) (*core.ServerInstance, error) {
	if desc == nil || desc.Document == nil {
		return nil, errors.New("openapi: description has no document")
	}
	base, err := url.Parse(endpoint.URL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("openapi: base URL %q of API %s is not absolute", endpoint.URL, desc.ID)
	}
	if !g.opts.DevMode {
		WarnURLSecurity(g.logger, endpoint.URL, "Base URL")
	}

	client := NewAPIClient(endpoint.URL, g.opts.Timeout)
	logger := g.logger.With("api", desc.ID)

	generated := g.adapter.tools(desc.Document)
	tools := make([]core.ToolEntry, 0, len(generated))
	for _, t := range generated {
		tools = append(tools, core.ToolEntry{
			Tool:         t.tool,
			Handler:      newToolHandler(t.op, client, g.adapter.contentTypes, logger),
			Origin:       desc.ID,
			OriginalName: t.tool.Name,
		})
	}

	instance := core.NewServerInstance(desc.DisplayName(), desc.Version)
	if err := instance.Add(core.Update{
		Tools:     tools,
		Prompts:   []core.PromptEntry{overviewPrompt(desc, endpoint, tools)},
		Resources: []core.ResourceEntry{documentResource(desc)},
	}); err != nil {
		return nil, fmt.Errorf("openapi: %w", err)
	}

	logger.Debug("generated server instance", "name", instance.Name(), "tools", len(tools), "base_url", endpoint.URL)
	return instance, nil
}

// DocumentURI is the resource URI under which the raw document of id is served.
func DocumentURI(id string) string {
	return "smartapi://" + id + "/openapi"
}

func overviewPrompt(desc *smartapi.APIDescription, endpoint core.Endpoint, tools []core.ToolEntry) core.PromptEntry {
	var text strings.Builder
	fmt.Fprintf(&text, "%s (SmartAPI id %s, version %s)\n", desc.DisplayName(), desc.ID, desc.Version)
	fmt.Fprintf(&text, "Base URL: %s\n", endpoint.URL)
	if desc.Description != "" {
		fmt.Fprintf(&text, "\n%s\n", desc.Description)
	}
	fmt.Fprintf(&text, "\nAvailable tools (%d):\n", len(tools))
	for _, t := range tools {
		summary, _, _ := strings.Cut(t.Tool.Description, "\n")
		fmt.Fprintf(&text, "- %s: %s\n", t.OriginalName, summary)
	}
	body := text.String()
	title := fmt.Sprintf("Overview of %s and its tools", desc.DisplayName())

	return core.PromptEntry{
		Prompt: mcp.NewPrompt(OverviewPromptName, mcp.WithPromptDescription(title)),
		Handler: func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			return mcp.NewGetPromptResult(title, []mcp.PromptMessage{
				mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(body)),
			}), nil
		},
		Origin:       desc.ID,
		OriginalName: OverviewPromptName,
	}
}

func documentResource(desc *smartapi.APIDescription) core.ResourceEntry {
	uri := DocumentURI(desc.ID)
	mimeType := "application/json"
	if trimmed := bytes.TrimSpace(desc.Raw); len(trimmed) > 0 && trimmed[0] != '{' {
		mimeType = "application/yaml"
	}
	raw := string(desc.Raw)

	return core.ResourceEntry{
		Resource: mcp.NewResource(uri, desc.DisplayName()+" OpenAPI document",
			mcp.WithResourceDescription("OpenAPI document registered in SmartAPI as "+desc.ID),
			mcp.WithMIMEType(mimeType),
		),
		Handler: func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return []mcp.ResourceContents{
				mcp.TextResourceContents{URI: uri, MIMEType: mimeType, Text: raw},
			}, nil
		},
		Origin: desc.ID,
	}
}
