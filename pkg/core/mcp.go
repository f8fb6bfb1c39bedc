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

package core

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// TransportType defines the transport mechanism for the MCP server
type TransportType string

const (
	TransportTypeHTTP  TransportType = "http"
	TransportTypeStdio TransportType = "stdio"
)

// IsValid returns true if the transport type is valid
func (t TransportType) IsValid() bool {
	switch t {
	case TransportTypeHTTP, TransportTypeStdio:
		return true
	default:
		return false
	}
}

// Endpoint is one candidate server entry of an OpenAPI document.
type Endpoint struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// ToolEntry is a callable MCP tool together with the handler that serves it.
type ToolEntry struct {
	Tool    mcp.Tool
	Handler server.ToolHandlerFunc
	// Origin is the registry identifier of the API the tool was generated from.
	// Empty for tools that belong to the server itself (router tools).
	Origin string
	// OriginalName is the name the generator assigned before any renaming.
	OriginalName string
}

// Name returns the tool name as exposed to MCP clients.
func (e ToolEntry) Name() string {
	return e.Tool.Name
}

// Renamed returns a copy of the entry exposed under name.
// The receiver is left untouched.
func (e ToolEntry) Renamed(name string) ToolEntry {
	tool := e.Tool
	tool.Name = name
	if e.OriginalName == "" {
		e.OriginalName = e.Tool.Name
	}
	e.Tool = tool
	return e
}

// PromptEntry is an MCP prompt template together with its handler.
type PromptEntry struct {
	Prompt       mcp.Prompt
	Handler      server.PromptHandlerFunc
	Origin       string
	OriginalName string
}

// Name returns the prompt name as exposed to MCP clients.
func (e PromptEntry) Name() string {
	return e.Prompt.Name
}

// Renamed returns a copy of the entry exposed under name.
func (e PromptEntry) Renamed(name string) PromptEntry {
	prompt := e.Prompt
	prompt.Name = name
	if e.OriginalName == "" {
		e.OriginalName = e.Prompt.Name
	}
	e.Prompt = prompt
	return e
}

// ResourceEntry is a static MCP resource keyed by its URI.
type ResourceEntry struct {
	Resource mcp.Resource
	Handler  server.ResourceHandlerFunc
	Origin   string
}

// URI returns the resource URI.
func (e ResourceEntry) URI() string {
	return e.Resource.URI
}
