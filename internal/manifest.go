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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/biothings/smartapi-mcp/pkg/core"
	"github.com/biothings/smartapi-mcp/pkg/loader"
)

// Manifest lists what a server exposes for a selection.
type Manifest struct {
	Name      string             `json:"name"`
	Version   string             `json:"version,omitempty"`
	Strategy  loader.Strategy    `json:"strategy"`
	APIs      []string           `json:"apis"`
	Summary   core.Summary       `json:"summary"`
	Tools     []ManifestTool     `json:"tools"`
	Prompts   []ManifestPrompt   `json:"prompts"`
	Resources []ManifestResource `json:"resources"`
}

// ManifestTool describes one tool.
type ManifestTool struct {
	Name         string              `json:"name"`
	Description  string              `json:"description,omitempty"`
	API          string              `json:"api,omitempty"`
	OriginalName string              `json:"originalName,omitempty"`
	InputSchema  mcp.ToolInputSchema `json:"inputSchema"`
}

// ManifestPrompt describes one prompt.
type ManifestPrompt struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	API         string `json:"api,omitempty"`
}

// ManifestResource describes one resource.
type ManifestResource struct {
	URI      string `json:"uri"`
	Name     string `json:"name"`
	MIMEType string `json:"mimeType,omitempty"`
	API      string `json:"api,omitempty"`
}

// NewManifest snapshots the server of result.
func NewManifest(result *loader.Result, apis []string, version string) *Manifest {
	instance := result.Server
	m := &Manifest{
		Name:      instance.Name(),
		Version:   version,
		Strategy:  result.Strategy,
		APIs:      apis,
		Summary:   instance.Summary(),
		Tools:     []ManifestTool{},
		Prompts:   []ManifestPrompt{},
		Resources: []ManifestResource{},
	}
	for _, t := range instance.Tools() {
		m.Tools = append(m.Tools, ManifestTool{
			Name:         t.Name(),
			Description:  t.Tool.Description,
			API:          t.Origin,
			OriginalName: t.OriginalName,
			InputSchema:  t.Tool.InputSchema,
		})
	}
	for _, p := range instance.Prompts() {
		m.Prompts = append(m.Prompts, ManifestPrompt{Name: p.Name(), Description: p.Prompt.Description, API: p.Origin})
	}
	for _, r := range instance.Resources() {
		m.Resources = append(m.Resources, ManifestResource{
			URI:      r.URI(),
			Name:     r.Resource.Name,
			MIMEType: r.Resource.MIMEType,
			API:      r.Origin,
		})
	}
	return m
}

// SaveManifest writes m as indented JSON to filename, creating parent
// directories as needed.
func SaveManifest(filename string, m *Manifest) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a manifest written by SaveManifest.
func LoadManifest(filename string) (*Manifest, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", filename, err)
	}
	return &m, nil
}
