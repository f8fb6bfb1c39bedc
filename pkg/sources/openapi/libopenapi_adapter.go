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

package openapi

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pb33f/libopenapi"
	"github.com/pb33f/libopenapi/datamodel/high/base"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
	"github.com/pb33f/libopenapi/renderer"
)

// maxDescriptionSamples bounds the rendered mock payload appended to tool descriptions.
const maxDescriptionSamples = 2048

var invalidToolNameChars = regexp.MustCompile(`[^a-z0-9_]`)

// operationTool is a tool definition that still needs an HTTP handler.
type operationTool struct {
	tool mcp.Tool
	op   Operation
}

// adapter contains the libopenapi specific parts of tool generation.
type adapter struct {
	contentTypes *ContentTypeRegistry
	samples      bool
	logger       hclog.Logger
}

func newAdapter(samples bool, logger hclog.Logger) *adapter {
	return &adapter{
		contentTypes: NewContentTypeRegistry(),
		samples:      samples,
		logger:       logger,
	}
}

// forEachOperation visits operations in document order.
func (a *adapter) forEachOperation(doc *libopenapi.DocumentModel[v3.Document], fn func(method, path string, op *v3.Operation)) {
	if doc == nil || doc.Model.Paths == nil || doc.Model.Paths.PathItems == nil {
		return
	}
	for pathPair := doc.Model.Paths.PathItems.First(); pathPair != nil; pathPair = pathPair.Next() {
		item := pathPair.Value()
		if item == nil {
			continue
		}
		for opPair := item.GetOperations().First(); opPair != nil; opPair = opPair.Next() {
			if opPair.Value() != nil {
				fn(opPair.Key(), pathPair.Key(), opPair.Value())
			}
		}
	}
}

// tools converts every operation into a tool. Colliding names get a numeric suffix.
func (a *adapter) tools(doc *libopenapi.DocumentModel[v3.Document]) []operationTool {
	var out []operationTool
	used := make(map[string]int)
	a.forEachOperation(doc, func(method, path string, op *v3.Operation) {
		t := a.toolFromOperation(method, path, op)
		if n := used[t.tool.Name]; n > 0 {
			used[t.tool.Name] = n + 1
			t.tool.Name = t.tool.Name + "_" + strconv.Itoa(n+1)
		}
		used[t.tool.Name]++
		out = append(out, t)
	})
	return out
}

func (a *adapter) toolFromOperation(method, path string, op *v3.Operation) operationTool {
	name := toolName(method, path, op)

	description := op.Description
	if description == "" {
		description = op.Summary
	}
	if description == "" {
		description = fmt.Sprintf("%s %s", strings.ToUpper(method), path)
	}
	if doc := a.bodySchemaDoc(op); doc != "" {
		description += "\n\n" + doc
	}
	if a.samples {
		if samples := a.renderSamples(op); samples != "" {
			description += "\n\n" + samples
		}
	}

	schema := a.inputSchema(op)
	return operationTool{
		tool: mcp.Tool{
			Name:        name,
			Description: description,
			InputSchema: schema,
			Annotations: annotations(method, name),
		},
		op: Operation{
			Method:      strings.ToUpper(method),
			Path:        path,
			ContentType: preferredContentType(op),
		},
	}
}

// toolName derives a snake_case name from the operation id, or method and path.
func toolName(method, path string, op *v3.Operation) string {
	name := op.OperationId
	if name == "" {
		name = method + "_" + path
	}
	name = strings.NewReplacer("{", "", "}", "", "/", "_", "-", "_", ".", "_").Replace(name)
	name = invalidToolNameChars.ReplaceAllString(camelToSnake(name), "_")
	name = strings.Trim(name, "_")
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	if name == "" {
		name = strings.ToLower(method)
	}
	return name
}

func camelToSnake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && runes[i-1] >= 'a' && runes[i-1] <= 'z' {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// inputSchema flattens parameters and body properties into prefixed arguments,
// e.g. path__geneid, query__fields, body__q.
func (a *adapter) inputSchema(op *v3.Operation) mcp.ToolInputSchema {
	props := make(map[string]any)
	var required []string

	for _, p := range op.Parameters {
		if p == nil {
			continue
		}
		loc := ParameterLocation(p.In)
		if !loc.IsValid() || loc == ParameterLocationBody {
			continue
		}
		name := fmt.Sprintf("%s__%s", loc, p.Name)
		props[name] = map[string]any{
			"type":        schemaType(p.Schema),
			"description": p.Description,
		}
		if (p.Required != nil && *p.Required) || loc == ParameterLocationPath {
			required = append(required, name)
		}
	}

	bodyProps, bodyRequired := a.bodyProperties(op)
	for name, prop := range bodyProps {
		prefixed := "body__" + name
		props[prefixed] = map[string]any{
			"type":        prop.Type,
			"description": prop.Description,
		}
		if slices.Contains(bodyRequired, name) {
			required = append(required, prefixed)
		}
	}

	slices.Sort(required)
	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

func annotations(method, title string) mcp.ToolAnnotation {
	ann := mcp.ToolAnnotation{
		Title:         title,
		OpenWorldHint: boolPtr(true),
	}
	switch strings.ToUpper(method) {
	case "GET", "HEAD", "OPTIONS":
		ann.ReadOnlyHint = boolPtr(true)
		ann.IdempotentHint = boolPtr(true)
	case "DELETE":
		ann.DestructiveHint = boolPtr(true)
	case "PUT":
		ann.IdempotentHint = boolPtr(true)
	case "POST":
		ann.IdempotentHint = boolPtr(false)
	}
	return ann
}

func schemaType(proxy *base.SchemaProxy) string {
	if proxy == nil {
		return "string"
	}
	s := proxy.Schema()
	if s == nil || len(s.Type) == 0 {
		return "string"
	}
	return s.Type[0]
}

// contentTypePriority orders request body media types when an operation offers several.
var contentTypePriority = []string{"application/json", "*/*", "text/xml", "application/xml", "application/x-www-form-urlencoded", "multipart/form-data", "text/plain"}

func preferredContentType(op *v3.Operation) string {
	if op.RequestBody == nil || op.RequestBody.Content == nil {
		return ""
	}
	for _, ct := range contentTypePriority {
		if _, ok := op.RequestBody.Content.Get(ct); ok {
			return ct
		}
	}
	if first := op.RequestBody.Content.First(); first != nil {
		return first.Key()
	}
	return ""
}

func (a *adapter) bodyProperties(op *v3.Operation) (map[string]ToolInputProperty, []string) {
	ct := preferredContentType(op)
	if ct == "" {
		return nil, nil
	}
	media, _ := op.RequestBody.Content.Get(ct)
	return a.contentTypes.Handler(ct).ExtractParameters(media)
}

// bodySchemaDoc documents raw XML and text bodies, which are passed as one string.
func (a *adapter) bodySchemaDoc(op *v3.Operation) string {
	ct := preferredContentType(op)
	if ct != "text/xml" && ct != "application/xml" && ct != "text/plain" {
		return ""
	}
	media, _ := op.RequestBody.Content.Get(ct)
	if !hasSchemaProps(media) {
		return fmt.Sprintf("Provide %s content as a string in the 'body__body' argument.", ct)
	}

	schema := media.Schema.Schema()
	var doc strings.Builder
	fmt.Fprintf(&doc, "Expected %s structure:\n", ct)
	for pair := schema.Properties.First(); pair != nil; pair = pair.Next() {
		req := ""
		if slices.Contains(schema.Required, pair.Key()) {
			req = " (required)"
		}
		fmt.Fprintf(&doc, "- %s: %s%s", pair.Key(), schemaType(pair.Value()), req)
		if s := pair.Value().Schema(); s != nil && s.Description != "" {
			fmt.Fprintf(&doc, " - %s", s.Description)
		}
		doc.WriteString("\n")
	}
	return doc.String()
}

// renderSamples appends mock request and success response payloads.
// Rendering failures are logged and skipped.
func (a *adapter) renderSamples(op *v3.Operation) string {
	var out strings.Builder

	if ct := preferredContentType(op); ct != "" {
		media, _ := op.RequestBody.Content.Get(ct)
		if sample, ok := a.mock(media); ok {
			fmt.Fprintf(&out, "Sample Request (%s):\n```json\n%s\n```\n", ct, sample)
		}
	}

	if op.Responses != nil && op.Responses.Codes != nil {
		for pair := op.Responses.Codes.First(); pair != nil; pair = pair.Next() {
			code, err := strconv.Atoi(pair.Key())
			if err != nil || code < 200 || code >= 300 || pair.Value() == nil || pair.Value().Content == nil {
				continue
			}
			media, ok := pair.Value().Content.Get("application/json")
			if !ok {
				continue
			}
			if sample, ok := a.mock(media); ok {
				fmt.Fprintf(&out, "Sample Response (%d):\n```json\n%s\n```\n", code, sample)
			}
			break
		}
	}

	s := out.String()
	if len(s) > maxDescriptionSamples {
		s = s[:maxDescriptionSamples] + "\n..."
	}
	return s
}

func (a *adapter) mock(media *v3.MediaType) (string, bool) {
	if media == nil || media.Schema == nil || media.Schema.Schema() == nil {
		return "", false
	}
	gen := renderer.NewMockGenerator(renderer.JSON)
	gen.SetPretty()
	gen.DisableRequiredCheck()
	sample, err := gen.GenerateMock(media.Schema.Schema(), "")
	if err != nil {
		a.logger.Debug("failed to render sample payload", "error", err)
		return "", false
	}
	return string(sample), true
}

func boolPtr(v bool) *bool {
	return &v
}
