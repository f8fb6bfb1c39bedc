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
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/pb33f/libopenapi"
	"github.com/pb33f/libopenapi/datamodel"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildDocument parses an inline YAML document.
func buildDocument(t *testing.T, spec string) *libopenapi.DocumentModel[v3.Document] {
	t.Helper()
	document, err := libopenapi.NewDocumentWithConfiguration([]byte(spec), datamodel.NewDocumentConfiguration())
	require.NoError(t, err)
	model, errs := document.BuildV3Model()
	require.Empty(t, errs)
	return model
}

// postOperation wraps requestBody into a POST /test operation.
func postOperation(t *testing.T, requestBody string) *v3.Operation {
	t.Helper()
	spec := `
openapi: 3.0.0
info:
  title: Test API
  version: 1.0.0
paths:
  /test:
    post:
      requestBody:
` + requestBody + `
      responses:
        '200':
          description: Success
`
	model := buildDocument(t, spec)
	item, ok := model.Model.Paths.PathItems.Get("/test")
	require.True(t, ok)
	require.NotNil(t, item.Post)
	return item.Post
}

func TestToolName(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		path        string
		operationID string
		want        string
	}{
		{name: "camel case operation id", method: "get", path: "/gene/{geneid}", operationID: "getGene", want: "get_gene"},
		{name: "hyphenated operation id", method: "post", path: "/query", operationID: "query-genes", want: "query_genes"},
		{name: "method and path fallback", method: "get", path: "/gene/{geneid}", want: "get_gene_geneid"},
		{name: "dots and punctuation", method: "get", path: "/x", operationID: "v1.lookup(all)", want: "v1_lookup_all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := &v3.Operation{OperationId: tt.operationID}
			assert.Equal(t, tt.want, toolName(tt.method, tt.path, op))
		})
	}
}

func TestAdapter_Tools(t *testing.T) {
	model := buildDocument(t, `
openapi: 3.0.0
info:
  title: Dup API
  version: 1.0.0
paths:
  /a:
    get:
      operationId: lookup
      summary: First lookup
      parameters:
        - name: q
          in: query
          required: true
          schema:
            type: string
        - name: X-Trace
          in: header
          schema:
            type: string
      responses:
        '200':
          description: ok
  /b/{id}:
    get:
      operationId: lookup
      parameters:
        - name: id
          in: path
          schema:
            type: integer
      responses:
        '200':
          description: ok
    delete:
      responses:
        '204':
          description: gone
`)

	a := newAdapter(false, hclog.NewNullLogger())
	tools := a.tools(model)
	require.Len(t, tools, 3)

	assert.Equal(t, "lookup", tools[0].tool.Name)
	assert.Equal(t, "lookup_2", tools[1].tool.Name, "colliding operation ids are suffixed")
	assert.Equal(t, "delete_b_id", tools[2].tool.Name)

	first := tools[0]
	assert.Equal(t, "First lookup", first.tool.Description)
	assert.Equal(t, Operation{Method: "GET", Path: "/a"}, first.op)
	assert.Contains(t, first.tool.InputSchema.Properties, "query__q")
	assert.Contains(t, first.tool.InputSchema.Properties, "header__X-Trace")
	assert.Equal(t, []string{"query__q"}, first.tool.InputSchema.Required)
	require.NotNil(t, first.tool.Annotations.ReadOnlyHint)
	assert.True(t, *first.tool.Annotations.ReadOnlyHint)

	second := tools[1]
	assert.Equal(t, []string{"path__id"}, second.tool.InputSchema.Required, "path parameters are always required")
	assert.Equal(t, map[string]any{"type": "integer", "description": ""}, second.tool.InputSchema.Properties["path__id"])

	third := tools[2]
	assert.Equal(t, "DELETE /b/{id}", third.tool.Description)
	require.NotNil(t, third.tool.Annotations.DestructiveHint)
	assert.True(t, *third.tool.Annotations.DestructiveHint)
}

func TestAdapter_BodyProperties(t *testing.T) {
	a := newAdapter(false, hclog.NewNullLogger())

	t.Run("json object properties", func(t *testing.T) {
		op := postOperation(t, `        content:
          application/json:
            schema:
              type: object
              required: [name]
              properties:
                name:
                  type: string
                  description: Display name
                age:
                  type: integer`)

		schema := a.inputSchema(op)
		assert.Equal(t, map[string]any{"type": "string", "description": "Display name"}, schema.Properties["body__name"])
		assert.Equal(t, map[string]any{"type": "integer", "description": ""}, schema.Properties["body__age"])
		assert.Equal(t, []string{"body__name"}, schema.Required)
		assert.Equal(t, "application/json", preferredContentType(op))
	})

	t.Run("form fields carry form prefix", func(t *testing.T) {
		op := postOperation(t, `        content:
          application/x-www-form-urlencoded:
            schema:
              type: object
              properties:
                ids:
                  type: string`)

		schema := a.inputSchema(op)
		assert.Contains(t, schema.Properties, "body__form__ids")
	})

	t.Run("plain text is a single raw body", func(t *testing.T) {
		op := postOperation(t, `        content:
          text/plain:
            schema:
              type: string`)

		schema := a.inputSchema(op)
		assert.Contains(t, schema.Properties, "body__body")
		assert.Equal(t, []string{"body__body"}, schema.Required)
		assert.NotEmpty(t, a.bodySchemaDoc(op))
	})

	t.Run("json preferred over xml", func(t *testing.T) {
		op := postOperation(t, `        content:
          application/xml:
            schema:
              type: string
          application/json:
            schema:
              type: object`)

		assert.Equal(t, "application/json", preferredContentType(op))
	})
}

func TestAdapter_Samples(t *testing.T) {
	op := postOperation(t, `        content:
          application/json:
            schema:
              type: object
              properties:
                q:
                  type: string`)

	a := newAdapter(true, hclog.NewNullLogger())
	tool := a.toolFromOperation("post", "/test", op)
	assert.Contains(t, tool.tool.Description, "Sample Request (application/json)")
}
