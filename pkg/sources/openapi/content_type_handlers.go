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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"strings"

	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
)

// ContentTypeHandler converts between an OpenAPI media type and tool arguments.
type ContentTypeHandler interface {
	// ContentTypes returns the media types served by the handler.
	ContentTypes() []string

	// ExtractParameters derives tool input properties from a request body media type.
	ExtractParameters(media *v3.MediaType) (map[string]ToolInputProperty, []string)

	// BuildRequestBody encodes body arguments. The returned content type
	// overrides the declared one when non-empty (multipart boundaries).
	BuildRequestBody(body map[string]any) (io.Reader, string, error)
}

// ContentTypeRegistry resolves handlers by media type.
type ContentTypeRegistry struct {
	handlers map[string]ContentTypeHandler
	fallback ContentTypeHandler
}

// NewContentTypeRegistry creates a registry with the built-in handlers.
// JSON serves unknown media types.
func NewContentTypeRegistry() *ContentTypeRegistry {
	r := &ContentTypeRegistry{
		handlers: make(map[string]ContentTypeHandler),
		fallback: jsonHandler{},
	}
	for _, h := range []ContentTypeHandler{jsonHandler{}, rawHandler{kind: "XML", types: []string{"application/xml", "text/xml"}, structured: true}, formHandler{}, multipartHandler{}, rawHandler{kind: "Plain text", types: []string{"text/plain", "text/*"}}} {
		r.Register(h)
	}
	return r
}

// Register adds h for each of its media types.
func (r *ContentTypeRegistry) Register(h ContentTypeHandler) {
	for _, ct := range h.ContentTypes() {
		r.handlers[ct] = h
	}
}

// Handler returns the handler for contentType, trying "major/*" before the fallback.
func (r *ContentTypeRegistry) Handler(contentType string) ContentTypeHandler {
	contentType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	if h, ok := r.handlers[contentType]; ok {
		return h
	}
	if major, _, ok := strings.Cut(contentType, "/"); ok {
		if h, ok := r.handlers[major+"/*"]; ok {
			return h
		}
	}
	return r.fallback
}

func schemaProperties(media *v3.MediaType, prefix string) (map[string]ToolInputProperty, []string) {
	props := make(map[string]ToolInputProperty)
	if !hasSchemaProps(media) {
		return props, nil
	}
	schema := media.Schema.Schema()
	for pair := schema.Properties.First(); pair != nil; pair = pair.Next() {
		name := prefix + pair.Key()
		prop := ToolInputProperty{Type: schemaType(pair.Value()), Location: ParameterLocationBody}
		if s := pair.Value().Schema(); s != nil {
			prop.Description = s.Description
			if s.Format == "binary" {
				prop.Type = "string"
				prop.Description = strings.TrimSpace(prop.Description + " (binary content)")
			}
		}
		props[name] = prop
	}
	required := make([]string, 0, len(schema.Required))
	for _, req := range schema.Required {
		required = append(required, prefix+req)
	}
	return props, required
}

func hasSchemaProps(media *v3.MediaType) bool {
	if media == nil || media.Schema == nil {
		return false
	}
	schema := media.Schema.Schema()
	return schema != nil && schema.Properties != nil && schema.Properties.Len() > 0
}

func rawBodyParameter(description string) (map[string]ToolInputProperty, []string) {
	return map[string]ToolInputProperty{
		"body": {Type: "string", Description: description, Location: ParameterLocationBody},
	}, []string{"body"}
}

// singleBody returns body["body"] when it is the only argument.
func singleBody(body map[string]any) (any, bool) {
	v, ok := body["body"]
	return v, ok && len(body) == 1
}

type jsonHandler struct{}

func (jsonHandler) ContentTypes() []string {
	return []string{"application/json", "*/*", "application/hal+json", "application/vnd.api+json"}
}

func (jsonHandler) ExtractParameters(media *v3.MediaType) (map[string]ToolInputProperty, []string) {
	return schemaProperties(media, "")
}

func (jsonHandler) BuildRequestBody(body map[string]any) (io.Reader, string, error) {
	if len(body) == 0 {
		return nil, "", nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal JSON body: %w", err)
	}
	return bytes.NewReader(data), "", nil
}

// rawHandler sends a single string "body" argument verbatim. When structured
// is set and the schema has properties, those are exposed individually and
// encoded as JSON.
type rawHandler struct {
	kind       string
	types      []string
	structured bool
}

func (h rawHandler) ContentTypes() []string { return h.types }

func (h rawHandler) ExtractParameters(media *v3.MediaType) (map[string]ToolInputProperty, []string) {
	if h.structured && hasSchemaProps(media) {
		return schemaProperties(media, "")
	}
	return rawBodyParameter(h.kind + " request body content")
}

func (h rawHandler) BuildRequestBody(body map[string]any) (io.Reader, string, error) {
	if len(body) == 0 {
		return nil, "", nil
	}
	if v, ok := singleBody(body); ok {
		s, isString := v.(string)
		if !isString {
			return nil, "", fmt.Errorf("%s body parameter must be a string", strings.ToLower(h.kind))
		}
		return strings.NewReader(s), "", nil
	}
	if !h.structured {
		return nil, "", fmt.Errorf("%s content type requires a 'body' parameter", strings.ToLower(h.kind))
	}
	return jsonHandler{}.BuildRequestBody(body)
}

type formHandler struct{}

func (formHandler) ContentTypes() []string { return []string{"application/x-www-form-urlencoded"} }

func (formHandler) ExtractParameters(media *v3.MediaType) (map[string]ToolInputProperty, []string) {
	if !hasSchemaProps(media) {
		return rawBodyParameter("Form URL-encoded request body")
	}
	return schemaProperties(media, "form__")
}

func (formHandler) BuildRequestBody(body map[string]any) (io.Reader, string, error) {
	if len(body) == 0 {
		return nil, "", nil
	}
	if v, ok := singleBody(body); ok {
		if s, isString := v.(string); isString {
			return strings.NewReader(s), "", nil
		}
		return nil, "", fmt.Errorf("form body parameter must be a string")
	}
	values := url.Values{}
	for name, v := range body {
		if field, ok := strings.CutPrefix(name, "form__"); ok {
			values.Set(field, fmt.Sprintf("%v", v))
		}
	}
	if len(values) == 0 {
		return nil, "", fmt.Errorf("no form__ prefixed parameters found for form URL encoding")
	}
	return strings.NewReader(values.Encode()), "", nil
}

type multipartHandler struct{}

func (multipartHandler) ContentTypes() []string { return []string{"multipart/form-data"} }

func (multipartHandler) ExtractParameters(media *v3.MediaType) (map[string]ToolInputProperty, []string) {
	if !hasSchemaProps(media) {
		return rawBodyParameter("Multipart form data request body")
	}
	return schemaProperties(media, "multipart__")
}

func (multipartHandler) BuildRequestBody(body map[string]any) (io.Reader, string, error) {
	if len(body) == 0 {
		return nil, "", nil
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := 0
	for name, v := range body {
		field, ok := strings.CutPrefix(name, "multipart__")
		if !ok {
			continue
		}
		fields++
		if err := w.WriteField(field, fmt.Sprintf("%v", v)); err != nil {
			return nil, "", fmt.Errorf("failed to write multipart field %s: %w", field, err)
		}
	}
	if fields == 0 {
		return nil, "", fmt.Errorf("no multipart__ prefixed parameters found for multipart form data")
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
