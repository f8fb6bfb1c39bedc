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

import "strings"

// ParameterLocation defines where a parameter is located in the HTTP request
type ParameterLocation string

const (
	ParameterLocationPath   ParameterLocation = "path"
	ParameterLocationQuery  ParameterLocation = "query"
	ParameterLocationHeader ParameterLocation = "header"
	ParameterLocationCookie ParameterLocation = "cookie"
	ParameterLocationBody   ParameterLocation = "body"
)

// IsValid returns true if the parameter location is valid
func (p ParameterLocation) IsValid() bool {
	switch p {
	case ParameterLocationPath, ParameterLocationQuery, ParameterLocationHeader, ParameterLocationCookie, ParameterLocationBody:
		return true
	default:
		return false
	}
}

// ToolInputProperty defines a property in the input schema for an MCP tool
type ToolInputProperty struct {
	Type        string            `json:"type"`
	Description string            `json:"description,omitempty"`
	Location    ParameterLocation `json:"location"`
}

// Operation binds a generated tool to the HTTP operation it invokes.
type Operation struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	ContentType string `json:"contentType,omitempty"`
}

// ToolParams groups call arguments by the request location they are sent in.
type ToolParams struct {
	Path   map[string]any
	Query  map[string]any
	Header map[string]any
	Cookie map[string]any
	Body   map[string]any
}

// parsePrefixedParameters splits "location__name" arguments into ToolParams.
// Arguments without a known location prefix are dropped.
func parsePrefixedParameters(args map[string]any) ToolParams {
	params := ToolParams{
		Path:   map[string]any{},
		Query:  map[string]any{},
		Header: map[string]any{},
		Cookie: map[string]any{},
		Body:   map[string]any{},
	}
	for prefixed, value := range args {
		location, name, ok := strings.Cut(prefixed, "__")
		if !ok {
			continue
		}
		switch ParameterLocation(location) {
		case ParameterLocationPath:
			params.Path[name] = value
		case ParameterLocationQuery:
			params.Query[name] = value
		case ParameterLocationHeader:
			params.Header[name] = value
		case ParameterLocationCookie:
			params.Cookie[name] = value
		case ParameterLocationBody:
			params.Body[name] = value
		}
	}
	return params
}
