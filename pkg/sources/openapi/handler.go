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
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// maxResponseBytes caps how much of an upstream response is returned to the client.
const maxResponseBytes = 1 << 20

// APIClient sends tool calls to one API base URL.
type APIClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewAPIClient creates a new APIClient with the given baseURL and timeout.
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// buildRequestURL substitutes path parameters and appends the query string.
func buildRequestURL(baseURL, path string, params ToolParams) string {
	for name, v := range params.Path {
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(fmt.Sprintf("%v", v)))
	}

	full := baseURL + path
	if len(params.Query) == 0 {
		return full
	}
	values := url.Values{}
	for name, v := range params.Query {
		switch vv := v.(type) {
		case []any:
			for _, item := range vv {
				values.Add(name, fmt.Sprintf("%v", item))
			}
		default:
			values.Set(name, fmt.Sprintf("%v", v))
		}
	}
	return full + "?" + values.Encode()
}

func (c *APIClient) buildRequest(ctx context.Context, op Operation, params ToolParams, registry *ContentTypeRegistry) (*http.Request, error) {
	var body io.Reader
	contentType := op.ContentType
	if len(params.Body) > 0 && op.Method != http.MethodGet && op.Method != http.MethodDelete {
		reader, override, err := registry.Handler(op.ContentType).BuildRequestBody(params.Body)
		if err != nil {
			return nil, err
		}
		body = reader
		if override != "" {
			contentType = override
		}
	}

	req, err := http.NewRequestWithContext(ctx, op.Method, buildRequestURL(c.BaseURL, op.Path, params), body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		if contentType == "" || contentType == "*/*" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
	}
	for name, v := range params.Header {
		req.Header.Set(name, fmt.Sprintf("%v", v))
	}
	if len(params.Cookie) > 0 {
		names := make([]string, 0, len(params.Cookie))
		for name := range params.Cookie {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			req.AddCookie(&http.Cookie{Name: name, Value: fmt.Sprintf("%v", params.Cookie[name])})
		}
	}
	return req, nil
}

// newToolHandler returns the MCP handler that performs op against the API.
//
// Arguments use the location prefix format produced by the adapter
// (path__id, query__limit, header__x_api_key, cookie__session, body__email).
// Upstream HTTP errors are reported as tool results, not as protocol errors,
// so the calling model can see the status and body.
func newToolHandler(op Operation, client *APIClient, registry *ContentTypeRegistry, logger hclog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params := parsePrefixedParameters(request.GetArguments())

		req, err := client.buildRequest(ctx, op, params, registry)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		logger.Debug("calling API", "method", req.Method, "url", req.URL.String())
		resp, err := client.HTTPClient.Do(req)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("HTTP %s %s failed: %v", req.Method, req.URL, err)), nil
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				logger.Debug("failed to close response body", "error", err)
			}
		}()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		result := fmt.Sprintf("HTTP %s %s\nStatus: %d\nResponse: %s", req.Method, req.URL, resp.StatusCode, data)
		if resp.StatusCode >= 400 {
			return mcp.NewToolResultError(result), nil
		}
		return mcp.NewToolResultText(result), nil
	}
}
