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

// Package smartapi talks to the SmartAPI registry and turns registry entries
// into parsed OpenAPI descriptions.
package smartapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/biothings/smartapi-mcp/pkg/core"
)

// DefaultBaseURL is the public SmartAPI registry API.
const DefaultBaseURL = "https://smart-api.info/api"

// DefaultQuerySize is the page size requested from the registry query endpoint.
const DefaultQuerySize = 1000

// errNotFound is returned by FetchDocument when the registry has no such entry.
var errNotFound = errors.New("not found in registry")

// Client is a minimal SmartAPI registry client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	QuerySize  int

	logger hclog.Logger
}

// NewClient creates a registry client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration, logger hclog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		QuerySize:  DefaultQuerySize,
		logger:     logger.Named("registry"),
	}
}

type queryResponse struct {
	Total int `json:"total"`
	Hits  []struct {
		ID string `json:"_id"`
	} `json:"hits"`
}

// QueryIDs runs q against the registry query endpoint and returns the matching
// identifiers in the order the registry ranked them.
func (c *Client) QueryIDs(ctx context.Context, q string) ([]string, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("fields", "_id")
	params.Set("size", strconv.Itoa(c.QuerySize))

	body, status, err := c.get(ctx, c.BaseURL+"/query?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("registry query %q: %w", q, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("registry query %q: unexpected status %d", q, status)
	}

	var resp queryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("registry query %q: decode response: %w", q, err)
	}

	ids := make([]string, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		if hit.ID != "" {
			ids = append(ids, hit.ID)
		}
	}
	if resp.Total > len(ids) {
		c.logger.Warn("registry query truncated", "query", q, "total", resp.Total, "returned", len(ids))
	}
	c.logger.Debug("registry query resolved", "query", q, "count", len(ids))
	return ids, nil
}

// FetchDocument downloads the raw OpenAPI document registered under id.
// All failures are reported as core.ErrSpecUnavailable.
func (c *Client) FetchDocument(ctx context.Context, id string) ([]byte, error) {
	body, status, err := c.get(ctx, c.BaseURL+"/metadata/"+url.PathEscape(id))
	if err != nil {
		return nil, &core.SpecUnavailableError{ID: id, Err: err}
	}
	switch {
	case status == http.StatusNotFound:
		return nil, &core.SpecUnavailableError{ID: id, Err: errNotFound}
	case status != http.StatusOK:
		return nil, &core.SpecUnavailableError{ID: id, Err: fmt.Errorf("unexpected status %d", status)}
	case len(body) == 0:
		return nil, &core.SpecUnavailableError{ID: id, Err: errors.New("empty document")}
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Debug("failed to close response body", "url", rawURL, "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
