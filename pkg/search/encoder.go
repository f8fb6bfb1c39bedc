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

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultEmbeddingModel is requested when no model is configured.
const DefaultEmbeddingModel = "all-minilm"

// Encoder embeds texts into vectors of one fixed dimension.
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}

// ModelNamer is implemented by encoders that know which embedding model they
// use. The name keys the search index cache.
type ModelNamer interface {
	Model() string
}

func encoderModel(e Encoder) string {
	if m, ok := e.(ModelNamer); ok {
		return m.Model()
	}
	return ""
}

// HTTPEncoder calls an Ollama-compatible /api/embed endpoint.
type HTTPEncoder struct {
	endpoint   string
	model      string
	httpClient *http.Client
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewHTTPEncoder validates baseURL and returns an encoder for model.
func NewHTTPEncoder(baseURL, model string, timeout time.Duration) (*HTTPEncoder, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid embedding URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("invalid embedding URL %q: must be an absolute http(s) URL", baseURL)
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &HTTPEncoder{
		endpoint:   strings.TrimRight(u.String(), "/") + "/api/embed",
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Model returns the embedding model requested from the provider.
func (e *HTTPEncoder) Model() string { return e.model }

// Encode returns one vector per text, in order.
func (e *HTTPEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embeddings: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d texts", len(out.Embeddings), len(texts))
	}
	return out.Embeddings, nil
}
