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

package config

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

// Environment variables read by the CLI flags.
const (
	EnvID             = "SMARTAPI_ID"
	EnvIDs            = "SMARTAPI_IDS"
	EnvExcludeIDs     = "SMARTAPI_EXCLUDE_IDS"
	EnvQuery          = "SMARTAPI_Q"
	EnvAPISet         = "SMARTAPI_API_SET"
	EnvServerName     = "SERVER_NAME"
	EnvTransport      = "SMARTAPI_MCP_TRANSPORT"
	EnvHost           = "SMARTAPI_MCP_HOST"
	EnvPort           = "SMARTAPI_MCP_PORT"
	EnvCORSOrigins    = "SMARTAPI_MCP_CORS_ORIGINS"
	EnvMaxTools       = "SMARTAPI_MCP_MAX_TOOLS"
	EnvRouting        = "SMARTAPI_MCP_ROUTING"
	EnvConcurrency    = "SMARTAPI_MCP_CONCURRENCY"
	EnvRegistryURL    = "SMARTAPI_REGISTRY_URL"
	EnvCacheDir       = "SMARTAPI_MCP_CACHE_DIR"
	EnvEmbeddingURL   = "SMARTAPI_MCP_EMBEDDING_URL"
	EnvEmbeddingModel = "SMARTAPI_MCP_EMBEDDING_MODEL"
	EnvLogLevel       = "SMARTAPI_MCP_LOG_LEVEL"
)

// DefaultCacheDir is where the search index is cached.
func DefaultCacheDir() string {
	return filepath.Join(xdg.CacheHome, "smartapi-mcp")
}

// LoadEnvFiles loads variables from files, ".env" when none are given.
// Missing files are ignored and variables already set are kept.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}
