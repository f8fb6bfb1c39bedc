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
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/biothings/smartapi-mcp/pkg/config"
	"github.com/biothings/smartapi-mcp/pkg/core"
	"github.com/biothings/smartapi-mcp/pkg/search"
	"github.com/biothings/smartapi-mcp/pkg/smartapi"
)

// parseConfig runs the root command with args and returns the parsed config.
func parseConfig(t *testing.T, args ...string) config.Config {
	t.Helper()
	var got config.Config
	cmd := NewCommand("test")
	cmd.Action = func(ctx context.Context, c *cli.Command) error {
		got = ConfigFromCommand(c)
		return nil
	}
	require.NoError(t, cmd.Run(context.Background(), append([]string{"smartapi-mcp"}, args...)))
	return got
}

func TestNewCommand(t *testing.T) {
	cmd := NewCommand("1.2.3")
	assert.Equal(t, "smartapi-mcp", cmd.Name)
	assert.Equal(t, "1.2.3", cmd.Version)
	assert.NotEmpty(t, cmd.Usage)
	require.Len(t, cmd.Commands, 1)
	assert.Equal(t, "search", cmd.Commands[0].Name)
}

func TestConfigFromCommand_Defaults(t *testing.T) {
	cfg := parseConfig(t)

	assert.Equal(t, config.DefaultServerName, cfg.ServerName)
	assert.Equal(t, core.TransportTypeStdio, cfg.Transport)
	assert.Equal(t, config.DefaultHost, cfg.Host)
	assert.Equal(t, config.DefaultPort, cfg.Port)
	assert.Equal(t, config.DefaultMaxTools, cfg.MaxTools)
	assert.Equal(t, config.DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, config.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, smartapi.DefaultBaseURL, cfg.RegistryURL)
	assert.Equal(t, config.DefaultCacheDir(), cfg.CacheDir)
	assert.Equal(t, search.DefaultEmbeddingModel, cfg.EmbeddingModel)
	assert.False(t, cfg.Routing)
	assert.False(t, cfg.APISetGiven)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, config.DefaultAPISet, cfg.SelectionRequest().APISet)
}

func TestConfigFromCommand_Flags(t *testing.T) {
	cfg := parseConfig(t,
		"--ids", "a,b",
		"--exclude-ids", "c",
		"--query", "tags.name=biothings",
		"--transport", "http",
		"--port", "9000",
		"--cors-origins", "http://localhost:6274,https://app.example",
		"--max-tools", "3",
		"--routing",
		"--timeout", "2s",
		"--dev-mode",
		"--manifest", "out.json",
	)

	assert.Equal(t, []string{"a", "b"}, cfg.IDs)
	assert.Equal(t, []string{"c"}, cfg.ExcludeIDs)
	assert.Equal(t, "tags.name=biothings", cfg.Query)
	assert.Equal(t, core.TransportTypeHTTP, cfg.Transport)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, []string{"http://localhost:6274", "https://app.example"}, cfg.CORSOrigins)
	assert.Equal(t, 3, cfg.MaxTools)
	assert.True(t, cfg.Routing)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "out.json", cfg.Manifest)
}

func TestConfigFromCommand_Env(t *testing.T) {
	t.Setenv(config.EnvIDs, "x,y")
	t.Setenv(config.EnvServerName, "bio")
	t.Setenv(config.EnvRouting, "true")

	cfg := parseConfig(t)
	assert.Equal(t, []string{"x", "y"}, cfg.IDs)
	assert.Equal(t, "bio", cfg.ServerName)
	assert.True(t, cfg.Routing)

	t.Run("flags override env", func(t *testing.T) {
		cfg := parseConfig(t, "--server-name", "flag")
		assert.Equal(t, "flag", cfg.ServerName)
	})
}

func TestConfigFromCommand_EmptyAPISet(t *testing.T) {
	t.Run("flag", func(t *testing.T) {
		cfg := parseConfig(t, "--api-set", "")
		assert.True(t, cfg.APISetGiven)
		assert.Empty(t, cfg.APISet)
		assert.Empty(t, cfg.SelectionRequest().APISet, "an explicitly empty set is not replaced by the default")
	})

	t.Run("env", func(t *testing.T) {
		t.Setenv(config.EnvAPISet, "")
		cfg := parseConfig(t)
		assert.True(t, cfg.APISetGiven)
		assert.Empty(t, cfg.SelectionRequest().APISet)
	})
}

func TestSearchCommand(t *testing.T) {
	_, registryURL := newFakeRegistry(t, "mygene")

	t.Run("prints debug result", func(t *testing.T) {
		var out bytes.Buffer
		cmd := NewCommand("test")
		cmd.Writer = &out
		err := cmd.Run(context.Background(), []string{
			"smartapi-mcp",
			"--registry-url", registryURL,
			"--ids", "mygene",
			"--cache-dir", t.TempDir(),
			"--log-level", "error",
			"search", "gene",
		})
		require.NoError(t, err)

		var result search.DebugResult
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		assert.Equal(t, search.MethodCategory, result.Method)
		require.Len(t, result.Results, 1)
		assert.Equal(t, "mygene", result.Results[0].ID)
	})

	t.Run("query is required", func(t *testing.T) {
		cmd := NewCommand("test")
		err := cmd.Run(context.Background(), []string{"smartapi-mcp", "--registry-url", registryURL, "search"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "query argument is required")
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("warn", &buf)
	assert.Equal(t, hclog.Warn, logger.GetLevel())

	logger.Info("hidden")
	logger.Warn("shown", "id", "mygene")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "smartapi-mcp: shown")
	assert.Contains(t, buf.String(), "id=mygene")
}
