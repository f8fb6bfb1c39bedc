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
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/urfave/cli/v3"

	"github.com/biothings/smartapi-mcp/pkg/config"
	"github.com/biothings/smartapi-mcp/pkg/core"
	"github.com/biothings/smartapi-mcp/pkg/search"
	"github.com/biothings/smartapi-mcp/pkg/smartapi"
)

// Flag names.
const (
	flagID             = "id"
	flagIDs            = "ids"
	flagExcludeIDs     = "exclude-ids"
	flagQuery          = "query"
	flagAPISet         = "api-set"
	flagServerName     = "server-name"
	flagTransport      = "transport"
	flagHost           = "host"
	flagPort           = "port"
	flagCORSOrigins    = "cors-origins"
	flagMaxTools       = "max-tools"
	flagRouting        = "routing"
	flagConcurrency    = "concurrency"
	flagTimeout        = "timeout"
	flagRegistryURL    = "registry-url"
	flagCacheDir       = "cache-dir"
	flagEmbeddingURL   = "embedding-url"
	flagEmbeddingModel = "embedding-model"
	flagLogLevel       = "log-level"
	flagDevMode        = "dev-mode"
	flagManifest       = "manifest"
	flagLimit          = "limit"
)

// defaultFlags returns fresh flags; urfave/cli flags keep parse state.
func defaultFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    flagID,
			Usage:   "Load a single SmartAPI registry id.",
			Sources: cli.EnvVars(config.EnvID),
		},
		&cli.StringSliceFlag{
			Name:    flagIDs,
			Usage:   "Load a comma-separated list of SmartAPI registry ids.",
			Sources: cli.EnvVars(config.EnvIDs),
		},
		&cli.StringSliceFlag{
			Name:    flagExcludeIDs,
			Usage:   "Registry ids to drop from the selection. Replaces the exclusions of a predefined set.",
			Sources: cli.EnvVars(config.EnvExcludeIDs),
		},
		&cli.StringFlag{
			Name:    flagQuery,
			Aliases: []string{"q"},
			Usage:   "Select every API matching a SmartAPI registry query.",
			Sources: cli.EnvVars(config.EnvQuery),
		},
		&cli.StringFlag{
			Name:    flagAPISet,
			Usage:   "Select a predefined API set: biothings_core, biothings or biothings_all.",
			Sources: cli.EnvVars(config.EnvAPISet),
		},
		&cli.StringFlag{
			Name:    flagServerName,
			Value:   config.DefaultServerName,
			Usage:   "Name of the aggregate MCP server.",
			Sources: cli.EnvVars(config.EnvServerName),
		},
		&cli.StringFlag{
			Name:    flagTransport,
			Aliases: []string{"t"},
			Value:   string(core.TransportTypeStdio),
			Usage:   "Transport protocol for this MCP server - can be either stdio or http.",
			Sources: cli.EnvVars(config.EnvTransport),
		},
		&cli.StringFlag{
			Name:    flagHost,
			Value:   config.DefaultHost,
			Usage:   "Host the HTTP server binds to, ignored if transport is stdio.",
			Sources: cli.EnvVars(config.EnvHost),
		},
		&cli.IntFlag{
			Name:    flagPort,
			Value:   config.DefaultPort,
			Usage:   "Port on which the HTTP server is started, ignored if transport is stdio.",
			Sources: cli.EnvVars(config.EnvPort),
		},
		&cli.StringSliceFlag{
			Name:    flagCORSOrigins,
			Usage:   "Origins allowed to call the HTTP server from a browser. \"*\" allows any origin.",
			Sources: cli.EnvVars(config.EnvCORSOrigins),
		},
		&cli.IntFlag{
			Name:    flagMaxTools,
			Value:   config.DefaultMaxTools,
			Usage:   "Most APIs a single load_tools_batch call may load.",
			Sources: cli.EnvVars(config.EnvMaxTools),
		},
		&cli.BoolFlag{
			Name:    flagRouting,
			Usage:   "Serve large selections through a router with search_smartapi.",
			Sources: cli.EnvVars(config.EnvRouting),
		},
		&cli.IntFlag{
			Name:    flagConcurrency,
			Value:   config.DefaultConcurrency,
			Usage:   "Most registry documents fetched at once.",
			Sources: cli.EnvVars(config.EnvConcurrency),
		},
		&cli.DurationFlag{
			Name:  flagTimeout,
			Value: config.DefaultTimeout,
			Usage: "Timeout of registry, embedding and upstream API requests.",
		},
		&cli.StringFlag{
			Name:    flagRegistryURL,
			Value:   smartapi.DefaultBaseURL,
			Usage:   "Base URL of the SmartAPI registry API.",
			Sources: cli.EnvVars(config.EnvRegistryURL),
		},
		&cli.StringFlag{
			Name:    flagCacheDir,
			Value:   config.DefaultCacheDir(),
			Usage:   "Directory holding the semantic search index.",
			Sources: cli.EnvVars(config.EnvCacheDir),
		},
		&cli.StringFlag{
			Name:    flagEmbeddingURL,
			Usage:   "Base URL of an Ollama-compatible embedding service. Without it search uses category routing.",
			Sources: cli.EnvVars(config.EnvEmbeddingURL),
		},
		&cli.StringFlag{
			Name:    flagEmbeddingModel,
			Value:   search.DefaultEmbeddingModel,
			Usage:   "Embedding model name.",
			Sources: cli.EnvVars(config.EnvEmbeddingModel),
		},
		&cli.StringFlag{
			Name:    flagLogLevel,
			Value:   config.DefaultLogLevel,
			Usage:   "Log level: trace, debug, info, warn or error.",
			Sources: cli.EnvVars(config.EnvLogLevel),
		},
		&cli.BoolFlag{
			Name:  flagDevMode,
			Usage: "Suppress security warnings for local/private API base URLs. Use only for local development.",
		},
		&cli.StringFlag{
			Name:  flagManifest,
			Usage: "Write the tools, prompts and resources to this JSON file and exit without serving.",
		},
	}
}

// NewCommand returns the root command. Its action serves the selected APIs;
// the search subcommand shows how a query would be routed.
func NewCommand(version string) *cli.Command {
	return &cli.Command{
		Name:    "smartapi-mcp",
		Usage:   "Serve SmartAPI registry APIs as MCP tools.",
		Version: version,
		Flags:   defaultFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := ConfigFromCommand(cmd)
			app, err := NewApp(cfg, version, NewLogger(cfg.LogLevel, os.Stderr))
			if err != nil {
				return err
			}
			return app.Run(ctx)
		},
		Commands: []*cli.Command{searchCommand(version)},
	}
}

func searchCommand(version string) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search the selected APIs and print the routing decision as JSON.",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  flagLimit,
				Value: search.DefaultLimit,
				Usage: "Most semantic matches to show.",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			query := cmd.Args().First()
			if query == "" {
				return errors.New("search: a query argument is required")
			}
			cfg := ConfigFromCommand(cmd)
			app, err := NewApp(cfg, version, NewLogger(cfg.LogLevel, os.Stderr))
			if err != nil {
				return err
			}
			result, err := app.Debug(ctx, query, int(cmd.Int(flagLimit)))
			if err != nil {
				return err
			}
			return writeJSON(cmd.Root().Writer, result)
		},
	}
}

// ConfigFromCommand reads every flag of cmd into a Config.
func ConfigFromCommand(cmd *cli.Command) config.Config {
	return config.Config{
		ID:             cmd.String(flagID),
		IDs:            cmd.StringSlice(flagIDs),
		ExcludeIDs:     cmd.StringSlice(flagExcludeIDs),
		Query:          cmd.String(flagQuery),
		APISet:         cmd.String(flagAPISet),
		APISetGiven:    cmd.IsSet(flagAPISet),
		ServerName:     cmd.String(flagServerName),
		Transport:      core.TransportType(cmd.String(flagTransport)),
		Host:           cmd.String(flagHost),
		Port:           int(cmd.Int(flagPort)),
		CORSOrigins:    cmd.StringSlice(flagCORSOrigins),
		DevMode:        cmd.Bool(flagDevMode),
		Manifest:       cmd.String(flagManifest),
		MaxTools:       int(cmd.Int(flagMaxTools)),
		Routing:        cmd.Bool(flagRouting),
		Concurrency:    int(cmd.Int(flagConcurrency)),
		Timeout:        cmd.Duration(flagTimeout),
		RegistryURL:    cmd.String(flagRegistryURL),
		CacheDir:       cmd.String(flagCacheDir),
		EmbeddingURL:   cmd.String(flagEmbeddingURL),
		EmbeddingModel: cmd.String(flagEmbeddingModel),
		LogLevel:       cmd.String(flagLogLevel),
	}
}

// NewLogger creates the root logger. Logs go to w so stdio transport keeps
// stdout for protocol messages.
func NewLogger(level string, w io.Writer) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "smartapi-mcp",
		Level:  hclog.LevelFromString(level),
		Output: w,
	})
}

func writeJSON(w io.Writer, v any) error {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
