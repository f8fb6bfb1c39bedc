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

// Package config holds the runtime configuration of the SmartAPI MCP server.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/biothings/smartapi-mcp/pkg/core"
	"github.com/biothings/smartapi-mcp/pkg/selection"
)

// Defaults applied by the CLI.
const (
	DefaultServerName  = "smartapi_mcp"
	DefaultAPISet      = "biothings"
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 8080
	DefaultMaxTools    = 10
	DefaultConcurrency = 8
	DefaultLogLevel    = "info"
	DefaultTimeout     = 30 * time.Second
)

// Config is the resolved set of CLI flags and environment variables.
type Config struct {
	// Selection
	ID          string
	IDs         []string
	ExcludeIDs  []string
	Query       string
	APISet      string
	APISetGiven bool

	// Server
	ServerName  string
	Transport   core.TransportType
	Host        string
	Port        int
	CORSOrigins []string
	DevMode     bool
	Manifest    string

	// Loading
	MaxTools    int
	Routing     bool
	Concurrency int
	Timeout     time.Duration

	// Registry and search
	RegistryURL    string
	CacheDir       string
	EmbeddingURL   string
	EmbeddingModel string

	LogLevel string
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if !c.Transport.IsValid() {
		errs = append(errs, fmt.Errorf("invalid transport %q: must be %q or %q", c.Transport, core.TransportTypeStdio, core.TransportTypeHTTP))
	}
	if c.Transport == core.TransportTypeHTTP && (c.Port <= 0 || c.Port > 65535) {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	if c.MaxTools <= 0 {
		errs = append(errs, fmt.Errorf("max tools must be positive, got %d", c.MaxTools))
	}
	if c.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("concurrency must be positive, got %d", c.Concurrency))
	}
	if c.ServerName == "" {
		errs = append(errs, errors.New("server name must not be empty"))
	}
	if u, err := url.Parse(c.RegistryURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid registry URL %q", c.RegistryURL))
	}
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

// SelectionRequest converts the selection fields. Without any selection
// input the DefaultAPISet is requested.
func (c *Config) SelectionRequest() selection.Request {
	req := selection.Request{
		APISet:      c.APISet,
		APISetGiven: c.APISetGiven,
		ID:          c.ID,
		IDs:         c.IDs,
		Query:       c.Query,
		Exclude:     c.ExcludeIDs,
	}
	if !req.APISetGiven && req.APISet == "" && req.ID == "" && len(req.IDs) == 0 && req.Query == "" {
		req.APISet = DefaultAPISet
	}
	return req
}

// Addr is the listen address of the HTTP transport.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
