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
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/biothings/smartapi-mcp/pkg/core"
)

// MCPPath is where the streamable HTTP transport is mounted.
const MCPPath = "/mcp"

// DefaultShutdownTimeout bounds graceful shutdown of the HTTP transport.
const DefaultShutdownTimeout = 10 * time.Second

// ServerFactory abstracts server creation and lifecycle for dependency injection.
type ServerFactory interface {
	CreateHTTPServer(mcpServer *server.MCPServer) HTTPServer
	CreateStdioServer(mcpServer *server.MCPServer) StdioServer
}

// HTTPServer serves MCP over streamable HTTP until ctx is done.
type HTTPServer interface {
	Start(ctx context.Context, addr string) error
}

// StdioServer serves MCP over stdin/stdout until ctx is done or input ends.
type StdioServer interface {
	Serve(ctx context.Context) error
}

// HandlerOptions configures the HTTP routes around the MCP endpoint.
type HandlerOptions struct {
	// Gatherer is exposed on /metrics when set.
	Gatherer prometheus.Gatherer
	// CORSOrigins enables CORS for these origins. "*" allows any origin.
	CORSOrigins []string
}

// ProductionServerFactory implements ServerFactory for real server operations.
type ProductionServerFactory struct {
	HandlerOptions
	ShutdownTimeout time.Duration
	Logger          hclog.Logger
}

// CreateHTTPServer creates a production HTTP server wrapper.
func (f *ProductionServerFactory) CreateHTTPServer(mcpServer *server.MCPServer) HTTPServer {
	timeout := f.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return &productionHTTPServer{
		handler:         NewHTTPHandler(mcpServer, f.HandlerOptions),
		shutdownTimeout: timeout,
		logger:          loggerOrNull(f.Logger).Named("http"),
	}
}

// CreateStdioServer creates a production stdio server wrapper.
func (f *ProductionServerFactory) CreateStdioServer(mcpServer *server.MCPServer) StdioServer {
	return &productionStdioServer{
		mcpServer: mcpServer,
		logger:    loggerOrNull(f.Logger).Named("stdio"),
	}
}

// NewHTTPHandler routes the MCP endpoint, a health check and, when a gatherer
// is configured, Prometheus metrics.
func NewHTTPHandler(mcpServer *server.MCPServer, opts HandlerOptions) http.Handler {
	r := chi.NewMux()
	r.Use(middleware.Recoverer)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "Mcp-Session-Id", "Mcp-Protocol-Version", "Last-Event-ID"},
			ExposedHeaders: []string{"Mcp-Session-Id"},
			MaxAge:         300,
		}))
	}

	r.Handle(MCPPath, server.NewStreamableHTTPServer(mcpServer))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

type productionHTTPServer struct {
	handler         http.Handler
	shutdownTimeout time.Duration
	logger          hclog.Logger
}

// Start listens on addr and shuts down gracefully once ctx is done.
func (s *productionHTTPServer) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr, "path", MCPPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	}
}

type productionStdioServer struct {
	mcpServer *server.MCPServer
	logger    hclog.Logger
}

// Serve reads requests from stdin and writes responses to stdout.
func (s *productionStdioServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(s.logger.StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true}))
	err := stdio.Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// StartServerWithFactory serves instance over transport until ctx is done.
func StartServerWithFactory(
	ctx context.Context,
	instance *core.ServerInstance,
	transport core.TransportType,
	addr string,
	version string,
	factory ServerFactory,
	logger hclog.Logger,
) error {
	logger = loggerOrNull(logger)
	mcpServer := GetMCPServer(instance, version, logger)

	switch transport {
	case core.TransportTypeHTTP:
		logger.Info("starting as http MCP server", "addr", addr)
		return factory.CreateHTTPServer(mcpServer).Start(ctx, addr)

	case core.TransportTypeStdio:
		logger.Info("starting as stdio MCP server")
		if err := factory.CreateStdioServer(mcpServer).Serve(ctx); err != nil {
			logger.Error("server error", "error", err)
			return err
		}
		return nil

	default:
		return fmt.Errorf("unsupported transport type: %s", transport)
	}
}

// GetMCPServer exposes instance as an MCP server. Entries added to instance
// later are registered on the server as they arrive.
func GetMCPServer(instance *core.ServerInstance, version string, logger hclog.Logger) *server.MCPServer {
	logger = loggerOrNull(logger)
	if v := instance.Version(); v != "" {
		version = v
	}
	mcpServer := server.NewMCPServer(
		instance.Name(),
		version,
		server.WithToolCapabilities(true),
		server.WithPromptCapabilities(true),
		server.WithResourceCapabilities(false, true),
	)

	instance.Subscribe(func(u core.Update) {
		register(mcpServer, u, logger)
	})
	register(mcpServer, core.Update{
		Tools:     instance.Tools(),
		Prompts:   instance.Prompts(),
		Resources: instance.Resources(),
	}, logger)
	return mcpServer
}

func register(mcpServer *server.MCPServer, u core.Update, logger hclog.Logger) {
	for _, t := range u.Tools {
		mcpServer.AddTool(t.Tool, t.Handler)
		logger.Debug("registered tool", "name", t.Name(), "api", t.Origin)
	}
	for _, p := range u.Prompts {
		mcpServer.AddPrompt(p.Prompt, p.Handler)
		logger.Debug("registered prompt", "name", p.Name(), "api", p.Origin)
	}
	for _, r := range u.Resources {
		mcpServer.AddResource(r.Resource, r.Handler)
		logger.Debug("registered resource", "uri", r.URI(), "api", r.Origin)
	}
}

func loggerOrNull(logger hclog.Logger) hclog.Logger {
	if logger == nil {
		return hclog.NewNullLogger()
	}
	return logger
}
