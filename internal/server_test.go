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
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biothings/smartapi-mcp/pkg/core"
	"github.com/biothings/smartapi-mcp/pkg/metrics"
)

func echoTool(name string) core.ToolEntry {
	return core.ToolEntry{
		Tool: mcp.NewTool(name, mcp.WithDescription("echo "+name)),
		Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText(name), nil
		},
		Origin: "test",
	}
}

func testInstance(t *testing.T) *core.ServerInstance {
	t.Helper()
	instance := core.NewServerInstance("Test Server", "")
	require.NoError(t, instance.AddTools(echoTool("first")))
	return instance
}

// listTools asks mcpServer for its tools the way a client would.
func listTools(t *testing.T, mcpServer *server.MCPServer) []string {
	t.Helper()
	response := mcpServer.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(response)
	require.NoError(t, err)

	var decoded struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	names := make([]string, 0, len(decoded.Result.Tools))
	for _, tool := range decoded.Result.Tools {
		names = append(names, tool.Name)
	}
	return names
}

func TestGetMCPServer(t *testing.T) {
	instance := testInstance(t)
	mcpServer := GetMCPServer(instance, "1.2.3", nil)
	if mcpServer == nil {
		t.Fatal("Expected non-nil MCP server")
	}
	assert.ElementsMatch(t, []string{"first"}, listTools(t, mcpServer))

	t.Run("tools added later are registered", func(t *testing.T) {
		require.NoError(t, instance.AddTools(echoTool("second")))
		assert.ElementsMatch(t, []string{"first", "second"}, listTools(t, mcpServer))
	})
}

func TestStartServerWithFactory(t *testing.T) {
	t.Run("HTTP transport success", func(t *testing.T) {
		mockFactory := &MockServerFactory{}
		err := StartServerWithFactory(context.Background(), testInstance(t), core.TransportTypeHTTP, "127.0.0.1:8080", "dev", mockFactory, nil)

		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if !mockFactory.HTTPStartCalled {
			t.Error("Expected HTTP server Start() to be called")
		}
		if mockFactory.HTTPAddr != "127.0.0.1:8080" {
			t.Errorf("Expected address 127.0.0.1:8080, got %q", mockFactory.HTTPAddr)
		}
		if mockFactory.StdioServeCalled {
			t.Error("Expected stdio server Serve() NOT to be called")
		}
	})

	t.Run("HTTP transport error", func(t *testing.T) {
		expectedError := errors.New("failed to bind port")
		mockFactory := &MockServerFactory{HTTPStartError: expectedError}

		err := StartServerWithFactory(context.Background(), testInstance(t), core.TransportTypeHTTP, ":8080", "dev", mockFactory, nil)

		if err != expectedError {
			t.Errorf("Expected error %v, got: %v", expectedError, err)
		}
		if !mockFactory.HTTPStartCalled {
			t.Error("Expected HTTP server Start() to be called even on error")
		}
	})

	t.Run("Stdio transport success", func(t *testing.T) {
		mockFactory := &MockServerFactory{}
		err := StartServerWithFactory(context.Background(), testInstance(t), core.TransportTypeStdio, "", "dev", mockFactory, nil)

		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if !mockFactory.StdioServeCalled {
			t.Error("Expected stdio server Serve() to be called")
		}
		if mockFactory.HTTPStartCalled {
			t.Error("Expected HTTP server Start() NOT to be called")
		}
	})

	t.Run("Stdio transport error", func(t *testing.T) {
		expectedError := errors.New("stdio server failed")
		mockFactory := &MockServerFactory{StdioServeError: expectedError}

		err := StartServerWithFactory(context.Background(), testInstance(t), core.TransportTypeStdio, "", "dev", mockFactory, nil)

		if err != expectedError {
			t.Errorf("Expected error %v, got: %v", expectedError, err)
		}
	})

	t.Run("Invalid transport type", func(t *testing.T) {
		mockFactory := &MockServerFactory{}
		err := StartServerWithFactory(context.Background(), testInstance(t), "invalid", "", "dev", mockFactory, nil)

		if err == nil {
			t.Fatal("Expected error for invalid transport")
		}
		if !strings.Contains(err.Error(), "unsupported transport type") {
			t.Errorf("Expected unsupported transport error, got: %v", err)
		}
		if mockFactory.HTTPStartCalled || mockFactory.StdioServeCalled {
			t.Error("Expected no server methods to be called for invalid transport")
		}
	})
}

func TestNewHTTPHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics.New(registry).ToolsLoaded(3)

	mcpServer := GetMCPServer(testInstance(t), "dev", nil)
	srv := httptest.NewServer(NewHTTPHandler(mcpServer, HandlerOptions{Gatherer: registry}))
	t.Cleanup(srv.Close)

	t.Run("healthz", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ok", string(body))
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "smartapi_mcp_tools_loaded_total 3")
	})

	t.Run("mcp initialize", func(t *testing.T) {
		payload := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1.0.0"}}}`
		resp, err := http.Post(srv.URL+MCPPath, "application/json", strings.NewReader(payload))
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "Test Server")
	})

	t.Run("no metrics without gatherer", func(t *testing.T) {
		bare := httptest.NewServer(NewHTTPHandler(mcpServer, HandlerOptions{}))
		defer bare.Close()
		resp, err := http.Get(bare.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("cors preflight", func(t *testing.T) {
		withCORS := httptest.NewServer(NewHTTPHandler(mcpServer, HandlerOptions{CORSOrigins: []string{"http://localhost:6274"}}))
		defer withCORS.Close()

		req, err := http.NewRequest(http.MethodOptions, withCORS.URL+MCPPath, nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "http://localhost:6274")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, "http://localhost:6274", resp.Header.Get("Access-Control-Allow-Origin"))

		req.Header.Set("Origin", "http://evil.example")
		resp2, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp2.Body.Close()
		assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
	})
}

func TestProductionHTTPServer_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	factory := &ProductionServerFactory{ShutdownTimeout: time.Second}
	httpServer := factory.CreateHTTPServer(GetMCPServer(testInstance(t), "dev", nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- httpServer.Start(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

// MockServerFactory records which transport was started.
type MockServerFactory struct {
	HTTPStartError   error
	StdioServeError  error
	HTTPStartCalled  bool
	StdioServeCalled bool
	HTTPAddr         string
	Server           *server.MCPServer
}

func (f *MockServerFactory) CreateHTTPServer(mcpServer *server.MCPServer) HTTPServer {
	f.Server = mcpServer
	return &mockHTTPServer{factory: f}
}

func (f *MockServerFactory) CreateStdioServer(mcpServer *server.MCPServer) StdioServer {
	f.Server = mcpServer
	return &mockStdioServer{factory: f}
}

type mockHTTPServer struct {
	factory *MockServerFactory
}

func (s *mockHTTPServer) Start(ctx context.Context, addr string) error {
	s.factory.HTTPStartCalled = true
	s.factory.HTTPAddr = addr
	return s.factory.HTTPStartError
}

type mockStdioServer struct {
	factory *MockServerFactory
}

func (s *mockStdioServer) Serve(ctx context.Context) error {
	s.factory.StdioServeCalled = true
	return s.factory.StdioServeError
}
