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

package core

import (
	"fmt"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tool(name string) ToolEntry {
	return ToolEntry{Tool: mcp.NewTool(name)}
}

func TestServerInstance_AddTools(t *testing.T) {
	t.Run("preserves insertion order", func(t *testing.T) {
		s := NewServerInstance("MyGene.info API", "3.0")
		require.NoError(t, s.AddTools(tool("b"), tool("a"), tool("c")))

		assert.Equal(t, []string{"b", "a", "c"}, s.ToolNames())
		assert.Equal(t, Summary{Tools: 3}, s.Summary())
		assert.Equal(t, "MyGene.info API", s.Name())
		assert.Equal(t, "3.0", s.Version())
	})

	t.Run("rejects name already registered", func(t *testing.T) {
		s := NewServerInstance("x", "")
		require.NoError(t, s.AddTools(tool("a")))

		err := s.AddTools(tool("b"), tool("a"))
		require.ErrorIs(t, err, ErrDuplicateEntry)
		assert.Equal(t, []string{"a"}, s.ToolNames(), "failed add must not partially apply")
	})

	t.Run("rejects duplicates within one call", func(t *testing.T) {
		s := NewServerInstance("x", "")
		err := s.AddTools(tool("a"), tool("a"))
		require.ErrorIs(t, err, ErrDuplicateEntry)
		assert.Empty(t, s.Tools())
	})

	t.Run("rejects empty name", func(t *testing.T) {
		s := NewServerInstance("x", "")
		require.Error(t, s.AddTools(ToolEntry{}))
	})
}

func TestServerInstance_Lookup(t *testing.T) {
	s := NewServerInstance("x", "")
	require.NoError(t, s.AddTools(tool("query")))

	got, ok := s.Tool("query")
	require.True(t, ok)
	assert.Equal(t, "query", got.Name())

	_, ok = s.Tool("missing")
	assert.False(t, ok)
}

func TestServerInstance_PromptsAndResources(t *testing.T) {
	s := NewServerInstance("x", "")
	require.NoError(t, s.AddPrompts(PromptEntry{Prompt: mcp.NewPrompt("overview")}))
	require.NoError(t, s.AddResources(ResourceEntry{Resource: mcp.NewResource("smartapi://abc/openapi", "spec")}))

	require.ErrorIs(t, s.AddPrompts(PromptEntry{Prompt: mcp.NewPrompt("overview")}), ErrDuplicateEntry)
	require.ErrorIs(t, s.AddResources(ResourceEntry{Resource: mcp.NewResource("smartapi://abc/openapi", "again")}), ErrDuplicateEntry)

	assert.Equal(t, Summary{Prompts: 1, Resources: 1}, s.Summary())
	assert.Equal(t, "overview", s.Prompts()[0].Name())
	assert.Equal(t, "smartapi://abc/openapi", s.Resources()[0].URI())
}

func TestServerInstance_Subscribe(t *testing.T) {
	s := NewServerInstance("router", "")

	var got []Update
	s.Subscribe(func(u Update) { got = append(got, u) })

	require.NoError(t, s.AddTools(tool("a"), tool("b")))
	require.Error(t, s.AddTools(tool("a")))
	require.NoError(t, s.Add(Update{}))

	require.Len(t, got, 1, "only successful non-empty adds are published")
	assert.Len(t, got[0].Tools, 2)
}

func TestServerInstance_ConcurrentAdds(t *testing.T) {
	s := NewServerInstance("x", "")

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.AddTools(tool(fmt.Sprintf("tool_%d", i)))
			_ = s.Tools()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Summary().Tools)
}
