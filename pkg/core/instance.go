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
)

// Update describes entries that were added to a ServerInstance in one call.
type Update struct {
	Tools     []ToolEntry
	Prompts   []PromptEntry
	Resources []ResourceEntry
}

// Empty reports whether the update carries no entries.
func (u Update) Empty() bool {
	return len(u.Tools) == 0 && len(u.Prompts) == 0 && len(u.Resources) == 0
}

// Summary counts the entries of a ServerInstance.
type Summary struct {
	Tools     int `json:"tools"`
	Prompts   int `json:"prompts"`
	Resources int `json:"resources"`
}

// ServerInstance is a named collection of tools, prompts and resources.
// Entry names are unique within an instance. Insertion order is preserved.
// All methods are safe for concurrent use.
type ServerInstance struct {
	name    string
	version string

	mu          sync.RWMutex
	tools       []ToolEntry
	toolIndex   map[string]int
	prompts     []PromptEntry
	promptIndex map[string]int
	resources   []ResourceEntry
	resIndex    map[string]int
	subscribers []func(Update)
}

// NewServerInstance creates an empty instance.
func NewServerInstance(name, version string) *ServerInstance {
	return &ServerInstance{
		name:        name,
		version:     version,
		toolIndex:   make(map[string]int),
		promptIndex: make(map[string]int),
		resIndex:    make(map[string]int),
	}
}

// Name returns the display name of the instance.
func (s *ServerInstance) Name() string {
	return s.name
}

// Version returns the version string of the instance.
func (s *ServerInstance) Version() string {
	return s.version
}

// Subscribe registers fn to be called after every successful Add.
// fn is invoked outside the instance lock.
func (s *ServerInstance) Subscribe(fn func(Update)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// AddTools adds tools to the instance. Either all tools are added or, when any
// name is already taken (or repeated within tools), none are.
func (s *ServerInstance) AddTools(tools ...ToolEntry) error {
	return s.Add(Update{Tools: tools})
}

// AddPrompts adds prompts with the same all-or-nothing semantics as AddTools.
func (s *ServerInstance) AddPrompts(prompts ...PromptEntry) error {
	return s.Add(Update{Prompts: prompts})
}

// AddResources adds resources keyed by URI.
func (s *ServerInstance) AddResources(resources ...ResourceEntry) error {
	return s.Add(Update{Resources: resources})
}

// Add applies all entries of u atomically.
func (s *ServerInstance) Add(u Update) error {
	if u.Empty() {
		return nil
	}

	s.mu.Lock()
	if err := s.checkLocked(u); err != nil {
		s.mu.Unlock()
		return err
	}
	for _, t := range u.Tools {
		s.toolIndex[t.Name()] = len(s.tools)
		s.tools = append(s.tools, t)
	}
	for _, p := range u.Prompts {
		s.promptIndex[p.Name()] = len(s.prompts)
		s.prompts = append(s.prompts, p)
	}
	for _, r := range u.Resources {
		s.resIndex[r.URI()] = len(s.resources)
		s.resources = append(s.resources, r)
	}
	subscribers := make([]func(Update), len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn(u)
	}
	return nil
}

func (s *ServerInstance) checkLocked(u Update) error {
	seen := make(map[string]struct{}, len(u.Tools))
	for _, t := range u.Tools {
		if t.Name() == "" {
			return fmt.Errorf("server %q: tool name must not be empty", s.name)
		}
		if _, ok := s.toolIndex[t.Name()]; ok {
			return fmt.Errorf("server %q: %w: tool %q", s.name, ErrDuplicateEntry, t.Name())
		}
		if _, ok := seen[t.Name()]; ok {
			return fmt.Errorf("server %q: %w: tool %q", s.name, ErrDuplicateEntry, t.Name())
		}
		seen[t.Name()] = struct{}{}
	}

	clear(seen)
	for _, p := range u.Prompts {
		if _, ok := s.promptIndex[p.Name()]; ok {
			return fmt.Errorf("server %q: %w: prompt %q", s.name, ErrDuplicateEntry, p.Name())
		}
		if _, ok := seen[p.Name()]; ok {
			return fmt.Errorf("server %q: %w: prompt %q", s.name, ErrDuplicateEntry, p.Name())
		}
		seen[p.Name()] = struct{}{}
	}

	clear(seen)
	for _, r := range u.Resources {
		if _, ok := s.resIndex[r.URI()]; ok {
			return fmt.Errorf("server %q: %w: resource %q", s.name, ErrDuplicateEntry, r.URI())
		}
		if _, ok := seen[r.URI()]; ok {
			return fmt.Errorf("server %q: %w: resource %q", s.name, ErrDuplicateEntry, r.URI())
		}
		seen[r.URI()] = struct{}{}
	}
	return nil
}

// Tools returns a snapshot of the tools in insertion order.
func (s *ServerInstance) Tools() []ToolEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ToolEntry, len(s.tools))
	copy(out, s.tools)
	return out
}

// Tool looks up a tool by name.
func (s *ServerInstance) Tool(name string) (ToolEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.toolIndex[name]
	if !ok {
		return ToolEntry{}, false
	}
	return s.tools[i], true
}

// ToolNames returns the tool names in insertion order.
func (s *ServerInstance) ToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.tools))
	for i, t := range s.tools {
		names[i] = t.Name()
	}
	return names
}

// Prompts returns a snapshot of the prompts in insertion order.
func (s *ServerInstance) Prompts() []PromptEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PromptEntry, len(s.prompts))
	copy(out, s.prompts)
	return out
}

// Resources returns a snapshot of the resources in insertion order.
func (s *ServerInstance) Resources() []ResourceEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ResourceEntry, len(s.resources))
	copy(out, s.resources)
	return out
}

// Summary returns the current entry counts.
func (s *ServerInstance) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Summary{
		Tools:     len(s.tools),
		Prompts:   len(s.prompts),
		Resources: len(s.resources),
	}
}
