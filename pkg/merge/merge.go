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

// Package merge combines per-API server instances into one aggregate server
// whose entry names are namespaced by the originating API.
package merge

import (
	"strings"

	"github.com/biothings/smartapi-mcp/pkg/core"
)

// DefaultName names the aggregate when the caller does not.
const DefaultName = "merged_mcp"

// SanitizeNamespace lowercases name and replaces every rune outside
// [a-z0-9_-] with a single underscore.
func SanitizeNamespace(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Namespace returns the entries of instances renamed to "{prefix}_{name}",
// where prefix is the sanitized instance name. Resources keep their URI.
// Instances are never modified.
//
// It fails with NoAccessibleToolsError on the first instance without tools
// and with DuplicateNamespaceError when two instances share a prefix.
func Namespace(instances []*core.ServerInstance) (core.Update, error) {
	var update core.Update
	owners := make(map[string]string, len(instances))

	for _, instance := range instances {
		tools := instance.Tools()
		if len(tools) == 0 {
			return core.Update{}, &core.NoAccessibleToolsError{Server: instance.Name()}
		}

		prefix := SanitizeNamespace(instance.Name())
		if first, ok := owners[prefix]; ok {
			return core.Update{}, &core.DuplicateNamespaceError{Prefix: prefix, First: first, Second: instance.Name()}
		}
		owners[prefix] = instance.Name()

		for _, tool := range tools {
			update.Tools = append(update.Tools, tool.Renamed(prefix+"_"+tool.Name()))
		}
		for _, prompt := range instance.Prompts() {
			update.Prompts = append(update.Prompts, prompt.Renamed(prefix+"_"+prompt.Name()))
		}
		update.Resources = append(update.Resources, instance.Resources()...)
	}
	return update, nil
}

// Merge builds a new aggregate instance called name from instances.
// An empty name selects DefaultName.
func Merge(instances []*core.ServerInstance, name string) (*core.ServerInstance, error) {
	if name == "" {
		name = DefaultName
	}
	update, err := Namespace(instances)
	if err != nil {
		return nil, err
	}
	aggregate := core.NewServerInstance(name, "")
	if err := aggregate.Add(update); err != nil {
		return nil, err
	}
	return aggregate, nil
}
