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

package selection

import (
	"slices"

	"github.com/biothings/smartapi-mcp/pkg/core"
)

// APISet is a named, predefined selection.
type APISet struct {
	Name    string
	IDs     []string
	Query   string
	Exclude []string
}

var biothingsExcluded = []string{
	"1c9be9e56f93f54192dcac203f21c357",
	"5a4c41bf2076b469a0e9cfcf2f2b8f29",
	"cc857d5b7c8b7609b5bbb38ff990bfff",
	"f339b28426e7bf72028f60feefcd7465",
	"34bad236d77bea0a0ee6c6cba5be54a6",
}

var sets = map[string]APISet{
	"biothings_core": {
		Name: "biothings_core",
		IDs: []string{
			"59dce17363dce279d389100834e43648", // MyGene.info
			"09c8782d9f4027712e65b95424adba79", // MyVariant.info
			"8f08d1446e0bb9c2b323713ce83e2bd3", // MyChem.info
			"671b45c0301c8624abbd26ae78449ca2", // MyDisease.info
			"1d288b3a3caf75d541ffaae3aab386c8", // SemmedDB
		},
	},
	"biothings": {
		Name:    "biothings",
		Query:   "_status.uptime_status:pass AND tags.name=biothings AND NOT tags.name=trapi",
		Exclude: biothingsExcluded,
	},
	"biothings_all": {
		Name:  "biothings_all",
		Query: "tags.name=biothings",
	},
}

// SetNames lists the predefined sets in sorted order.
func SetNames() []string {
	names := make([]string, 0, len(sets))
	for name := range sets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LookupSet returns a copy of the predefined set called name.
func LookupSet(name string) (APISet, error) {
	set, ok := sets[name]
	if !ok {
		return APISet{}, &core.UnknownAPISetError{Name: name, Known: SetNames()}
	}
	return APISet{
		Name:    set.Name,
		IDs:     slices.Clone(set.IDs),
		Query:   set.Query,
		Exclude: slices.Clone(set.Exclude),
	}, nil
}
