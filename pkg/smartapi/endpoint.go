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

package smartapi

import (
	"strings"

	"github.com/biothings/smartapi-mcp/pkg/core"
)

const (
	// CIMarker identifies Translator integration deployments in a server URL.
	CIMarker = "ci.transltr.io"
	// ProductionPhrase is matched verbatim against server descriptions.
	ProductionPhrase = "Production server on https"
	// productionWord is matched case-insensitively against server descriptions.
	productionWord = "production"
)

// ResolveBaseURL picks the endpoint tool calls are sent to.
//
// A single candidate is always used. Otherwise the first candidate whose URL
// contains CIMarker wins; failing that, the first candidate whose description
// contains ProductionPhrase or, in any case, the word "production".
func ResolveBaseURL(desc *APIDescription) (core.Endpoint, error) {
	candidates := desc.Servers
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	for _, c := range candidates {
		if strings.Contains(c.URL, CIMarker) {
			return c, nil
		}
	}
	for _, c := range candidates {
		if isProduction(c.Description) {
			return c, nil
		}
	}

	return core.Endpoint{}, &core.NoSuitableEndpointError{
		APIName:    desc.DisplayName(),
		Candidates: append([]core.Endpoint(nil), candidates...),
	}
}

func isProduction(description string) bool {
	return strings.Contains(description, ProductionPhrase) ||
		strings.Contains(strings.ToLower(description), productionWord)
}
