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
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSpecUnavailable indicates the registry could not provide a usable OpenAPI document.
	ErrSpecUnavailable = errors.New("spec unavailable")

	// ErrNoSuitableEndpoint indicates no server entry of a document could be chosen as base URL.
	ErrNoSuitableEndpoint = errors.New("no suitable endpoint")

	// ErrNoAccessibleTools indicates a server instance exposes zero tools.
	ErrNoAccessibleTools = errors.New("no accessible tools")

	// ErrNoAPIsSelected indicates a selection resolved to an empty id list.
	ErrNoAPIsSelected = errors.New("no APIs selected")

	// ErrUnknownAPISet indicates a predefined API set name is not known.
	ErrUnknownAPISet = errors.New("unknown API set")

	// ErrNoDescriptionsAvailable indicates the semantic index has nothing to embed.
	ErrNoDescriptionsAvailable = errors.New("no API descriptions available for semantic search")

	// ErrDuplicateNamespace indicates two instances sanitize to the same merge prefix.
	ErrDuplicateNamespace = errors.New("duplicate namespace")

	// ErrDuplicateEntry indicates an entry name is already registered on an instance.
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// SpecUnavailableError carries the identifier that could not be resolved.
type SpecUnavailableError struct {
	ID  string
	Err error
}

func (e *SpecUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("spec unavailable for API %s", e.ID)
	}
	return fmt.Sprintf("spec unavailable for API %s: %v", e.ID, e.Err)
}

func (e *SpecUnavailableError) Is(target error) bool { return target == ErrSpecUnavailable }

func (e *SpecUnavailableError) Unwrap() error { return e.Err }

// NoSuitableEndpointError lists every candidate that was rejected.
type NoSuitableEndpointError struct {
	APIName    string
	Candidates []Endpoint
}

func (e *NoSuitableEndpointError) Error() string {
	urls := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		urls[i] = c.URL
	}
	return fmt.Sprintf("cannot determine server URL for API: %s (candidates: [%s])", e.APIName, strings.Join(urls, ", "))
}

func (e *NoSuitableEndpointError) Is(target error) bool { return target == ErrNoSuitableEndpoint }

// NoAccessibleToolsError names the instance without tools.
type NoAccessibleToolsError struct {
	Server string
}

func (e *NoAccessibleToolsError) Error() string {
	return fmt.Sprintf("server %s does not have accessible tools", e.Server)
}

func (e *NoAccessibleToolsError) Is(target error) bool { return target == ErrNoAccessibleTools }

// UnknownAPISetError names the unrecognised set, which may be empty.
type UnknownAPISetError struct {
	Name  string
	Known []string
}

func (e *UnknownAPISetError) Error() string {
	return fmt.Sprintf("unknown API set %q (known sets: %s)", e.Name, strings.Join(e.Known, ", "))
}

func (e *UnknownAPISetError) Is(target error) bool { return target == ErrUnknownAPISet }

// DuplicateNamespaceError names both instances that share a prefix.
type DuplicateNamespaceError struct {
	Prefix string
	First  string
	Second string
}

func (e *DuplicateNamespaceError) Error() string {
	return fmt.Sprintf("servers %q and %q share namespace prefix %q", e.First, e.Second, e.Prefix)
}

func (e *DuplicateNamespaceError) Is(target error) bool { return target == ErrDuplicateNamespace }
