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

package openapi

import (
	"net"
	"net/netip"
	"net/url"
	"slices"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// URLSecurityIssue represents a potential security concern with a URL.
type URLSecurityIssue struct {
	Type        string
	Description string
}

var (
	privatePrefixes = []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("172.16.0.0/12"),
		netip.MustParsePrefix("192.168.0.0/16"),
		netip.MustParsePrefix("fc00::/7"),
	}
	cloudMetadataHosts = []string{"169.254.169.254", "metadata.google.internal", "100.100.100.200"}
)

// CheckURLSecurity reports why rawURL may point somewhere a registry entry
// should not send tool calls (loopback, private ranges, cloud metadata).
func CheckURLSecurity(rawURL string) []URLSecurityIssue {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	host := parsed.Hostname()

	var issues []URLSecurityIssue
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		issues = append(issues, URLSecurityIssue{Type: "localhost", Description: "URL points to localhost/loopback address"})
	}
	if slices.Contains(cloudMetadataHosts, host) {
		issues = append(issues, URLSecurityIssue{Type: "cloud_metadata", Description: "URL points to cloud metadata endpoint"})
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		for _, p := range privatePrefixes {
			if p.Contains(addr) {
				issues = append(issues, URLSecurityIssue{Type: "private_ip", Description: "URL points to private IP address"})
				break
			}
		}
		if net.IP(addr.AsSlice()).IsLinkLocalUnicast() {
			issues = append(issues, URLSecurityIssue{Type: "link_local", Description: "URL points to link-local address"})
		}
	}
	return issues
}

// WarnURLSecurity logs every issue CheckURLSecurity finds for rawURL.
func WarnURLSecurity(logger hclog.Logger, rawURL, urlType string) {
	for _, issue := range CheckURLSecurity(rawURL) {
		logger.Warn("URL has potential security concerns",
			"kind", urlType, "url", rawURL, "issue", issue.Type, "detail", issue.Description,
			"hint", "use --dev-mode to suppress for local development")
	}
}
