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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biothings/smartapi-mcp/pkg/core"
)

// newRegistry serves /query and /metadata/{id} from docs.
func newRegistry(t *testing.T, docs map[string][]byte, hits []string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/query", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "_id", r.URL.Query().Get("fields"))
		resp := map[string]any{"total": len(hits)}
		list := make([]map[string]any, 0, len(hits))
		for _, id := range hits {
			list = append(list, map[string]any{"_id": id, "_score": 1.0})
		}
		resp["hits"] = list
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/metadata/{id}", func(w http.ResponseWriter, r *http.Request) {
		doc, ok := docs[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(doc)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return data
}

func TestClient_QueryIDs(t *testing.T) {
	srv := newRegistry(t, nil, []string{"a", "b", "c"})
	client := NewClient(srv.URL+"/api", 5*time.Second, hclog.NewNullLogger())

	ids, err := client.QueryIDs(context.Background(), "tags.name=biothings")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestClient_QueryIDs_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, time.Second, nil)
	_, err := client.QueryIDs(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestClient_FetchDocument(t *testing.T) {
	doc := readFixture(t, "mygene.json")
	srv := newRegistry(t, map[string][]byte{"mygene": doc}, nil)
	client := NewClient(srv.URL+"/api/", time.Second, nil)

	t.Run("found", func(t *testing.T) {
		got, err := client.FetchDocument(context.Background(), "mygene")
		require.NoError(t, err)
		assert.Equal(t, doc, got)
	})

	t.Run("not found is spec unavailable", func(t *testing.T) {
		_, err := client.FetchDocument(context.Background(), "missing")
		require.ErrorIs(t, err, core.ErrSpecUnavailable)

		var specErr *core.SpecUnavailableError
		require.ErrorAs(t, err, &specErr)
		assert.Equal(t, "missing", specErr.ID)
	})
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient("", time.Second, nil)
	assert.Equal(t, DefaultBaseURL, client.BaseURL)
	assert.Equal(t, DefaultQuerySize, client.QuerySize)
}
