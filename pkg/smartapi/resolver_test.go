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
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biothings/smartapi-mcp/pkg/core"
)

type fakeFetcher struct {
	docs  map[string][]byte
	err   error
	calls atomic.Int32
}

func (f *fakeFetcher) FetchDocument(_ context.Context, id string) ([]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	doc, ok := f.docs[id]
	if !ok {
		return nil, &core.SpecUnavailableError{ID: id, Err: errNotFound}
	}
	return doc, nil
}

func TestResolver_Resolve(t *testing.T) {
	fetcher := &fakeFetcher{docs: map[string][]byte{"mygene": readFixture(t, "mygene.json")}}
	r := NewResolver(fetcher, nil)

	desc, err := r.Resolve(context.Background(), "mygene")
	require.NoError(t, err)

	assert.Equal(t, "mygene", desc.ID)
	assert.Equal(t, "MyGene.info API", desc.Title)
	assert.Equal(t, "3.0", desc.Version)
	assert.NotNil(t, desc.Document)
	require.Len(t, desc.Servers, 2)
	assert.Equal(t, "https://mygene.info/v3", desc.Servers[0].URL)
	assert.Equal(t, "Encrypted Production server on https", desc.Servers[0].Description)
}

func TestResolver_Memoises(t *testing.T) {
	fetcher := &fakeFetcher{docs: map[string][]byte{"mygene": readFixture(t, "mygene.json")}}
	r := NewResolver(fetcher, nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Resolve(context.Background(), "mygene")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	first, err := r.Resolve(context.Background(), "mygene")
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "mygene")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.LessOrEqual(t, fetcher.calls.Load(), int32(8))
	before := fetcher.calls.Load()
	_, _ = r.Resolve(context.Background(), "mygene")
	assert.Equal(t, before, fetcher.calls.Load(), "cached id must not hit the registry")
}

// blockingFetcher holds every fetch until release is closed or ctx is done.
type blockingFetcher struct {
	doc     []byte
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (f *blockingFetcher) FetchDocument(ctx context.Context, _ string) ([]byte, error) {
	f.calls.Add(1)
	select {
	case f.started <- struct{}{}:
	default:
	}
	select {
	case <-f.release:
		return f.doc, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestResolver_CancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	fetcher := &blockingFetcher{
		doc:     readFixture(t, "mygene.json"),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	r := NewResolver(fetcher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctx, "mygene")
		errCh <- err
	}()

	<-fetcher.started
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	close(fetcher.release)
	require.Eventually(t, func() bool {
		r.mu.RLock()
		defer r.mu.RUnlock()
		return r.cache["mygene"] != nil
	}, time.Second, 10*time.Millisecond, "the shared fetch completes after its first caller gives up")

	desc, err := r.Resolve(context.Background(), "mygene")
	require.NoError(t, err)
	assert.Equal(t, "mygene", desc.ID)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestResolver_Failures(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *fakeFetcher
		id      string
	}{
		{name: "not found", fetcher: &fakeFetcher{docs: map[string][]byte{}}, id: "missing"},
		{name: "transport error", fetcher: &fakeFetcher{err: errors.New("connection refused")}, id: "x"},
		{name: "malformed document", fetcher: &fakeFetcher{docs: map[string][]byte{"bad": []byte(`{"hello": "world"}`)}}, id: "bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.fetcher, nil)
			_, err := r.Resolve(context.Background(), tt.id)
			require.ErrorIs(t, err, core.ErrSpecUnavailable)
		})
	}
}

func TestAPIDescription_SearchText(t *testing.T) {
	tests := []struct {
		name string
		desc APIDescription
		want string
	}{
		{
			name: "all parts",
			desc: APIDescription{ID: "x", Title: "MyGene", Summary: "genes", Description: "gene annotation"},
			want: "MyGene genes gene annotation",
		},
		{
			name: "skips empty parts",
			desc: APIDescription{ID: "x", Title: "MyGene", Description: "gene annotation"},
			want: "MyGene gene annotation",
		},
		{
			name: "falls back to id",
			desc: APIDescription{ID: "59dce17363dce279d389100834e43648"},
			want: "59dce17363dce279d389100834e43648",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.desc.SearchText())
		})
	}
}

func TestAPIDescription_DisplayName(t *testing.T) {
	assert.Equal(t, "MyGene", (&APIDescription{ID: "x", Title: "MyGene"}).DisplayName())
	assert.Equal(t, "x", (&APIDescription{ID: "x"}).DisplayName())
}
