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

package search

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
)

var indexMagic = [4]byte{'S', 'M', 'F', 'I'}

// ErrDimensionMismatch is returned by Search when the query vector does not
// have the index dimension.
var ErrDimensionMismatch = errors.New("index: dimension mismatch")

const (
	indexVersion    uint32 = 1
	maxIndexVectors        = 1 << 20
	maxIndexDim            = 1 << 14
)

// Hit is one index position with its inner-product score.
type Hit struct {
	Position int
	Score    float32
}

// FlatIndex is an exhaustive inner-product index over L2-normalised vectors.
type FlatIndex struct {
	dim     int
	vectors [][]float32
}

// NewFlatIndex normalises copies of vectors and indexes them in order.
// All vectors must share one non-zero dimension.
func NewFlatIndex(vectors [][]float32) (*FlatIndex, error) {
	if len(vectors) == 0 {
		return nil, errors.New("index: no vectors")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, errors.New("index: zero-dimensional vectors")
	}
	idx := &FlatIndex{dim: dim, vectors: make([][]float32, len(vectors))}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("index: vector %d has dimension %d, want %d", i, len(v), dim)
		}
		idx.vectors[i] = Normalize(v)
	}
	return idx, nil
}

// Len returns the number of indexed vectors.
func (x *FlatIndex) Len() int { return len(x.vectors) }

// Dim returns the vector dimension.
func (x *FlatIndex) Dim() int { return x.dim }

// Search returns up to k hits for query ordered by descending score.
// The query is normalised first.
func (x *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, want %d", ErrDimensionMismatch, len(query), x.dim)
	}
	if k <= 0 {
		return nil, nil
	}
	q := Normalize(query)
	hits := make([]Hit, len(x.vectors))
	for i, v := range x.vectors {
		var dot float32
		for j := range v {
			dot += v[j] * q[j]
		}
		hits[i] = Hit{Position: i, Score: dot}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Normalize returns a unit-length copy of v. Zero vectors are copied unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	norm := math.Sqrt(sum)
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out
}

// WriteTo encodes the index as little-endian binary.
func (x *FlatIndex) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	header := struct {
		Magic   [4]byte
		Version uint32
		Count   uint32
		Dim     uint32
	}{indexMagic, indexVersion, uint32(len(x.vectors)), uint32(x.dim)}
	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		return 0, err
	}
	for _, v := range x.vectors {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return 0, err
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}
	return int64(16 + 4*len(x.vectors)*x.dim), nil
}

// ReadFlatIndex decodes an index written by WriteTo.
func ReadFlatIndex(r io.Reader) (*FlatIndex, error) {
	var header struct {
		Magic   [4]byte
		Version uint32
		Count   uint32
		Dim     uint32
	}
	br := bufio.NewReader(r)
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("index: read header: %w", err)
	}
	if header.Magic != indexMagic {
		return nil, errors.New("index: bad magic")
	}
	if header.Version != indexVersion {
		return nil, fmt.Errorf("index: unsupported version %d", header.Version)
	}
	if header.Count == 0 || header.Dim == 0 {
		return nil, errors.New("index: empty index")
	}
	if header.Count > maxIndexVectors || header.Dim > maxIndexDim {
		return nil, fmt.Errorf("index: implausible shape %dx%d", header.Count, header.Dim)
	}

	x := &FlatIndex{dim: int(header.Dim), vectors: make([][]float32, header.Count)}
	for i := range x.vectors {
		v := make([]float32, x.dim)
		if err := binary.Read(br, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("index: read vector %d: %w", i, err)
		}
		x.vectors[i] = v
	}
	return x, nil
}
