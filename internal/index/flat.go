// Package index provides an exact L2 nearest-neighbour index that lives for a
// single retrieval call.
package index

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"chatmate.app/chatmate/internal/utils"
)

const (
	magic   = "CMIX"
	version = uint32(1)

	// maxDim and maxPrealloc bound allocations driven by an untrusted header.
	maxDim      = 1 << 16
	maxPrealloc = 4096
)

var (
	ErrDimensionMismatch = errors.New("index: dimension mismatch")
	ErrCorrupt           = errors.New("index: corrupt serialized index")
)

// Hit is one query result. Distance is the squared L2 distance.
type Hit struct {
	Index    int
	Distance float32
}

// Flat stores every vector and answers queries by brute force.
type Flat struct {
	dim     int
	vectors [][]float32
}

// Build copies vectors into a new index. Empty input yields a valid empty index.
func Build(vectors [][]float32) (*Flat, error) {
	ix := &Flat{}
	if len(vectors) == 0 {
		return ix, nil
	}
	ix.dim = len(vectors[0])
	if ix.dim == 0 {
		return nil, fmt.Errorf("%w: zero-length vector", ErrDimensionMismatch)
	}
	if ix.dim > maxDim {
		return nil, fmt.Errorf("%w: %d values exceeds %d", ErrDimensionMismatch, ix.dim, maxDim)
	}
	ix.vectors = make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != ix.dim {
			return nil, fmt.Errorf("%w: vector %d has %d values, want %d", ErrDimensionMismatch, i, len(v), ix.dim)
		}
		ix.vectors[i] = append([]float32(nil), v...)
	}
	return ix, nil
}

func (ix *Flat) Len() int { return len(ix.vectors) }
func (ix *Flat) Dim() int { return ix.dim }

// Search returns up to k hits ordered by ascending distance; equal distances keep insertion order.
func (ix *Flat) Search(query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("index: k must be positive, got %d", k)
	}
	if len(ix.vectors) == 0 {
		return nil, nil
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has %d values, want %d", ErrDimensionMismatch, len(query), ix.dim)
	}

	hits := make([]Hit, len(ix.vectors))
	for i, v := range ix.vectors {
		d, err := utils.SquaredL2(query, v)
		if err != nil {
			return nil, err
		}
		hits[i] = Hit{Index: i, Distance: d}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Distance < hits[b].Distance
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// WriteTo serializes the index: magic, version, dim, count, then little-endian float32 values.
func (ix *Flat) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	cw := &countingWriter{w: bw}

	header := make([]byte, 0, 20)
	header = append(header, magic...)
	header = binary.LittleEndian.AppendUint32(header, version)
	header = binary.LittleEndian.AppendUint32(header, uint32(ix.dim))
	header = binary.LittleEndian.AppendUint64(header, uint64(len(ix.vectors)))
	if _, err := cw.Write(header); err != nil {
		return cw.n, err
	}

	buf := make([]byte, 4)
	for _, v := range ix.vectors {
		for _, f := range v {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
			if _, err := cw.Write(buf); err != nil {
				return cw.n, err
			}
		}
	}
	return cw.n, bw.Flush()
}

// Read loads an index written by WriteTo.
func Read(r io.Reader) (*Flat, error) {
	br := bufio.NewReader(r)

	header := make([]byte, 20)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	if string(header[:4]) != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, header[:4])
	}
	if v := binary.LittleEndian.Uint32(header[4:8]); v != version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}
	dim := int(binary.LittleEndian.Uint32(header[8:12]))
	count := binary.LittleEndian.Uint64(header[12:20])
	if count > 0 && dim == 0 {
		return nil, fmt.Errorf("%w: %d vectors with zero dimension", ErrCorrupt, count)
	}
	if dim > maxDim {
		return nil, fmt.Errorf("%w: dimension %d exceeds %d", ErrCorrupt, dim, maxDim)
	}

	ix := &Flat{dim: dim}
	if count == 0 {
		return ix, nil
	}
	ix.vectors = make([][]float32, 0, min(count, maxPrealloc))
	buf := make([]byte, 4*dim)
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("%w: vector %d: %v", ErrCorrupt, i, err)
		}
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*j:]))
		}
		ix.vectors = append(ix.vectors, v)
	}
	return ix, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
