package index

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomVectors(rng *rand.Rand, n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, dim)
		for j := range out[i] {
			out[i][j] = rng.Float32()*2 - 1
		}
	}
	return out
}

func TestBuild_EmptyIsValid(t *testing.T) {
	ix, err := Build(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, ix.Len())

	hits, err := ix.Search([]float32{1, 2, 3}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBuild_RejectsRaggedVectors(t *testing.T) {
	_, err := Build([][]float32{{1, 2}, {1, 2, 3}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSearch_OrderedAndBounded(t *testing.T) {
	ix, err := Build([][]float32{{10, 0}, {1, 0}, {0, 0}, {5, 0}})
	require.NoError(t, err)

	hits, err := ix.Search([]float32{0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []int{2, 1, 3}, []int{hits[0].Index, hits[1].Index, hits[2].Index})
	assert.Equal(t, []float32{0, 1, 25}, []float32{hits[0].Distance, hits[1].Distance, hits[2].Distance})

	all, err := ix.Search([]float32{0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, all, 4, "fewer vectors than k returns all of them")
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	ix, err := Build([][]float32{{1, 0}, {0, 1}, {-1, 0}})
	require.NoError(t, err)

	hits, err := ix.Search([]float32{0, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, []int{hits[0].Index, hits[1].Index, hits[2].Index})
}

func TestSearch_Errors(t *testing.T) {
	ix, err := Build([][]float32{{1, 2}})
	require.NoError(t, err)

	_, err = ix.Search([]float32{1, 2}, 0)
	assert.Error(t, err)

	_, err = ix.Search([]float32{1}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestRoundTrip_SameResults(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	vectors := randomVectors(rng, 64, 16)
	ix, err := Build(vectors)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := ix.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(20+64*16*4), n)

	reloaded, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, ix.Len(), reloaded.Len())
	assert.Equal(t, ix.Dim(), reloaded.Dim())

	for _, q := range randomVectors(rng, 10, 16) {
		before, err := ix.Search(q, 5)
		require.NoError(t, err)
		after, err := reloaded.Search(q, 5)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	}
}

func TestRoundTrip_Empty(t *testing.T) {
	ix, err := Build(nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = ix.WriteTo(&buf)
	require.NoError(t, err)

	reloaded, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.Len())
}

func TestRead_Corrupt(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("XXXX")))
	assert.ErrorIs(t, err, ErrCorrupt)

	ix, err := Build([][]float32{{1, 2, 3}})
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = ix.WriteTo(&buf)
	require.NoError(t, err)

	truncated := buf.Bytes()[:buf.Len()-2]
	_, err = Read(bytes.NewReader(truncated))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestRead_HugeHeaderIsCorrupt(t *testing.T) {
	header := func(dim uint32, count uint64) []byte {
		b := []byte(magic)
		b = binary.LittleEndian.AppendUint32(b, version)
		b = binary.LittleEndian.AppendUint32(b, dim)
		return binary.LittleEndian.AppendUint64(b, count)
	}

	// claims far more vectors than the bytes that follow
	data := append(header(4, math.MaxUint64), make([]byte, 16)...)
	_, err := Read(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = Read(bytes.NewReader(header(math.MaxUint32, 1)))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestWriteFileReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx.cmix")
	ix, err := Build([][]float32{{1, 1}, {2, 2}})
	require.NoError(t, err)

	require.NoError(t, WriteFile(path, ix))
	reloaded, err := ReadFile(path)
	require.NoError(t, err)

	hits, err := reloaded.Search([]float32{2, 2}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, hits[0].Index)
}

func TestSearchEphemeral_MatchesInMemoryAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(7))
	vectors := randomVectors(rng, 20, 8)
	query := randomVectors(rng, 1, 8)[0]

	ix, err := Build(vectors)
	require.NoError(t, err)
	want, err := ix.Search(query, 4)
	require.NoError(t, err)

	got, err := SearchEphemeral(dir, vectors, query, 4)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "index artifact must be removed")
}

func TestSearchEphemeral_CleansUpOnQueryError(t *testing.T) {
	dir := t.TempDir()

	_, err := SearchEphemeral(dir, [][]float32{{1, 2}}, []float32{1, 2, 3}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSearchEphemeral_ConcurrentCallsAreIsolated(t *testing.T) {
	dir := t.TempDir()
	const workers = 16

	var wg sync.WaitGroup
	errs := make([]error, workers)
	results := make([][]Hit, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			// worker w indexes w+1 vectors and queries its last one
			vectors := make([][]float32, w+1)
			for i := range vectors {
				vectors[i] = []float32{float32(i * 10)}
			}
			results[w], errs[w] = SearchEphemeral(dir, vectors, []float32{float32(w * 10)}, 1)
		}(w)
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		require.NoError(t, errs[w])
		require.Len(t, results[w], 1)
		assert.Equal(t, w, results[w][0].Index)
		assert.Equal(t, float32(0), results[w][0].Distance)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
