package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "w" + string(rune('a'+i%26))
	}
	return strings.Join(parts, " ")
}

func TestNew_Defaults(t *testing.T) {
	s := New()
	assert.Equal(t, DefaultSize, s.Size())
	assert.Equal(t, DefaultOverlap, s.Overlap())
}

func TestNew_OverlapClamped(t *testing.T) {
	s := New(WithSize(8), WithOverlap(8))
	assert.Equal(t, 2, s.Overlap())

	s = New(WithSize(-1), WithOverlap(-3))
	assert.Equal(t, DefaultSize, s.Size())
	assert.Equal(t, DefaultOverlap, s.Overlap())
}

func TestSplit_ShortTextIsOnePassage(t *testing.T) {
	s := New(WithSize(10), WithOverlap(2))

	got := s.Split([]string{"  Paris is the capital\nof France.  "})

	require.Len(t, got, 1)
	assert.Equal(t, "Paris is the capital of France.", got[0].Text)
	assert.Equal(t, 0, got[0].Source)
	assert.Equal(t, 0, got[0].Start)
	assert.Equal(t, 6, got[0].End)
}

func TestSplit_WindowsOverlap(t *testing.T) {
	s := New(WithSize(4), WithOverlap(1))

	got := s.Split([]string{"a b c d e f g h i j"})

	require.Len(t, got, 3)
	assert.Equal(t, "a b c d", got[0].Text)
	assert.Equal(t, "d e f g", got[1].Text)
	assert.Equal(t, "g h i j", got[2].Text)
}

func TestSplit_LastWindowShorter(t *testing.T) {
	s := New(WithSize(4), WithOverlap(0))

	got := s.Split([]string{"a b c d e f"})

	require.Len(t, got, 2)
	assert.Equal(t, "e f", got[1].Text)
}

func TestSplit_NeverEmptyAndTracksSource(t *testing.T) {
	s := New(WithSize(3), WithOverlap(1))

	got := s.Split([]string{"", "   \n\t ", "one two", words(7)})

	require.NotEmpty(t, got)
	for _, p := range got {
		assert.NotEmpty(t, strings.TrimSpace(p.Text))
		assert.GreaterOrEqual(t, p.Source, 2)
	}
	assert.Equal(t, 2, got[0].Source)
}

func TestSplit_Deterministic(t *testing.T) {
	s := New(WithSize(5), WithOverlap(2))
	input := []string{words(23), "query\nresponse"}

	assert.Equal(t, s.Split(input), s.Split(input))
	assert.Equal(t, Texts(s.Split(input)), Texts(New(WithSize(5), WithOverlap(2)).Split(input)))
}
