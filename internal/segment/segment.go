// Package segment splits chunk texts into retrieval-sized passages.
//
// Passages are sliding windows over whitespace-delimited words. The same input
// always yields the same passages and a passage is never empty.
package segment

import "strings"

const (
	DefaultSize    = 200
	DefaultOverlap = 40
)

// Passage is one window of words taken from the input text at index Source.
// Start and End are word offsets into that text.
type Passage struct {
	Text   string
	Source int
	Start  int
	End    int
}

type Segmenter struct {
	size    int
	overlap int
}

type Option func(*Segmenter)

// WithSize sets the window size in words. Non-positive values are ignored.
func WithSize(words int) Option {
	return func(s *Segmenter) {
		if words > 0 {
			s.size = words
		}
	}
}

// WithOverlap sets how many words consecutive windows share. Negative values are ignored.
func WithOverlap(words int) Option {
	return func(s *Segmenter) {
		if words >= 0 {
			s.overlap = words
		}
	}
}

func New(opts ...Option) *Segmenter {
	s := &Segmenter{size: DefaultSize, overlap: DefaultOverlap}
	for _, opt := range opts {
		opt(s)
	}
	if s.overlap >= s.size {
		s.overlap = s.size / 4
	}
	return s
}

func (s *Segmenter) Size() int    { return s.size }
func (s *Segmenter) Overlap() int { return s.overlap }

// Split segments every text in order. Texts with no words contribute nothing.
func (s *Segmenter) Split(texts []string) []Passage {
	var passages []Passage
	step := s.size - s.overlap
	for i, text := range texts {
		words := strings.Fields(text)
		for start := 0; start < len(words); start += step {
			end := start + s.size
			if end > len(words) {
				end = len(words)
			}
			passages = append(passages, Passage{
				Text:   strings.Join(words[start:end], " "),
				Source: i,
				Start:  start,
				End:    end,
			})
			if end == len(words) {
				break
			}
		}
	}
	return passages
}

// Texts returns the passage texts in order.
func Texts(passages []Passage) []string {
	out := make([]string, len(passages))
	for i, p := range passages {
		out[i] = p.Text
	}
	return out
}
