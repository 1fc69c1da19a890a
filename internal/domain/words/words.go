// Package words derives an indexed, time-aligned word sequence from a
// transcript. The derived view is read-only: clip boundaries always live on
// the clip itself, this package only maps between word indices and time.
//
// When the recognizer supplied word-level timestamps they are used verbatim.
// Otherwise each segment's duration is distributed across its tokens
// proportionally to character length, with a floor so no word collapses to
// zero length.
package words

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/forPelevin/podclip/internal/types"
)

const (
	// Minimum duration assigned to any interpolated word.
	minWordSeconds = 0.05
	// Assumed duration per word when a segment reports a non-positive span.
	avgWordSeconds = 0.3
)

var (
	bracketedRE = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)
	timecodeRE  = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?\b`)
)

// Word is one token of the transcript with interpolated or recognizer-given
// timing and a globally addressable index.
type Word struct {
	Text  string  `json:"text"`
	Start float64 `json:"start_seconds"`
	End   float64 `json:"end_seconds"`
	Index int     `json:"index"`
}

// Model holds the full word sequence for one transcript.
type Model struct {
	words []Word
}

// Build expands every segment into words. Indices run as a single counter
// across the whole transcript, independent of segment boundaries.
func Build(t types.Transcript) *Model {
	m := &Model{}
	for _, seg := range t.Segments {
		if len(seg.Words) > 0 {
			for _, w := range seg.Words {
				m.words = append(m.words, Word{
					Text:  w.Word,
					Start: w.Start,
					End:   w.End,
					Index: len(m.words),
				})
			}
			continue
		}
		m.expandSegment(seg)
	}
	return m
}

func (m *Model) expandSegment(seg types.Segment) {
	tokens := tokenize(seg.Text)
	if len(tokens) == 0 {
		return
	}

	dur := seg.End - seg.Start
	if dur <= 0 {
		cursor := seg.Start
		for _, tok := range tokens {
			m.append(tok, cursor, cursor+avgWordSeconds)
			cursor += avgWordSeconds
		}
		return
	}

	totalChars := 0
	for _, tok := range tokens {
		totalChars += len([]rune(tok))
	}

	cursor := seg.Start
	for _, tok := range tokens {
		var d float64
		if totalChars == 0 {
			d = dur / float64(len(tokens))
		} else {
			d = dur * float64(len([]rune(tok))) / float64(totalChars)
		}
		if d < minWordSeconds {
			d = minWordSeconds
		}
		m.append(tok, cursor, cursor+d)
		cursor += d
	}
}

func (m *Model) append(text string, start, end float64) {
	m.words = append(m.words, Word{Text: text, Start: start, End: end, Index: len(m.words)})
}

// tokenize strips bracketed annotations and stray time codes, then splits
// on whitespace.
func tokenize(text string) []string {
	cleaned := bracketedRE.ReplaceAllString(text, " ")
	cleaned = timecodeRE.ReplaceAllString(cleaned, " ")
	return strings.Fields(cleaned)
}

// Words returns the full sequence. Callers must not mutate the slice.
func (m *Model) Words() []Word { return m.words }

// Count reports the number of words in the transcript.
func (m *Model) Count() int { return len(m.words) }

// At returns the word at index i.
func (m *Model) At(i int) (Word, bool) {
	if i < 0 || i >= len(m.words) {
		return Word{}, false
	}
	return m.words[i], true
}

// InRange returns every word overlapping the half-open interval [t0, t1).
func (m *Model) InRange(t0, t1 float64) []Word {
	var out []Word
	for _, w := range m.words {
		if w.End > t0 && w.Start < t1 {
			out = append(out, w)
		}
	}
	return out
}

// IndexRangeForTime returns the first and last word index overlapping
// [t0, t1), and false when no word falls inside the interval.
func (m *Model) IndexRangeForTime(t0, t1 float64) (int, int, bool) {
	first, last := -1, -1
	for _, w := range m.words {
		if w.End > t0 && w.Start < t1 {
			if first < 0 {
				first = w.Index
			}
			last = w.Index
		}
	}
	if first < 0 {
		return 0, 0, false
	}
	return first, last, true
}

// TimeRangeForIndices maps an inclusive index range back to a timestamp
// pair: the start of the first word and the end of the last.
func (m *Model) TimeRangeForIndices(i0, i1 int) (float64, float64, error) {
	if i0 < 0 || i1 < i0 || i1 >= len(m.words) {
		return 0, 0, fmt.Errorf("word index range [%d, %d] out of bounds (0..%d)", i0, i1, len(m.words)-1)
	}
	return m.words[i0].Start, m.words[i1].End, nil
}
