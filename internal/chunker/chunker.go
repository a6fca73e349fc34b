// Package chunker splits extracted document text into bounded, overlapping
// pieces ready for embedding. Splitting is paragraph- and sentence-aware:
// pieces break at sentence boundaries where possible and never merge text
// across location units (a page, a heading section), so every piece keeps an
// unambiguous source location.
package chunker

import (
	"strings"
	"unicode"
)

// SourceMeta describes the location unit a span of text was extracted from.
// All pieces produced from one Split call inherit it unchanged.
type SourceMeta struct {
	Page        *int
	HeadingPath string
}

// Piece is one embeddable span of text with its source location.
type Piece struct {
	Text        string
	Page        *int
	HeadingPath string
}

// Splitter produces pieces of roughly targetSize characters with overlap
// characters of trailing context repeated at the start of the next piece.
type Splitter struct {
	targetSize int
	overlap    int
}

// Defaults used when a non-positive configuration value is supplied.
const (
	DefaultTargetSize = 1200
	DefaultOverlap    = 150
)

// New returns a Splitter. Non-positive targetSize falls back to
// DefaultTargetSize; negative overlap is clamped to zero, and overlap is
// always kept below targetSize so consecutive pieces make progress.
func New(targetSize, overlap int) *Splitter {
	if targetSize <= 0 {
		targetSize = DefaultTargetSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= targetSize {
		overlap = targetSize / 4
	}
	return &Splitter{targetSize: targetSize, overlap: overlap}
}

// Split divides text into pieces. The input is one location unit: callers
// invoke Split once per page or per section, never with text spanning units.
// Whitespace is normalized, empty input yields no pieces, and the result is
// deterministic for a given input.
func (s *Splitter) Split(text string, meta SourceMeta) []Piece {
	var sentences []string
	for _, block := range strings.Split(text, "\n\n") {
		block = normalizeWhitespace(block)
		if block == "" {
			continue
		}
		sentences = append(sentences, splitSentences(block)...)
	}
	if len(sentences) == 0 {
		return nil
	}

	var pieces []Piece
	var current []string
	currentLen := 0
	fresh := 0 // sentences in current beyond carried overlap

	flush := func() {
		if len(current) == 0 {
			return
		}
		pieces = append(pieces, Piece{
			Text:        strings.Join(current, " "),
			Page:        meta.Page,
			HeadingPath: meta.HeadingPath,
		})
		// Carry trailing sentences into the next piece as overlap.
		var carry []string
		carried := 0
		for i := len(current) - 1; i >= 0; i-- {
			n := len(current[i])
			if carried+n > s.overlap {
				break
			}
			carry = append([]string{current[i]}, carry...)
			carried += n + 1
		}
		// Overlap must never cover the whole piece, or we would loop.
		if len(carry) == len(current) {
			carry = nil
			carried = 0
		}
		current = carry
		currentLen = carried
		fresh = 0
	}

	for _, sent := range sentences {
		// A single sentence larger than the target is hard-split on runes.
		if len(sent) > s.targetSize {
			flush()
			current = nil
			currentLen = 0
			fresh = 0
			for _, part := range hardSplit(sent, s.targetSize) {
				pieces = append(pieces, Piece{
					Text:        part,
					Page:        meta.Page,
					HeadingPath: meta.HeadingPath,
				})
			}
			continue
		}
		if currentLen > 0 && currentLen+len(sent)+1 > s.targetSize {
			flush()
		}
		current = append(current, sent)
		currentLen += len(sent) + 1
		fresh++
	}
	// Emit the remainder only when it holds text not already covered by the
	// overlap carried out of the previous piece.
	if len(current) > 0 && fresh > 0 {
		pieces = append(pieces, Piece{
			Text:        strings.Join(current, " "),
			Page:        meta.Page,
			HeadingPath: meta.HeadingPath,
		})
	}
	return pieces
}

// splitSentences cuts a normalized block at terminal punctuation followed by
// a space. The terminator stays with its sentence.
func splitSentences(block string) []string {
	var out []string
	start := 0
	runes := []rune(block)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// Consume a run of terminators ("..." / "?!").
		for i+1 < len(runes) && (runes[i+1] == '.' || runes[i+1] == '!' || runes[i+1] == '?') {
			i++
		}
		if i+1 < len(runes) && runes[i+1] != ' ' {
			continue
		}
		sent := strings.TrimSpace(string(runes[start : i+1]))
		if sent != "" {
			out = append(out, sent)
		}
		start = i + 1
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	return out
}

// hardSplit cuts an oversized sentence into max-sized rune windows.
func hardSplit(sent string, max int) []string {
	var out []string
	runes := []rune(sent)
	for len(runes) > 0 {
		n := len(runes)
		// Windows are sized in bytes to honor the target bound.
		bytes := 0
		cut := n
		for i, r := range runes {
			bytes += runeLen(r)
			if bytes > max {
				cut = i
				break
			}
		}
		if cut == 0 {
			cut = 1
		}
		out = append(out, strings.TrimSpace(string(runes[:cut])))
		runes = runes[cut:]
	}
	return out
}

func runeLen(r rune) int { return len(string(r)) }

func normalizeWhitespace(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	lastSpace := false
	for _, r := range input {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
