// Package answer turns retrieved context into a streamed, citation-aware
// reply. It builds the grounding prompt from the numbered context items,
// relays model tokens as they arrive, and when the stream ends resolves the
// [N] markers the model emitted back to their source chunks.
package answer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/docgrove/go-docchat-backend/internal/domain"
	"github.com/docgrove/go-docchat-backend/internal/provider/ai"
	"github.com/docgrove/go-docchat-backend/internal/retrieval"
)

// noContextAnswer is streamed when retrieval found nothing to ground on.
const noContextAnswer = "I could not find anything relevant to that in this folder's documents. " +
	"Try rephrasing the question, or check that the folder has finished indexing."

const systemPromptFormat = `You are a careful assistant answering questions about a specific set of documents.

Use ONLY the numbered context excerpts below. When a statement comes from an excerpt, cite it inline with its number in square brackets, e.g. [1]. If the excerpts do not contain the answer, say so plainly instead of guessing.

Context:
%s`

// Completion is the terminal outcome of one generation. Text holds whatever
// was produced, including partial output when the client cancelled
// mid-stream. Err is non-nil only for a model failure, never for
// cancellation or an empty context.
type Completion struct {
	Text      string
	Citations domain.CitationMap
	Err       error
}

// Generator streams grounded answers from the chat model.
type Generator struct {
	chat ai.ChatStreamer
	log  zerolog.Logger
}

// New builds a Generator.
func New(chat ai.ChatStreamer, log zerolog.Logger) *Generator {
	return &Generator{chat: chat, log: log.With().Str("component", "answer").Logger()}
}

// Generate streams the answer to query grounded on items. Tokens arrive on
// the first channel until it closes; exactly one Completion follows on the
// second. Cancelling ctx stops the stream at a token boundary and the
// Completion carries the partial text.
func (g *Generator) Generate(ctx context.Context, query string, items []retrieval.ContextItem, history []ai.Turn) (<-chan string, <-chan Completion) {
	tokens := make(chan string)
	done := make(chan Completion, 1)

	go func() {
		defer close(tokens)
		defer close(done)

		if len(items) == 0 {
			select {
			case tokens <- noContextAnswer:
			case <-ctx.Done():
			}
			done <- Completion{Text: noContextAnswer, Citations: domain.CitationMap{}}
			return
		}

		system := fmt.Sprintf(systemPromptFormat, retrieval.FormatContext(items))
		stream, errs := g.chat.Stream(ctx, system, history, query)

		var text strings.Builder
		for tok := range stream {
			text.WriteString(tok)
			select {
			case tokens <- tok:
			case <-ctx.Done():
				// Stop relaying; keep draining so the provider goroutine can
				// finish and close its channels.
				for range stream {
				}
			}
		}

		var streamErr error
		if err, ok := <-errs; ok && err != nil {
			streamErr = err
		}

		full := text.String()
		done <- Completion{
			Text:      full,
			Citations: resolveCitations(full, items),
			Err:       streamErr,
		}
	}()

	return tokens, done
}

// resolveCitations maps the markers found in text back to context items,
// keyed by the marker number.
func resolveCitations(text string, items []retrieval.ContextItem) domain.CitationMap {
	out := domain.CitationMap{}
	for _, n := range citationMarkers(text, len(items)) {
		it := items[n-1]
		out[strconv.Itoa(n)] = domain.Citation{
			ChunkID:  it.ChunkID,
			FileName: it.FileName,
			Location: it.Location,
			Excerpt:  excerpt(it.Excerpt, 200),
		}
	}
	return out
}

// citationMarkers scans text for [N] markers with 1 <= N <= max. A bracket
// directly following an identifier character is subscript syntax, not a
// citation ("array[0]"). Indices are unique, in first-appearance order.
func citationMarkers(text string, max int) []int {
	var (
		found []int
		seen  = make(map[int]struct{})
		runes = []rune(text)
	)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '[' {
			continue
		}
		if i > 0 && isIdentRune(runes[i-1]) {
			continue
		}
		j := i + 1
		for j < len(runes) && unicode.IsDigit(runes[j]) {
			j++
		}
		if j == i+1 || j >= len(runes) || runes[j] != ']' {
			continue
		}
		n, err := strconv.Atoi(string(runes[i+1 : j]))
		if err != nil || n < 1 || n > max {
			continue
		}
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			found = append(found, n)
		}
		i = j
	}
	return found
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func excerpt(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "…"
}
