// Package retrieval implements the two-stage context builder behind every
// chat answer. Stage one embeds the question and pulls the nearest chunks by
// vector distance; stage two rescores the survivors with a cross-encoder
// reranker and keeps the best few. The output is a numbered list of context
// items whose indices the generation layer cites back as [N] markers.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/docgrove/go-docchat-backend/internal/provider/ai"
	"github.com/docgrove/go-docchat-backend/internal/repo"
)

// ContextItem is one retrieved excerpt handed to the model, numbered for
// citation.
type ContextItem struct {
	// Index is the 1-based citation number the model refers to as [N].
	Index    int
	ChunkID  string
	FileName string
	// Location is a short human-readable pointer into the source document:
	// a page for PDFs, a heading path for markdown, the file name otherwise.
	Location string
	Excerpt  string
	Score    float64
}

// Config tunes the candidate funnel.
type Config struct {
	// TopK chunks survive the vector stage.
	TopK int
	// TopN items survive the rerank stage and reach the model.
	TopN int
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = 20
	}
	if c.TopN <= 0 {
		c.TopN = 5
	}
	if c.TopN > c.TopK {
		c.TopN = c.TopK
	}
	return c
}

// Engine runs retrieval against the chunk store.
type Engine struct {
	db       *gorm.DB
	embedder ai.Embedder
	reranker ai.Reranker
	cfg      Config
	log      zerolog.Logger
}

// New builds an Engine. The embedder must be the one the indexer used, or
// distances are meaningless.
func New(db *gorm.DB, embedder ai.Embedder, reranker ai.Reranker, cfg Config, log zerolog.Logger) *Engine {
	return &Engine{
		db:       db,
		embedder: embedder,
		reranker: reranker,
		cfg:      cfg.withDefaults(),
		log:      log.With().Str("component", "retrieval").Logger(),
	}
}

// Retrieve returns the reranked context items for a question and the
// distinct file names the vector stage touched. An empty or unindexed folder
// yields empty results, not an error.
func (e *Engine) Retrieve(ctx context.Context, folderID, ownerID, query string) ([]ContextItem, []string, error) {
	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}

	hits, err := repo.SearchChunks(ctx, e.db, folderID, ownerID, vectors[0], e.cfg.TopK)
	if err != nil {
		return nil, nil, fmt.Errorf("search chunks: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil, nil
	}

	searched := distinctFileNames(hits)

	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	scores, err := e.reranker.Rerank(ctx, query, texts)
	if err != nil {
		return nil, nil, fmt.Errorf("rerank: %w", err)
	}

	// Reorder by rerank score, keeping the vector-stage rank as the tie
	// break via the stable sort.
	order := make([]ai.Score, len(hits))
	for i := range hits {
		order[i] = ai.Score{Index: i}
	}
	for _, s := range scores {
		if s.Index >= 0 && s.Index < len(order) {
			order[s.Index].Score = s.Score
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].Score > order[j].Score })

	n := e.cfg.TopN
	if n > len(order) {
		n = len(order)
	}
	items := make([]ContextItem, 0, n)
	for i := 0; i < n; i++ {
		h := hits[order[i].Index]
		items = append(items, ContextItem{
			Index:    i + 1,
			ChunkID:  h.ID,
			FileName: h.FileName,
			Location: location(h),
			Excerpt:  h.Text,
			Score:    order[i].Score,
		})
	}

	e.log.Debug().
		Str("folder_id", folderID).
		Int("candidates", len(hits)).
		Int("kept", len(items)).
		Msg("context retrieved")
	return items, searched, nil
}

// location renders a short source pointer for one hit.
func location(h repo.ChunkHit) string {
	switch {
	case h.Page != nil:
		return fmt.Sprintf("%s, p. %d", h.FileName, *h.Page)
	case h.HeadingPath != "":
		return fmt.Sprintf("%s, § %s", h.FileName, h.HeadingPath)
	default:
		return h.FileName
	}
}

// distinctFileNames keeps first-appearance order, which is distance order.
func distinctFileNames(hits []repo.ChunkHit) []string {
	seen := make(map[string]struct{}, len(hits))
	names := make([]string, 0, len(hits))
	for _, h := range hits {
		if _, ok := seen[h.FileName]; ok {
			continue
		}
		seen[h.FileName] = struct{}{}
		names = append(names, h.FileName)
	}
	return names
}

// FormatContext renders the items as the numbered block the system prompt
// embeds, one "[i] location:\nexcerpt" section per item.
func FormatContext(items []ContextItem) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s:\n%s", it.Index, it.Location, it.Excerpt)
	}
	return b.String()
}
