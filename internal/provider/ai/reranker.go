package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/docgrove/go-docchat-backend/internal/provider"
)

// CohereReranker calls a Cohere-compatible /rerank endpoint over plain HTTP.
type CohereReranker struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

// NewCohereReranker constructs a rerank client against endpoint.
func NewCohereReranker(endpoint, apiKey, model string, timeout time.Duration) *CohereReranker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CohereReranker{
		endpoint: endpoint,
		model:    model,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

// Rerank scores every text against the query. Results the endpoint omits
// keep a zero score, so the output is always index-aligned with texts.
func (c *CohereReranker) Rerank(ctx context.Context, query string, texts []string) ([]Score, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload := map[string]any{
		"model":     c.model,
		"query":     query,
		"documents": texts,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal rerank payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call rerank endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("rerank endpoint: %w",
			&provider.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))})
	}

	var parsed struct {
		Results []struct {
			Index int     `json:"index"`
			Score float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	out := make([]Score, len(texts))
	for i := range out {
		out[i].Index = i
	}
	for _, r := range parsed.Results {
		if r.Index >= 0 && r.Index < len(out) {
			out[r.Index].Score = r.Score
		}
	}
	return out, nil
}
