package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/docgrove/go-docchat-backend/internal/provider"
)

func TestOpenAIEmbedder_EmbedAligned(t *testing.T) {
	var gotInputs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotInputs = req.Input

		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
			Object    string    `json:"object"`
		}
		var data []item
		for i := range req.Input {
			data = append(data, item{Embedding: []float32{float32(i), 1}, Index: i, Object: "embedding"})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder("test-key", srv.URL+"/v1", "text-embedding-3-small")
	vecs, err := e.Embed(context.Background(), []string{"alpha", "beta", "gamma"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	if vecs[1][0] != 1 || vecs[2][0] != 2 {
		t.Fatalf("vectors not index-aligned: %v", vecs)
	}
	if len(gotInputs) != 3 || gotInputs[0] != "alpha" {
		t.Fatalf("unexpected request inputs: %v", gotInputs)
	}
}

func TestOpenAIEmbedder_EmptyInput(t *testing.T) {
	e := NewOpenAIEmbedder("k", "http://unused.invalid/v1", "m")
	vecs, err := e.Embed(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Fatalf("empty input should short-circuit, got %v %v", vecs, err)
	}
}

func TestOpenAIEmbedder_SizeMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder("k", srv.URL+"/v1", "m")
	if _, err := e.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatalf("expected error on response size mismatch")
	}
}

func TestCohereReranker_ScoresAligned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer rk" {
			t.Errorf("missing auth header, got %q", got)
		}
		var req struct {
			Query     string   `json:"query"`
			Documents []string `json:"documents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Query != "llamas" || len(req.Documents) != 3 {
			t.Errorf("unexpected request: %+v", req)
		}
		// Out of order and missing one entry on purpose.
		_, _ = w.Write([]byte(`{"results":[{"index":2,"relevance_score":0.9},{"index":0,"relevance_score":0.4}]}`))
	}))
	defer srv.Close()

	c := NewCohereReranker(srv.URL, "rk", "rerank-v3", time.Second)
	scores, err := c.Rerank(context.Background(), "llamas", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("expected 3 scores, got %d", len(scores))
	}
	if scores[0].Score != 0.4 || scores[1].Score != 0 || scores[2].Score != 0.9 {
		t.Fatalf("scores not aligned: %+v", scores)
	}
	for i, s := range scores {
		if s.Index != i {
			t.Fatalf("score %d carries index %d", i, s.Index)
		}
	}
}

func TestCohereReranker_EmptyInput(t *testing.T) {
	c := NewCohereReranker("http://unused.invalid", "", "m", time.Second)
	scores, err := c.Rerank(context.Background(), "q", nil)
	if err != nil || scores != nil {
		t.Fatalf("empty input should short-circuit, got %v %v", scores, err)
	}
}

func TestCohereReranker_StatusErrorClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewCohereReranker(srv.URL, "", "m", time.Second)
	_, err := c.Rerank(context.Background(), "q", []string{"a"})
	if err == nil {
		t.Fatalf("expected error")
	}
	var statusErr *provider.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected StatusError 503, got %v", err)
	}
	if !provider.Classify(err) {
		t.Fatalf("503 must classify as transient")
	}
}

// chatSSE writes an OpenAI-style streaming response.
func chatSSE(w http.ResponseWriter, deltas []string) {
	w.Header().Set("Content-Type", "text/event-stream")
	fl, _ := w.(http.Flusher)
	for _, d := range deltas {
		chunk := map[string]any{
			"object": "chat.completion.chunk",
			"choices": []map[string]any{
				{"index": 0, "delta": map[string]string{"content": d}},
			},
		}
		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
		if fl != nil {
			fl.Flush()
		}
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	if fl != nil {
		fl.Flush()
	}
}

func TestOpenAIChat_StreamDeliversTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		// system + one history turn + user question
		if len(req.Messages) != 3 || req.Messages[0].Role != "system" || req.Messages[2].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		chatSSE(w, []string{"Hel", "lo ", "[1]"})
	}))
	defer srv.Close()

	c := NewOpenAIChat("k", srv.URL+"/v1", "gpt-4o-mini")
	tokens, errs := c.Stream(context.Background(), "You answer from context.",
		[]Turn{{Role: "user", Content: "earlier question"}}, "current question")

	var got strings.Builder
	for tok := range tokens {
		got.WriteString(tok)
	}
	if err := <-errs; err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if got.String() != "Hello [1]" {
		t.Fatalf("assembled %q", got.String())
	}
}

func TestOpenAIChat_StreamCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fl, _ := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"tok\"}}]}\n\n")
		if fl != nil {
			fl.Flush()
		}
		<-release // hold the stream open until the client goes away
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	c := NewOpenAIChat("k", srv.URL+"/v1", "m")
	tokens, errs := c.Stream(ctx, "", nil, "question")

	select {
	case tok := <-tokens:
		if tok != "tok" {
			t.Fatalf("first token = %q", tok)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no token before cancel")
	}
	cancel()

	// Channel must close without a reported error.
	for range tokens {
	}
	if err := <-errs; err != nil {
		t.Fatalf("cancellation surfaced as error: %v", err)
	}
}

func TestOpenAIChat_StreamRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewOpenAIChat("bad", srv.URL+"/v1", "m")
	tokens, errs := c.Stream(context.Background(), "", nil, "q")
	for range tokens {
	}
	if err := <-errs; err == nil {
		t.Fatalf("expected terminal error")
	} else if provider.Classify(err) {
		t.Fatalf("401 must be permanent, got transient for %v", err)
	}
}
