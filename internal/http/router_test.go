package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/docgrove/go-docchat-backend/internal/answer"
	"github.com/docgrove/go-docchat-backend/internal/config"
	"github.com/docgrove/go-docchat-backend/internal/domain"
	"github.com/docgrove/go-docchat-backend/internal/provider/ai"
	"github.com/docgrove/go-docchat-backend/internal/repo"
	"github.com/docgrove/go-docchat-backend/internal/retrieval"
)

// --- fakes for the model-facing engines ---

type fakeRetriever struct {
	items []retrieval.ContextItem
	files []string
}

func (f fakeRetriever) Retrieve(context.Context, string, string, string) ([]retrieval.ContextItem, []string, error) {
	return f.items, f.files, nil
}

type fakeGenerator struct {
	tokens []string
	text   string
	cits   domain.CitationMap
}

func (f fakeGenerator) Generate(ctx context.Context, _ string, _ []retrieval.ContextItem, _ []ai.Turn) (<-chan string, <-chan answer.Completion) {
	tokens := make(chan string)
	done := make(chan answer.Completion, 1)
	go func() {
		defer close(tokens)
		defer close(done)
		for _, tok := range f.tokens {
			select {
			case tokens <- tok:
			case <-ctx.Done():
			}
		}
		cits := f.cits
		if cits == nil {
			cits = domain.CitationMap{}
		}
		done <- answer.Completion{Text: f.text, Citations: cits}
	}()
	return tokens, done
}

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("router_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(repo.SQLiteDSN(dsn)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   10,
		CORS:        config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:    config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newTestRouter(t *testing.T, gen fakeGenerator, ret fakeRetriever, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, NewDeps(db, ret, gen, cfg), cfg)
	return r, db
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newTestRouter(t, fakeGenerator{}, fakeRetriever{}, testConfig())

	// /health works
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (PUT /health)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("PUT /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _ := newTestRouter(t, fakeGenerator{}, fakeRetriever{}, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestFolderEndpoints_RegisterStatusDelete(t *testing.T) {
	r, _ := newTestRouter(t, fakeGenerator{}, fakeRetriever{}, testConfig())

	// Register
	w := httptest.NewRecorder()
	body := `{"provider_ref":"tenant-docs/contracts","name":"Contracts"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/folders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /folders = %d: %s", w.Code, w.Body.String())
	}
	var folder domain.Folder
	if err := json.Unmarshal(w.Body.Bytes(), &folder); err != nil {
		t.Fatalf("decode folder: %v", err)
	}
	if folder.IndexStatus != domain.FolderStatusPending {
		t.Fatalf("registered folder status = %q", folder.IndexStatus)
	}

	// Status
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/folders/"+folder.ID+"/status", nil)
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"pending"`) {
		t.Fatalf("GET status = %d: %s", w.Code, w.Body.String())
	}

	// Foreign owner sees 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/folders/"+folder.ID+"/status", nil)
	req.Header.Set("X-User-ID", "u2")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign status = %d", w.Code)
	}

	// Delete
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/folders/"+folder.ID, nil)
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("DELETE folder = %d: %s", w.Code, w.Body.String())
	}
}

func TestDeleteFolder_ConflictWhileIndexing(t *testing.T) {
	r, db := newTestRouter(t, fakeGenerator{}, fakeRetriever{}, testConfig())

	f := domain.Folder{ID: "b2c4a7de-0000-4000-8000-000000000001", OwnerID: "u1", ProviderRef: "r", Name: "Busy", IndexStatus: domain.FolderStatusIndexing}
	if err := db.Create(&f).Error; err != nil {
		t.Fatalf("seed folder: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/folders/"+f.ID, nil)
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 while indexing, got %d: %s", w.Code, w.Body.String())
	}
}

func TestChatEndpoint_SSEStream(t *testing.T) {
	gen := fakeGenerator{
		tokens: []string{"Answer ", "with [1]."},
		text:   "Answer with [1].",
		cits:   domain.CitationMap{"1": {ChunkID: "c1", FileName: "a.pdf", Location: "a.pdf, p. 2"}},
	}
	ret := fakeRetriever{
		items: []retrieval.ContextItem{{Index: 1, ChunkID: "c1", FileName: "a.pdf", Location: "a.pdf, p. 2", Excerpt: "x"}},
		files: []string{"a.pdf"},
	}
	r, db := newTestRouter(t, gen, ret, testConfig())

	f := domain.Folder{ID: "b2c4a7de-0000-4000-8000-000000000002", OwnerID: "u1", ProviderRef: "r", Name: "Docs", IndexStatus: domain.FolderStatusReady}
	if err := db.Create(&f).Error; err != nil {
		t.Fatalf("seed folder: %v", err)
	}

	w := httptest.NewRecorder()
	body := fmt.Sprintf(`{"folder_id":%q,"prompt":"what does it say?"}`, f.ID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("POST /chat = %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}
	out := w.Body.String()
	if !strings.Contains(out, `event: token`) || !strings.Contains(out, `"token":"Answer "`) {
		t.Fatalf("token events missing:\n%s", out)
	}
	if !strings.Contains(out, "event: done") || !strings.Contains(out, `"searched_files":["a.pdf"]`) {
		t.Fatalf("done event missing:\n%s", out)
	}
	if !strings.Contains(out, `"conversation_id"`) || !strings.Contains(out, `"chunk_id":"c1"`) {
		t.Fatalf("done payload incomplete:\n%s", out)
	}
}

func TestChatEndpoint_FolderNotFoundIsJSON(t *testing.T) {
	r, _ := newTestRouter(t, fakeGenerator{}, fakeRetriever{}, testConfig())

	w := httptest.NewRecorder()
	body := `{"folder_id":"b2c4a7de-0000-4000-8000-00000000dead","prompt":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"code":"not_found"`) {
		t.Fatalf("error envelope missing: %s", w.Body.String())
	}
}

func TestConversationEndpoints(t *testing.T) {
	gen := fakeGenerator{tokens: []string{"ok"}, text: "ok", cits: domain.CitationMap{}}
	r, db := newTestRouter(t, gen, fakeRetriever{}, testConfig())

	f := domain.Folder{ID: "b2c4a7de-0000-4000-8000-000000000003", OwnerID: "u1", ProviderRef: "r", Name: "Docs", IndexStatus: domain.FolderStatusReady}
	if err := db.Create(&f).Error; err != nil {
		t.Fatalf("seed folder: %v", err)
	}

	// One chat turn creates the thread.
	w := httptest.NewRecorder()
	body := fmt.Sprintf(`{"folder_id":%q,"prompt":"first question"}`, f.ID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /chat = %d: %s", w.Code, w.Body.String())
	}

	// List the folder's conversations.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/folders/"+f.ID+"/conversations", nil)
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET conversations = %d: %s", w.Code, w.Body.String())
	}
	var convs []domain.Conversation
	if err := json.Unmarshal(w.Body.Bytes(), &convs); err != nil || len(convs) != 1 {
		t.Fatalf("expected one conversation, got %s (err %v)", w.Body.String(), err)
	}

	// Load the thread with its messages.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+convs[0].ID, nil)
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET conversation = %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"role":"user"`) || !strings.Contains(w.Body.String(), `"role":"assistant"`) {
		t.Fatalf("messages missing from thread: %s", w.Body.String())
	}

	// Foreign owner cannot see it.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+convs[0].ID, nil)
	req.Header.Set("X-User-ID", "u2")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign owner expected 404, got %d", w.Code)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	// non-root prefix
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	// Hit all three
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/one", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "one" {
		t.Fatalf("GET /one got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/two", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "two" {
		t.Fatalf("GET /two got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Fatalf("GET /api/ping got %d %q", rec.Code, rec.Body.String())
	}
}

// Smoke test that a request traverses the ratelimit + otel + security headers
// pipeline.
func TestPipeline_Smoke(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour}
	r, _ := newTestRouter(t, fakeGenerator{}, fakeRetriever{}, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	// simulate https so HSTS could be eligible if middleware checks scheme
	req.URL.Scheme = "https"
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /health = %d", w.Code)
	}
	// RequestID header should be present (from RequestID middleware)
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}
