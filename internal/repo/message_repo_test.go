package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/docgrove/go-docchat-backend/internal/domain"
)

// newMessageDB migrates the conversation chain a message depends on.
func newMessageDB(t *testing.T) (*gorm.DB, string) {
	t.Helper()
	db := newRepoDB(t, &domain.Folder{}, &domain.Conversation{}, &domain.Message{})
	seedFolder(t, db, "f1", "u1", domain.FolderStatusReady)
	c, err := CreateConversation(context.Background(), db, "f1", "T")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	return db, c.ID
}

func TestCreateMessage_NilCitationsBecomeEmpty(t *testing.T) {
	db, convID := newMessageDB(t)

	m, err := CreateMessage(db, convID, domain.RoleUser, "What does clause 4 say?", nil)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if m.ID == "" || m.Role != domain.RoleUser || m.Content == "" {
		t.Fatalf("unexpected Message fields: %+v", m)
	}
	if m.Citations == nil || len(m.Citations) != 0 {
		t.Fatalf("nil citations should persist as empty map, got %#v", m.Citations)
	}

	got, err := GetMessage(db, m.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.Citations == nil || len(got.Citations) != 0 {
		t.Fatalf("round-trip citations = %#v", got.Citations)
	}
}

func TestCreateMessage_PersistsCitations(t *testing.T) {
	db, convID := newMessageDB(t)

	cites := domain.CitationMap{
		"1": {ChunkID: "c1", FileName: "guide.pdf", Location: "p. 3", Excerpt: "…", OpenURL: "prov://guide#3"},
	}
	m, err := CreateMessage(db, convID, domain.RoleAssistant, "See [1].", cites)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	got, err := GetMessage(db, m.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	c, ok := got.Citations["1"]
	if !ok || c.ChunkID != "c1" || c.FileName != "guide.pdf" || c.Location != "p. 3" {
		t.Fatalf("citation round-trip mismatch: %#v", got.Citations)
	}
}

func TestListMessages_OrderAndLimit(t *testing.T) {
	db, convID := newMessageDB(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, m := range []domain.Message{
		{ID: "m1", ConversationID: convID, Role: domain.RoleUser, Content: "q1"},
		{ID: "m2", ConversationID: convID, Role: domain.RoleAssistant, Content: "a1"},
		{ID: "m3", ConversationID: convID, Role: domain.RoleUser, Content: "q2"},
	} {
		m.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		m.Citations = domain.CitationMap{}
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed %s: %v", m.ID, err)
		}
	}

	list, err := ListMessages(db, convID, 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(list) != 3 || list[0].ID != "m1" || list[2].ID != "m3" {
		t.Fatalf("unexpected list: %#v", list)
	}

	list, err = ListMessages(db, convID, 2)
	if err != nil {
		t.Fatalf("ListMessages limit: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("limit=2 returned %d messages", len(list))
	}
}

func TestCountMessages_And_Page(t *testing.T) {
	db, convID := newMessageDB(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		m := domain.Message{
			ID:             string(rune('a' + i)),
			ConversationID: convID,
			Role:           domain.RoleUser,
			Content:        "msg",
			Citations:      domain.CitationMap{},
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	n, err := CountMessages(db, convID)
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if n != 5 {
		t.Fatalf("count = %d, want 5", n)
	}

	page, err := ListMessagesPage(db, convID, 1, 2)
	if err != nil {
		t.Fatalf("ListMessagesPage: %v", err)
	}
	if len(page) != 2 || page[0].ID != "b" || page[1].ID != "c" {
		t.Fatalf("unexpected page: %#v", page)
	}
}

func TestCountMessages_Error_NoTable(t *testing.T) {
	db := newRepoDB(t /* no migrations */)
	if _, err := CountMessages(db, "c1"); err == nil {
		t.Fatalf("expected error when table missing")
	}
}

func TestGetMessage_NotFound(t *testing.T) {
	db, _ := newMessageDB(t)
	if _, err := GetMessage(db, "missing"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}
