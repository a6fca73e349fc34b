// Package services – ConversationService
//
// This file implements ConversationService, which owns conversation threads
// and their message history. Conversations are created lazily on the first
// appended message, and a concise title is auto-generated from the first
// user prompt while the thread still carries its placeholder title.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/docgrove/go-docchat-backend/internal/domain"
	"github.com/docgrove/go-docchat-backend/internal/provider/ai"
	"github.com/docgrove/go-docchat-backend/internal/repo"
)

// defaultConversationTitle is the placeholder eligible for auto-titling.
const defaultConversationTitle = "New conversation"

// ConversationService provides conversation-level operations: listing a
// folder's threads, loading a thread with its messages, and appending turns.
type ConversationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
	// TitleLocale controls casing of auto-generated titles.
	TitleLocale language.Tag
}

// NewConversationService constructs a ConversationService with sane defaults
// for title handling.
func NewConversationService(db *gorm.DB) *ConversationService {
	return &ConversationService{
		DB:          db,
		TitleMaxLen: 60,
		TitleLocale: language.English,
	}
}

// List returns the folder's conversations ordered by recent activity. The
// folder must belong to the user. A limit <= 0 returns the full list.
func (s *ConversationService) List(ctx context.Context, ownerID, folderID string, limit int) ([]domain.Conversation, error) {
	if _, err := repo.GetFolder(ctx, s.DB, folderID, ownerID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrFolderNotFound
		}
		return nil, err
	}
	return repo.ListConversations(ctx, s.DB, folderID, limit)
}

// Load returns one conversation and its full ordered message history.
// Ownership is checked through the parent folder; a thread the user cannot
// see is indistinguishable from a missing one.
func (s *ConversationService) Load(ctx context.Context, ownerID, conversationID string) (*domain.Conversation, []domain.Message, error) {
	conv, err := s.get(ctx, ownerID, conversationID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := repo.ListMessages(s.DB.WithContext(ctx), conv.ID, 0)
	if err != nil {
		return nil, nil, err
	}
	return conv, msgs, nil
}

// History returns up to limit most recent turns in chronological order,
// shaped for the chat model.
func (s *ConversationService) History(ctx context.Context, conversationID string, limit int) ([]ai.Turn, error) {
	if conversationID == "" {
		return nil, nil
	}
	total, err := repo.CountMessages(s.DB.WithContext(ctx), conversationID)
	if err != nil {
		return nil, err
	}
	offset := 0
	if limit > 0 && total > int64(limit) {
		offset = int(total) - limit
	}
	msgs, err := repo.ListMessagesPage(s.DB.WithContext(ctx), conversationID, offset, limit)
	if err != nil {
		return nil, err
	}
	turns := make([]ai.Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, ai.Turn{Role: m.Role, Content: m.Content})
	}
	return turns, nil
}

// Append adds one turn to a conversation, creating the thread when
// conversationID is empty. The first user prompt titles a thread that still
// carries the placeholder. It returns the (possibly new) conversation ID and
// the stored message.
func (s *ConversationService) Append(ctx context.Context, folderID, conversationID, role, content string, citations domain.CitationMap) (string, *domain.Message, error) {
	var msg *domain.Message
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if conversationID == "" {
			conv, err := repo.CreateConversation(ctx, tx, folderID, defaultConversationTitle)
			if err != nil {
				return err
			}
			conversationID = conv.ID
		}

		m, err := repo.CreateMessage(tx, conversationID, role, content, citations)
		if err != nil {
			return err
		}
		msg = m

		if role == domain.RoleUser {
			if err := s.maybeAutoTitle(ctx, tx, conversationID, content); err != nil {
				return err
			}
		}
		return repo.TouchConversation(ctx, tx, conversationID)
	})
	if err != nil {
		return "", nil, err
	}
	return conversationID, msg, nil
}

// get loads a conversation and verifies the user owns its folder.
func (s *ConversationService) get(ctx context.Context, ownerID, conversationID string) (*domain.Conversation, error) {
	conv, err := repo.GetConversation(ctx, s.DB, conversationID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	if _, err := repo.GetFolder(ctx, s.DB, conv.FolderID, ownerID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return conv, nil
}

// maybeAutoTitle replaces a placeholder title with one derived from the
// prompt.
func (s *ConversationService) maybeAutoTitle(ctx context.Context, tx *gorm.DB, conversationID, prompt string) error {
	conv, err := repo.GetConversation(ctx, tx, conversationID)
	if err != nil {
		return err
	}
	if !isPlaceholderTitle(conv.Title) {
		return nil
	}
	title := s.titleFromPrompt(prompt)
	if title == "" {
		return nil
	}
	return repo.UpdateConversationTitle(ctx, tx, conversationID, s.clipTitle(title))
}

// isPlaceholderTitle reports whether the current title is still the default.
func isPlaceholderTitle(current string) bool {
	t := strings.TrimSpace(strings.ToLower(current))
	return t == "" || t == strings.ToLower(defaultConversationTitle)
}

// titleFromPrompt derives a concise title from the prompt: stop-words
// removed, title-cased, at most eight words.
func (s *ConversationService) titleFromPrompt(prompt string) string {
	toks := titleWordRE.FindAllString(strings.ToLower(strings.TrimSpace(prompt)), -1)
	if len(toks) == 0 {
		return ""
	}
	caser := cases.Title(s.localeOrDefault())
	out := make([]string, 0, 8)
	for _, w := range toks {
		if _, skip := titleStopWords[w]; skip {
			continue
		}
		out = append(out, caser.String(w))
		if len(out) >= 8 {
			break
		}
	}
	return strings.Join(out, " ")
}

// clipTitle truncates a generated title to the configured maximum rune
// length.
func (s *ConversationService) clipTitle(title string) string {
	max := s.TitleMaxLen
	if max <= 0 {
		max = 60
	}
	if utf8.RuneCountInString(title) > max {
		return string([]rune(title)[:max])
	}
	return title
}

func (s *ConversationService) localeOrDefault() language.Tag {
	if s.TitleLocale == language.Und {
		return language.English
	}
	return s.TitleLocale
}

// titleWordRE extracts Unicode letters with optional trailing numbers
// (e.g., "q3" or "2025").
var titleWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*|[\p{N}]+`)

// titleStopWords is a minimal English stop-word set for compact titles.
var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
}
