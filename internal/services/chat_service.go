// Package services – ChatService
//
// This file implements ChatService, the application-level component that
// answers questions about a folder's documents. It validates the prompt,
// checks folder ownership, runs retrieval, streams the generated answer to
// the caller token by token and persists the user/assistant message pair.
// A client that disconnects mid-stream still gets the partial assistant
// output persisted, so the thread history never loses a turn.
//
// Observability: the public entry point is OpenTelemetry-instrumented; spans
// include folder and conversation identifiers.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/docgrove/go-docchat-backend/internal/answer"
	"github.com/docgrove/go-docchat-backend/internal/domain"
	"github.com/docgrove/go-docchat-backend/internal/provider/ai"
	"github.com/docgrove/go-docchat-backend/internal/repo"
	"github.com/docgrove/go-docchat-backend/internal/retrieval"
)

// ContextRetriever is the retrieval engine contract ChatService depends on.
type ContextRetriever interface {
	Retrieve(ctx context.Context, folderID, ownerID, query string) ([]retrieval.ContextItem, []string, error)
}

// AnswerGenerator is the generation engine contract ChatService depends on.
type AnswerGenerator interface {
	Generate(ctx context.Context, query string, items []retrieval.ContextItem, history []ai.Turn) (<-chan string, <-chan answer.Completion)
}

// ChatResult is the terminal payload of one streamed answer, emitted after
// the last token.
type ChatResult struct {
	ConversationID string             `json:"conversation_id"`
	Message        *domain.Message    `json:"message"`
	Citations      domain.CitationMap `json:"citations"`
	SearchedFiles  []string           `json:"searched_files"`
}

// ChatService coordinates retrieval, generation and persistence for one
// chat turn.
type ChatService struct {
	DB        *gorm.DB
	Retriever ContextRetriever
	Generator AnswerGenerator
	Convs     *ConversationService

	// HistoryLimit caps how many prior turns are replayed to the model.
	HistoryLimit int
	// MaxPromptRunes guards against oversized prompts; 0 disables the check.
	MaxPromptRunes int
}

// NewChatService constructs a ChatService.
func NewChatService(db *gorm.DB, r ContextRetriever, g AnswerGenerator, convs *ConversationService) *ChatService {
	return &ChatService{
		DB:             db,
		Retriever:      r,
		Generator:      g,
		Convs:          convs,
		HistoryLimit:   20,
		MaxPromptRunes: 4000,
	}
}

// Stream answers one question about the folder's documents. Tokens are
// delivered through onToken as they arrive; the returned ChatResult carries
// the resolved citations, the files retrieval touched and the conversation
// the turn was stored in. conversationID may be empty to start a thread.
//
// When ctx is cancelled mid-stream the partial output is persisted and
// returned without error.
func (s *ChatService) Stream(ctx context.Context, ownerID, folderID, conversationID, prompt string, onToken func(string) error) (*ChatResult, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Stream",
		trace.WithAttributes(
			attribute.String("folder.id", folderID),
			attribute.String("conversation.id", conversationID),
		),
	)
	defer span.End()

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(prompt) > s.MaxPromptRunes {
		return nil, ErrTooLong
	}

	if _, err := repo.GetFolder(ctx, s.DB, folderID, ownerID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrFolderNotFound
		}
		return nil, err
	}
	if conversationID != "" {
		conv, err := s.Convs.get(ctx, ownerID, conversationID)
		if err != nil {
			return nil, err
		}
		if conv.FolderID != folderID {
			return nil, ErrConversationNotFound
		}
	}

	// History is captured before the new prompt is appended so the model
	// does not see the question twice.
	history, err := s.Convs.History(ctx, conversationID, s.HistoryLimit)
	if err != nil {
		return nil, err
	}

	conversationID, _, err = s.Convs.Append(ctx, folderID, conversationID, domain.RoleUser, prompt, nil)
	if err != nil {
		return nil, fmt.Errorf("store prompt: %w", err)
	}

	items, searched, err := s.Retriever.Retrieve(ctx, folderID, ownerID, prompt)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	tokens, done := s.Generator.Generate(ctx, prompt, items, history)
	relayErr := relayTokens(ctx, tokens, onToken)
	completion := <-done
	if completion.Err != nil {
		return nil, fmt.Errorf("generate answer: %w", completion.Err)
	}

	// The write runs on a fresh context so a client disconnect cannot lose
	// the partial turn.
	persistCtx := ctx
	if ctx.Err() != nil {
		persistCtx = context.Background()
	}
	_, msg, err := s.Convs.Append(persistCtx, folderID, conversationID, domain.RoleAssistant, completion.Text, completion.Citations)
	if err != nil {
		return nil, fmt.Errorf("store answer: %w", err)
	}
	if relayErr != nil && ctx.Err() == nil {
		return nil, relayErr
	}

	if searched == nil {
		searched = []string{}
	}
	return &ChatResult{
		ConversationID: conversationID,
		Message:        msg,
		Citations:      completion.Citations,
		SearchedFiles:  searched,
	}, nil
}

// relayTokens forwards tokens to the sink until the stream closes. A sink
// error stops forwarding but keeps draining so the generator can complete.
func relayTokens(ctx context.Context, tokens <-chan string, onToken func(string) error) error {
	var sinkErr error
	for tok := range tokens {
		if sinkErr != nil || ctx.Err() != nil {
			continue
		}
		if err := onToken(tok); err != nil {
			sinkErr = err
		}
	}
	return sinkErr
}
