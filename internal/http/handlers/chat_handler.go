// Chat HTTP handler.
//
// This file exposes the streaming chat endpoint:
//   - POST /chat   (server-sent events: token events, then one done event)
//
// The handler is transport-thin: it validates input, calls the chat service
// and relays the token stream as SSE frames. The terminal "done" event
// carries the resolved citations, the files retrieval searched and the
// conversation the turn was stored in.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/docgrove/go-docchat-backend/internal/domain"
	"github.com/docgrove/go-docchat-backend/internal/services"
)

// ChatService defines the streaming answer operation consumed by the chat
// handler.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation: a disconnected client cancels the
// request context and the service persists the partial turn.
type ChatService interface {
	Stream(ctx context.Context, ownerID, folderID, conversationID, prompt string, onToken func(string) error) (*services.ChatResult, error)
}

// ConversationService defines the read operations for conversation threads.
type ConversationService interface {
	// List returns the folder's conversations ordered by recent activity.
	List(ctx context.Context, ownerID, folderID string, limit int) ([]domain.Conversation, error)
	// Load returns one conversation with its ordered message history.
	Load(ctx context.Context, ownerID, conversationID string) (*domain.Conversation, []domain.Message, error)
}

// Handlers groups the HTTP endpoints for folders, chat and conversations.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	folderSvc FolderService
	chatSvc   ChatService
	convSvc   ConversationService
}

// New constructs a Handlers instance bound to the given services.
func New(folderSvc FolderService, chatSvc ChatService, convSvc ConversationService) *Handlers {
	return &Handlers{folderSvc: folderSvc, chatSvc: chatSvc, convSvc: convSvc}
}

// userID extracts the authenticated user id from Gin context (set by
// upstream middleware). If absent, it falls back to the "X-User-ID" header,
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

// ChatRequest is the JSON payload for a streaming chat turn.
type ChatRequest struct {
	// FolderID selects the document folder to answer from.
	FolderID string `json:"folder_id" binding:"required" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// ConversationID continues an existing thread; empty starts a new one.
	ConversationID string `json:"conversation_id" example:"4dd3c9a2-71b2-44a3-b86f-67083a1fca4b"`
	// Prompt is the user question.
	Prompt string `json:"prompt" binding:"required" example:"What does the warranty cover?"`
}

// tokenEvent is the payload of each SSE "token" event.
type tokenEvent struct {
	Token string `json:"token"`
}

// doneEvent is the payload of the terminal SSE "done" event.
type doneEvent struct {
	ConversationID string             `json:"conversation_id"`
	MessageID      string             `json:"message_id"`
	Citations      domain.CitationMap `json:"citations"`
	SearchedFiles  []string           `json:"searched_files"`
}

// Chat godoc
// @ID          chat
// @Summary     Ask a question about a folder (SSE)
// @Description Streams the assistant answer as server-sent events: zero or more "token" events followed by one "done" event carrying citations, searched files and the conversation id. Errors before the first token are plain JSON; later failures arrive as an "error" event.
// @Tags        Chat
// @Accept      json
// @Produce     text/event-stream
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.ChatRequest  true  "Chat payload"
//
// @Success     200  {string}  string "SSE stream"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Folder or conversation not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chat [post]
func (h *Handlers) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "folder_id and prompt required")
		return
	}

	flusher, canFlush := c.Writer.(http.Flusher)

	// SSE headers go out with the first token, so validation errors can
	// still answer with a plain JSON status.
	streamed := false
	onToken := func(tok string) error {
		if !streamed {
			streamed = true
			header := c.Writer.Header()
			header.Set("Content-Type", "text/event-stream")
			header.Set("Cache-Control", "no-cache")
			header.Set("Connection", "keep-alive")
			header.Set("X-Accel-Buffering", "no")
			c.Writer.WriteHeader(http.StatusOK)
		}
		if err := writeSSE(c, "token", tokenEvent{Token: tok}); err != nil {
			return err
		}
		if canFlush {
			flusher.Flush()
		}
		return nil
	}

	res, err := h.chatSvc.Stream(c.Request.Context(), userID(c), req.FolderID, req.ConversationID, req.Prompt, onToken)
	if err != nil {
		failChat(c, err, streamed)
		return
	}

	if !streamed {
		header := c.Writer.Header()
		header.Set("Content-Type", "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		c.Writer.WriteHeader(http.StatusOK)
	}
	_ = writeSSE(c, "done", doneEvent{
		ConversationID: res.ConversationID,
		MessageID:      res.Message.ID,
		Citations:      res.Citations,
		SearchedFiles:  res.SearchedFiles,
	})
	if canFlush {
		flusher.Flush()
	}
}

// writeSSE writes one named event with a JSON data payload.
func writeSSE(c *gin.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := c.Writer.WriteString("event: " + event + "\ndata: " + string(data) + "\n\n"); err != nil {
		return err
	}
	return nil
}

// failChat maps chat service errors to a JSON response before the first
// token, or to a terminal SSE error event after it.
func failChat(c *gin.Context, err error, streamed bool) {
	status, code, msg := http.StatusInternalServerError, ErrCodeAnswerFailed, err.Error()
	switch {
	case errors.Is(err, services.ErrFolderNotFound):
		status, code, msg = http.StatusNotFound, ErrCodeNotFound, "folder not found"
	case errors.Is(err, services.ErrConversationNotFound):
		status, code, msg = http.StatusNotFound, ErrCodeNotFound, "conversation not found"
	case errors.Is(err, services.ErrEmptyPrompt):
		status, code, msg = http.StatusBadRequest, ErrCodeBadRequest, "prompt is empty"
	case errors.Is(err, services.ErrTooLong):
		status, code, msg = http.StatusBadRequest, ErrCodeBadRequest, "prompt too long"
	}

	if streamed {
		// Headers are gone; the stream itself is the only channel left.
		_ = writeSSE(c, "error", ErrorResponse{Code: code, Message: msg})
		if f, ok := c.Writer.(http.Flusher); ok {
			f.Flush()
		}
		return
	}
	fail(c, status, code, msg)
}
