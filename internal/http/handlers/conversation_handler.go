// Conversation HTTP handlers.
//
// This file exposes the read endpoints for conversation threads:
//   - GET /folders/{id}/conversations  (list a folder's threads)
//   - GET /conversations/{id}          (load one thread with its messages)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/docgrove/go-docchat-backend/internal/domain"
	"github.com/docgrove/go-docchat-backend/internal/services"
	"github.com/docgrove/go-docchat-backend/internal/utils"
)

// Listing bounds for conversation threads.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ConversationResponse is a thread with its full ordered history.
type ConversationResponse struct {
	Conversation *domain.Conversation `json:"conversation"`
	Messages     []domain.Message     `json:"messages"`
}

// ListConversations godoc
// @ID          listConversations
// @Summary     List a folder's conversations
// @Description Returns the folder's conversation threads ordered by recent activity.
// @Tags        Conversations
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Folder ID (UUID)"       format(uuid)
// @Param       limit      query   int     false "Max threads to return (default 50, max 200)"
//
// @Success     200  {array}   domain.Conversation
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Folder not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /folders/{id}/conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	id, okID := folderParam(c)
	if !okID {
		return
	}
	limit := utils.AtoiDefault(c.Query("limit"), defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	items, err := h.convSvc.List(c.Request.Context(), userID(c), id, limit)
	if err != nil {
		failConversation(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// GetConversation godoc
// @ID          getConversation
// @Summary     Load a conversation
// @Description Returns one conversation thread with its ordered messages, including per-message citations.
// @Tags        Conversations
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"       example(user123)
// @Param       id         path    string  true  "Conversation ID (UUID)"      format(uuid)
//
// @Success     200  {object}  handlers.ConversationResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Conversation not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversations/{id} [get]
func (h *Handlers) GetConversation(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}
	conv, msgs, err := h.convSvc.Load(c.Request.Context(), userID(c), id)
	if err != nil {
		failConversation(c, err)
		return
	}
	ok(c, http.StatusOK, ConversationResponse{Conversation: conv, Messages: msgs})
}

// failConversation translates conversation service errors into HTTP
// responses.
func failConversation(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrFolderNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "folder not found")
	case errors.Is(err, services.ErrConversationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
